// Package security provides authorization and access control.
package security

import (
	"context"

	"condo/internal/core/apperror"
	appctx "condo/internal/core/context"
	"condo/internal/core/id"
)

// AccessScope defines the boundaries of data visibility for current request.
// Middle admins see only rows they manage; the site admin sees everything.
type AccessScope struct {
	// UserID is the authenticated user
	UserID string

	// ManagerID is the middle admin whose rows are visible
	ManagerID string

	// IsAdmin bypasses manager filtering
	IsAdmin bool
}

// NewAccessScope creates AccessScope from context.
func NewAccessScope(ctx context.Context) *AccessScope {
	user := appctx.GetUser(ctx)
	if user == nil {
		return &AccessScope{}
	}

	return &AccessScope{
		UserID:    user.UserID,
		ManagerID: user.ManagerID,
		IsAdmin:   user.Role == appctx.RoleAdmin,
	}
}

// CanManage checks if the caller may act on rows owned by managerID.
func (s *AccessScope) CanManage(managerID string) bool {
	if s.IsAdmin {
		return true
	}
	return s.ManagerID != "" && s.ManagerID == managerID
}

// RequireManager returns a not-found error when the row belongs to another manager.
// Foreign rows are reported as missing so their existence is not leaked.
func (s *AccessScope) RequireManager(entity string, entityID any, managerID string) error {
	if !s.CanManage(managerID) {
		return apperror.NewNotFound(entity, entityID)
	}
	return nil
}

// ActingManager resolves whose rows the caller writes. Admins must name the
// manager explicitly; middle admins always act for themselves.
func (s *AccessScope) ActingManager(requested *id.ID) (id.ID, error) {
	if s.IsAdmin && requested != nil {
		return *requested, nil
	}
	if s.ManagerID == "" {
		return id.Nil(), apperror.NewForbidden("a building manager is required")
	}
	managerID, err := id.Parse(s.ManagerID)
	if err != nil {
		return id.Nil(), apperror.NewForbidden("invalid manager in access token")
	}
	return managerID, nil
}

// --- Context-based scope access ---

type scopeKey struct{}

// WithScope adds AccessScope to context.
func WithScope(ctx context.Context, scope *AccessScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// GetScope returns AccessScope from context.
func GetScope(ctx context.Context) *AccessScope {
	if v, ok := ctx.Value(scopeKey{}).(*AccessScope); ok {
		return v
	}
	return NewAccessScope(ctx)
}
