// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Roles carried in the access token.
const (
	RoleAdmin       = "admin"
	RoleMiddleAdmin = "middle_admin"
	RoleResident    = "resident"
)

// UserContext contains authenticated user information.
type UserContext struct {
	UserID string
	Mobile string
	Role   string
	// ManagerID scopes every query to one middle admin's rows.
	// Equal to UserID for middle admins; empty for site admins acting globally.
	ManagerID string
	SessionID string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// GetManagerID returns the acting middle admin ID or empty string.
func GetManagerID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.ManagerID
	}
	return ""
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	return u != nil && u.Role == role
}

// IsAdmin reports whether the caller is the site-wide admin.
func IsAdmin(ctx context.Context) bool {
	return HasRole(ctx, RoleAdmin)
}
