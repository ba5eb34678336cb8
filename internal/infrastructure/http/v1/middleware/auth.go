package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"condo/internal/core/apperror"
	appctx "condo/internal/core/context"
)

// JWTValidator turns a bearer token into the caller's identity.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Auth requires a valid bearer token and puts the caller in the request context.
// Tokens of middle admins without a manager claim are scoped to the admin.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "missing or malformed bearer token")
			return
		}

		user, err := validator.ValidateToken(token)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		switch user.Role {
		case appctx.RoleAdmin, appctx.RoleResident:
		case appctx.RoleMiddleAdmin:
			if user.ManagerID == "" {
				user.ManagerID = user.UserID
			}
		default:
			abortUnauthorized(c, "unknown role in token")
			return
		}

		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireRole admits callers holding one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			abortUnauthorized(c, "authentication required")
			return
		}

		for _, required := range roles {
			if user.Role == required {
				c.Next()
				return
			}
		}
		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}

// RequireStaff admits site admins and building managers.
func RequireStaff() gin.HandlerFunc {
	return RequireRole(appctx.RoleAdmin, appctx.RoleMiddleAdmin)
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
