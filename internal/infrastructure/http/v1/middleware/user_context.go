// Package middleware provides HTTP middleware for the condo API.
package middleware

import (
	"github.com/gin-gonic/gin"

	"condo/internal/core/security"
)

// UserContext fixes the access scope of the request once the caller is known.
//
// This middleware must run AFTER Auth. Domain services read the scope via
// security.GetScope(ctx) to hide rows of other managers.
//
// Usage in router:
//
//	protected.Use(middleware.Auth(cfg.JWTValidator))
//	protected.Use(middleware.UserContext())
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		scope := security.NewAccessScope(ctx)
		c.Request = c.Request.WithContext(security.WithScope(ctx, scope))
		c.Next()
	}
}
