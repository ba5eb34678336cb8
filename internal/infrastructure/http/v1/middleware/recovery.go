package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"condo/internal/core/apperror"
	"condo/pkg/logger"
)

// Recovery turns a panicking handler into a 500 response. It runs outside
// ErrorHandler, so it writes the body itself. The stack is logged; the
// client only sees the request id.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				"panic", rec,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"stack", string(debug.Stack()),
			)
			appErr := apperror.NewInternal(fmt.Errorf("panic: %v", rec))
			_ = c.Error(appErr)
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
				Code:      appErr.Code,
				Message:   appErr.Message,
				RequestID: c.GetString("request_id"),
			})
		}()
		c.Next()
	}
}
