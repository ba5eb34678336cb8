package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"condo/internal/core/apperror"
	"condo/pkg/logger"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
}

// ErrorHandler renders the last error a handler attached with c.Error.
// AppErrors keep their code and status; anything else becomes an opaque 500
// whose cause is only logged.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		ctx := c.Request.Context()
		err := c.Errors.Last().Err
		appErr, ok := apperror.AsAppError(err)
		if !ok {
			appErr = apperror.NewInternal(err)
		}

		switch {
		case appErr.HTTPStatus >= http.StatusInternalServerError:
			logger.Error(ctx, "request failed", "code", appErr.Code, "cause", appErr.Err)
		case appErr.Err != nil:
			logger.Warn(ctx, "request rejected", "code", appErr.Code, "cause", appErr.Err)
		}

		c.JSON(appErr.HTTPStatus, ErrorResponse{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Details:   appErr.Details,
			RequestID: c.GetString("request_id"),
		})
	}
}
