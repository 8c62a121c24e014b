package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/appointment-web/internal/view"
	apperrors "github.com/jwalitptl/appointment-web/pkg/errors"
)

const msgInternal = "An unexpected error occurred"

// ErrorHandler logs errors attached with c.Error and, unless the handler
// already answered, renders the error page for the last one.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Interface("meta", e.Meta).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last().Err
		status := http.StatusInternalServerError
		if err, ok := lastErr.(interface{ StatusCode() int }); ok && err.StatusCode() >= 400 {
			status = err.StatusCode()
		}

		msg := msgInternal
		var appErr *apperrors.AppError
		if errors.As(lastErr, &appErr) && status < 500 && appErr.Message != "" {
			msg = appErr.Message
		}
		renderError(c, status, msg)
	}
}

func renderError(c *gin.Context, status int, msg string) {
	c.HTML(status, view.Error, view.MessagePage{
		Page:    view.Page{Title: "Error", RequestID: c.GetString(ContextRequestID)},
		Message: msg,
	})
}
