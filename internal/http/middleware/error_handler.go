package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/youth-governance-backend/internal/logger"
	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
)

// ErrorHandler renders errors attached with c.Error when the handler did not
// write a response itself. Application errors keep their code and message;
// anything else becomes a masked 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := http.StatusInternalServerError
		code := apperror.ErrCodeInternal
		message := "internal server error"

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			status = appErr.HTTPStatus
			code = appErr.Code
			if status < http.StatusInternalServerError {
				message = appErr.Message
			}
		}

		entry := logger.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"status": status,
		})
		if status >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Debug("request rejected")
		}

		c.JSON(status, gin.H{"error": message, "code": code})
	}
}
