package common

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/youth-governance-backend/internal/http/middleware"
	"github.com/ignatzorin/youth-governance-backend/internal/logger"
	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
	"github.com/ignatzorin/youth-governance-backend/internal/service"
)

var (
	// ErrUserNotFound is returned when the request carries no authenticated user.
	ErrUserNotFound = errors.New("user not found in context")

	// ErrInvalidUUID is returned when UUID parsing fails.
	ErrInvalidUUID = errors.New("invalid UUID format")
)

// CurrentUserID extracts the authenticated user ID from the Gin context.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, ErrUserNotFound
	}

	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrUserNotFound
	}

	return userID, nil
}

// CurrentUserRole extracts the role of the authenticated user.
func CurrentUserRole(c *gin.Context) (string, error) {
	raw, exists := c.Get(middleware.ContextRoleKey)
	if !exists {
		return "", ErrUserNotFound
	}

	role, ok := raw.(string)
	if !ok {
		return "", ErrUserNotFound
	}

	return role, nil
}

// CurrentActor builds the service actor of the request. It writes a 401 and
// returns false when the request is not authenticated.
func CurrentActor(c *gin.Context) (service.Actor, bool) {
	userID, err := CurrentUserID(c)
	if err != nil {
		RespondUnauthorized(c, "")
		return service.Actor{}, false
	}
	role, err := CurrentUserRole(c)
	if err != nil {
		RespondUnauthorized(c, "")
		return service.Actor{}, false
	}
	return service.Actor{ID: userID, Role: role, IP: c.ClientIP()}, true
}

// ParseUUIDParam parses a UUID path parameter.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("parameter %s is missing", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}

	return parsed, nil
}

// UUIDParam parses a UUID path parameter and answers 400 when it is invalid.
func UUIDParam(c *gin.Context, paramName string) (uuid.UUID, bool) {
	id, err := ParseUUIDParam(c, paramName)
	if err != nil {
		RespondBadRequest(c, fmt.Sprintf("parameter %s must be a valid UUID", paramName))
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON binds the request body and answers 400 on failure.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		RespondBadRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// RespondAppError writes err with the status and code of its AppError.
// Other errors and 5xx AppErrors are logged and masked.
func RespondAppError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Wrap(err, apperror.ErrCodeInternal, "internal server error")
	}

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("request failed")
		c.JSON(appErr.HTTPStatus, gin.H{"error": "internal server error", "code": appErr.Code})
		return
	}

	c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
}

// RespondError sends a standardized error response.
func RespondError(c *gin.Context, statusCode int, code apperror.ErrorCode, message string) {
	c.JSON(statusCode, gin.H{"error": message, "code": code})
}

// RespondUnauthorized sends a 401 Unauthorized response.
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "authentication required"
	}
	RespondError(c, http.StatusUnauthorized, apperror.ErrCodeUnauthorized, message)
}

// RespondBadRequest sends a 400 Bad Request response.
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "bad request"
	}
	RespondError(c, http.StatusBadRequest, apperror.ErrCodeBadRequest, message)
}

// ParseIntQuery reads an integer query parameter with a fallback value.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination extracts limit and offset. Services clamp the values.
func GetPagination(c *gin.Context) (limit, offset int) {
	return ParseIntQuery(c, "limit", 20), ParseIntQuery(c, "offset", 0)
}

// ParseBoolQuery reads a boolean query parameter; unknown values are false.
func ParseBoolQuery(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
