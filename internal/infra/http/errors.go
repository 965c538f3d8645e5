package http

import (
	"errors"
	"net/http"
	"strings"

	"bizzshort/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(c *gin.Context, err error) {
	if verr, ok := domain.IsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, errorResponse{
			Code:    "INVALID_ARGUMENT",
			Message: verr.Error(),
			Details: map[string]any{"field": verr.Field},
		})
		return
	}
	status, code := http.StatusInternalServerError, "INTERNAL"
	message := "internal error"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code, message = http.StatusNotFound, "NOT_FOUND", "not found"
	case errors.Is(err, domain.ErrConflict):
		status, code, message = http.StatusConflict, "CONFLICT", "already exists"
	case errors.Is(err, domain.ErrInvalidArgument):
		status, code, message = http.StatusBadRequest, "INVALID_ARGUMENT", err.Error()
	case errors.Is(err, domain.ErrSessionNotFound):
		status, code, message = http.StatusNotFound, "SESSION_NOT_FOUND", "page session not found"
	case errors.Is(err, domain.ErrMissingElement):
		status, code, message = http.StatusNotFound, "MISSING_ELEMENT", "ad element not found"
	case errors.Is(err, domain.ErrSessionCapacity):
		status, code, message = http.StatusServiceUnavailable, "SESSION_CAPACITY", "too many live page sessions"
	case errors.Is(err, domain.ErrStorageUnavailable):
		status, code, message = http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage unavailable"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code, message = http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		status, code, message = http.StatusForbidden, "FORBIDDEN", "forbidden"
	}
	writeErrorCode(c, status, code, message)
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func parseUUIDParam(c *gin.Context, name string) (string, bool) {
	value := strings.TrimSpace(c.Param(name))
	if value == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", name+" is required")
		return "", false
	}
	if _, err := uuid.Parse(value); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", name+" must be a UUID")
		return "", false
	}
	return value, true
}

const maxIdentifierLen = 128

// parseIdentifierParam accepts the opaque ids browsers hand us: profile ids
// and ad element ids.
func parseIdentifierParam(c *gin.Context, name string) (string, bool) {
	value := strings.TrimSpace(c.Param(name))
	if value == "" || len(value) > maxIdentifierLen {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", name+" must be 1-128 characters")
		return "", false
	}
	return value, true
}
