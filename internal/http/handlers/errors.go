// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package), and the translation
// from service-layer errors to (status, code, message).
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - store_unavailable marks failures the client may retry.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "message": "username already exists"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeSelfSave         = "self_save"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// failService writes the error envelope that corresponds to a service error.
// Unknown errors are treated as store failures so clients can retry.
func failService(c *gin.Context, err error) {
	status, code, msg := mapServiceError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	fail(c, status, code, msg)
}

// mapServiceError translates a service error into (status, code, message).
func mapServiceError(err error) (int, string, string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "not found"
	case errors.Is(err, services.ErrSelfSave):
		return http.StatusForbidden, ErrCodeSelfSave, err.Error()
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden, "forbidden"
	case errors.Is(err, services.ErrDuplicateUsername):
		return http.StatusConflict, ErrCodeConflict, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrCodeUnauthorized, err.Error()
	case errors.Is(err, services.ErrEmptyTitle),
		errors.Is(err, services.ErrEmptyUsername),
		errors.Is(err, services.ErrWeakPassword),
		errors.Is(err, services.ErrUsernameTooLong),
		errors.Is(err, services.ErrPasswordTooLong):
		return http.StatusBadRequest, ErrCodeBadRequest, err.Error()
	case errors.Is(err, services.ErrConstraintViolation):
		return http.StatusConflict, ErrCodeConflict, "request conflicts with stored data"
	default:
		return http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "storage temporarily unavailable, please retry"
	}
}
