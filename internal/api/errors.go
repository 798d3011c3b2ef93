package api

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"example.com/backstage/services/yard/internal/apperr"
)

// ErrorResponse defines the structure of an error response
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error represents an API error
type Error struct {
	Message    string
	StatusCode int
	Code       string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Common API errors
var (
	ErrInternalServer     = &Error{Message: "Internal server error", StatusCode: http.StatusInternalServerError, Code: "INTERNAL_ERROR"}
	ErrMissingOperator    = &Error{Message: "X-Operator-ID header is required", StatusCode: http.StatusUnauthorized, Code: "UNAUTHORIZED"}
	ErrServiceUnavailable = &Error{Message: "Service unavailable", StatusCode: http.StatusServiceUnavailable, Code: "SERVICE_UNAVAILABLE"}
)

// statusByKind maps error kinds onto HTTP status codes
var statusByKind = map[apperr.Kind]int{
	apperr.Validation:         http.StatusBadRequest,
	apperr.NotFound:           http.StatusNotFound,
	apperr.InvalidTransition:  http.StatusConflict,
	apperr.InvalidState:       http.StatusConflict,
	apperr.Conflict:           http.StatusConflict,
	apperr.PreconditionFailed: http.StatusPreconditionFailed,
	apperr.Storage:            http.StatusServiceUnavailable,
}

// FromKind converts a kinded error to an API error. Storage and internal
// failures do not leak their message.
func FromKind(err error) *Error {
	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		return ErrInternalServer
	}
	if kind == apperr.Storage {
		return &Error{Message: ErrServiceUnavailable.Message, StatusCode: status, Code: string(kind)}
	}

	message := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) && e.Message != "" {
		message = e.Message
	}
	return &Error{Message: message, StatusCode: status, Code: string(kind)}
}

// WriteError writes an error response
func WriteError(w http.ResponseWriter, err error) {
	var apiError *Error
	if !errors.As(err, &apiError) {
		apiError = FromKind(err)
	}

	if apiError.StatusCode >= http.StatusInternalServerError {
		logrus.WithError(err).Error("Unhandled error")
	}
	writeJSONResponse(w, apiError.StatusCode, ErrorResponse{
		Message: apiError.Message,
		Code:    apiError.Code,
	})
}

// NewValidationError creates a new validation error with a custom message
func NewValidationError(message string) *Error {
	return &Error{
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Code:       string(apperr.Validation),
	}
}
