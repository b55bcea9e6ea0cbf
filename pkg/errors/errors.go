package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an error for callers and for HTTP mapping.
type ErrorType string

const (
	// Caller-side errors
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// Infrastructure errors
	ErrorTypeDatabase ErrorType = "DATABASE"
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError is the error type surfaced by the gateway and services.
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Cause      error     `json:"-"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// NewValidationError creates a validation error. Covers the invalid-data
// failure class: a required identifier or field missing on the caller's side.
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFoundError creates a not found error for the named resource.
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

// NewUnauthorizedError creates an error for requests with no signed-in owner.
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "user is not authenticated"
	}
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewDatabaseError wraps a store/transport failure.
func NewDatabaseError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeDatabase,
		Message:    message,
		Cause:      cause,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		Cause:      cause,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// GetType extracts the error type, defaulting to INTERNAL for foreign errors.
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// HTTPStatus maps an error to the status code it should produce.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return GetType(err) == ErrorTypeNotFound
}

// IsValidation reports whether err is a VALIDATION error.
func IsValidation(err error) bool {
	return GetType(err) == ErrorTypeValidation
}

// IsUnauthorized reports whether err is an UNAUTHORIZED error.
func IsUnauthorized(err error) bool {
	return GetType(err) == ErrorTypeUnauthorized
}
