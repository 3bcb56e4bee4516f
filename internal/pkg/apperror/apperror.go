package apperror

import (
	"errors"
	"net/http"
)

// AppError carries the HTTP status a domain error maps to.
// Package-level sentinels are compared with errors.Is; copies produced by
// WithDetails or Wrap still match their sentinel.
type AppError struct {
	Code    int               // HTTP status code (400, 404, 409, ...)
	Message string            // User-facing message
	Details map[string]string // Optional per-field details, exposed to the user
	Err     error             // Underlying cause, never exposed
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the client may retry the same request unchanged.
func (e *AppError) Retryable() bool {
	return e.Code == http.StatusServiceUnavailable || e.Code == http.StatusTooManyRequests
}

// WithDetails returns a copy of e that wraps e and carries field details.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Err:     e,
	}
}

// New creates a new AppError with a status code and message.
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error.
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// StatusOf returns the HTTP status for err, or 500 when err is not an AppError.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
