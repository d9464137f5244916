// Package apperror defines the domain errors shared by the service and handler layers.
//
// Services return these; handlers translate them into flashes, redirects or HTTP status
// codes. Callers match on the sentinel with errors.Is and read the human-readable text
// with errors.As.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinels. Match them with errors.Is; every AppError wraps one.
var (
	// ErrNotFound: the row does not exist (or is not visible to the caller).
	ErrNotFound = errors.New("not found")
	// ErrValidation: user input was rejected; the handler shows the message.
	ErrValidation = errors.New("Validation Error")
	// ErrConflict: a uniqueness rule would be broken.
	ErrConflict = errors.New("conflict")
	// ErrForbidden: the item exists but belongs to someone else.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized: credentials did not check out.
	ErrUnauthorized = errors.New("unauthorized")
)

// AppError pairs a sentinel with a message that is safe to show to the user.
// Error returns only the message, so internal detail never leaks through it.
type AppError struct {
	Err     error  // sentinel (or a more specific cause wrapping one)
	Message string // Human-readable error message, safe to show to the user
	Field   string // Optional: form field causing the error
}

// Error returns the user-facing message.
func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel to errors.Is.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing row, e.g. NotFound("video", 3) reads
// "video not found with id 3".
func NotFound(resource string, id int64) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %d", resource, id),
	}
}

// ValidationFailed rejects the value of a form field with message.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Invalid is ValidationFailed for a specific cause. The cause is joined with
// ErrValidation so errors.Is matches both.
func Invalid(field string, cause error, message string) *AppError {
	return &AppError{
		Err:     errors.Join(ErrValidation, cause),
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation, e.g. a username that is already taken.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when credentials do not check out. The message is
// deliberately generic: it must not reveal whether the username exists.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
