// Package apperror defines the error taxonomy shared by the service and
// handler layers.
//
// Every domain error is an *AppError wrapping one of the sentinel values below.
// Callers branch with errors.Is(err, apperror.ErrNotFound) and read the
// human-readable text from AppError.Message; the handler layer maps sentinels
// to HTTP status codes (see handler/response.go).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("conflict")
	ErrForbidden      = errors.New("forbidden")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrPartialFailure = errors.New("partial failure")
)

type AppError struct {
	Err     error  // sentinel this error unwraps to
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying failure, never shown to clients
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause so errors.Is works for either.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// AlreadyFriends is the Conflict raised by friend-request transitions on a
// pair that is already mutually friended.
func AlreadyFriends(userID, friendID string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("users %s and %s are already friends", userID, friendID),
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

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// PartialFailure reports a two-sided transition where the first record was
// saved and the second was not. The records are left asymmetric until the
// transition is re-run.
func PartialFailure(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrPartialFailure,
		Message: message,
		Cause:   cause,
	}
}
