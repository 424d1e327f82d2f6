package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors checked with errors.Is across the codebase.
//
// The first group is the generic CRUD taxonomy; the second group covers
// the webhook → publish path, where callers must branch on a closed set
// of outcomes instead of duck-typing upstream HTTP responses.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	ErrMissingCredentials = errors.New("missing credentials")
	ErrUpstreamAuth       = errors.New("upstream auth error")
	ErrUpstream           = errors.New("upstream server error")
	ErrInvalidContent     = errors.New("invalid content")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
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

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// MissingCredentials marks a publish attempt for a user whose LinkedIn
// account is not (fully) linked. Mapped to 400 consistently — the legacy
// behaviour of surfacing it as 500 was a bug, not a contract.
func MissingCredentials(message string) *AppError {
	return &AppError{
		Err:     ErrMissingCredentials,
		Message: message,
	}
}

// UpstreamAuth marks a 401 from GitHub or LinkedIn: the stored token is
// invalid or expired. Not retryable without a token refresh.
func UpstreamAuth(provider, message string) *AppError {
	return &AppError{
		Err:     ErrUpstreamAuth,
		Message: fmt.Sprintf("%s: %s", provider, message),
	}
}

// Upstream marks a 5xx (or timeout) from a third-party API. Eligible for
// bounded retry with fixed backoff.
func Upstream(provider, message string) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: fmt.Sprintf("%s: %s", provider, message),
	}
}

// InvalidContent marks a post the composer could not make well-formed,
// e.g. a repository URL with no usable scheme or host.
func InvalidContent(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidContent,
		Message: message,
	}
}
