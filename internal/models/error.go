package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication-domain errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrInvalidToken       = errors.New("invalid or expired token")

	// Persistence failure, distinct from the domain errors above. Surfaced
	// as 5xx and retryable by the caller.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError reports malformed input with field-level detail.
// It maps to a 4xx response and is never logged as a security event.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a field-scoped validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AccountLockedError carries the lockout expiry for client backoff guidance.
// It never reveals the failure count.
type AccountLockedError struct {
	LockedUntil time.Time
}

func (e *AccountLockedError) Error() string {
	return ErrAccountLocked.Error()
}

// Unwrap lets errors.Is(err, ErrAccountLocked) match.
func (e *AccountLockedError) Unwrap() error {
	return ErrAccountLocked
}
