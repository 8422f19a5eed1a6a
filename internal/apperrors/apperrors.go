// internal/apperrors/apperrors.go
package apperrors

import (
	"fmt"
	"time"
)

// ValidationError covers 400/422 responses and locally rejected input. Field
// is empty when the error is not scoped to a single control.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// AuthError means the session expired (401). It is the only error kind that
// triggers a global side effect: the caller tears the session down.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return "authentication required: " + e.Message }

// PermissionError is a 403. Not retryable.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string { return "permission denied: " + e.Message }

// NotFoundError is a 404; the entity should be dropped from local state.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError is a 409 or a locally rejected lifecycle transition.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Message }

func NewConflict(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// RateLimitError is a 429. Commands retry once after RetryAfter, then surface.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// ServerError is a 5xx. Surfaced with a retry affordance, never auto-retried.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// NetworkError wraps transport failures and timeouts. The optimistic mutation
// that triggered the request must be rolled back by the caller.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func NewNetwork(op string, err error) error {
	return &NetworkError{Op: op, Err: err}
}

// FromStatusCode maps an HTTP response status to the taxonomy. The message is
// whatever the server put in the body; callers surface it as-is.
func FromStatusCode(code int, message string) error {
	switch {
	case code == 400 || code == 422:
		return &ValidationError{Message: message}
	case code == 401:
		return &AuthError{Message: message}
	case code == 403:
		return &PermissionError{Message: message}
	case code == 404:
		return &NotFoundError{Entity: "resource", ID: message}
	case code == 409:
		return &ConflictError{Message: message}
	case code == 429:
		return &RateLimitError{RetryAfter: time.Second}
	case code >= 500:
		return &ServerError{StatusCode: code, Message: message}
	default:
		return &ServerError{StatusCode: code, Message: message}
	}
}
