package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials means the classifier rejected our credentials.
	ErrInvalidCredentials = errors.New("invalid API key")
	// ErrInputTooLarge means the classifier refused the input size (context_length_exceeded).
	ErrInputTooLarge = errors.New("context_length_exceeded")
	// ErrMalformedResponse means the classifier answered with something unparseable.
	ErrMalformedResponse = errors.New("invalid response format from classifier")
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// IsTerminal reports whether retrying err cannot succeed.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInputTooLarge)
}

// ValidationError rejects malformed caller input before any side effect.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// RateLimitError is returned when a caller exhausted its window.
type RateLimitError struct {
	Policy  string
	Limit   int
	RetryAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit %d), retry after %s",
		e.Policy, e.Limit, e.RetryAt.UTC().Format(time.RFC3339))
}
