package domain

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by stores and
// services to communicate domain-specific error conditions.
// -----------------------------------------------------------------------------

// Profile errors
var (
	ErrProfileNotFound = errors.New("learner profile not found")
)

// Session errors
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionNotActive    = errors.New("session is not active")
	ErrSessionAlreadyEnded = errors.New("session already ended")
	ErrSessionInProgress   = errors.New("learner already has an active session")
)

// Weekly progress errors
var (
	ErrWeeklyProgressNotFound = errors.New("weekly progress not found")
)

// ValidationError describes malformed input rejected before any side effect.
// It is never retried and never partially applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
