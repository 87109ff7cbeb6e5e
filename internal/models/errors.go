package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateVote is returned when a device tries to vote twice for
	// the same performance. Surfaced to the user as "you already voted".
	ErrDuplicateVote = errors.New("device has already voted for this performance")

	// ErrInvalidState is returned when an operation targets a row whose
	// status does not allow it, e.g. voting on a closed performance.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrNotFound is returned when the target row has vanished.
	ErrNotFound = errors.New("record not found")
)

// ValidationError reports malformed user input (empty singer name,
// out-of-range score, ...).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// TransientError wraps failures of an external collaborator (store,
// notification channel, video search). The core does not retry these;
// the caller may re-issue the request.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s temporarily unavailable: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}
