package interfaces

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound is returned when no device is registered under an identity.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrUnresolvedArtifact is returned when a requested filename matches no artifact.
	ErrUnresolvedArtifact = errors.New("file not found")
)

// ValidationError reports a missing or malformed field on an admin request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewMissingFieldError reports a required field that was absent or empty.
func NewMissingFieldError(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "required field missing"}
}

// PersistenceError wraps a failure to write the registry snapshot.
// In-memory state may be ahead of the stored state when it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
