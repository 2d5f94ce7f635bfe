// Package apperr defines the error taxonomy shared by the session
// service and its HTTP boundary. Handlers map these onto status codes;
// everything else stays a wrapped internal error.
package apperr

import (
	"errors"
	"fmt"
)

// ErrNotFound covers both unknown ids and ids owned by someone else,
// so callers cannot probe for the existence of other owners' files.
var ErrNotFound = errors.New("not found")

// ValidationError reports a request the caller can fix and resend.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Reason)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// NewValidation creates a ValidationError for a field
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IssuanceError means the credential backend could not sign a write URL.
// The caller may retry the whole CreateSession call.
type IssuanceError struct {
	Err error
}

func (e *IssuanceError) Error() string {
	return fmt.Sprintf("credential issuance failed: %v", e.Err)
}

func (e *IssuanceError) Unwrap() error { return e.Err }

// PersistenceError means the metadata store rejected or lost an operation.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
