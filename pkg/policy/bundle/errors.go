package bundle

import (
	"errors"
	"fmt"
)

// ErrSignatureInvalid is returned when a bundle's signature does not verify
// against any configured trusted signer. The previously active bundle stays
// in force.
var ErrSignatureInvalid = errors.New("bundle signature invalid")

// ErrNoActiveBundle is returned by Store.Active before any bundle has been
// successfully loaded.
var ErrNoActiveBundle = errors.New("no active policy bundle")

// MalformedError indicates a bundle that verified cryptographically but
// failed parsing or structural validation. It wraps the underlying cause.
type MalformedError struct {
	Detail string // What is malformed
	Cause  error  // Underlying error, if any
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("bundle malformed: %s: %v", e.Detail, e.Cause)
	}
	return fmt.Sprintf("bundle malformed: %s", e.Detail)
}

// Unwrap returns the underlying cause error.
func (e *MalformedError) Unwrap() error {
	return e.Cause
}

// NewMalformedError creates a new MalformedError.
func NewMalformedError(detail string, cause error) *MalformedError {
	return &MalformedError{Detail: detail, Cause: cause}
}
