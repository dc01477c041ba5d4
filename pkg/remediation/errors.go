package remediation

import "fmt"

// UnknownActionKindError indicates a decision selected an action kind that
// has no enabled handler registered.
type UnknownActionKindError struct {
	Kind     string // Action kind from the rule
	Disabled bool   // True if registered but administratively disabled
}

// Error implements the error interface.
func (e *UnknownActionKindError) Error() string {
	if e.Disabled {
		return fmt.Sprintf("action kind %q is disabled", e.Kind)
	}
	return fmt.Sprintf("unknown action kind %q", e.Kind)
}

// StoreError represents a failure in the idempotency store.
type StoreError struct {
	Operation string // "lookup", "record", "open"
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("idempotency store %s: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}
