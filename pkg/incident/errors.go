package incident

import "fmt"

// NotFoundError indicates no incident exists for a correlation key.
type NotFoundError struct {
	// CorrelationKey is the key that was looked up.
	CorrelationKey string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no incident for correlation key %q", e.CorrelationKey)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(correlationKey string) *NotFoundError {
	return &NotFoundError{CorrelationKey: correlationKey}
}

// InvalidTransitionError indicates a requested state change is not allowed
// from the incident's current state, e.g. acknowledging an incident that is
// still remediating.
type InvalidTransitionError struct {
	// CorrelationKey identifies the incident.
	CorrelationKey string

	// From is the current state.
	From State

	// To is the requested state.
	To State
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("incident %q cannot move from %s to %s", e.CorrelationKey, e.From, e.To)
}

// NewInvalidTransitionError creates a new InvalidTransitionError.
func NewInvalidTransitionError(correlationKey string, from, to State) *InvalidTransitionError {
	return &InvalidTransitionError{CorrelationKey: correlationKey, From: from, To: to}
}
