package signal

import "fmt"

// UnknownEventKindError indicates a producer pushed an event whose kind is
// not in the engine's catalog. The event is rejected at the boundary.
type UnknownEventKindError struct {
	Kind   string // Kind string as received
	Source string // Producer identity, if present
}

// Error implements the error interface.
func (e *UnknownEventKindError) Error() string {
	return fmt.Sprintf("unknown event kind %q from source %q", e.Kind, e.Source)
}

// InvalidEventError indicates a structurally invalid raw event (missing
// correlation key, out-of-range severity, unknown scale).
type InvalidEventError struct {
	Field  string // Field that failed validation
	Reason string // Human-readable reason
}

// Error implements the error interface.
func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event: field %s: %s", e.Field, e.Reason)
}
