package engine

import (
	"fmt"
	"strings"
)

// AmbiguousError indicates that multiple rules matched an event and the
// configured tie-break criteria could not separate them. The engine refuses
// to guess; the condition escalates to operators.
type AmbiguousError struct {
	EventID string   // Event being evaluated
	RuleIDs []string // Rules still tied after all criteria
}

// Error implements the error interface.
func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("policy ambiguous for event %s: rules [%s] tie after all criteria",
		e.EventID, strings.Join(e.RuleIDs, ", "))
}

// ConfigError indicates invalid evaluator configuration.
type ConfigError struct {
	Detail string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "evaluator config: " + e.Detail
}
