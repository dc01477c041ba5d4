package engine

import (
	"time"

	"aegis-hq/sentinel/pkg/policy/bundle"
	"aegis-hq/sentinel/pkg/signal"
)

// Outcome classifies the result of evaluating one event.
type Outcome string

const (
	// OutcomeDecision means a single rule matched and a Decision was
	// produced for dispatch.
	OutcomeDecision Outcome = "decision"

	// OutcomeNoMatch means no rule covered the event. Not an error; the
	// event is recorded and dropped.
	OutcomeNoMatch Outcome = "no-match"

	// OutcomeSuppressed means a rule matched but the correlation key is
	// inside its cooldown window or already being remediated. Recorded,
	// no action dispatched.
	OutcomeSuppressed Outcome = "suppressed"
)

// Decision is the evaluator's output for a matched, non-suppressed event.
type Decision struct {
	// Event is the normalized event that triggered the decision.
	Event *signal.RiskEvent

	// Rule is the winning rule from the active bundle.
	Rule *bundle.Rule

	// Action is the remediation capability to dispatch.
	Action bundle.ActionKind

	// Approval is the required approval level. ApprovalHuman decisions
	// escalate instead of dispatching.
	Approval bundle.ApprovalLevel

	// BundleVersion records which bundle produced the decision, for the
	// evidence trail.
	BundleVersion string

	// EvaluatedAt is when the decision was made (UTC).
	EvaluatedAt time.Time
}

// Result is the full evaluation outcome for one event.
type Result struct {
	// Outcome classifies the result.
	Outcome Outcome

	// Decision is set when Outcome is OutcomeDecision.
	Decision *Decision

	// SuppressedBy is the rule whose cooldown or in-flight remediation
	// suppressed the event (when Outcome is OutcomeSuppressed).
	SuppressedBy *bundle.Rule

	// SuppressedFor is how long the cooldown has left to run, zero when
	// suppression came from an in-flight remediation.
	SuppressedFor time.Duration
}

// SuppressionChecker is consulted before a Decision is produced. The
// incident tracker implements it: a key counts as suppressed while a
// remediation for it is in flight or its rule's cooldown is still running.
type SuppressionChecker interface {
	// CheckSuppression reports whether events for the correlation key are
	// currently suppressed under the given rule, and the remaining
	// cooldown if that is the reason.
	CheckSuppression(correlationKey string, rule *bundle.Rule, now time.Time) (bool, time.Duration)
}

// Criterion is a tie-break criterion applied when several rules match.
type Criterion string

const (
	// CriterionPriority keeps the rule(s) with the highest declared
	// priority.
	CriterionPriority Criterion = "priority"

	// CriterionSpecificity keeps the rule(s) with the most specific scope
	// (exact key beats prefix pattern beats global wildcard).
	CriterionSpecificity Criterion = "specificity"
)

// ParseCriteria converts configured tie-break names into Criteria.
func ParseCriteria(names []string) ([]Criterion, error) {
	criteria := make([]Criterion, 0, len(names))
	for _, name := range names {
		switch Criterion(name) {
		case CriterionPriority, CriterionSpecificity:
			criteria = append(criteria, Criterion(name))
		default:
			return nil, &ConfigError{Detail: "unknown tie-break criterion " + name}
		}
	}
	return criteria, nil
}
