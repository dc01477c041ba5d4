package incident

import (
	"time"

	"aegis-hq/sentinel/pkg/remediation"
)

// State is a stage in the per-correlation-key incident lifecycle.
type State string

const (
	// StateOpen means the incident exists but no remediation has started.
	StateOpen State = "open"

	// StateRemediating means a remediation attempt is in flight or being
	// retried. At most one attempt runs per correlation key.
	StateRemediating State = "remediating"

	// StateRemediated means an attempt succeeded. Terminal for the
	// automation; awaits operator acknowledgment.
	StateRemediated State = "remediated"

	// StateEscalated means the attempt budget was exhausted, the failure
	// was permanent, the policy was ambiguous, or the rule requires human
	// approval. Terminal for the automation; surfaces for manual action.
	StateEscalated State = "escalated"

	// StateClosed means an operator acknowledged the terminal outcome.
	// The correlation key may open a fresh incident afterwards.
	StateClosed State = "closed"
)

// Terminal reports whether the state ends the automation's involvement.
func (s State) Terminal() bool {
	return s == StateRemediated || s == StateEscalated || s == StateClosed
}

// Incident is a snapshot of one correlation key's lifecycle state. Snapshots
// are value copies; mutating one does not affect the tracker.
type Incident struct {
	// ID uniquely identifies this incident occurrence. A correlation key
	// reused after cooldown gets a fresh ID.
	ID string

	// CorrelationKey groups repeats of the same underlying problem.
	CorrelationKey string

	// Severity is the highest severity observed across grouped events.
	Severity int

	// FirstSeen and LastSeen bound the observations folded into this
	// incident (UTC).
	FirstSeen time.Time
	LastSeen  time.Time

	// State is the current lifecycle state.
	State State

	// RuleID is the matched rule, set once evaluated.
	RuleID string

	// Attempts is the number of remediation attempts made so far.
	Attempts int

	// LastOutcome is the outcome of the most recent attempt, if any.
	LastOutcome remediation.OutcomeKind

	// EscalationReason explains an Escalated state.
	EscalationReason string

	// CooldownUntil is when the rule's cooldown window ends. Events for
	// this key arriving strictly before it are suppressed.
	CooldownUntil time.Time

	// ClosedAt is when an operator acknowledged the incident.
	ClosedAt time.Time
}

// Observer receives lifecycle callbacks. The controller uses it to append
// evidence records; callbacks for one correlation key are always delivered
// in transition order because the per-key remediation loop is sequential.
type Observer interface {
	// OnTransition is called after each state change with a snapshot.
	OnTransition(incident Incident)

	// OnAttempt is called after each remediation attempt completes.
	OnAttempt(incident Incident, attempt remediation.Attempt)
}

// NopObserver discards all callbacks.
type NopObserver struct{}

func (NopObserver) OnTransition(Incident)                   {}
func (NopObserver) OnAttempt(Incident, remediation.Attempt) {}
