package remediation

import (
	"context"
	"time"

	"aegis-hq/sentinel/pkg/policy/bundle"
)

// OutcomeKind classifies the result of executing a remediation action.
type OutcomeKind string

const (
	// OutcomeSuccess means the action took effect on its target.
	OutcomeSuccess OutcomeKind = "success"

	// OutcomeTimeout means the execution exceeded its deadline. Transient;
	// eligible for retry under the tracker's backoff policy.
	OutcomeTimeout OutcomeKind = "timeout"

	// OutcomeFailedTransient means the action failed in a way worth
	// retrying (e.g., target briefly unavailable).
	OutcomeFailedTransient OutcomeKind = "failed-transient"

	// OutcomeFailedPermanent means the action can never succeed as issued
	// (e.g., target declared non-retryable). The incident escalates
	// immediately.
	OutcomeFailedPermanent OutcomeKind = "failed-permanent"
)

// Terminal reports whether the outcome ends execution for its idempotency
// key: a terminal outcome is replayed instead of re-executed.
func (k OutcomeKind) Terminal() bool {
	return k == OutcomeSuccess || k == OutcomeFailedPermanent
}

// Retryable reports whether the outcome permits another attempt.
func (k OutcomeKind) Retryable() bool {
	return k == OutcomeTimeout || k == OutcomeFailedTransient
}

// Outcome is what a handler reports back for one execution.
type Outcome struct {
	// Kind classifies the result.
	Kind OutcomeKind

	// Output carries handler-specific result detail (e.g., a target
	// transaction reference).
	Output string

	// Error describes the failure for non-success outcomes.
	Error string
}

// ActionPayload carries the context a handler needs to act on its target.
type ActionPayload struct {
	// CorrelationKey identifies the subject (vault, pool, account, vendor).
	CorrelationKey string

	// RuleID is the policy rule that selected the action.
	RuleID string

	// Severity is the incident's aggregated severity.
	Severity int

	// EvidenceRef points at the producer-side evidence that triggered the
	// decision.
	EvidenceRef string
}

// Handler executes one remediation capability against its target. Targets
// deduplicate by idempotency key; handlers pass the key through unchanged.
type Handler interface {
	Execute(ctx context.Context, idempotencyKey string, payload ActionPayload) Outcome
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, idempotencyKey string, payload ActionPayload) Outcome

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, idempotencyKey string, payload ActionPayload) Outcome {
	return f(ctx, idempotencyKey, payload)
}

// Attempt records one remediation attempt, successful or not. Attempts are
// embedded into evidence records.
type Attempt struct {
	// ID uniquely identifies the attempt.
	ID string `json:"id"`

	// IdempotencyKey is derived from the correlation key and rule, so it
	// is identical across retries and across crash-resume. Targets
	// deduplicate by it.
	IdempotencyKey string `json:"idempotency_key"`

	// Action is the capability that was dispatched.
	Action bundle.ActionKind `json:"action"`

	// Number is the attempt ordinal within its incident, starting at 1.
	Number int `json:"number"`

	// StartedAt and EndedAt bound the execution (UTC).
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// Outcome classifies the result.
	Outcome OutcomeKind `json:"outcome"`

	// Output and Error carry handler detail.
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`

	// Replayed is true when the outcome was returned from the idempotency
	// store without executing the handler again.
	Replayed bool `json:"replayed,omitempty"`
}
