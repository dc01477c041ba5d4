package engine

import (
	"log/slog"
	"time"

	"aegis-hq/sentinel/pkg/policy/bundle"
	"aegis-hq/sentinel/pkg/signal"
)

// Evaluator matches normalized events against the active policy bundle and
// produces Decisions. It is stateless apart from its configuration and safe
// for concurrent use; all mutable incident state lives behind the
// SuppressionChecker.
type Evaluator struct {
	criteria    []Criterion
	suppression SuppressionChecker
	logger      *slog.Logger
	now         func() time.Time
}

// NewEvaluator creates an Evaluator with the given tie-break criteria.
// Criteria are applied in order; if all of them leave more than one rule
// standing, evaluation fails with AmbiguousError rather than guessing.
func NewEvaluator(criteria []Criterion, suppression SuppressionChecker) *Evaluator {
	return &Evaluator{
		criteria:    criteria,
		suppression: suppression,
		logger:      slog.Default().With("component", "policy.engine"),
		now:         time.Now,
	}
}

// WithClock replaces the evaluator clock. Test hook.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Evaluate matches the event against the active bundle snapshot.
//
// No matching rule is a valid outcome (OutcomeNoMatch), not an error. When a
// single rule wins the tie-break, the suppression checker decides whether a
// Decision is produced or the event is suppressed under the rule's cooldown
// or an in-flight remediation. A tie that survives every criterion returns
// an AmbiguousError.
func (e *Evaluator) Evaluate(event *signal.RiskEvent, snapshot *bundle.Snapshot) (*Result, error) {
	candidates := matchRules(snapshot.Bundle, event)
	if len(candidates) == 0 {
		e.logger.Debug("no rule matched event",
			"event_id", event.ID,
			"kind", event.Kind,
			"correlation_key", event.CorrelationKey,
			"severity", event.Severity,
		)
		return &Result{Outcome: OutcomeNoMatch}, nil
	}

	for _, criterion := range e.criteria {
		candidates = applyCriterion(candidates, criterion)
		if len(candidates) == 1 {
			break
		}
	}
	if len(candidates) > 1 {
		ids := make([]string, len(candidates))
		for i, r := range candidates {
			ids[i] = r.ID
		}
		return nil, &AmbiguousError{EventID: event.ID, RuleIDs: ids}
	}

	rule := candidates[0]
	now := e.now().UTC()

	if suppressed, remaining := e.suppression.CheckSuppression(event.CorrelationKey, rule, now); suppressed {
		e.logger.Info("event suppressed",
			"event_id", event.ID,
			"correlation_key", event.CorrelationKey,
			"rule_id", rule.ID,
			"cooldown_remaining", remaining.String(),
		)
		return &Result{
			Outcome:       OutcomeSuppressed,
			SuppressedBy:  rule,
			SuppressedFor: remaining,
		}, nil
	}

	approval := rule.Approval
	if approval == "" {
		approval = bundle.ApprovalAuto
	}

	decision := &Decision{
		Event:         event,
		Rule:          rule,
		Action:        rule.Action,
		Approval:      approval,
		BundleVersion: snapshot.Bundle.Version,
		EvaluatedAt:   now,
	}

	e.logger.Info("decision produced",
		"event_id", event.ID,
		"correlation_key", event.CorrelationKey,
		"rule_id", rule.ID,
		"action", rule.Action,
		"approval", approval,
	)
	return &Result{Outcome: OutcomeDecision, Decision: decision}, nil
}
