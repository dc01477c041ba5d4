package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"aegis-hq/sentinel/pkg/evidence"
	"aegis-hq/sentinel/pkg/evidence/ledger"
	"aegis-hq/sentinel/pkg/incident"
	"aegis-hq/sentinel/pkg/policy/bundle"
	"aegis-hq/sentinel/pkg/policy/engine"
	"aegis-hq/sentinel/pkg/remediation"
	"aegis-hq/sentinel/pkg/signal"
	"aegis-hq/sentinel/pkg/telemetry/metrics"
)

// Disposition classifies what the controller did with one accepted event.
type Disposition string

const (
	// DispositionNoMatch means no policy rule covered the event; it was
	// recorded and dropped.
	DispositionNoMatch Disposition = "no-match"

	// DispositionSuppressed means a cooldown window or in-flight
	// remediation absorbed the event.
	DispositionSuppressed Disposition = "suppressed"

	// DispositionResolved means a decision was produced and the incident
	// was driven to a terminal state (remediated or escalated).
	DispositionResolved Disposition = "resolved"

	// DispositionEscalated means the incident escalated without any
	// dispatch: ambiguous policy or fail-safe mode.
	DispositionEscalated Disposition = "escalated"
)

// EventResult is what the controller reports back for one accepted event.
type EventResult struct {
	Event       *signal.RiskEvent
	Disposition Disposition
	Incident    *incident.Incident
}

// Config contains configuration for the controller.
type Config struct {
	// EvidenceTimeout bounds a single ledger append.
	// Default: 5s
	EvidenceTimeout time.Duration
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() *Config {
	return &Config{EvidenceTimeout: 5 * time.Second}
}

// Controller wires the pipeline: normalize, evaluate, resolve, record. It
// implements incident.Observer so every attempt and terminal transition
// lands in the evidence ledger, and it owns the fail-safe switch: once the
// ledger is known corrupted, events keep being accepted and recorded but no
// further actions dispatch.
type Controller struct {
	normalizer *signal.Normalizer
	store      *bundle.Store
	evaluator  *engine.Evaluator
	tracker    *incident.Tracker
	ledger     *ledger.Ledger
	metrics    *metrics.Metrics
	config     *Config
	logger     *slog.Logger

	failSafe atomic.Bool
}

// New creates a Controller and wires itself in as the tracker's observer
// and the store's activation hook. metrics may be nil to disable telemetry.
func New(
	normalizer *signal.Normalizer,
	store *bundle.Store,
	evaluator *engine.Evaluator,
	tracker *incident.Tracker,
	l *ledger.Ledger,
	m *metrics.Metrics,
	config *Config,
) *Controller {
	if config == nil {
		config = DefaultConfig()
	}
	c := &Controller{
		normalizer: normalizer,
		store:      store,
		evaluator:  evaluator,
		tracker:    tracker,
		ledger:     l,
		metrics:    m,
		config:     config,
		logger:     slog.Default().With("component", "controller"),
	}
	tracker.SetObserver(c)
	store.OnActivate = c.onBundleActivated
	return c
}

// FailSafe reports whether the engine is refusing to dispatch actions.
func (c *Controller) FailSafe() bool {
	return c.failSafe.Load()
}

// EnterFailSafe stops all action dispatch until ClearFailSafe. Events are
// still accepted, evaluated, and recorded; decisions escalate instead of
// dispatching.
func (c *Controller) EnterFailSafe(reason string) {
	if c.failSafe.CompareAndSwap(false, true) {
		c.logger.Error("entering fail-safe mode, action dispatch stopped", "reason", reason)
	}
}

// ClearFailSafe re-enables dispatch after operator intervention.
func (c *Controller) ClearFailSafe() {
	if c.failSafe.CompareAndSwap(true, false) {
		c.logger.Warn("fail-safe mode cleared by operator")
	}
}

// HandleEvent runs one raw producer event through the full pipeline. The
// returned error is non-nil only when the event was not accepted (malformed,
// unknown kind, or no active bundle).
func (c *Controller) HandleEvent(ctx context.Context, raw *signal.RawEvent) (*EventResult, error) {
	event, err := c.normalizer.Normalize(raw)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordEventRejected(rejectionReason(err))
		}
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordEvent(string(event.Kind))
	}

	snapshot, err := c.store.Active()
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordEventRejected("no-active-bundle")
		}
		c.logger.Warn("event rejected, no active policy bundle",
			"event_id", event.ID, "correlation_key", event.CorrelationKey)
		return nil, err
	}

	start := time.Now()
	result, err := c.evaluator.Evaluate(event, snapshot)
	if err != nil {
		var ambiguous *engine.AmbiguousError
		if errors.As(err, &ambiguous) {
			return c.handleAmbiguous(ctx, event, snapshot, ambiguous, time.Since(start)), nil
		}
		return nil, err
	}
	c.recordEvaluationMetric(string(result.Outcome), time.Since(start))

	switch result.Outcome {
	case engine.OutcomeNoMatch:
		c.appendEvidence(ctx, evidence.KindEvaluation, event.CorrelationKey, evaluationPayload{
			EventID:        event.ID,
			EventKind:      string(event.Kind),
			CorrelationKey: event.CorrelationKey,
			Severity:       event.Severity,
			Outcome:        string(engine.OutcomeNoMatch),
			BundleVersion:  snapshot.Bundle.Version,
		})
		return &EventResult{Event: event, Disposition: DispositionNoMatch}, nil

	case engine.OutcomeSuppressed:
		c.appendEvidence(ctx, evidence.KindSuppression, event.CorrelationKey, suppressionPayload{
			EventID:           event.ID,
			CorrelationKey:    event.CorrelationKey,
			Severity:          event.Severity,
			RuleID:            result.SuppressedBy.ID,
			CooldownRemaining: result.SuppressedFor.String(),
		})
		inc, ok := c.tracker.Observe(event.CorrelationKey, event.Severity, event.ObservedAt)
		res := &EventResult{Event: event, Disposition: DispositionSuppressed}
		if ok {
			res.Incident = &inc
		}
		return res, nil
	}

	decision := result.Decision
	c.appendEvidence(ctx, evidence.KindEvaluation, event.CorrelationKey, evaluationPayload{
		EventID:        event.ID,
		EventKind:      string(event.Kind),
		CorrelationKey: event.CorrelationKey,
		Severity:       event.Severity,
		Outcome:        string(engine.OutcomeDecision),
		RuleID:         decision.Rule.ID,
		Action:         string(decision.Action),
		BundleVersion:  decision.BundleVersion,
	})

	if c.failSafe.Load() {
		inc := c.tracker.EscalateDirect(event.CorrelationKey, event.Severity,
			"fail-safe mode: dispatch disabled")
		return &EventResult{Event: event, Disposition: DispositionEscalated, Incident: &inc}, nil
	}

	inc, err := c.tracker.Resolve(ctx, decision)
	if err != nil {
		// The incident already escalated; the error is context cancellation
		// or an infrastructure failure worth surfacing to the caller's log.
		c.logger.Error("resolution aborted",
			"correlation_key", event.CorrelationKey, "error", err)
	}
	return &EventResult{Event: event, Disposition: DispositionResolved, Incident: &inc}, nil
}

// handleAmbiguous records and escalates an evaluation no criterion could
// settle. Nothing is dispatched.
func (c *Controller) handleAmbiguous(ctx context.Context, event *signal.RiskEvent, snapshot *bundle.Snapshot, ambiguous *engine.AmbiguousError, elapsed time.Duration) *EventResult {
	c.recordEvaluationMetric("ambiguous", elapsed)
	c.appendEvidence(ctx, evidence.KindEvaluation, event.CorrelationKey, evaluationPayload{
		EventID:        event.ID,
		EventKind:      string(event.Kind),
		CorrelationKey: event.CorrelationKey,
		Severity:       event.Severity,
		Outcome:        "ambiguous",
		BundleVersion:  snapshot.Bundle.Version,
		AmbiguousRules: strings.Join(ambiguous.RuleIDs, ","),
	})
	inc := c.tracker.EscalateDirect(event.CorrelationKey, event.Severity,
		fmt.Sprintf("ambiguous policy: rules %s tie", strings.Join(ambiguous.RuleIDs, ", ")))
	return &EventResult{Event: event, Disposition: DispositionEscalated, Incident: &inc}
}

// Ack closes a terminal incident on operator acknowledgment.
func (c *Controller) Ack(ctx context.Context, correlationKey string) (incident.Incident, error) {
	return c.tracker.Ack(correlationKey)
}

// VerifyLedger verifies the whole evidence chain, flipping fail-safe mode on
// corruption. Returns the number of records verified.
func (c *Controller) VerifyLedger(ctx context.Context) (uint64, error) {
	verified, err := c.ledger.VerifyAll(ctx)
	if err != nil {
		var corruption *evidence.CorruptionError
		if errors.As(err, &corruption) {
			if c.metrics != nil {
				c.metrics.RecordVerification("corrupt")
			}
			c.EnterFailSafe(corruption.Error())
		} else if c.metrics != nil {
			c.metrics.RecordVerification("error")
		}
		return verified, err
	}
	if c.metrics != nil {
		c.metrics.RecordVerification("ok")
	}
	return verified, nil
}

// OnCorruption is the audit scheduler's callback.
func (c *Controller) OnCorruption(corruption *evidence.CorruptionError) {
	if c.metrics != nil {
		c.metrics.RecordVerification("corrupt")
	}
	c.EnterFailSafe(corruption.Error())
}

// OnTransition implements incident.Observer. Terminal transitions land in
// the ledger; intermediate ones (open, remediating) are operational detail
// and only logged.
func (c *Controller) OnTransition(inc incident.Incident) {
	if c.metrics != nil {
		if inc.State == incident.StateEscalated {
			c.metrics.RecordEscalation()
		}
		c.metrics.SetActiveIncidents(c.tracker.ActiveCount())
	}

	switch inc.State {
	case incident.StateRemediated, incident.StateEscalated, incident.StateClosed:
	default:
		return
	}

	c.appendEvidence(context.Background(), evidence.KindTransition, inc.CorrelationKey, transitionPayload{
		IncidentID:       inc.ID,
		CorrelationKey:   inc.CorrelationKey,
		State:            string(inc.State),
		Severity:         inc.Severity,
		RuleID:           inc.RuleID,
		Attempts:         inc.Attempts,
		EscalationReason: inc.EscalationReason,
		CooldownUntil:    inc.CooldownUntil,
	})
}

// OnAttempt implements incident.Observer.
func (c *Controller) OnAttempt(inc incident.Incident, attempt remediation.Attempt) {
	if c.metrics != nil {
		c.metrics.RecordAttempt(string(attempt.Action), string(attempt.Outcome))
	}
	c.appendEvidence(context.Background(), evidence.KindAttempt, inc.CorrelationKey, attempt)
}

// onBundleActivated is the store's activation hook.
func (c *Controller) onBundleActivated(snapshot *bundle.Snapshot) {
	if c.metrics != nil {
		c.metrics.RecordBundleActivation()
	}
	c.appendEvidence(context.Background(), evidence.KindBundleActivation, "", activationPayload{
		Version:     snapshot.Bundle.Version,
		Signer:      snapshot.Bundle.Signer,
		Rules:       len(snapshot.Bundle.Rules),
		ActivatedAt: snapshot.ActivatedAt,
	})
}

// appendEvidence writes one ledger record under the evidence timeout. A
// failed append is logged and counted, never fatal to the pipeline.
func (c *Controller) appendEvidence(ctx context.Context, kind evidence.RecordKind, correlationKey string, payload any) {
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.EvidenceTimeout)
	defer cancel()

	if _, err := c.ledger.Append(appendCtx, kind, correlationKey, payload); err != nil {
		c.logger.Error("failed to append evidence",
			"kind", kind, "correlation_key", correlationKey, "error", err)
		return
	}
	if c.metrics != nil {
		c.metrics.RecordLedgerAppend(string(kind))
	}
}

func (c *Controller) recordEvaluationMetric(outcome string, elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordEvaluation(outcome, elapsed)
	}
}

func rejectionReason(err error) string {
	var unknownKind *signal.UnknownEventKindError
	if errors.As(err, &unknownKind) {
		return "unknown-kind"
	}
	return "invalid"
}
