package remediation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"aegis-hq/sentinel/pkg/policy/engine"
)

// DispatcherConfig contains configuration for the dispatcher.
type DispatcherConfig struct {
	// ExecutionTimeout bounds each handler execution. Exceeding it yields
	// OutcomeTimeout, which is retryable.
	// Default: 30s
	ExecutionTimeout time.Duration
}

// DefaultDispatcherConfig returns the default dispatcher configuration.
func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{ExecutionTimeout: 30 * time.Second}
}

// Dispatcher executes the action a Decision selected. It is polymorphic
// over the registered capability set and enforces idempotency: a terminal
// outcome already stored for the idempotency key is returned as a replayed
// attempt without re-executing the handler.
type Dispatcher struct {
	registry *Registry
	store    IdempotencyStore
	config   *DispatcherConfig
	stats    *Stats
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(registry *Registry, store IdempotencyStore, config *DispatcherConfig) *Dispatcher {
	if config == nil {
		config = DefaultDispatcherConfig()
	}
	return &Dispatcher{
		registry: registry,
		store:    store,
		config:   config,
		stats:    NewStats(),
		logger:   slog.Default().With("component", "remediation.dispatcher"),
	}
}

// Stats returns the dispatcher's execution counters.
func (d *Dispatcher) Stats() *Stats { return d.stats }

// Dispatch executes the decision's action once. idempotencyKey is derived
// from the correlation key and rule, so retries and a resumed engine reuse
// it; attemptNumber is the ordinal within the incident.
//
// Returns UnknownActionKindError if the action has no enabled handler.
// Handler failures are reported through the attempt's Outcome, not as Go
// errors, so the caller's retry policy can classify them.
func (d *Dispatcher) Dispatch(ctx context.Context, decision *engine.Decision, idempotencyKey string, attemptNumber int) (Attempt, error) {
	handler, err := d.registry.Handler(decision.Action)
	if err != nil {
		return Attempt{}, err
	}

	// Replay a previously reached terminal outcome instead of touching
	// the target again. A stored outcome older than the rule's cooldown
	// belongs to an earlier incident episode on the same subject; it is
	// stale and the action executes fresh.
	if stored, ok, err := d.store.Lookup(ctx, idempotencyKey); err != nil {
		return Attempt{}, err
	} else if ok && !stale(stored, decision.Rule.Cooldown) {
		d.logger.Info("replaying terminal outcome",
			"idempotency_key", idempotencyKey,
			"outcome", stored.Outcome.Kind,
		)
		attempt := Attempt{
			ID:             uuid.New().String(),
			IdempotencyKey: idempotencyKey,
			Action:         decision.Action,
			Number:         attemptNumber,
			StartedAt:      time.Now().UTC(),
			EndedAt:        time.Now().UTC(),
			Outcome:        stored.Outcome.Kind,
			Output:         stored.Outcome.Output,
			Error:          stored.Outcome.Error,
			Replayed:       true,
		}
		d.stats.RecordAttempt(attempt)
		return attempt, nil
	}

	payload := ActionPayload{
		CorrelationKey: decision.Event.CorrelationKey,
		RuleID:         decision.Rule.ID,
		Severity:       decision.Event.Severity,
		EvidenceRef:    decision.Event.EvidenceRef,
	}

	started := time.Now().UTC()
	outcome := d.execute(ctx, handler, idempotencyKey, payload)
	ended := time.Now().UTC()

	attempt := Attempt{
		ID:             uuid.New().String(),
		IdempotencyKey: idempotencyKey,
		Action:         decision.Action,
		Number:         attemptNumber,
		StartedAt:      started,
		EndedAt:        ended,
		Outcome:        outcome.Kind,
		Output:         outcome.Output,
		Error:          outcome.Error,
	}
	d.stats.RecordAttempt(attempt)

	if outcome.Kind.Terminal() {
		if err := d.store.Record(ctx, idempotencyKey, outcome); err != nil {
			// The action already happened; losing the replay record is
			// logged, not fatal, because the target side stays idempotent.
			d.logger.Error("failed to persist terminal outcome",
				"idempotency_key", idempotencyKey, "error", err)
		}
	}

	d.logger.Info("remediation attempt finished",
		"idempotency_key", idempotencyKey,
		"action", decision.Action,
		"attempt", attemptNumber,
		"outcome", outcome.Kind,
		"duration_ms", ended.Sub(started).Milliseconds(),
	)
	return attempt, nil
}

// stale reports whether a stored outcome predates the current cooldown
// window. A rule with no cooldown keeps its outcomes replayable forever.
func stale(stored *StoredOutcome, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return false
	}
	return time.Since(stored.RecordedAt) > cooldown
}

// execute runs the handler under the execution timeout. The handler runs in
// its own goroutine so a handler that ignores its context still cannot hold
// the dispatcher past the deadline.
func (d *Dispatcher) execute(ctx context.Context, handler Handler, key string, payload ActionPayload) Outcome {
	execCtx, cancel := context.WithTimeout(ctx, d.config.ExecutionTimeout)
	defer cancel()

	resultCh := make(chan Outcome, 1)
	go func() {
		resultCh <- handler.Execute(execCtx, key, payload)
	}()

	select {
	case outcome := <-resultCh:
		return outcome
	case <-execCtx.Done():
		return Outcome{Kind: OutcomeTimeout, Error: execCtx.Err().Error()}
	}
}
