package incident

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"aegis-hq/sentinel/pkg/policy/bundle"
	"aegis-hq/sentinel/pkg/policy/engine"
	"aegis-hq/sentinel/pkg/remediation"
)

// TrackerConfig contains configuration for the incident tracker.
type TrackerConfig struct {
	// MaxAttempts is the remediation attempt budget per incident.
	// Default: 3
	MaxAttempts int

	// InitialBackoff is the delay before the first retry; subsequent
	// retries double it.
	// Default: 1s
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff delay.
	// Default: 1m
	MaxBackoff time.Duration
}

// DefaultTrackerConfig returns the default tracker configuration.
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

// entry serializes all lifecycle mutations for one correlation key.
type entry struct {
	mu      sync.Mutex
	current *Incident
}

// Tracker maintains the per-correlation-key incident lifecycle and drives
// remediation attempts through the dispatcher. It implements
// engine.SuppressionChecker: a key is suppressed while its incident is
// active or its cooldown window is still running.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*entry

	dispatcher *remediation.Dispatcher
	config     *TrackerConfig
	backoff    Backoff
	observer   Observer
	logger     *slog.Logger

	now func() time.Time
}

// NewTracker creates a Tracker. A nil observer discards callbacks.
func NewTracker(dispatcher *remediation.Dispatcher, config *TrackerConfig, observer Observer) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Tracker{
		entries:    make(map[string]*entry),
		dispatcher: dispatcher,
		config:     config,
		backoff:    Backoff{Initial: config.InitialBackoff, Max: config.MaxBackoff},
		observer:   observer,
		logger:     slog.Default().With("component", "incident.tracker"),
		now:        time.Now,
	}
}

// SetObserver replaces the tracker's observer. Call before the tracker
// starts receiving events; observer delivery is not synchronized with this.
func (t *Tracker) SetObserver(observer Observer) {
	if observer == nil {
		observer = NopObserver{}
	}
	t.observer = observer
}

// WithClock overrides the tracker's clock. Test hook.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func (t *Tracker) entryFor(key string) *entry {
	t.mu.RLock()
	e, ok := t.entries[key]
	t.mu.RUnlock()
	if ok {
		return e
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[key]; ok {
		return e
	}
	e = &entry{}
	t.entries[key] = e
	return e
}

// blocking reports whether the current incident prevents a fresh one: it is
// still active, or its cooldown window has not elapsed. Acknowledgment is
// not required for reuse; a closed or terminal incident past its cooldown
// frees the key.
func blocking(inc *Incident, now time.Time) bool {
	if inc == nil {
		return false
	}
	if !inc.State.Terminal() {
		return true
	}
	return now.Before(inc.CooldownUntil)
}

// CheckSuppression implements engine.SuppressionChecker.
func (t *Tracker) CheckSuppression(correlationKey string, _ *bundle.Rule, now time.Time) (bool, time.Duration) {
	e := t.entryFor(correlationKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	inc := e.current
	if inc == nil {
		return false, 0
	}
	if !inc.State.Terminal() {
		return true, 0
	}
	if now.Before(inc.CooldownUntil) {
		return true, inc.CooldownUntil.Sub(now)
	}
	return false, 0
}

// Resolve opens an incident for the decision's correlation key and drives it
// to a terminal state: dispatching the action, retrying transient failures
// under the backoff schedule, and escalating on a permanent failure or an
// exhausted budget. Rules requiring human approval escalate without
// dispatching.
//
// At most one resolution runs per correlation key; a concurrent duplicate
// returns the existing incident's snapshot without dispatching anything.
// The returned error reports infrastructure failures only; policy-level
// failures surface as the incident's state.
func (t *Tracker) Resolve(ctx context.Context, decision *engine.Decision) (Incident, error) {
	key := decision.Event.CorrelationKey
	e := t.entryFor(key)

	e.mu.Lock()
	now := t.now()
	if blocking(e.current, now) {
		snap := *e.current
		e.mu.Unlock()
		return snap, nil
	}
	inc := &Incident{
		ID:             uuid.New().String(),
		CorrelationKey: key,
		Severity:       decision.Event.Severity,
		FirstSeen:      now,
		LastSeen:       now,
		State:          StateOpen,
		RuleID:         decision.Rule.ID,
	}
	e.current = inc
	snap := *inc
	e.mu.Unlock()
	t.observer.OnTransition(snap)

	if decision.Approval == bundle.ApprovalHuman {
		return t.escalate(e, decision.Rule, "rule requires human approval"), nil
	}

	t.transition(e, StateRemediating, nil)

	// The dispatch key is derived, not generated, so an engine resumed
	// after a crash dispatches under the same key and replays the stored
	// terminal outcome instead of re-issuing the side effect.
	idemKey := idempotencyKey(key, decision.Rule.ID)

	for attempt := 1; attempt <= t.config.MaxAttempts; attempt++ {
		result, err := t.dispatcher.Dispatch(ctx, decision, idemKey, attempt)
		if err != nil {
			t.logger.Error("dispatch failed",
				"correlation_key", key, "action", decision.Action, "error", err)
			return t.escalate(e, decision.Rule, "action unavailable: "+err.Error()), nil
		}

		e.mu.Lock()
		inc.Attempts = attempt
		inc.LastOutcome = result.Outcome
		attemptSnap := *inc
		e.mu.Unlock()
		t.observer.OnAttempt(attemptSnap, result)

		switch {
		case result.Outcome == remediation.OutcomeSuccess:
			return t.remediated(e, decision.Rule), nil
		case result.Outcome == remediation.OutcomeFailedPermanent:
			return t.escalate(e, decision.Rule, "permanent failure: "+result.Error), nil
		case attempt == t.config.MaxAttempts:
			return t.escalate(e, decision.Rule, "attempt budget exhausted"), nil
		}

		if err := t.wait(ctx, t.backoff.Delay(attempt)); err != nil {
			return t.escalate(e, decision.Rule, "remediation cancelled"), err
		}
	}

	// Unreachable; the loop always exits through a terminal transition.
	return t.escalate(e, decision.Rule, "attempt budget exhausted"), nil
}

// EscalateDirect records an incident escalated without dispatching any
// action, e.g. when policy evaluation was ambiguous or the engine is in
// fail-safe mode. No cooldown applies; the key frees up as soon as an
// operator acknowledges.
func (t *Tracker) EscalateDirect(correlationKey string, severity int, reason string) Incident {
	e := t.entryFor(correlationKey)

	e.mu.Lock()
	now := t.now()
	if blocking(e.current, now) {
		snap := *e.current
		e.mu.Unlock()
		return snap
	}
	e.current = &Incident{
		ID:               uuid.New().String(),
		CorrelationKey:   correlationKey,
		Severity:         severity,
		FirstSeen:        now,
		LastSeen:         now,
		State:            StateEscalated,
		EscalationReason: reason,
	}
	snap := *e.current
	e.mu.Unlock()

	t.observer.OnTransition(snap)
	t.logger.Warn("incident escalated without dispatch",
		"correlation_key", correlationKey, "reason", reason)
	return snap
}

// Observe folds a suppressed or unmatched event into the key's active
// incident, raising its severity high-water mark and last-seen time. Returns
// false when the key has no incident to fold into.
func (t *Tracker) Observe(correlationKey string, severity int, seenAt time.Time) (Incident, bool) {
	e := t.entryFor(correlationKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return Incident{}, false
	}
	if severity > e.current.Severity {
		e.current.Severity = severity
	}
	if seenAt.After(e.current.LastSeen) {
		e.current.LastSeen = seenAt
	}
	return *e.current, true
}

// Ack closes a remediated or escalated incident on operator acknowledgment.
func (t *Tracker) Ack(correlationKey string) (Incident, error) {
	e := t.entryFor(correlationKey)

	e.mu.Lock()
	inc := e.current
	if inc == nil {
		e.mu.Unlock()
		return Incident{}, NewNotFoundError(correlationKey)
	}
	if inc.State != StateRemediated && inc.State != StateEscalated {
		from := inc.State
		e.mu.Unlock()
		return Incident{}, NewInvalidTransitionError(correlationKey, from, StateClosed)
	}
	inc.State = StateClosed
	inc.ClosedAt = t.now()
	snap := *inc
	e.mu.Unlock()

	t.observer.OnTransition(snap)
	t.logger.Info("incident acknowledged",
		"correlation_key", correlationKey, "incident_id", snap.ID)
	return snap, nil
}

// Get returns the current incident for a correlation key, if any.
func (t *Tracker) Get(correlationKey string) (Incident, bool) {
	t.mu.RLock()
	e, ok := t.entries[correlationKey]
	t.mu.RUnlock()
	if !ok {
		return Incident{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return Incident{}, false
	}
	return *e.current, true
}

// List returns snapshots of every tracked incident, ordered by correlation
// key.
func (t *Tracker) List() []Incident {
	t.mu.RLock()
	keys := make([]string, 0, len(t.entries))
	for key := range t.entries {
		keys = append(keys, key)
	}
	t.mu.RUnlock()
	sort.Strings(keys)

	incidents := make([]Incident, 0, len(keys))
	for _, key := range keys {
		if inc, ok := t.Get(key); ok {
			incidents = append(incidents, inc)
		}
	}
	return incidents
}

// ActiveCount returns the number of incidents not yet closed.
func (t *Tracker) ActiveCount() int {
	count := 0
	for _, inc := range t.List() {
		if inc.State != StateClosed {
			count++
		}
	}
	return count
}

// transition moves the entry's incident to the given state and notifies the
// observer. mutate, if non-nil, runs under the entry lock.
func (t *Tracker) transition(e *entry, state State, mutate func(*Incident)) Incident {
	e.mu.Lock()
	e.current.State = state
	if mutate != nil {
		mutate(e.current)
	}
	snap := *e.current
	e.mu.Unlock()

	t.observer.OnTransition(snap)
	return snap
}

func (t *Tracker) remediated(e *entry, rule *bundle.Rule) Incident {
	until := t.now().Add(rule.Cooldown)
	snap := t.transition(e, StateRemediated, func(inc *Incident) {
		inc.CooldownUntil = until
	})
	t.logger.Info("incident remediated",
		"correlation_key", snap.CorrelationKey,
		"rule", rule.ID,
		"attempts", snap.Attempts,
		"cooldown_until", until,
	)
	return snap
}

func (t *Tracker) escalate(e *entry, rule *bundle.Rule, reason string) Incident {
	until := t.now().Add(rule.Cooldown)
	snap := t.transition(e, StateEscalated, func(inc *Incident) {
		inc.EscalationReason = reason
		inc.CooldownUntil = until
	})
	t.logger.Warn("incident escalated",
		"correlation_key", snap.CorrelationKey,
		"rule", rule.ID,
		"attempts", snap.Attempts,
		"reason", reason,
	)
	return snap
}

// idempotencyKey derives the dispatch key for a correlation key under a
// rule. Distinct incident episodes on the same subject share the key; the
// idempotency store's replay window, bounded by the rule's cooldown, keeps
// them from replaying each other's outcomes.
func idempotencyKey(correlationKey, ruleID string) string {
	return correlationKey + "/" + ruleID
}

// wait sleeps for the backoff delay, aborting early if the context ends.
func (t *Tracker) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
