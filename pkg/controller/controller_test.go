package controller

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"aegis-hq/sentinel/pkg/config"
	"aegis-hq/sentinel/pkg/evidence"
	"aegis-hq/sentinel/pkg/evidence/ledger"
	"aegis-hq/sentinel/pkg/evidence/storage"
	"aegis-hq/sentinel/pkg/incident"
	"aegis-hq/sentinel/pkg/policy/bundle"
	"aegis-hq/sentinel/pkg/policy/engine"
	"aegis-hq/sentinel/pkg/remediation"
	"aegis-hq/sentinel/pkg/signal"
	"aegis-hq/sentinel/pkg/telemetry/metrics"
)

type fixture struct {
	controller *Controller
	store      *bundle.Store
	backend    *storage.MemoryStorage
	handler    *countingHandler
	signer     ed25519.PrivateKey
}

type countingHandler struct {
	calls    int
	outcomes []remediation.Outcome
}

func (h *countingHandler) Execute(_ context.Context, _ string, _ remediation.ActionPayload) remediation.Outcome {
	h.calls++
	if h.calls <= len(h.outcomes) {
		return h.outcomes[h.calls-1]
	}
	return remediation.Outcome{Kind: remediation.OutcomeSuccess, Output: "ok"}
}

func testBundle() *bundle.Bundle {
	return &bundle.Bundle{
		Version:  "2026-03-01/test",
		Signer:   "risk-council",
		IssuedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Rules: []bundle.Rule{
			{
				ID: "reserve-freeze", Kind: signal.KindReserveShortfall,
				SeverityThreshold: 5, Scope: "vault-*",
				Action: bundle.ActionFreezeAccess, Priority: 100, Cooldown: time.Hour,
			},
			{
				ID: "sla-alert", Kind: signal.KindSLABreach,
				SeverityThreshold: 3, Scope: "*",
				Action: bundle.ActionAlertOnly, Priority: 50, Cooldown: 30 * time.Minute,
			},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithCriteria(t,
		[]engine.Criterion{engine.CriterionPriority, engine.CriterionSpecificity})
}

func newFixtureWithCriteria(t *testing.T, criteria []engine.Criterion) *fixture {
	return newFixtureWithMetrics(t, criteria, nil)
}

func newFixtureWithMetrics(t *testing.T, criteria []engine.Criterion, m *metrics.Metrics) *fixture {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	verifier, err := bundle.NewVerifier([]ed25519.PublicKey{pub})
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	store := bundle.NewStore(verifier)

	backend := storage.NewMemoryStorage()
	l, err := ledger.Open(context.Background(), backend)
	if err != nil {
		t.Fatalf("ledger.Open() error = %v", err)
	}

	handler := &countingHandler{}
	registry := remediation.NewRegistry()
	registry.Register(bundle.ActionFreezeAccess, "freeze-access", "test handler", handler)
	registry.Register(bundle.ActionAlertOnly, "alert-only", "test handler", handler)
	dispatcher := remediation.NewDispatcher(registry, remediation.NewMemoryStore(),
		&remediation.DispatcherConfig{ExecutionTimeout: time.Second})

	tracker := incident.NewTracker(dispatcher, &incident.TrackerConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, nil)

	evaluator := engine.NewEvaluator(criteria, tracker)

	c := New(signal.NewNormalizer(), store, evaluator, tracker, l, m, nil)
	return &fixture{controller: c, store: store, backend: backend, handler: handler, signer: priv}
}

// activate signs and loads a bundle into the fixture's store.
func (f *fixture) activate(t *testing.T, b *bundle.Bundle) {
	t.Helper()
	payload, err := yaml.Marshal(b)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	sig := ed25519.Sign(f.signer, payload)
	if _, err := f.store.Load(payload, sig); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func (f *fixture) recordsOfKind(t *testing.T, kind evidence.RecordKind) []*evidence.EvidenceRecord {
	t.Helper()
	records, err := f.backend.Query(context.Background(), &evidence.Query{Kind: kind})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	return records
}

func reserveEvent(key string, severity int) *signal.RawEvent {
	return &signal.RawEvent{
		Source:         "reserve-monitor",
		Kind:           "reserve-shortfall",
		Severity:       severity,
		CorrelationKey: key,
		EvidenceRef:    "tx:0xabc",
	}
}

// TestHandleEvent_FreezeScenario tests the full pipeline: a severity-9
// reserve shortfall on vault-7 matches the freeze rule, the dispatch
// succeeds, the incident lands remediated, and the ledger gains exactly one
// evaluation, one attempt, and one state-transition record.
func TestHandleEvent_FreezeScenario(t *testing.T) {
	f := newFixture(t)
	f.activate(t, testBundle())

	result, err := f.controller.HandleEvent(context.Background(), reserveEvent("vault-7", 9))
	if err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if result.Disposition != DispositionResolved {
		t.Fatalf("Disposition = %s, want resolved", result.Disposition)
	}
	if result.Incident == nil || result.Incident.State != incident.StateRemediated {
		t.Fatalf("incident = %+v, want remediated", result.Incident)
	}
	if f.handler.calls != 1 {
		t.Errorf("handler calls = %d, want 1", f.handler.calls)
	}

	if got := len(f.recordsOfKind(t, evidence.KindEvaluation)); got != 1 {
		t.Errorf("evaluation records = %d, want 1", got)
	}
	if got := len(f.recordsOfKind(t, evidence.KindAttempt)); got != 1 {
		t.Errorf("attempt records = %d, want 1", got)
	}
	if got := len(f.recordsOfKind(t, evidence.KindTransition)); got != 1 {
		t.Errorf("transition records = %d, want 1", got)
	}
}

// TestHandleEvent_NoActiveBundle tests that events are rejected until a
// bundle activates.
func TestHandleEvent_NoActiveBundle(t *testing.T) {
	f := newFixture(t)

	if _, err := f.controller.HandleEvent(context.Background(), reserveEvent("vault-7", 9)); err == nil {
		t.Fatal("HandleEvent() accepted an event with no active bundle")
	}
}

// TestHandleEvent_Rejection tests malformed and unknown-kind events.
func TestHandleEvent_Rejection(t *testing.T) {
	f := newFixture(t)
	f.activate(t, testBundle())

	raw := reserveEvent("vault-7", 9)
	raw.Kind = "meteor-strike"
	if _, err := f.controller.HandleEvent(context.Background(), raw); err == nil {
		t.Error("HandleEvent() accepted unknown kind")
	}

	raw = reserveEvent("", 9)
	if _, err := f.controller.HandleEvent(context.Background(), raw); err == nil {
		t.Error("HandleEvent() accepted missing correlation key")
	}
}

// TestHandleEvent_NoMatchRecorded tests that unmatched events are recorded
// and dropped.
func TestHandleEvent_NoMatchRecorded(t *testing.T) {
	f := newFixture(t)
	f.activate(t, testBundle())

	// Below the freeze rule's threshold; no other rule covers the kind.
	result, err := f.controller.HandleEvent(context.Background(), reserveEvent("vault-7", 3))
	if err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if result.Disposition != DispositionNoMatch {
		t.Fatalf("Disposition = %s, want no-match", result.Disposition)
	}
	if f.handler.calls != 0 {
		t.Errorf("handler calls = %d, want 0", f.handler.calls)
	}

	records := f.recordsOfKind(t, evidence.KindEvaluation)
	if len(records) != 1 {
		t.Fatalf("evaluation records = %d, want 1", len(records))
	}
}

// TestHandleEvent_CooldownSuppression tests that a repeat event inside the
// cooldown window is suppressed and folded into the incident.
func TestHandleEvent_CooldownSuppression(t *testing.T) {
	f := newFixture(t)
	f.activate(t, testBundle())
	ctx := context.Background()

	if _, err := f.controller.HandleEvent(ctx, reserveEvent("vault-7", 7)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	result, err := f.controller.HandleEvent(ctx, reserveEvent("vault-7", 9))
	if err != nil {
		t.Fatalf("HandleEvent() #2 error = %v", err)
	}
	if result.Disposition != DispositionSuppressed {
		t.Fatalf("Disposition = %s, want suppressed", result.Disposition)
	}
	if result.Incident == nil || result.Incident.Severity != 9 {
		t.Errorf("severity high-water mark not folded: %+v", result.Incident)
	}
	if f.handler.calls != 1 {
		t.Errorf("handler calls = %d, want 1 (second event must not dispatch)", f.handler.calls)
	}
	if got := len(f.recordsOfKind(t, evidence.KindSuppression)); got != 1 {
		t.Errorf("suppression records = %d, want 1", got)
	}
}

// TestHandleEvent_EscalationAfterBudget tests that persistent failures
// escalate and are fully evidenced.
func TestHandleEvent_EscalationAfterBudget(t *testing.T) {
	f := newFixture(t)
	f.activate(t, testBundle())
	f.handler.outcomes = []remediation.Outcome{
		{Kind: remediation.OutcomeFailedTransient, Error: "busy"},
		{Kind: remediation.OutcomeTimeout, Error: "deadline"},
	}

	result, err := f.controller.HandleEvent(context.Background(), reserveEvent("vault-7", 9))
	if err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if result.Incident == nil || result.Incident.State != incident.StateEscalated {
		t.Fatalf("incident = %+v, want escalated", result.Incident)
	}
	if got := len(f.recordsOfKind(t, evidence.KindAttempt)); got != 2 {
		t.Errorf("attempt records = %d, want 2", got)
	}
	transitions := f.recordsOfKind(t, evidence.KindTransition)
	if len(transitions) != 1 {
		t.Fatalf("transition records = %d, want 1", len(transitions))
	}
}

// TestHandleEvent_Ambiguous tests that an evaluation no criterion settles
// escalates without dispatch.
func TestHandleEvent_Ambiguous(t *testing.T) {
	// Specificity is the only criterion, and both rules are prefix scopes,
	// so the tie survives evaluation.
	f := newFixtureWithCriteria(t, []engine.Criterion{engine.CriterionSpecificity})
	b := testBundle()
	b.Rules = []bundle.Rule{
		{
			ID: "freeze-a", Kind: signal.KindReserveShortfall,
			SeverityThreshold: 5, Scope: "vault-*",
			Action: bundle.ActionFreezeAccess, Priority: 100, Cooldown: time.Hour,
		},
		{
			ID: "freeze-b", Kind: signal.KindReserveShortfall,
			SeverityThreshold: 5, Scope: "vaul*",
			Action: bundle.ActionPause, Priority: 90, Cooldown: time.Hour,
		},
	}
	f.activate(t, b)

	result, err := f.controller.HandleEvent(context.Background(), reserveEvent("vault-7", 9))
	if err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if result.Disposition != DispositionEscalated {
		t.Fatalf("Disposition = %s, want escalated", result.Disposition)
	}
	if f.handler.calls != 0 {
		t.Errorf("handler calls = %d, want 0", f.handler.calls)
	}
	if result.Incident == nil || result.Incident.State != incident.StateEscalated {
		t.Errorf("incident = %+v", result.Incident)
	}
}

// TestFailSafe tests that ledger corruption halts dispatch but not intake.
func TestFailSafe(t *testing.T) {
	f := newFixture(t)
	f.activate(t, testBundle())
	ctx := context.Background()

	if _, err := f.controller.HandleEvent(ctx, reserveEvent("vault-7", 9)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	f.backend.Tamper(2, func(r *evidence.EvidenceRecord) {
		r.Payload = []byte(`{"forged":true}`)
	})
	if _, err := f.controller.VerifyLedger(ctx); err == nil {
		t.Fatal("VerifyLedger() passed over a tampered record")
	}
	if !f.controller.FailSafe() {
		t.Fatal("corruption did not trigger fail-safe mode")
	}

	// A fresh key still gets accepted and evidenced, but never dispatched.
	before := f.handler.calls
	result, err := f.controller.HandleEvent(ctx, reserveEvent("vault-9", 9))
	if err != nil {
		t.Fatalf("HandleEvent() in fail-safe error = %v", err)
	}
	if result.Disposition != DispositionEscalated {
		t.Fatalf("Disposition = %s, want escalated", result.Disposition)
	}
	if f.handler.calls != before {
		t.Error("fail-safe mode still dispatched an action")
	}

	f.controller.ClearFailSafe()
	if f.controller.FailSafe() {
		t.Error("ClearFailSafe() did not clear")
	}
}

// TestAck tests operator acknowledgment through the controller, including
// the closing transition evidence.
func TestAck(t *testing.T) {
	f := newFixture(t)
	f.activate(t, testBundle())
	ctx := context.Background()

	if _, err := f.controller.HandleEvent(ctx, reserveEvent("vault-7", 9)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	closed, err := f.controller.Ack(ctx, "vault-7")
	if err != nil {
		t.Fatalf("Ack() error = %v", err)
	}
	if closed.State != incident.StateClosed {
		t.Errorf("State = %s, want closed", closed.State)
	}
	// Remediated and closed both leave transition evidence.
	if got := len(f.recordsOfKind(t, evidence.KindTransition)); got != 2 {
		t.Errorf("transition records = %d, want 2", got)
	}
}

// TestAttemptMetricActionLabel tests that the attempt counter is labelled
// with the dispatched action kind, not the rule that selected it.
func TestAttemptMetricActionLabel(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.New(&config.MetricsConfig{Enabled: true, Namespace: "sentinel"}, registry)
	f := newFixtureWithMetrics(t,
		[]engine.Criterion{engine.CriterionPriority, engine.CriterionSpecificity}, m)
	f.activate(t, testBundle())

	if _, err := f.controller.HandleEvent(context.Background(), reserveEvent("vault-7", 9)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, fam := range families {
		if fam.GetName() != "sentinel_remediation_attempts_total" {
			continue
		}
		for _, sample := range fam.GetMetric() {
			for _, label := range sample.GetLabel() {
				if label.GetName() != "action" {
					continue
				}
				found = true
				if got := label.GetValue(); got != string(bundle.ActionFreezeAccess) {
					t.Errorf("action label = %q, want %q", got, bundle.ActionFreezeAccess)
				}
			}
		}
	}
	if !found {
		t.Fatal("no attempt sample carries an action label")
	}
}

// TestBundleActivationEvidence tests that each activation lands in the
// ledger.
func TestBundleActivationEvidence(t *testing.T) {
	f := newFixture(t)
	f.activate(t, testBundle())

	records := f.recordsOfKind(t, evidence.KindBundleActivation)
	if len(records) != 1 {
		t.Fatalf("activation records = %d, want 1", len(records))
	}
	if records[0].CorrelationKey != "" {
		t.Errorf("activation record has correlation key %q", records[0].CorrelationKey)
	}
}
