package engine

import (
	"errors"
	"testing"
	"time"

	"aegis-hq/sentinel/pkg/policy/bundle"
	"aegis-hq/sentinel/pkg/signal"
)

// stubSuppression is a SuppressionChecker with a fixed answer.
type stubSuppression struct {
	suppressed bool
	remaining  time.Duration
}

func (s *stubSuppression) CheckSuppression(string, *bundle.Rule, time.Time) (bool, time.Duration) {
	return s.suppressed, s.remaining
}

func testSnapshot(rules ...bundle.Rule) *bundle.Snapshot {
	return &bundle.Snapshot{
		Bundle:      &bundle.Bundle{Version: "test-1", Rules: rules},
		ActivatedAt: time.Now().UTC(),
	}
}

func testEvent(kind signal.EventKind, severity int, key string) *signal.RiskEvent {
	return &signal.RiskEvent{
		ID:             "evt-1",
		Source:         "test",
		Kind:           kind,
		Severity:       severity,
		CorrelationKey: key,
		ReceivedAt:     time.Now().UTC(),
	}
}

func defaultCriteria(t *testing.T) []Criterion {
	t.Helper()
	criteria, err := ParseCriteria([]string{"priority", "specificity"})
	if err != nil {
		t.Fatalf("ParseCriteria() error = %v", err)
	}
	return criteria
}

// TestEvaluate_SingleMatch tests the straightforward one-rule match.
func TestEvaluate_SingleMatch(t *testing.T) {
	e := NewEvaluator(defaultCriteria(t), &stubSuppression{})

	snapshot := testSnapshot(bundle.Rule{
		ID: "reserve-freeze", Kind: signal.KindReserveShortfall,
		SeverityThreshold: 5, Scope: "*", Action: bundle.ActionFreezeAccess,
		Priority: 100, Cooldown: time.Hour,
	})

	result, err := e.Evaluate(testEvent(signal.KindReserveShortfall, 9, "vault-7"), snapshot)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Outcome != OutcomeDecision {
		t.Fatalf("Outcome = %q, want decision", result.Outcome)
	}
	if result.Decision.Action != bundle.ActionFreezeAccess {
		t.Errorf("Action = %q, want freeze-access", result.Decision.Action)
	}
	if result.Decision.Approval != bundle.ApprovalAuto {
		t.Errorf("Approval = %q, want auto", result.Decision.Approval)
	}
	if result.Decision.BundleVersion != "test-1" {
		t.Errorf("BundleVersion = %q", result.Decision.BundleVersion)
	}
}

// TestEvaluate_NoMatch tests that an uncovered event is dropped, not failed.
func TestEvaluate_NoMatch(t *testing.T) {
	e := NewEvaluator(defaultCriteria(t), &stubSuppression{})

	snapshot := testSnapshot(bundle.Rule{
		ID: "r1", Kind: signal.KindMEVFlag, SeverityThreshold: 5,
		Scope: "*", Action: bundle.ActionThrottle, Priority: 1,
	})

	tests := []struct {
		name  string
		event *signal.RiskEvent
	}{
		{"different kind", testEvent(signal.KindSLABreach, 9, "k")},
		{"below threshold", testEvent(signal.KindMEVFlag, 4, "k")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Evaluate(tt.event, snapshot)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if result.Outcome != OutcomeNoMatch {
				t.Errorf("Outcome = %q, want no-match", result.Outcome)
			}
		})
	}

	// Scope mismatch is also a non-match.
	scoped := testSnapshot(bundle.Rule{
		ID: "r2", Kind: signal.KindMEVFlag, SeverityThreshold: 1,
		Scope: "pool-1", Action: bundle.ActionThrottle, Priority: 1,
	})
	result, err := e.Evaluate(testEvent(signal.KindMEVFlag, 8, "pool-2"), scoped)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Outcome != OutcomeNoMatch {
		t.Errorf("scope mismatch: Outcome = %q, want no-match", result.Outcome)
	}
}

// TestEvaluate_PriorityWins tests criterion (a): highest priority wins.
func TestEvaluate_PriorityWins(t *testing.T) {
	e := NewEvaluator(defaultCriteria(t), &stubSuppression{})

	snapshot := testSnapshot(
		bundle.Rule{ID: "low", Kind: signal.KindMEVFlag, SeverityThreshold: 1,
			Scope: "pool-3", Action: bundle.ActionAlertOnly, Priority: 10},
		bundle.Rule{ID: "high", Kind: signal.KindMEVFlag, SeverityThreshold: 1,
			Scope: "*", Action: bundle.ActionThrottle, Priority: 90},
	)

	result, err := e.Evaluate(testEvent(signal.KindMEVFlag, 5, "pool-3"), snapshot)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Decision == nil || result.Decision.Rule.ID != "high" {
		t.Fatalf("winning rule = %+v, want high", result.Decision)
	}
}

// TestEvaluate_SpecificityBreaksPriorityTie tests criterion (b): when
// priorities cannot separate (same bundle cannot hold duplicates, but two
// rules can both survive a specificity-first ordering), scope specificity
// decides.
func TestEvaluate_SpecificityBreaksPriorityTie(t *testing.T) {
	// Specificity first: both rules match, the exact scope wins even
	// though the wildcard rule has higher priority.
	criteria, err := ParseCriteria([]string{"specificity", "priority"})
	if err != nil {
		t.Fatalf("ParseCriteria() error = %v", err)
	}
	e := NewEvaluator(criteria, &stubSuppression{})

	snapshot := testSnapshot(
		bundle.Rule{ID: "wildcard", Kind: signal.KindAAAnomaly, SeverityThreshold: 1,
			Scope: "*", Action: bundle.ActionPause, Priority: 90},
		bundle.Rule{ID: "exact", Kind: signal.KindAAAnomaly, SeverityThreshold: 1,
			Scope: "acct-9", Action: bundle.ActionFreezeAccess, Priority: 10},
	)

	result, err := e.Evaluate(testEvent(signal.KindAAAnomaly, 5, "acct-9"), snapshot)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Decision.Rule.ID != "exact" {
		t.Fatalf("winning rule = %q, want exact", result.Decision.Rule.ID)
	}
}

// TestEvaluate_Ambiguous tests criterion (c): a full tie is rejected.
func TestEvaluate_Ambiguous(t *testing.T) {
	// Specificity is the only criterion, and both rules are prefix scopes:
	// nothing separates them.
	criteria, err := ParseCriteria([]string{"specificity"})
	if err != nil {
		t.Fatalf("ParseCriteria() error = %v", err)
	}
	e := NewEvaluator(criteria, &stubSuppression{})

	snapshot := testSnapshot(
		bundle.Rule{ID: "a", Kind: signal.KindMEVFlag, SeverityThreshold: 1,
			Scope: "pool-*", Action: bundle.ActionThrottle, Priority: 1},
		bundle.Rule{ID: "b", Kind: signal.KindMEVFlag, SeverityThreshold: 1,
			Scope: "po*", Action: bundle.ActionPause, Priority: 2},
	)

	_, err = e.Evaluate(testEvent(signal.KindMEVFlag, 5, "pool-7"), snapshot)
	var ambiguous *AmbiguousError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("error = %v, want *AmbiguousError", err)
	}
	if len(ambiguous.RuleIDs) != 2 {
		t.Errorf("tied rules = %v, want 2", ambiguous.RuleIDs)
	}
}

// TestEvaluate_Suppressed tests cooldown suppression.
func TestEvaluate_Suppressed(t *testing.T) {
	e := NewEvaluator(defaultCriteria(t), &stubSuppression{suppressed: true, remaining: 42 * time.Minute})

	snapshot := testSnapshot(bundle.Rule{
		ID: "r", Kind: signal.KindReserveShortfall, SeverityThreshold: 1,
		Scope: "*", Action: bundle.ActionFreezeAccess, Priority: 1, Cooldown: time.Hour,
	})

	result, err := e.Evaluate(testEvent(signal.KindReserveShortfall, 9, "vault-7"), snapshot)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Outcome != OutcomeSuppressed {
		t.Fatalf("Outcome = %q, want suppressed", result.Outcome)
	}
	if result.SuppressedBy.ID != "r" {
		t.Errorf("SuppressedBy = %q", result.SuppressedBy.ID)
	}
	if result.SuppressedFor != 42*time.Minute {
		t.Errorf("SuppressedFor = %v", result.SuppressedFor)
	}
}

// TestParseCriteria_Unknown tests rejection of unknown criteria names.
func TestParseCriteria_Unknown(t *testing.T) {
	if _, err := ParseCriteria([]string{"priority", "coin-flip"}); err == nil {
		t.Fatal("expected error for unknown criterion")
	}
}
