package engine

import (
	"aegis-hq/sentinel/pkg/policy/bundle"
	"aegis-hq/sentinel/pkg/signal"
)

// matchRules returns the rules in the bundle whose predicate covers the
// event: same kind, severity at or above the threshold, scope covering the
// correlation key.
func matchRules(b *bundle.Bundle, event *signal.RiskEvent) []*bundle.Rule {
	var matched []*bundle.Rule
	for i := range b.Rules {
		r := &b.Rules[i]
		if r.Kind != event.Kind {
			continue
		}
		if event.Severity < r.SeverityThreshold {
			continue
		}
		if !r.MatchesScope(event.CorrelationKey) {
			continue
		}
		matched = append(matched, r)
	}
	return matched
}

// applyCriterion narrows candidates to those maximal under the criterion.
// Priorities are unique within a bundle, so CriterionPriority always narrows
// to one rule; specificity can leave ties.
func applyCriterion(candidates []*bundle.Rule, criterion Criterion) []*bundle.Rule {
	if len(candidates) <= 1 {
		return candidates
	}

	score := func(r *bundle.Rule) int {
		switch criterion {
		case CriterionPriority:
			return r.Priority
		case CriterionSpecificity:
			return r.ScopeSpecificity()
		default:
			return 0
		}
	}

	best := score(candidates[0])
	for _, r := range candidates[1:] {
		if s := score(r); s > best {
			best = s
		}
	}

	narrowed := candidates[:0:0]
	for _, r := range candidates {
		if score(r) == best {
			narrowed = append(narrowed, r)
		}
	}
	return narrowed
}
