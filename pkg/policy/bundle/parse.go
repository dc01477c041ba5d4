package bundle

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"aegis-hq/sentinel/pkg/signal"
)

// Parse decodes bundle bytes into a Bundle and validates its structure.
// It does not verify signatures; callers go through Store.Load for that.
func Parse(data []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, NewMalformedError("not valid YAML", err)
	}
	if err := validate(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// validate enforces the structural invariants of a bundle: a version,
// at least one rule, unique rule ids and priorities, known kinds and
// actions, well-formed predicates, and non-negative cooldowns.
func validate(b *Bundle) error {
	if b.Version == "" {
		return NewMalformedError("missing version", nil)
	}
	if len(b.Rules) == 0 {
		return NewMalformedError("bundle has no rules", nil)
	}

	ids := make(map[string]bool, len(b.Rules))
	priorities := make(map[int]string, len(b.Rules))

	for i := range b.Rules {
		r := &b.Rules[i]
		if r.ID == "" {
			return NewMalformedError(fmt.Sprintf("rule %d has no id", i), nil)
		}
		if ids[r.ID] {
			return NewMalformedError(fmt.Sprintf("duplicate rule id %q", r.ID), nil)
		}
		ids[r.ID] = true

		if other, taken := priorities[r.Priority]; taken {
			return NewMalformedError(
				fmt.Sprintf("rules %q and %q share priority %d", other, r.ID, r.Priority), nil)
		}
		priorities[r.Priority] = r.ID

		if !knownKind(r.Kind) {
			return NewMalformedError(fmt.Sprintf("rule %q has unknown kind %q", r.ID, r.Kind), nil)
		}
		if !knownAction(r.Action) {
			return NewMalformedError(fmt.Sprintf("rule %q has unknown action %q", r.ID, r.Action), nil)
		}
		if r.SeverityThreshold < 0 || r.SeverityThreshold > signal.MaxSeverity {
			return NewMalformedError(
				fmt.Sprintf("rule %q severity threshold %d outside 0-%d", r.ID, r.SeverityThreshold, signal.MaxSeverity), nil)
		}
		if r.Scope == "" {
			return NewMalformedError(fmt.Sprintf("rule %q has empty scope (use \"*\" for all keys)", r.ID), nil)
		}
		if r.Cooldown < 0 {
			return NewMalformedError(fmt.Sprintf("rule %q has negative cooldown", r.ID), nil)
		}
		switch r.Approval {
		case "", ApprovalAuto, ApprovalHuman:
		default:
			return NewMalformedError(fmt.Sprintf("rule %q has unknown approval level %q", r.ID, r.Approval), nil)
		}
		if r.Approval == "" {
			r.Approval = ApprovalAuto
		}
	}
	return nil
}

func knownKind(kind signal.EventKind) bool {
	for _, known := range signal.KnownKinds() {
		if kind == known {
			return true
		}
	}
	return false
}

func knownAction(action ActionKind) bool {
	for _, known := range KnownActionKinds() {
		if action == known {
			return true
		}
	}
	return false
}
