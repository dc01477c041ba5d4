package bundle

import (
	"time"

	"aegis-hq/sentinel/pkg/signal"
)

// ActionKind identifies a remediation capability a rule can select.
type ActionKind string

const (
	// ActionPause suspends the target subsystem (e.g., a vault or market).
	ActionPause ActionKind = "pause"

	// ActionThrottle reduces the target's throughput without stopping it.
	ActionThrottle ActionKind = "throttle"

	// ActionFreezeAccess revokes access for the implicated account or
	// vendor until manually restored.
	ActionFreezeAccess ActionKind = "freeze-access"

	// ActionAlertOnly notifies operators without touching the target.
	ActionAlertOnly ActionKind = "alert-only"

	// ActionCustom delegates to an operator-registered handler.
	ActionCustom ActionKind = "custom"
)

// KnownActionKinds returns the capability set rules may reference.
func KnownActionKinds() []ActionKind {
	return []ActionKind{ActionPause, ActionThrottle, ActionFreezeAccess, ActionAlertOnly, ActionCustom}
}

// ApprovalLevel states whether a rule's action may run unattended.
type ApprovalLevel string

const (
	// ApprovalAuto lets the engine dispatch without human involvement.
	ApprovalAuto ApprovalLevel = "auto"

	// ApprovalHuman requires a human in the loop; matching incidents
	// escalate instead of dispatching.
	ApprovalHuman ApprovalLevel = "human"
)

// Rule is a single policy rule inside a verified bundle. Rules are immutable
// once the bundle is active.
type Rule struct {
	// ID is the rule identifier, unique within the bundle.
	ID string `yaml:"id"`

	// Kind is the event kind this rule applies to.
	Kind signal.EventKind `yaml:"kind"`

	// SeverityThreshold is the minimum canonical severity that triggers
	// the rule (inclusive).
	SeverityThreshold int `yaml:"severity_threshold"`

	// Scope filters by correlation key: an exact key, a prefix pattern
	// ending in '*' (e.g., "vault-*"), or "*" for all keys.
	Scope string `yaml:"scope"`

	// Action is the remediation capability to dispatch on match.
	Action ActionKind `yaml:"action"`

	// Priority orders rules when several match; higher wins. Unique
	// within a bundle.
	Priority int `yaml:"priority"`

	// Cooldown is the window after a remediation during which repeat
	// events for the same correlation key are suppressed. Never negative.
	Cooldown time.Duration `yaml:"cooldown"`

	// Approval states whether the action may run unattended.
	// Default: auto.
	Approval ApprovalLevel `yaml:"approval,omitempty"`
}

// Bundle is a verified, immutable policy rule set. It is replaced atomically
// by the Store and never mutated in place.
type Bundle struct {
	// Version identifies the bundle (e.g., a semver or content digest).
	Version string `yaml:"version"`

	// Signer is the declared signer identity. Informational; trust comes
	// from signature verification, not from this field.
	Signer string `yaml:"signer"`

	// IssuedAt is when the bundle was produced.
	IssuedAt time.Time `yaml:"issued_at"`

	// Rules is the ordered rule list.
	Rules []Rule `yaml:"rules"`
}

// RuleByID returns the rule with the given id, or nil.
func (b *Bundle) RuleByID(id string) *Rule {
	for i := range b.Rules {
		if b.Rules[i].ID == id {
			return &b.Rules[i]
		}
	}
	return nil
}

// MatchesScope reports whether the rule's scope covers the correlation key.
func (r *Rule) MatchesScope(correlationKey string) bool {
	return scopeMatches(r.Scope, correlationKey)
}

// ScopeSpecificity ranks scopes for tie-breaking: exact keys beat prefix
// patterns, which beat the global wildcard.
func (r *Rule) ScopeSpecificity() int {
	switch {
	case r.Scope == "*":
		return 0
	case len(r.Scope) > 0 && r.Scope[len(r.Scope)-1] == '*':
		return 1
	default:
		return 2
	}
}

func scopeMatches(scope, key string) bool {
	switch {
	case scope == "*":
		return true
	case len(scope) > 0 && scope[len(scope)-1] == '*':
		prefix := scope[:len(scope)-1]
		return len(key) >= len(prefix) && key[:len(prefix)] == prefix
	default:
		return scope == key
	}
}
