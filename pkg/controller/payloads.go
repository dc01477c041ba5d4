package controller

import "time"

// evaluationPayload is the evidence payload for an evaluation record.
type evaluationPayload struct {
	EventID        string `json:"event_id"`
	EventKind      string `json:"event_kind"`
	CorrelationKey string `json:"correlation_key"`
	Severity       int    `json:"severity"`
	Outcome        string `json:"outcome"`
	RuleID         string `json:"rule_id,omitempty"`
	Action         string `json:"action,omitempty"`
	BundleVersion  string `json:"bundle_version,omitempty"`
	AmbiguousRules string `json:"ambiguous_rules,omitempty"`
}

// suppressionPayload is the evidence payload for a suppression record.
type suppressionPayload struct {
	EventID           string `json:"event_id"`
	CorrelationKey    string `json:"correlation_key"`
	Severity          int    `json:"severity"`
	RuleID            string `json:"rule_id"`
	CooldownRemaining string `json:"cooldown_remaining"`
}

// transitionPayload is the evidence payload for a terminal state-transition
// record.
type transitionPayload struct {
	IncidentID       string    `json:"incident_id"`
	CorrelationKey   string    `json:"correlation_key"`
	State            string    `json:"state"`
	Severity         int       `json:"severity"`
	RuleID           string    `json:"rule_id,omitempty"`
	Attempts         int       `json:"attempts"`
	EscalationReason string    `json:"escalation_reason,omitempty"`
	CooldownUntil    time.Time `json:"cooldown_until,omitempty"`
}

// activationPayload is the evidence payload for a bundle activation record.
type activationPayload struct {
	Version     string    `json:"version"`
	Signer      string    `json:"signer"`
	Rules       int       `json:"rules"`
	ActivatedAt time.Time `json:"activated_at"`
}
