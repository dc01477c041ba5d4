package signal

import "time"

// EventKind identifies the class of risk condition a producer detected.
type EventKind string

const (
	// KindReserveShortfall indicates proof-of-reserves coverage dropped
	// below the required threshold.
	KindReserveShortfall EventKind = "reserve-shortfall"

	// KindMEVFlag indicates a suspected value-extraction attempt.
	KindMEVFlag EventKind = "mev-flag"

	// KindAAAnomaly indicates anomalous account-abstraction activity
	// (e.g., an exploited smart account).
	KindAAAnomaly EventKind = "aa-anomaly"

	// KindIntegrityViolation indicates a data integrity or protection
	// check failed.
	KindIntegrityViolation EventKind = "integrity-violation"

	// KindSLABreach indicates a vendor missed a contractual SLA.
	KindSLABreach EventKind = "sla-breach"
)

// SeverityScale identifies the scale a producer reports severity on.
type SeverityScale string

const (
	// ScaleCanonical is the engine's native 0-10 integer scale.
	ScaleCanonical SeverityScale = "canonical"

	// ScalePercent is a 0-100 scale used by some producers; normalized
	// down to canonical by integer division.
	ScalePercent SeverityScale = "percent"
)

// MaxSeverity is the upper bound of the canonical severity scale.
const MaxSeverity = 10

// RawEvent is the wire shape producers push to the engine. Fields are
// producer-controlled and untrusted until normalized.
type RawEvent struct {
	// Source identifies the producer (e.g., "reserve-monitor").
	Source string `json:"source"`

	// Kind is the event kind string; must map to a known EventKind.
	Kind string `json:"kind"`

	// Severity on the scale declared by SeverityScale.
	Severity int `json:"severity"`

	// SeverityScale declares the producer's scale. Empty means canonical.
	SeverityScale string `json:"severity_scale,omitempty"`

	// CorrelationKey is the stable identifier grouping repeats of the same
	// problem (e.g., "vault-7" or "vendor-12/sla-latency").
	CorrelationKey string `json:"correlation_key"`

	// EvidenceRef points at producer-side evidence (tx hash, report URL).
	EvidenceRef string `json:"evidence_ref,omitempty"`

	// Timestamp is when the producer observed the condition. RFC 3339.
	// Zero means "now" in the engine's clock domain.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// RiskEvent is the canonical, normalized form of a producer event. All
// downstream components operate on RiskEvents only.
type RiskEvent struct {
	// ID is a unique identifier assigned at normalization time.
	ID string

	// Source is the producer identity, trimmed.
	Source string

	// Kind is the validated event kind.
	Kind EventKind

	// Severity on the canonical 0-10 scale.
	Severity int

	// CorrelationKey groups repeats of the same underlying problem.
	CorrelationKey string

	// EvidenceRef points at producer-side evidence.
	EvidenceRef string

	// ObservedAt is the producer timestamp normalized to UTC.
	ObservedAt time.Time

	// ReceivedAt is when the engine accepted the event (UTC).
	ReceivedAt time.Time
}

// KnownKinds returns the set of event kinds the normalizer accepts.
func KnownKinds() []EventKind {
	return []EventKind{
		KindReserveShortfall,
		KindMEVFlag,
		KindAAAnomaly,
		KindIntegrityViolation,
		KindSLABreach,
	}
}
