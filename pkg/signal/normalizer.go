package signal

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Normalizer converts heterogeneous producer events into canonical
// RiskEvents. It holds no mutable state and is safe for concurrent use from
// any number of producers.
type Normalizer struct {
	// now is the engine clock; replaceable in tests.
	now func() time.Time
}

// NewNormalizer creates a Normalizer using the system clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewNormalizerWithClock creates a Normalizer with an injected clock.
func NewNormalizerWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize validates a raw producer event and returns its canonical form.
// It performs shape and unit normalization only: kind validation, severity
// scale conversion, and timestamp normalization to UTC. It never makes
// business judgments about the event.
func (n *Normalizer) Normalize(raw *RawEvent) (*RiskEvent, error) {
	kind, err := parseKind(raw)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(raw.CorrelationKey)
	if key == "" {
		return nil, &InvalidEventError{Field: "correlation_key", Reason: "must not be empty"}
	}

	severity, err := normalizeSeverity(raw.Severity, SeverityScale(raw.SeverityScale))
	if err != nil {
		return nil, err
	}

	received := n.now().UTC()
	observed := raw.Timestamp.UTC()
	if raw.Timestamp.IsZero() {
		observed = received
	}

	return &RiskEvent{
		ID:             uuid.New().String(),
		Source:         strings.TrimSpace(raw.Source),
		Kind:           kind,
		Severity:       severity,
		CorrelationKey: key,
		EvidenceRef:    strings.TrimSpace(raw.EvidenceRef),
		ObservedAt:     observed,
		ReceivedAt:     received,
	}, nil
}

// parseKind maps the producer kind string to a known EventKind.
func parseKind(raw *RawEvent) (EventKind, error) {
	kind := EventKind(strings.TrimSpace(strings.ToLower(raw.Kind)))
	for _, known := range KnownKinds() {
		if kind == known {
			return kind, nil
		}
	}
	return "", &UnknownEventKindError{Kind: raw.Kind, Source: raw.Source}
}

// normalizeSeverity converts a producer severity to the canonical 0-10 scale.
func normalizeSeverity(severity int, scale SeverityScale) (int, error) {
	switch scale {
	case "", ScaleCanonical:
		if severity < 0 || severity > MaxSeverity {
			return 0, &InvalidEventError{Field: "severity", Reason: "must be within 0-10 on the canonical scale"}
		}
		return severity, nil
	case ScalePercent:
		if severity < 0 || severity > 100 {
			return 0, &InvalidEventError{Field: "severity", Reason: "must be within 0-100 on the percent scale"}
		}
		return severity / 10, nil
	default:
		return 0, &InvalidEventError{Field: "severity_scale", Reason: "unknown scale " + string(scale)}
	}
}
