package evidence

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// RecordKind classifies what an evidence record documents.
type RecordKind string

const (
	// KindEvaluation documents one policy evaluation that produced a
	// decision or found no matching rule.
	KindEvaluation RecordKind = "evaluation"

	// KindSuppression documents an event suppressed by a cooldown window
	// or an in-flight remediation.
	KindSuppression RecordKind = "suppression"

	// KindAttempt documents one remediation attempt, successful or not.
	KindAttempt RecordKind = "remediation-attempt"

	// KindTransition documents an incident lifecycle state change.
	KindTransition RecordKind = "state-transition"

	// KindBundleActivation documents a policy bundle passing verification
	// and becoming active.
	KindBundleActivation RecordKind = "bundle-activation"
)

// EvidenceRecord is one entry in the append-only hash-chained ledger. Every
// consequential engine action lands here; the chain makes silent tampering
// or record loss detectable.
type EvidenceRecord struct {
	// ID uniquely identifies the record (UUID v4).
	ID string `json:"id"`

	// Sequence is the record's position in the chain, starting at 1 and
	// strictly contiguous.
	Sequence uint64 `json:"sequence"`

	// Kind classifies what happened.
	Kind RecordKind `json:"kind"`

	// CorrelationKey is the subject the record concerns. Empty for records
	// not tied to a key, such as bundle activations.
	CorrelationKey string `json:"correlation_key,omitempty"`

	// RecordedAt is when the record was appended (UTC).
	RecordedAt time.Time `json:"recorded_at"`

	// Payload is the kind-specific detail, stored as JSON.
	Payload json.RawMessage `json:"payload"`

	// PrevHash is the Hash of the preceding record, empty for the first.
	PrevHash string `json:"prev_hash"`

	// Hash is the SHA-256 hex digest binding this record to its
	// predecessor. Recomputable from the other fields.
	Hash string `json:"hash"`
}

// Query defines filter parameters for reading evidence records. Zero values
// mean no filter.
type Query struct {
	// CorrelationKey filters to one subject's records.
	CorrelationKey string `json:"correlation_key,omitempty"`

	// Kind filters by record kind.
	Kind RecordKind `json:"kind,omitempty"`

	// StartTime and EndTime bound RecordedAt (inclusive).
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// FromSequence and ToSequence bound Sequence (inclusive); zero means
	// unbounded.
	FromSequence uint64 `json:"from_sequence,omitempty"`
	ToSequence   uint64 `json:"to_sequence,omitempty"`

	// Limit caps the number of records returned; zero means no cap.
	Limit int `json:"limit,omitempty"`

	// Offset skips the first N matching records.
	Offset int `json:"offset,omitempty"`
}

// Storage defines the interface for evidence storage backends.
// Implementations must be thread-safe; the ledger above them serializes
// appends but queries run concurrently.
type Storage interface {
	// Append persists a record. Records arrive in sequence order.
	Append(ctx context.Context, record *EvidenceRecord) error

	// Query retrieves records matching the filters, in sequence order.
	// Returns an empty slice if nothing matches.
	Query(ctx context.Context, query *Query) ([]*EvidenceRecord, error)

	// Count returns the number of records matching the filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Last returns the highest-sequence record, if any.
	Last(ctx context.Context) (*EvidenceRecord, bool, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Exporter defines the interface for exporting evidence records to various
// formats.
type Exporter interface {
	// Export writes records to the writer in the exporter's format.
	Export(ctx context.Context, records []*EvidenceRecord, w io.Writer) error
}
