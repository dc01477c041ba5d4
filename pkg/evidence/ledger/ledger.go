package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"aegis-hq/sentinel/pkg/evidence"
)

// Ledger is the append-only hash-chained writer over an evidence storage
// backend. A single mutex serializes appends so sequence numbers stay
// contiguous and each record's PrevHash is the actual tail hash at write
// time. Queries go straight to storage and do not take the write lock.
type Ledger struct {
	storage evidence.Storage
	logger  *slog.Logger

	mu       sync.Mutex
	sequence uint64
	tailHash string

	now func() time.Time
}

// Open creates a Ledger over the storage backend, resuming the chain from
// the stored tail if the backend already holds records.
func Open(ctx context.Context, storage evidence.Storage) (*Ledger, error) {
	l := &Ledger{
		storage: storage,
		logger:  slog.Default().With("component", "evidence.ledger"),
		now:     time.Now,
	}

	last, ok, err := storage.Last(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		l.sequence = last.Sequence
		l.tailHash = last.Hash
		l.logger.Info("evidence ledger resumed", "sequence", last.Sequence)
	} else {
		l.logger.Info("evidence ledger opened empty")
	}
	return l, nil
}

// WithClock overrides the ledger's clock. Test hook.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Append marshals the payload and writes it as the next record in the
// chain. The returned record includes the assigned sequence and hash.
func (l *Ledger) Append(ctx context.Context, kind evidence.RecordKind, correlationKey string, payload any) (*evidence.EvidenceRecord, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, evidence.NewStorageError("ledger", "marshal", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record := &evidence.EvidenceRecord{
		ID:             uuid.New().String(),
		Sequence:       l.sequence + 1,
		Kind:           kind,
		CorrelationKey: correlationKey,
		RecordedAt:     l.now().UTC(),
		Payload:        data,
		PrevHash:       l.tailHash,
	}
	record.Hash = ComputeHash(record)

	if err := l.storage.Append(ctx, record); err != nil {
		return nil, err
	}

	l.sequence = record.Sequence
	l.tailHash = record.Hash

	l.logger.Debug("evidence appended",
		"sequence", record.Sequence,
		"kind", kind,
		"correlation_key", correlationKey,
	)
	return record, nil
}

// Sequence returns the sequence number of the most recent record, zero when
// the ledger is empty.
func (l *Ledger) Sequence() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sequence
}

// Query reads records matching the filters.
func (l *Ledger) Query(ctx context.Context, query *evidence.Query) ([]*evidence.EvidenceRecord, error) {
	return l.storage.Query(ctx, query)
}

// Verify walks the stored chain in the given sequence range (inclusive,
// zero meaning unbounded) and returns a CorruptionError at the first record
// whose hash, linkage, or sequence is wrong. Returns the number of records
// verified.
//
// A range starting past sequence 1 anchors on the preceding record's stored
// hash, so partial verification still catches edits inside the range.
func (l *Ledger) Verify(ctx context.Context, fromSequence, toSequence uint64) (uint64, error) {
	query := &evidence.Query{FromSequence: fromSequence, ToSequence: toSequence}
	if fromSequence > 1 {
		query.FromSequence = fromSequence - 1
	}

	records, err := l.storage.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	start := 0
	prevHash := ""
	if fromSequence > 1 {
		// The first fetched record is the anchor, already verified or
		// trusted; the range proper starts after it.
		prevHash = records[0].Hash
		start = 1
	}

	expected := uint64(0)
	verified := uint64(0)
	for i := start; i < len(records); i++ {
		record := records[i]
		if expected == 0 {
			expected = record.Sequence
		}
		if record.Sequence != expected {
			return verified, evidence.NewCorruptionError(expected,
				fmt.Sprintf("missing record: found sequence %d", record.Sequence))
		}
		if record.PrevHash != prevHash {
			return verified, evidence.NewCorruptionError(record.Sequence,
				"prev_hash does not match preceding record")
		}
		if got := ComputeHash(record); got != record.Hash {
			return verified, evidence.NewCorruptionError(record.Sequence,
				"stored hash does not match recomputed hash")
		}
		prevHash = record.Hash
		expected++
		verified++
	}
	return verified, nil
}

// VerifyAll verifies the whole chain from the first record.
func (l *Ledger) VerifyAll(ctx context.Context) (uint64, error) {
	return l.Verify(ctx, 0, 0)
}

// Close closes the underlying storage backend.
func (l *Ledger) Close() error {
	return l.storage.Close()
}
