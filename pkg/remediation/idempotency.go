package remediation

import (
	"context"
	"sync"
	"time"
)

// StoredOutcome is a terminal outcome persisted by idempotency key.
type StoredOutcome struct {
	IdempotencyKey string
	Outcome        Outcome
	RecordedAt     time.Time
}

// IdempotencyStore persists terminal outcomes by idempotency key so that
// caller retries or crash-and-resume never re-execute a side effect that
// already reached a terminal result.
type IdempotencyStore interface {
	// Lookup returns the stored terminal outcome for the key, if any.
	Lookup(ctx context.Context, key string) (*StoredOutcome, bool, error)

	// Record persists a terminal outcome, replacing any earlier outcome
	// for the key so a fresh execution supersedes a stale record.
	// Recording a non-terminal outcome is a caller bug and is rejected.
	Record(ctx context.Context, key string, outcome Outcome) error

	// Close releases any resources held by the store.
	Close() error
}

// MemoryStore is an in-memory IdempotencyStore for tests and deployments
// that accept losing replay protection across restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	outcomes map[string]*StoredOutcome
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{outcomes: make(map[string]*StoredOutcome)}
}

// Lookup implements IdempotencyStore.
func (s *MemoryStore) Lookup(_ context.Context, key string) (*StoredOutcome, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.outcomes[key]
	if !ok {
		return nil, false, nil
	}
	cp := *stored
	return &cp, true, nil
}

// Record implements IdempotencyStore. The latest terminal outcome for a key
// wins; the dispatcher only re-executes once the stored record is stale.
func (s *MemoryStore) Record(_ context.Context, key string, outcome Outcome) error {
	if !outcome.Kind.Terminal() {
		return &StoreError{Operation: "record", Cause: errNonTerminal}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[key] = &StoredOutcome{
		IdempotencyKey: key,
		Outcome:        outcome,
		RecordedAt:     time.Now().UTC(),
	}
	return nil
}

// Close implements IdempotencyStore.
func (s *MemoryStore) Close() error { return nil }
