package storage

import (
	"context"
	"sync"

	"aegis-hq/sentinel/pkg/evidence"
)

// MemoryStorage implements the Storage interface with an in-memory slice.
// Intended for tests and ephemeral deployments; the evidence trail is lost
// on restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*evidence.EvidenceRecord
}

// NewMemoryStorage creates an empty in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Append implements Storage.
func (s *MemoryStorage) Append(_ context.Context, record *evidence.EvidenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.records = append(s.records, &cp)
	return nil
}

// Query implements Storage.
func (s *MemoryStorage) Query(_ context.Context, query *evidence.Query) ([]*evidence.EvidenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*evidence.EvidenceRecord, 0)
	skipped := 0
	for _, record := range s.records {
		if !matches(record, query) {
			continue
		}
		if skipped < query.Offset {
			skipped++
			continue
		}
		cp := *record
		matched = append(matched, &cp)
		if query.Limit > 0 && len(matched) >= query.Limit {
			break
		}
	}
	return matched, nil
}

// Count implements Storage.
func (s *MemoryStorage) Count(_ context.Context, query *evidence.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if matches(record, query) {
			count++
		}
	}
	return count, nil
}

// Last implements Storage.
func (s *MemoryStorage) Last(_ context.Context) (*evidence.EvidenceRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return nil, false, nil
	}
	cp := *s.records[len(s.records)-1]
	return &cp, true, nil
}

// Close implements Storage.
func (s *MemoryStorage) Close() error { return nil }

// Tamper overwrites the stored record at the given sequence. Test hook for
// corruption detection; not part of the Storage interface.
func (s *MemoryStorage) Tamper(sequence uint64, mutate func(*evidence.EvidenceRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.Sequence == sequence {
			mutate(record)
			return true
		}
	}
	return false
}

func matches(record *evidence.EvidenceRecord, query *evidence.Query) bool {
	if query == nil {
		return true
	}
	if query.CorrelationKey != "" && record.CorrelationKey != query.CorrelationKey {
		return false
	}
	if query.Kind != "" && record.Kind != query.Kind {
		return false
	}
	if query.StartTime != nil && record.RecordedAt.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && record.RecordedAt.After(*query.EndTime) {
		return false
	}
	if query.FromSequence > 0 && record.Sequence < query.FromSequence {
		return false
	}
	if query.ToSequence > 0 && record.Sequence > query.ToSequence {
		return false
	}
	return true
}
