package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"aegis-hq/sentinel/pkg/evidence"
)

func backendUnderTest(t *testing.T, name string) evidence.Storage {
	t.Helper()
	switch name {
	case "memory":
		return NewMemoryStorage()
	case "sqlite":
		backend, err := NewSQLiteStorage(&SQLiteConfig{
			Path:         filepath.Join(t.TempDir(), "ledger.db"),
			MaxOpenConns: 2,
			MaxIdleConns: 1,
			WALMode:      true,
			BusyTimeout:  time.Second,
		})
		if err != nil {
			t.Fatalf("NewSQLiteStorage() error = %v", err)
		}
		return backend
	default:
		t.Fatalf("unknown backend %q", name)
		return nil
	}
}

func testRecord(seq uint64, kind evidence.RecordKind, key string, at time.Time) *evidence.EvidenceRecord {
	return &evidence.EvidenceRecord{
		ID:             fmt.Sprintf("rec-%d", seq),
		Sequence:       seq,
		Kind:           kind,
		CorrelationKey: key,
		RecordedAt:     at,
		Payload:        []byte(fmt.Sprintf(`{"n":%d}`, seq)),
		PrevHash:       fmt.Sprintf("prev-%d", seq),
		Hash:           fmt.Sprintf("hash-%d", seq),
	}
}

func TestStorageBackends(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, name := range []string{"memory", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			backend := backendUnderTest(t, name)
			defer backend.Close()

			if _, ok, err := backend.Last(ctx); err != nil || ok {
				t.Fatalf("Last(empty) = ok=%v err=%v", ok, err)
			}

			seed := []*evidence.EvidenceRecord{
				testRecord(1, evidence.KindEvaluation, "vault-7", base),
				testRecord(2, evidence.KindAttempt, "vault-7", base.Add(time.Minute)),
				testRecord(3, evidence.KindSuppression, "pool-3", base.Add(2*time.Minute)),
				testRecord(4, evidence.KindAttempt, "vault-7", base.Add(3*time.Minute)),
				testRecord(5, evidence.KindBundleActivation, "", base.Add(4*time.Minute)),
			}
			for _, record := range seed {
				if err := backend.Append(ctx, record); err != nil {
					t.Fatalf("Append(%d) error = %v", record.Sequence, err)
				}
			}

			// Unfiltered query returns everything in sequence order.
			all, err := backend.Query(ctx, &evidence.Query{})
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(all) != 5 {
				t.Fatalf("Query() returned %d records", len(all))
			}
			for i, record := range all {
				if record.Sequence != uint64(i+1) {
					t.Errorf("record %d has sequence %d", i, record.Sequence)
				}
			}
			if all[1].Kind != evidence.KindAttempt || string(all[1].Payload) != `{"n":2}` {
				t.Errorf("record round-trip mismatch: %+v", all[1])
			}

			// Filters.
			byKey, err := backend.Query(ctx, &evidence.Query{CorrelationKey: "vault-7"})
			if err != nil || len(byKey) != 3 {
				t.Errorf("Query(key) = %d records, err %v, want 3", len(byKey), err)
			}
			byKind, err := backend.Query(ctx, &evidence.Query{Kind: evidence.KindAttempt})
			if err != nil || len(byKind) != 2 {
				t.Errorf("Query(kind) = %d records, err %v, want 2", len(byKind), err)
			}
			start := base.Add(90 * time.Second)
			byTime, err := backend.Query(ctx, &evidence.Query{StartTime: &start})
			if err != nil || len(byTime) != 3 {
				t.Errorf("Query(start) = %d records, err %v, want 3", len(byTime), err)
			}
			bySeq, err := backend.Query(ctx, &evidence.Query{FromSequence: 2, ToSequence: 4})
			if err != nil || len(bySeq) != 3 {
				t.Errorf("Query(seq) = %d records, err %v, want 3", len(bySeq), err)
			}
			paged, err := backend.Query(ctx, &evidence.Query{Limit: 2, Offset: 2})
			if err != nil || len(paged) != 2 || paged[0].Sequence != 3 {
				t.Errorf("Query(paged) = %+v, err %v", paged, err)
			}

			count, err := backend.Count(ctx, &evidence.Query{CorrelationKey: "vault-7"})
			if err != nil || count != 3 {
				t.Errorf("Count() = %d, err %v, want 3", count, err)
			}

			last, ok, err := backend.Last(ctx)
			if err != nil || !ok || last.Sequence != 5 {
				t.Errorf("Last() = %+v ok=%v err=%v", last, ok, err)
			}
		})
	}
}

// TestSQLiteStorage_SurvivesReopen tests that records persist across close
// and reopen of the same database file.
func TestSQLiteStorage_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	config := &SQLiteConfig{Path: path, MaxOpenConns: 2, MaxIdleConns: 1, WALMode: true, BusyTimeout: time.Second}

	backend, err := NewSQLiteStorage(config)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	record := testRecord(1, evidence.KindAttempt, "vault-7", time.Now().UTC())
	if err := backend.Append(ctx, record); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	backend.Close()

	reopened, err := NewSQLiteStorage(config)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	last, ok, err := reopened.Last(ctx)
	if err != nil || !ok {
		t.Fatalf("Last() = ok=%v err=%v", ok, err)
	}
	if last.ID != record.ID || last.Hash != record.Hash {
		t.Errorf("record after reopen = %+v", last)
	}
}

// TestSQLiteStorage_RejectsDuplicateSequence tests the storage-level guard
// against double-appends.
func TestSQLiteStorage_RejectsDuplicateSequence(t *testing.T) {
	ctx := context.Background()
	backend := backendUnderTest(t, "sqlite")
	defer backend.Close()

	now := time.Now().UTC()
	if err := backend.Append(ctx, testRecord(1, evidence.KindAttempt, "vault-7", now)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	dup := testRecord(1, evidence.KindAttempt, "vault-7", now)
	dup.ID = "rec-dup"
	if err := backend.Append(ctx, dup); err == nil {
		t.Fatal("Append() accepted a duplicate sequence")
	}
}
