package remediation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

var errNonTerminal = errors.New("only terminal outcomes may be recorded")

const idempotencySchema = `
CREATE TABLE IF NOT EXISTS idempotency (
    key TEXT PRIMARY KEY,
    outcome TEXT NOT NULL,
    output TEXT,
    error TEXT,
    recorded_at TIMESTAMP NOT NULL
);
`

// SQLiteStore is a durable IdempotencyStore. It survives crash-and-resume:
// a terminal outcome recorded before a crash is replayed instead of the
// side effect being issued again.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the idempotency database at
// path. Parent directories are created.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StoreError{Operation: "open", Cause: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Operation: "open", Cause: err}
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, &StoreError{Operation: "open", Cause: fmt.Errorf("enable WAL: %w", err)}
	}
	if _, err := db.Exec(idempotencySchema); err != nil {
		db.Close()
		return nil, &StoreError{Operation: "open", Cause: fmt.Errorf("create schema: %w", err)}
	}

	logger := slog.Default().With("component", "remediation.idempotency")
	logger.Info("idempotency store opened", "path", path)

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Lookup implements IdempotencyStore.
func (s *SQLiteStore) Lookup(ctx context.Context, key string) (*StoredOutcome, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT outcome, output, error, recorded_at FROM idempotency WHERE key = ?", key)

	var stored StoredOutcome
	var kind string
	err := row.Scan(&kind, &stored.Outcome.Output, &stored.Outcome.Error, &stored.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StoreError{Operation: "lookup", Cause: err}
	}
	stored.IdempotencyKey = key
	stored.Outcome.Kind = OutcomeKind(kind)
	return &stored, true, nil
}

// Record implements IdempotencyStore. The upsert keeps the latest terminal
// outcome authoritative; the dispatcher only writes again once the stored
// record is stale.
func (s *SQLiteStore) Record(ctx context.Context, key string, outcome Outcome) error {
	if !outcome.Kind.Terminal() {
		return &StoreError{Operation: "record", Cause: errNonTerminal}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO idempotency (key, outcome, output, error, recorded_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		 outcome = excluded.outcome, output = excluded.output,
		 error = excluded.error, recorded_at = excluded.recorded_at`,
		key, string(outcome.Kind), outcome.Output, outcome.Error, time.Now().UTC())
	if err != nil {
		return &StoreError{Operation: "record", Cause: err}
	}
	return nil
}

// Close implements IdempotencyStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
