package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"aegis-hq/sentinel/pkg/evidence"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/ledger.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage creates a new SQLite storage backend.
// It initializes the database schema and enables WAL mode if configured.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "evidence.storage.sqlite")

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, evidence.NewStorageError("sqlite", "open", err)
		}
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return evidence.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return evidence.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return evidence.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return evidence.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return evidence.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return evidence.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Append implements Storage.
func (s *SQLiteStorage) Append(ctx context.Context, record *evidence.EvidenceRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence (sequence, id, kind, correlation_key, recorded_at, payload, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Sequence,
		record.ID,
		string(record.Kind),
		record.CorrelationKey,
		record.RecordedAt,
		string(record.Payload),
		record.PrevHash,
		record.Hash,
	)
	if err != nil {
		return evidence.NewStorageError("sqlite", "append", err)
	}
	return nil
}

// Query implements Storage. Records come back in sequence order.
func (s *SQLiteStorage) Query(ctx context.Context, query *evidence.Query) ([]*evidence.EvidenceRecord, error) {
	where, args := buildWhere(query)

	sqlQuery := "SELECT sequence, id, kind, correlation_key, recorded_at, payload, prev_hash, hash FROM evidence" +
		where + " ORDER BY sequence ASC"
	if query != nil && query.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", query.Limit)
		if query.Offset > 0 {
			sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
		}
	} else if query != nil && query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT -1 OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := make([]*evidence.EvidenceRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, evidence.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// Count implements Storage.
func (s *SQLiteStorage) Count(ctx context.Context, query *evidence.Query) (int64, error) {
	where, args := buildWhere(query)

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evidence"+where, args...).Scan(&count)
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Last implements Storage.
func (s *SQLiteStorage) Last(ctx context.Context) (*evidence.EvidenceRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT sequence, id, kind, correlation_key, recorded_at, payload, prev_hash, hash FROM evidence ORDER BY sequence DESC LIMIT 1")

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, evidence.NewStorageError("sqlite", "last", err)
	}
	return record, true, nil
}

// Close implements Storage.
func (s *SQLiteStorage) Close() error {
	s.logger.Info("closing SQLite storage")
	return s.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*evidence.EvidenceRecord, error) {
	var record evidence.EvidenceRecord
	var kind, payload string

	err := row.Scan(
		&record.Sequence,
		&record.ID,
		&kind,
		&record.CorrelationKey,
		&record.RecordedAt,
		&payload,
		&record.PrevHash,
		&record.Hash,
	)
	if err != nil {
		return nil, err
	}
	record.Kind = evidence.RecordKind(kind)
	record.Payload = []byte(payload)
	record.RecordedAt = record.RecordedAt.UTC()
	return &record, nil
}

func buildWhere(query *evidence.Query) (string, []any) {
	if query == nil {
		return "", nil
	}
	clauses := make([]string, 0, 6)
	args := make([]any, 0, 6)

	if query.CorrelationKey != "" {
		clauses = append(clauses, "correlation_key = ?")
		args = append(args, query.CorrelationKey)
	}
	if query.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(query.Kind))
	}
	if query.StartTime != nil {
		clauses = append(clauses, "recorded_at >= ?")
		args = append(args, *query.StartTime)
	}
	if query.EndTime != nil {
		clauses = append(clauses, "recorded_at <= ?")
		args = append(args, *query.EndTime)
	}
	if query.FromSequence > 0 {
		clauses = append(clauses, "sequence >= ?")
		args = append(args, query.FromSequence)
	}
	if query.ToSequence > 0 {
		clauses = append(clauses, "sequence <= ?")
		args = append(args, query.ToSequence)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
