// Package store persists the engine's learned state in a single SQLite
// database. Every table is owned by exactly one tracker; the repositories
// here expose parameterized operations so the learning logic never touches
// SQL strings.
//
// All multi-row mutations run inside one immediate transaction, so a crash
// mid-update cannot leave derived fields out of sync with their inputs.
// Cross-process coordination uses the advisory job locks in locks.go.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"canarywatch/internal/logger"
)

// ErrDuplicateFeedback is returned when a digest or article already has a
// feedback record. Re-submission is idempotent, never double-counted.
var ErrDuplicateFeedback = errors.New("feedback already recorded")

// ErrCorruptRecord marks a persisted row that fails validation on load.
// Such rows are quarantined: skipped from scoring, retained for inspection.
var ErrCorruptRecord = errors.New("corrupt record quarantined")

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStorageUnavailable is returned when the database cannot be opened or a
// transaction cannot start. Callers abort the whole operation; nothing here
// is retried.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Querier is satisfied by both *sql.DB and *sql.Tx, letting repository
// operations run standalone or inside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps the SQLite database holding all learned state.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema. Pass ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// _txlock=immediate makes every write transaction take the database
	// lock up front, so concurrent processes fail fast on busy instead of
	// deadlocking at commit time.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w: %v", ErrStorageUnavailable, err)
	}

	// The engine is invoked synchronously by batch jobs; a single
	// connection keeps in-memory databases coherent and serializes writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Debug("database initialized at %s", path)
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS patterns (
		signature TEXT PRIMARY KEY,
		urgency_sum REAL NOT NULL DEFAULT 0,
		sample_count REAL NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 0,
		last_updated TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS keyword_weights (
		term TEXT PRIMARY KEY,
		weight REAL NOT NULL DEFAULT 0,
		sample_count REAL NOT NULL DEFAULT 0,
		last_updated TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS source_reliability (
		source TEXT NOT NULL,
		content_type TEXT NOT NULL,
		reliability REAL NOT NULL DEFAULT 0.5,
		sample_count INTEGER NOT NULL DEFAULT 0,
		last_updated TEXT NOT NULL,
		PRIMARY KEY (source, content_type)
	);

	CREATE TABLE IF NOT EXISTS feedback_records (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		digest_id TEXT,
		article_id TEXT,
		headline TEXT,
		source TEXT,
		content_type TEXT,
		rating INTEGER,
		irrelevant INTEGER NOT NULL DEFAULT 0,
		class TEXT,
		comment TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_feedback_digest
		ON feedback_records(digest_id) WHERE digest_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_feedback_article
		ON feedback_records(article_id) WHERE article_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_feedback_created
		ON feedback_records(created_at);

	CREATE TABLE IF NOT EXISTS prediction_tracking (
		id TEXT PRIMARY KEY,
		headline TEXT NOT NULL,
		source TEXT NOT NULL,
		content_type TEXT NOT NULL,
		economic TEXT NOT NULL,
		predicted_score REAL NOT NULL,
		predicted_at TEXT NOT NULL,
		explanation TEXT NOT NULL,
		realized_score REAL,
		abs_error REAL
	);

	CREATE INDEX IF NOT EXISTS idx_prediction_match
		ON prediction_tracking(headline, source, predicted_at);

	CREATE TABLE IF NOT EXISTS job_locks (
		job TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		acquired_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Base returns the store's plain querier for read paths and single-statement
// writes outside a transaction.
func (s *Store) Base() Querier {
	return s.db
}

// WithTx runs fn inside a single immediate transaction, rolling back on error.
// ErrDuplicateFeedback and ErrCorruptRecord pass through unwrapped so callers
// can branch on them.
func (s *Store) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %v", ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Timestamps are stored as RFC 3339 text so rows stay readable with any
// sqlite client. The fractional part is fixed-width, not RFC3339Nano, so
// string comparison in SQL orders the same as the instants do.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Tolerate variable-precision rows written by other tools.
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored timestamp %q: %w", s, err)
	}
	return t, nil
}
