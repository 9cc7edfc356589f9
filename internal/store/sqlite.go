package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Documents and FeedbackLog on a local SQLite
// database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var (
	_ Documents   = (*SQLiteStore)(nil)
	_ FeedbackLog = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
//
// Transactions are opened with BEGIN IMMEDIATE so that Update holds the
// database write lock from its first read.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	memory := dbPath == ":memory:"

	dsn := dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every pooled connection to :memory: would see its own empty database.
	if memory {
		db.SetMaxOpenConns(1)
	}

	if !memory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Get returns the body stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body string
	err := s.db.GetContext(ctx, &body, "SELECT body FROM documents WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", key, err)
	}
	return []byte(body), nil
}

// Put inserts or replaces the body stored under key.
func (s *SQLiteStore) Put(ctx context.Context, key string, body []byte) error {
	return putDocument(ctx, s.db, key, body, s.now())
}

// Delete removes key. Deleting an absent key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", key, err)
	}
	return nil
}

// Update reads key, passes its body to fn and writes the result, all in
// one immediate transaction. fn sees nil when the key is absent. When fn
// returns ErrNoChange nothing is written and Update returns nil; any other
// error rolls back and is returned unchanged.
func (s *SQLiteStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current []byte
	var body string
	err = tx.GetContext(ctx, &body, "SELECT body FROM documents WHERE key = ?", key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("reading document %s: %w", key, err)
	default:
		current = []byte(body)
	}

	next, err := fn(current)
	if errors.Is(err, ErrNoChange) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := putDocument(ctx, tx, key, next, s.now()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing document %s: %w", key, err)
	}
	return nil
}

func putDocument(ctx context.Context, ex sqlx.ExecerContext, key string, body []byte, now time.Time) error {
	_, err := ex.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents (key, body, updated_at)
		VALUES (?, ?, ?)`,
		key, string(body), now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing document %s: %w", key, err)
	}
	return nil
}

// AppendFeedback records a feedback event. Missing IDs and timestamps are
// filled in.
func (s *SQLiteStore) AppendFeedback(ctx context.Context, ev FeedbackEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO style_feedback (id, kind, value, created_at)
		VALUES (?, ?, ?, ?)`,
		ev.ID, ev.Kind, ev.Value, ev.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending feedback %s: %w", ev.ID, err)
	}
	return nil
}

// ListFeedback returns the most recent events first. A non-positive limit
// returns all events.
func (s *SQLiteStore) ListFeedback(ctx context.Context, limit int) ([]FeedbackEvent, error) {
	query := "SELECT id, kind, value, created_at FROM style_feedback ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var events []FeedbackEvent
	if err := s.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	return events, nil
}
