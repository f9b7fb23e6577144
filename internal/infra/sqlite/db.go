// Package sqlite implements store.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Gargee-Buva/Finora/internal/store"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const defaultPageSize = 200

// Settings configures Open.
type Settings struct {
	// Path is the database file, or MemoryPath.
	Path string
	// PageSize is how many rows a cursor fetches per query.
	PageSize int
	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration
}

// Store is a store.Store backed by database/sql with the sqlite3 driver.
type Store struct {
	db       *sql.DB
	pageSize int
}

// Open connects to the database described by settings and applies the schema.
func Open(ctx context.Context, settings Settings) (*Store, error) {
	if settings.Path == "" {
		return nil, fmt.Errorf("Open: database path is required")
	}
	busy := settings.BusyTimeout
	if busy <= 0 {
		busy = 10 * time.Second
	}

	memory := settings.Path == MemoryPath
	dsn := settings.Path
	if !memory {
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate", settings.Path, busy.Milliseconds())
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: sql.Open: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: ping: %w", err)
	}

	s := NewStore(db, settings.PageSize)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing handle without touching the schema.
func NewStore(db *sql.DB, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Store{db: db, pageSize: pageSize}
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("Migrate: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction. The transaction is rolled back when fn
// fails or ctx ends before commit.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	amount INTEGER NOT NULL,
	category TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	receipt_url TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL,
	is_recurring INTEGER NOT NULL DEFAULT 0,
	recurring_interval TEXT,
	next_recurrence_date TEXT,
	last_processed TEXT,
	status TEXT NOT NULL,
	payment_method TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_due ON transactions (is_recurring, next_recurrence_date);
CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions (user_id, date);

CREATE TABLE IF NOT EXISTS report_settings (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL UNIQUE,
	enabled INTEGER NOT NULL DEFAULT 1,
	frequency TEXT NOT NULL,
	next_report_date TEXT,
	last_sent_date TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_report_settings_due ON report_settings (enabled, next_report_date);

CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	period TEXT NOT NULL,
	sent_date TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_user ON reports (user_id, sent_date);
`

var _ store.Store = (*Store)(nil)
