// Package store persists engine state in SQLite: the user's saved target
// language and an append-only log of translation passes. Open applies
// production-safe pragmas via EXEC so the driver choice stays orthogonal.
//
// Usage:
//
//	import _ "modernc.org/sqlite"
//	st, err := store.Open("lingodom.db")
//
// In tests:
//
//	st := store.OpenMemory(t)
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/lingodom/lingodom/idgen"
)

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pass_log (
	pass_id     TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	source      TEXT,
	target      TEXT NOT NULL,
	text_nodes  INTEGER NOT NULL,
	attr_nodes  INTEGER NOT NULL,
	cache_hits  INTEGER NOT NULL,
	failures    INTEGER NOT NULL,
	cause       TEXT NOT NULL,
	status      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pass_log_started ON pass_log(started_at);
`

type config struct {
	driver      string
	busyTimeout int
	mkdirAll    bool
	newID       idgen.Generator
}

func defaults() config {
	return config{
		driver:      "sqlite",
		busyTimeout: 10_000,
		newID:       idgen.Prefixed("pass_", idgen.Default),
	}
}

// Option customises Open behaviour.
type Option func(*config)

// WithDriver sets the database/sql driver name. Default: "sqlite".
func WithDriver(name string) Option { return func(c *config) { c.driver = name } }

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithIDGenerator sets a custom pass-ID generator.
func WithIDGenerator(gen idgen.Generator) Option { return func(c *config) { c.newID = gen } }

// Store wraps the SQLite handle.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
}

// Open opens (and migrates) the store at path. The caller must blank-import
// the driver:
//
//	import _ "modernc.org/sqlite"
func Open(path string, opts ...Option) (*Store, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open(cfg.driver, path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Store{db: db, newID: cfg.newID}, nil
}

// OpenMemory opens an in-memory store for testing. It sets MaxOpenConns(1)
// so every query hits the same in-memory database, and registers t.Cleanup
// to close it.
func OpenMemory(t testing.TB, opts ...Option) *Store {
	t.Helper()
	st, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	st.db.SetMaxOpenConns(1)
	t.Cleanup(func() { st.Close() })
	return st
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the handle for callers that need raw queries.
func (s *Store) DB() *sql.DB { return s.db }

const langKey = "target_language"

// SaveLanguage persists the user's chosen target language.
func (s *Store) SaveLanguage(ctx context.Context, lang string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		langKey, lang)
	if err != nil {
		return fmt.Errorf("store: save language: %w", err)
	}
	return nil
}

// SavedLanguage returns the persisted target language, or "" when none was
// saved.
func (s *Store) SavedLanguage(ctx context.Context) (string, error) {
	var lang string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM preferences WHERE key = ?", langKey).Scan(&lang)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: saved language: %w", err)
	}
	return lang, nil
}

// ClearLanguage removes the persisted target language.
func (s *Store) ClearLanguage(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM preferences WHERE key = ?", langKey)
	if err != nil {
		return fmt.Errorf("store: clear language: %w", err)
	}
	return nil
}
