package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/fivetwenty-io/fetchx/internal/constants"
)

// SQLiteConfig configures a SQLite-backed store.
type SQLiteConfig struct {
	// Path is a file path or DSN; "file::memory:?cache=shared" keeps it in memory.
	Path string
	// Table defaults to constants.DefaultSQLiteTable.
	Table string
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore persists entries in a SQLite table so they survive restarts. Entries whose
// ExpiresAt passed while the process was down are dropped on load.
type SQLiteStore struct {
	db    *sql.DB
	table string
	owned bool
}

// NewSQLiteStore opens the database at config.Path and prepares the table.
func NewSQLiteStore(ctx context.Context, config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil || config.Path == "" {
		return nil, ErrSQLiteConfigRequired
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// A single connection keeps in-memory databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	store, err := NewSQLiteStoreFromDB(ctx, db, config.Table)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	store.owned = true

	return store, nil
}

// NewSQLiteStoreFromDB uses an existing database handle. The caller owns db.
func NewSQLiteStoreFromDB(ctx context.Context, db *sql.DB, table string) (*SQLiteStore, error) {
	if table == "" {
		table = constants.DefaultSQLiteTable
	}

	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}

	store := &SQLiteStore{db: db, table: table}

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key         TEXT PRIMARY KEY,
		value       BLOB NOT NULL,
		fingerprint TEXT NOT NULL,
		stored_at   INTEGER NOT NULL,
		expires_at  INTEGER NOT NULL DEFAULT 0
	)`, table)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating cache table: %w", err)
	}

	return store, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, key string) (*Entry, bool, error) {
	query := fmt.Sprintf(`SELECT value, fingerprint, stored_at, expires_at FROM %s WHERE key = ?`, s.table)

	var (
		entry     Entry
		storedAt  int64
		expiresAt int64
	)

	err := s.db.QueryRowContext(ctx, query, key).Scan(&entry.Value, &entry.Fingerprint, &storedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("reading cache row: %w", err)
	}

	entry.StoredAt = time.Unix(0, storedAt)
	if expiresAt > 0 {
		entry.ExpiresAt = time.Unix(0, expiresAt)
	}

	return &entry, true, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, key string, entry *Entry) error {
	query := fmt.Sprintf(`INSERT INTO %s (key, value, fingerprint, stored_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			fingerprint = excluded.fingerprint,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at`, s.table)

	var expiresAt int64
	if !entry.ExpiresAt.IsZero() {
		expiresAt = entry.ExpiresAt.UnixNano()
	}

	value := entry.Value
	if value == nil {
		value = []byte{}
	}

	if _, err := s.db.ExecContext(ctx, query, key, value, entry.Fingerprint, entry.StoredAt.UnixNano(), expiresAt); err != nil {
		return fmt.Errorf("writing cache row: %w", err)
	}

	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table)

	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("deleting cache row: %w", err)
	}

	return nil
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table)); err != nil {
		return fmt.Errorf("clearing cache table: %w", err)
	}

	return nil
}

// Close closes the database if the store opened it.
func (s *SQLiteStore) Close() error {
	if !s.owned {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing sqlite database: %w", err)
	}

	return nil
}
