package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/kittclouds/garagebook/pkg/fsaccess"
)

// SQLiteStore keeps the handle record in a SQLite table.
// Handles are stored as the host's text token.
type SQLiteStore struct {
	mu    sync.RWMutex
	dsn   string
	codec fsaccess.HandleCodec
	db    *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS file_handles (
    id TEXT PRIMARY KEY,
    handle TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore(codec fsaccess.HandleCodec) *SQLiteStore {
	return NewSQLiteStoreWithDSN(":memory:", codec)
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
// Nothing is opened until Open.
func NewSQLiteStoreWithDSN(dsn string, codec fsaccess.HandleCodec) *SQLiteStore {
	return &SQLiteStore{dsn: dsn, codec: codec}
}

// Open opens the database and creates the schema on first use.
func (s *SQLiteStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	if s.codec == nil {
		return fmt.Errorf("no handle codec: %w", ErrStoreUnavailable)
	}

	db, err := sql.Open("sqlite3", s.dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %v: %w", err, ErrStoreUnavailable)
	}
	// A second pooled connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %v: %w", err, ErrStoreUnavailable)
	}
	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) Put(ctx context.Context, h fsaccess.FileHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errNotOpen
	}

	token, err := s.codec.EncodeHandle(h)
	if err != nil {
		return fmt.Errorf("failed to encode handle: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO file_handles (id, handle, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET handle = excluded.handle, updated_at = excluded.updated_at
	`, PrimaryKey, token, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put handle: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context) (fsaccess.FileHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errNotOpen
	}

	var token string
	err := s.db.QueryRowContext(ctx, `SELECT handle FROM file_handles WHERE id = ?`, PrimaryKey).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get handle: %w", err)
	}

	h, err := s.codec.DecodeHandle(token)
	if err != nil {
		return nil, fmt.Errorf("failed to decode handle: %w", err)
	}
	return h, nil
}

func (s *SQLiteStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errNotOpen
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM file_handles WHERE id = ?`, PrimaryKey); err != nil {
		return fmt.Errorf("failed to delete handle: %w", err)
	}
	return nil
}

// UpdatedAt returns when the record was last written, for diagnostics.
func (s *SQLiteStore) UpdatedAt(ctx context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return time.Time{}, false, errNotOpen
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM file_handles WHERE id = ?`, PrimaryKey).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}
