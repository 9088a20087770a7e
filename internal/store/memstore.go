// Package store persists the handle of the user's data file between runs.
// This file contains the interface and in-memory implementation for testing.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/kittclouds/garagebook/pkg/fsaccess"
)

// PrimaryKey is the only record id ever written.
const PrimaryKey = "primary"

// ErrStoreUnavailable is returned when the backing database cannot be
// opened or used.
var ErrStoreUnavailable = errors.New("handle store unavailable")

// HandleStore defines the interface for remembering one file handle.
// This allows swapping between MemStore (testing), SQLiteStore and
// FileStore (native) and IDBStore (browser).
type HandleStore interface {
	// Open prepares the backing storage. It is idempotent.
	Open(ctx context.Context) error

	// Put upserts the handle under PrimaryKey.
	Put(ctx context.Context, h fsaccess.FileHandle) error

	// Get returns the stored handle, or nil when there is none.
	Get(ctx context.Context) (fsaccess.FileHandle, error)

	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MemStore is an in-memory implementation of HandleStore for testing.
type MemStore struct {
	mu     sync.RWMutex
	opened bool
	handle fsaccess.FileHandle
}

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = true
	return nil
}

func (s *MemStore) Put(ctx context.Context, h fsaccess.FileHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return errNotOpen
	}
	s.handle = h
	return nil
}

func (s *MemStore) Get(ctx context.Context) (fsaccess.FileHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.opened {
		return nil, errNotOpen
	}
	return s.handle, nil
}

func (s *MemStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return errNotOpen
	}
	s.handle = nil
	return nil
}

// Close marks the store closed, so Get, Put and Delete fail until the
// next Open. The handle itself survives a reopen.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = false
	return nil
}

var errNotOpen = errors.New("handle store: not open")
