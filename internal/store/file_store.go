package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gofs "io/fs"
	"path"
	"sync"

	"github.com/hack-pad/hackpadfs"

	"github.com/kittclouds/garagebook/pkg/fsaccess"
)

// FileStore keeps the handle record as a small JSON file on a hackpadfs
// filesystem, at <dir>/primary.json.
type FileStore struct {
	mu     sync.RWMutex
	fs     hackpadfs.FS
	dir    string
	codec  fsaccess.HandleCodec
	opened bool
}

type handleRecord struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
}

// NewFileStore creates a store rooted at dir on fsys.
func NewFileStore(fsys hackpadfs.FS, dir string, codec fsaccess.HandleCodec) *FileStore {
	return &FileStore{fs: fsys, dir: dir, codec: codec}
}

func (s *FileStore) recordPath() string {
	return path.Join(s.dir, PrimaryKey+".json")
}

func (s *FileStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}
	if s.fs == nil || s.codec == nil {
		return fmt.Errorf("no filesystem or codec: %w", ErrStoreUnavailable)
	}
	if err := hackpadfs.MkdirAll(s.fs, s.dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %v: %w", s.dir, err, ErrStoreUnavailable)
	}
	s.opened = true
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = false
	return nil
}

func (s *FileStore) Put(ctx context.Context, h fsaccess.FileHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return errNotOpen
	}

	token, err := s.codec.EncodeHandle(h)
	if err != nil {
		return fmt.Errorf("failed to encode handle: %w", err)
	}
	data, err := json.Marshal(handleRecord{ID: PrimaryKey, Handle: token})
	if err != nil {
		return err
	}
	if err := hackpadfs.WriteFullFile(s.fs, s.recordPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write handle record: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context) (fsaccess.FileHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.opened {
		return nil, errNotOpen
	}

	data, err := hackpadfs.ReadFile(s.fs, s.recordPath())
	if errors.Is(err, gofs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read handle record: %w", err)
	}

	var rec handleRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt handle record: %w", err)
	}
	if rec.ID != PrimaryKey || rec.Handle == "" {
		return nil, nil
	}
	h, err := s.codec.DecodeHandle(rec.Handle)
	if err != nil {
		return nil, fmt.Errorf("failed to decode handle: %w", err)
	}
	return h, nil
}

func (s *FileStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return errNotOpen
	}
	err := hackpadfs.Remove(s.fs, s.recordPath())
	if err != nil && !errors.Is(err, gofs.ErrNotExist) {
		return fmt.Errorf("failed to delete handle record: %w", err)
	}
	return nil
}
