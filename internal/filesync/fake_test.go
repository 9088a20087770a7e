package filesync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kittclouds/garagebook/internal/store"
	"github.com/kittclouds/garagebook/pkg/fsaccess"
)

// fakeFile is a scriptable FileHandle.
type fakeFile struct {
	mu            sync.Mutex
	name          string
	text          string
	missing       bool
	perm          fsaccess.PermissionState
	requestResult fsaccess.PermissionState
	queryErr      error
	writeErr      error
	writeDelay    time.Duration

	queries  int
	requests int
	reads    int
	writes   int
	writing  bool
	overlap  bool
}

func newFakeFile(name, text string, perm fsaccess.PermissionState) *fakeFile {
	return &fakeFile{name: name, text: text, perm: perm, requestResult: fsaccess.PermissionGranted}
}

func (f *fakeFile) Name() string { return f.name }

func (f *fakeFile) QueryPermission(ctx context.Context) (fsaccess.PermissionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.queryErr != nil {
		return fsaccess.PermissionDenied, f.queryErr
	}
	return f.perm, nil
}

func (f *fakeFile) RequestPermission(ctx context.Context) (fsaccess.PermissionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	if f.perm == fsaccess.PermissionPrompt {
		f.perm = f.requestResult
	}
	return f.perm, nil
}

func (f *fakeFile) ReadText(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.missing {
		return "", fsaccess.ErrNotFound
	}
	return f.text, nil
}

func (f *fakeFile) WriteAll(ctx context.Context, data []byte) error {
	f.mu.Lock()
	if f.writing {
		f.overlap = true
	}
	f.writing = true
	delay := f.writeDelay
	f.mu.Unlock()

	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.writing = false
	f.writes++
	if f.missing {
		return fsaccess.ErrNotFound
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	f.text = string(data)
	return nil
}

func (f *fakeFile) Exists(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.missing, nil
}

func (f *fakeFile) set(fn func(f *fakeFile)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeFile) content() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text
}

// fakeHost hands out preset files from its pickers. A nil file aborts.
type fakeHost struct {
	unsupported bool
	save        *fakeFile
	open        *fakeFile
	saveErr     error
	openErr     error
	saveOpts    fsaccess.PickerOptions
}

func (h *fakeHost) SupportsFileSystemAccess() bool { return !h.unsupported }

func (h *fakeHost) ShowSaveFilePicker(ctx context.Context, opts fsaccess.PickerOptions) (fsaccess.FileHandle, error) {
	h.saveOpts = opts
	if h.saveErr != nil {
		return nil, h.saveErr
	}
	if h.save == nil {
		return nil, fsaccess.ErrAborted
	}
	return h.save, nil
}

func (h *fakeHost) ShowOpenFilePicker(ctx context.Context, opts fsaccess.PickerOptions) (fsaccess.FileHandle, error) {
	if h.openErr != nil {
		return nil, h.openErr
	}
	if h.open == nil {
		return nil, fsaccess.ErrAborted
	}
	return h.open, nil
}

// brokenStore fails to open, like a browser with storage disabled.
type brokenStore struct{ store.MemStore }

func (b *brokenStore) Open(ctx context.Context) error {
	return errors.Join(store.ErrStoreUnavailable, errors.New("quota exceeded"))
}

// deleteHookStore runs onDelete before forgetting the record.
type deleteHookStore struct {
	*store.MemStore
	onDelete func()
}

func (d *deleteHookStore) Delete(ctx context.Context) error {
	d.onDelete()
	return d.MemStore.Delete(ctx)
}

// rememberedStore returns an opened MemStore holding h.
func rememberedStore(h fsaccess.FileHandle) *store.MemStore {
	s := store.NewMemStore()
	ctx := context.Background()
	_ = s.Open(ctx)
	_ = s.Put(ctx, h)
	return s
}

func storedHandle(s *store.MemStore) fsaccess.FileHandle {
	ctx := context.Background()
	_ = s.Open(ctx)
	h, _ := s.Get(ctx)
	return h
}
