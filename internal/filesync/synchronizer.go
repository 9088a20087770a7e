// Package filesync keeps the shop dataset in sync with one user-chosen
// file and remembers that file across runs.
//
// Reading a remembered file needs a fresh user gesture, so Initialize
// only restores the connection. Callers load content with
// LoadConnectedFileContent from a gesture handler and call Persist after
// every mutation.
package filesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kittclouds/garagebook/internal/dataset"
	"github.com/kittclouds/garagebook/internal/store"
	"github.com/kittclouds/garagebook/pkg/fsaccess"
)

// DefaultFileName is suggested by the save picker.
const DefaultFileName = "mechanic-shop-data.json"

// Synchronizer reconciles an in-memory dataset with the connected file.
type Synchronizer struct {
	host  fsaccess.Host
	store store.HandleStore
	conn  *Connection
	gate  *Gate
	log   *zap.SugaredLogger

	fileName      string
	watchEnabled  bool
	watchDebounce time.Duration

	// writeMu serializes Persist; a host write stream must not be shared.
	writeMu sync.Mutex

	mu        sync.Mutex
	supported bool
	storeOpen bool
	watcher   *Watcher
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger. Nil means no logging.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Synchronizer) {
		if log != nil {
			s.log = log
		}
	}
}

// WithFileName sets the name suggested by the save picker.
func WithFileName(name string) Option {
	return func(s *Synchronizer) {
		if name != "" {
			s.fileName = name
		}
	}
}

// WithWatch enables the file watcher on hosts that implement
// fsaccess.Locator.
func WithWatch(enabled bool, debounce time.Duration) Option {
	return func(s *Synchronizer) {
		s.watchEnabled = enabled
		s.watchDebounce = debounce
	}
}

// New creates a Synchronizer. A nil store disables handle memory.
func New(host fsaccess.Host, st store.HandleStore, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		host:     host,
		store:    st,
		conn:     NewConnection(),
		log:      zap.NewNop().Sugar(),
		fileName: DefaultFileName,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.gate = NewGate(s.conn, s.log)
	s.supported = fsaccess.Supported(host)
	return s
}

// =============================================================================
// Queries
// =============================================================================

// IsConnected reports whether a file handle is held.
func (s *Synchronizer) IsConnected() bool {
	return s.conn.IsConnected()
}

// SupportsPersistence reports whether the host can persist to a file.
func (s *Synchronizer) SupportsPersistence() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supported
}

func (s *Synchronizer) State() State {
	return s.conn.State()
}

// FileName is the connected file's name, or "".
func (s *Synchronizer) FileName() string {
	if h := s.conn.Handle(); h != nil {
		return h.Name()
	}
	return ""
}

// Connection exposes the connection for inspection.
func (s *Synchronizer) Connection() *Connection {
	return s.conn
}

// Close stops the watcher, waits for a disconnect it may be handling,
// and closes the handle store.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w != nil {
		w.Close()
		w.Wait()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil || !s.storeOpen {
		return nil
	}
	s.storeOpen = false
	return s.store.Close()
}

// =============================================================================
// Operations
// =============================================================================

// Initialize restores the remembered handle without prompting. It always
// returns an empty dataset: content is read only by an explicit load.
func (s *Synchronizer) Initialize(ctx context.Context) dataset.Dataset {
	if !s.SupportsPersistence() {
		s.log.Infow("persistent file access unsupported, running in memory only")
		return dataset.Empty()
	}
	if !s.openStore(ctx) {
		return dataset.Empty()
	}

	h, err := s.store.Get(ctx)
	if err != nil {
		s.log.Warnw("could not read remembered file handle", "error", err)
		return dataset.Empty()
	}
	if h == nil {
		s.log.Debugw("no remembered file")
		return dataset.Empty()
	}

	s.conn.Restore(h)
	if s.gate.CheckSilently(ctx, h) {
		s.log.Infow("reconnected to file", "file", h.Name())
		s.startWatch(h)
	} else {
		s.afterRefusal(ctx, h)
	}
	return dataset.Empty()
}

// LoadConnectedFileContent reads the connected file. It must run inside a
// user gesture because it may prompt for permission.
func (s *Synchronizer) LoadConnectedFileContent(ctx context.Context) (dataset.Dataset, error) {
	h := s.conn.Handle()
	if h == nil {
		return dataset.Empty(), nil
	}
	if !s.gate.Ensure(ctx, h) {
		if s.afterRefusal(ctx, h) {
			return dataset.Empty(), nil
		}
		return dataset.Empty(), ErrPermissionDenied
	}

	text, err := h.ReadText(ctx)
	if errors.Is(err, fsaccess.ErrNotFound) {
		s.handleNotFound(ctx, h)
		return dataset.Empty(), nil
	}
	if err != nil {
		return dataset.Empty(), fmt.Errorf("reading %s: %w", h.Name(), err)
	}

	d, err := dataset.Decode(text)
	if err != nil {
		// Unparseable content starts fresh instead of failing. If the file
		// was only truncated, the next Persist overwrites what is left.
		s.log.Warnw("data file is malformed, starting with an empty dataset", "file", h.Name(), "error", err)
		return dataset.Empty(), nil
	}
	s.startWatch(h)
	return d, nil
}

// SelectNewFile lets the user pick where to save and connects to that
// file. Cancelling returns false without logging an error.
func (s *Synchronizer) SelectNewFile(ctx context.Context) bool {
	if !s.SupportsPersistence() {
		s.log.Warnw("cannot select a file", "error", ErrCapabilityUnsupported)
		return false
	}
	h, err := s.host.ShowSaveFilePicker(ctx, fsaccess.JSONPickerOptions(s.fileName))
	if errors.Is(err, fsaccess.ErrAborted) {
		return false
	}
	if err != nil {
		s.log.Errorw("save picker failed", "error", err)
		return false
	}
	s.adopt(ctx, h)
	return true
}

// LoadFromExistingFile lets the user pick an existing file, parses it and
// connects to it. Cancelling returns nil, nil. Unlike the passive load,
// malformed content is an error here.
func (s *Synchronizer) LoadFromExistingFile(ctx context.Context) (*dataset.Dataset, error) {
	if !s.SupportsPersistence() {
		return nil, ErrCapabilityUnsupported
	}
	h, err := s.host.ShowOpenFilePicker(ctx, fsaccess.JSONPickerOptions(""))
	if errors.Is(err, fsaccess.ErrAborted) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	text, err := h.ReadText(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", h.Name(), err)
	}
	d, err := dataset.DecodeStrict(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", h.Name(), ErrMalformedContent, err)
	}

	s.adopt(ctx, h)
	return &d, nil
}

// Persist replaces the connected file's content with d. Without a
// connection, or when permission is refused, it does nothing.
func (s *Synchronizer) Persist(ctx context.Context, d dataset.Dataset) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	h := s.conn.Handle()
	if h == nil {
		return nil
	}
	if !s.gate.Ensure(ctx, h) {
		if !s.afterRefusal(ctx, h) {
			s.log.Errorw("permission refused, changes were not saved", "file", h.Name())
		}
		return nil
	}

	data, err := dataset.Encode(d)
	if err != nil {
		return err
	}
	err = h.WriteAll(ctx, data)
	if errors.Is(err, fsaccess.ErrNotFound) {
		s.handleNotFound(ctx, h)
		return nil
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", h.Name(), err)
	}
	s.log.Debugw("saved", "file", h.Name(), "vehicles", len(d.Vehicles), "services", len(d.Services))
	return nil
}

// =============================================================================
// Internals
// =============================================================================

func (s *Synchronizer) openStore(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return false
	}
	if s.storeOpen {
		return true
	}
	if err := s.store.Open(ctx); err != nil {
		s.log.Warnw("handle store unavailable, file will not be remembered", "error", err)
		return false
	}
	s.storeOpen = true
	return true
}

// adopt makes h the connection and remembers it.
func (s *Synchronizer) adopt(ctx context.Context, h fsaccess.FileHandle) {
	s.conn.Connect(h)
	s.log.Infow("connected to file", "file", h.Name())
	if s.openStore(ctx) {
		if err := s.store.Put(ctx, h); err != nil {
			s.log.Warnw("could not remember file handle", "error", err)
		}
	}
	s.startWatch(h)
}

// afterRefusal finishes a failed gate check. It reports whether the
// handle was evicted because its file is gone.
func (s *Synchronizer) afterRefusal(ctx context.Context, h fsaccess.FileHandle) bool {
	snap := s.conn.Snapshot()
	if snap.Handle == h {
		// Deferred, still pending.
		return false
	}
	s.stopWatch()
	if errors.Is(snap.Reason, ErrHandleNotFound) {
		s.purge(ctx)
		return true
	}
	return false
}

// handleNotFound forgets h, since it can never be restored, and then
// evicts it. The record is gone by the time IsConnected reports false.
func (s *Synchronizer) handleNotFound(ctx context.Context, h fsaccess.FileHandle) {
	if s.conn.Handle() != h {
		return
	}
	s.stopWatch()
	s.purge(ctx)
	if !s.conn.Evict(h, ErrHandleNotFound) {
		return
	}
	s.log.Warnw("data file no longer exists, disconnected", "file", h.Name())
}

func (s *Synchronizer) purge(ctx context.Context) {
	if !s.openStore(ctx) {
		return
	}
	if err := s.store.Delete(ctx); err != nil {
		s.log.Warnw("could not forget file handle", "error", err)
	}
}

func (s *Synchronizer) startWatch(h fsaccess.FileHandle) {
	if !s.watchEnabled {
		return
	}
	loc, ok := s.host.(fsaccess.Locator)
	if !ok {
		return
	}
	p, ok := loc.OSPath(h)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		if s.watcher.Path() == p {
			return
		}
		s.watcher.Close()
		s.watcher = nil
	}
	w, err := WatchFile(p, s.watchDebounce, s.log, func() { s.confirmGone(h) })
	if err != nil {
		s.log.Warnw("could not watch data file", "file", p, "error", err)
		return
	}
	s.watcher = w
}

func (s *Synchronizer) stopWatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
}

// confirmGone runs on the watcher goroutine after the file was removed
// or renamed. Renames that land back on the same path are ignored.
func (s *Synchronizer) confirmGone(h fsaccess.FileHandle) {
	ctx := context.Background()
	ok, err := h.Exists(ctx)
	if err != nil {
		s.log.Warnw("could not check data file", "file", h.Name(), "error", err)
		return
	}
	if !ok {
		s.handleNotFound(ctx, h)
	}
}
