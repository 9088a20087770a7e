package filesync

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kittclouds/garagebook/pkg/fsaccess"
)

// DefaultWatchDebounce coalesces the event bursts editors and atomic
// savers produce.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watcher reports when the connected file may have been moved or
// deleted. It watches the parent directory, since watches on a file
// itself are lost when the file is replaced.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	debounce time.Duration
	onGone   func()
	log      *zap.SugaredLogger

	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
}

// WatchFile starts watching path. onGone runs on the watcher goroutine
// after a debounced remove or rename of path; it should confirm the
// absence before acting.
func WatchFile(path string, debounce time.Duration, log *zap.SugaredLogger, onGone func()) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	path = filepath.Clean(path)
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		fsw:      fsw,
		path:     path,
		debounce: debounce,
		onGone:   onGone,
		log:      log,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Path is the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Close stops the watcher without waiting for an onGone call in flight,
// so onGone may call it. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}

// Wait blocks until the watcher goroutine has exited, including any
// onGone call it was running. Call it after Close, never from onGone.
func (w *Watcher) Wait() {
	<-w.exited
}

func (w *Watcher) loop() {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		close(w.exited)
	}()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debugw("file event", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warnw("watcher error", "error", err)
		case <-fire:
			fire = nil
			select {
			case <-w.done:
				return
			default:
			}
			w.onGone()
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if fsaccess.IsTempFile(ev.Name) || filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
