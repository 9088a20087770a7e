//go:build js && wasm

package store

import (
	"context"
	"fmt"
	"sync"
	"syscall/js"

	"github.com/kittclouds/garagebook/pkg/fsaccess"
)

const (
	idbName    = "MechanicShopDB"
	idbVersion = 1
	idbObjects = "fileHandles"
)

// IDBStore keeps the handle in IndexedDB. Browser handles are structured
// cloneable, so the FileSystemFileHandle itself is stored.
type IDBStore struct {
	mu sync.Mutex
	db js.Value
}

// NewIDBStore creates an unopened store.
func NewIDBStore() *IDBStore {
	return &IDBStore{db: js.Undefined()}
}

func (s *IDBStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.db.IsUndefined() {
		return nil
	}

	factory := js.Global().Get("indexedDB")
	if factory.IsUndefined() || factory.IsNull() {
		return fmt.Errorf("indexedDB missing: %w", ErrStoreUnavailable)
	}

	req := factory.Call("open", idbName, idbVersion)
	upgrade := js.FuncOf(func(this js.Value, args []js.Value) any {
		db := req.Get("result")
		if !db.Get("objectStoreNames").Call("contains", idbObjects).Bool() {
			db.Call("createObjectStore", idbObjects, map[string]any{"keyPath": "id"})
		}
		return nil
	})
	defer upgrade.Release()
	req.Set("onupgradeneeded", upgrade)

	db, err := awaitRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("opening %s: %v: %w", idbName, err, ErrStoreUnavailable)
	}
	s.db = db
	return nil
}

func (s *IDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.db.IsUndefined() {
		s.db.Call("close")
		s.db = js.Undefined()
	}
	return nil
}

func (s *IDBStore) objects(mode string) (js.Value, error) {
	if s.db.IsUndefined() {
		return js.Undefined(), errNotOpen
	}
	tx := s.db.Call("transaction", idbObjects, mode)
	return tx.Call("objectStore", idbObjects), nil
}

func (s *IDBStore) Put(ctx context.Context, h fsaccess.FileHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := fsaccess.BrowserHandleValue(h)
	if !ok {
		return fmt.Errorf("handle %T is not a browser handle", h)
	}
	objects, err := s.objects("readwrite")
	if err != nil {
		return err
	}
	record := js.Global().Get("Object").New()
	record.Set("id", PrimaryKey)
	record.Set("handle", v)
	if _, err := awaitRequest(ctx, objects.Call("put", record)); err != nil {
		return fmt.Errorf("failed to put handle: %w", err)
	}
	return nil
}

func (s *IDBStore) Get(ctx context.Context) (fsaccess.FileHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	objects, err := s.objects("readonly")
	if err != nil {
		return nil, err
	}
	rec, err := awaitRequest(ctx, objects.Call("get", PrimaryKey))
	if err != nil {
		return nil, fmt.Errorf("failed to get handle: %w", err)
	}
	if rec.IsUndefined() || rec.IsNull() {
		return nil, nil
	}
	v := rec.Get("handle")
	if v.IsUndefined() || v.IsNull() {
		return nil, nil
	}
	return fsaccess.NewBrowserHandle(v), nil
}

func (s *IDBStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	objects, err := s.objects("readwrite")
	if err != nil {
		return err
	}
	if _, err := awaitRequest(ctx, objects.Call("delete", PrimaryKey)); err != nil {
		return fmt.Errorf("failed to delete handle: %w", err)
	}
	return nil
}

// awaitRequest waits for an IDBRequest to fire success or error.
func awaitRequest(ctx context.Context, req js.Value) (js.Value, error) {
	type settled struct {
		v   js.Value
		err error
	}
	done := make(chan settled, 1)

	onSuccess := js.FuncOf(func(this js.Value, args []js.Value) any {
		done <- settled{v: req.Get("result")}
		return nil
	})
	onError := js.FuncOf(func(this js.Value, args []js.Value) any {
		msg := "request failed"
		if e := req.Get("error"); !e.IsNull() && !e.IsUndefined() {
			msg = e.Get("name").String() + ": " + e.Get("message").String()
		}
		done <- settled{err: fmt.Errorf("indexeddb: %s", msg)}
		return nil
	})
	req.Set("onsuccess", onSuccess)
	req.Set("onerror", onError)

	select {
	case s := <-done:
		onSuccess.Release()
		onError.Release()
		return s.v, s.err
	case <-ctx.Done():
		return js.Undefined(), ctx.Err()
	}
}
