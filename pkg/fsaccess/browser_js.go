//go:build js && wasm

package fsaccess

import (
	"context"
	"errors"
	"fmt"
	"syscall/js"
)

// BrowserHost drives the browser's File System Access API.
type BrowserHost struct {
	window js.Value
}

// NewBrowserHost binds to the global window object.
func NewBrowserHost() *BrowserHost {
	return &BrowserHost{window: js.Global()}
}

func (b *BrowserHost) SupportsFileSystemAccess() bool {
	return b.window.Get("showSaveFilePicker").Type() == js.TypeFunction
}

func (b *BrowserHost) ShowSaveFilePicker(ctx context.Context, opts PickerOptions) (FileHandle, error) {
	if !b.SupportsFileSystemAccess() {
		return nil, ErrUnsupported
	}
	v, err := Await(ctx, b.window.Call("showSaveFilePicker", pickerOptionsValue(opts, true)))
	if err != nil {
		return nil, err
	}
	return &browserHandle{v: v}, nil
}

func (b *BrowserHost) ShowOpenFilePicker(ctx context.Context, opts PickerOptions) (FileHandle, error) {
	if !b.SupportsFileSystemAccess() {
		return nil, ErrUnsupported
	}
	v, err := Await(ctx, b.window.Call("showOpenFilePicker", pickerOptionsValue(opts, false)))
	if err != nil {
		return nil, err
	}
	if v.Length() == 0 {
		return nil, ErrAborted
	}
	return &browserHandle{v: v.Index(0)}, nil
}

func pickerOptionsValue(opts PickerOptions, save bool) js.Value {
	types := make([]any, 0, len(opts.Types))
	for _, t := range opts.Types {
		accept := make(map[string]any, len(t.Accept))
		for mime, exts := range t.Accept {
			list := make([]any, len(exts))
			for i, e := range exts {
				list[i] = e
			}
			accept[mime] = list
		}
		types = append(types, map[string]any{
			"description": t.Description,
			"accept":      accept,
		})
	}
	o := map[string]any{"types": types}
	if save && opts.SuggestedName != "" {
		o["suggestedName"] = opts.SuggestedName
	}
	return js.ValueOf(o)
}

// =============================================================================
// Handle
// =============================================================================

type browserHandle struct {
	v js.Value
}

// NewBrowserHandle wraps a FileSystemFileHandle, e.g. one read back
// from IndexedDB.
func NewBrowserHandle(v js.Value) FileHandle {
	return &browserHandle{v: v}
}

// BrowserHandleValue returns the underlying FileSystemFileHandle.
func BrowserHandleValue(h FileHandle) (js.Value, bool) {
	bh, ok := h.(*browserHandle)
	if !ok {
		return js.Undefined(), false
	}
	return bh.v, true
}

func (h *browserHandle) Name() string {
	return h.v.Get("name").String()
}

func readWrite() js.Value {
	return js.ValueOf(map[string]any{"mode": "readwrite"})
}

func (h *browserHandle) QueryPermission(ctx context.Context) (PermissionState, error) {
	v, err := Await(ctx, h.v.Call("queryPermission", readWrite()))
	if err != nil {
		return PermissionDenied, err
	}
	return ParsePermissionState(v.String())
}

func (h *browserHandle) RequestPermission(ctx context.Context) (PermissionState, error) {
	v, err := Await(ctx, h.v.Call("requestPermission", readWrite()))
	if err != nil {
		return PermissionDenied, err
	}
	return ParsePermissionState(v.String())
}

func (h *browserHandle) ReadText(ctx context.Context) (string, error) {
	file, err := Await(ctx, h.v.Call("getFile"))
	if err != nil {
		return "", err
	}
	text, err := Await(ctx, file.Call("text"))
	if err != nil {
		return "", err
	}
	return text.String(), nil
}

// WriteAll uses createWritable, which stages writes in a swap file and
// swaps it in on close.
func (h *browserHandle) WriteAll(ctx context.Context, data []byte) error {
	w, err := Await(ctx, h.v.Call("createWritable"))
	if err != nil {
		return err
	}
	if _, err := Await(ctx, w.Call("write", string(data))); err != nil {
		_, _ = Await(ctx, w.Call("abort"))
		return err
	}
	_, err = Await(ctx, w.Call("close"))
	return err
}

func (h *browserHandle) Exists(ctx context.Context) (bool, error) {
	_, err := Await(ctx, h.v.Call("getFile"))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// =============================================================================
// Promises
// =============================================================================

// HostError is a DOMException that has no sentinel mapping.
type HostError struct {
	Name    string
	Message string
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Await blocks until promise settles. It must not be called from the
// JS event loop goroutine.
func Await(ctx context.Context, promise js.Value) (js.Value, error) {
	type settled struct {
		v   js.Value
		err error
	}
	done := make(chan settled, 1)

	onResolve := js.FuncOf(func(this js.Value, args []js.Value) any {
		v := js.Undefined()
		if len(args) > 0 {
			v = args[0]
		}
		done <- settled{v: v}
		return nil
	})
	onReject := js.FuncOf(func(this js.Value, args []js.Value) any {
		reason := js.Undefined()
		if len(args) > 0 {
			reason = args[0]
		}
		done <- settled{err: jsError(reason)}
		return nil
	})
	promise.Call("then", onResolve, onReject)

	select {
	case s := <-done:
		onResolve.Release()
		onReject.Release()
		return s.v, s.err
	case <-ctx.Done():
		// The callbacks stay registered; the promise may still settle.
		return js.Undefined(), ctx.Err()
	}
}

func jsError(v js.Value) error {
	if v.Type() != js.TypeObject {
		return &HostError{Name: "Error", Message: v.String()}
	}
	name := v.Get("name").String()
	msg := v.Get("message").String()
	switch name {
	case "AbortError":
		return ErrAborted
	case "NotFoundError":
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	case "NotAllowedError", "SecurityError":
		return fmt.Errorf("%s: %w", msg, ErrNotAllowed)
	}
	return &HostError{Name: name, Message: msg}
}
