package fsaccess

import (
	"context"
	"errors"
	"fmt"
	gofs "io/fs"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hack-pad/hackpadfs"
)

// LocalHost serves file handles from a hackpadfs filesystem. Dialogs are
// delegated to a Chooser. Permission grants live for the lifetime of the
// host, so a handle restored from a HandleCodec starts out promptable,
// the same way a browser treats a handle remembered across sessions.
type LocalHost struct {
	fs        hackpadfs.FS
	chooser   Chooser
	autoGrant bool

	mu      sync.Mutex
	grants  map[string]PermissionState
	handles map[string]*localHandle
}

// LocalOption configures a LocalHost.
type LocalOption func(*LocalHost)

// WithAutoGrant treats every writable file as already granted, which
// skips the permission confirmation for restored handles.
func WithAutoGrant(enabled bool) LocalOption {
	return func(h *LocalHost) { h.autoGrant = enabled }
}

// NewLocalHost creates a host over fsys. A nil chooser makes the host
// report no file system access support.
func NewLocalHost(fsys hackpadfs.FS, chooser Chooser, opts ...LocalOption) *LocalHost {
	h := &LocalHost{
		fs:      fsys,
		chooser: chooser,
		grants:  make(map[string]PermissionState),
		handles: make(map[string]*localHandle),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *LocalHost) SupportsFileSystemAccess() bool {
	return h.fs != nil && h.chooser != nil
}

// ShowSaveFilePicker asks for a destination and creates the file if it
// does not exist yet. The returned handle is granted for this session.
func (h *LocalHost) ShowSaveFilePicker(ctx context.Context, opts PickerOptions) (FileHandle, error) {
	if !h.SupportsFileSystemAccess() {
		return nil, ErrUnsupported
	}
	p, err := h.chooser.ChooseSavePath(ctx, opts)
	if err != nil {
		return nil, err
	}
	name, err := h.resolve(withExtension(p, opts))
	if err != nil {
		return nil, err
	}

	if _, err := hackpadfs.Stat(h.fs, name); errors.Is(err, gofs.ErrNotExist) {
		if dir := path.Dir(name); dir != "." {
			if err := hackpadfs.MkdirAll(h.fs, dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating %s: %w", dir, err)
			}
		}
		if err := hackpadfs.WriteFullFile(h.fs, name, nil, 0o644); err != nil {
			return nil, fmt.Errorf("creating %s: %w", name, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("checking %s: %w", name, err)
	}

	hd := h.handle(name)
	h.setGrant(name, PermissionGranted)
	return hd, nil
}

// ShowOpenFilePicker asks for an existing file. Like the browser, an
// opened file still needs a readwrite grant before it can be written.
func (h *LocalHost) ShowOpenFilePicker(ctx context.Context, opts PickerOptions) (FileHandle, error) {
	if !h.SupportsFileSystemAccess() {
		return nil, ErrUnsupported
	}
	p, err := h.chooser.ChooseOpenPath(ctx, opts)
	if err != nil {
		return nil, err
	}
	name, err := h.resolve(p)
	if err != nil {
		return nil, err
	}
	info, err := hackpadfs.Stat(h.fs, name)
	if errors.Is(err, gofs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", p, ErrNotAllowed)
	}
	return h.handle(name), nil
}

// EncodeHandle implements HandleCodec.
func (h *LocalHost) EncodeHandle(fh FileHandle) (string, error) {
	lh, ok := fh.(*localHandle)
	if !ok || lh.host != h {
		return "", fmt.Errorf("handle %T does not belong to this host", fh)
	}
	return lh.name, nil
}

// DecodeHandle implements HandleCodec.
func (h *LocalHost) DecodeHandle(token string) (FileHandle, error) {
	if !gofs.ValidPath(token) || token == "." {
		return nil, fmt.Errorf("invalid handle token %q", token)
	}
	return h.handle(token), nil
}

// OSPath implements Locator for filesystems rooted on the OS disk.
func (h *LocalHost) OSPath(fh FileHandle) (string, bool) {
	lh, ok := fh.(*localHandle)
	if !ok || lh.host != h {
		return "", false
	}
	conv, ok := h.fs.(interface {
		ToOSPath(string) (string, error)
	})
	if !ok {
		return "", false
	}
	p, err := conv.ToOSPath(lh.name)
	if err != nil {
		return "", false
	}
	return p, true
}

// handle returns the canonical handle for name so equal files compare equal.
func (h *LocalHost) handle(name string) *localHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	if hd, ok := h.handles[name]; ok {
		return hd
	}
	hd := &localHandle{host: h, name: name}
	h.handles[name] = hd
	return hd
}

func (h *LocalHost) grant(name string) (PermissionState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.grants[name]
	return p, ok
}

func (h *LocalHost) setGrant(name string, p PermissionState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.grants[name] = p
}

// resolve turns a chooser path into a hackpadfs path.
func (h *LocalHost) resolve(p string) (string, error) {
	if conv, ok := h.fs.(interface {
		FromOSPath(string) (string, error)
	}); ok {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", err
		}
		return conv.FromOSPath(abs)
	}
	name := strings.TrimPrefix(path.Clean(filepath.ToSlash(p)), "/")
	if !gofs.ValidPath(name) || name == "." {
		return "", fmt.Errorf("invalid path %q: %w", p, ErrNotAllowed)
	}
	return name, nil
}

// withExtension appends the first accepted extension when p has none,
// as the browser save dialog does.
func withExtension(p string, opts PickerOptions) string {
	if path.Ext(filepath.ToSlash(p)) != "" {
		return p
	}
	for _, t := range opts.Types {
		for _, exts := range t.Accept {
			if len(exts) > 0 {
				return p + exts[0]
			}
		}
	}
	return p
}

// =============================================================================
// Handle
// =============================================================================

type localHandle struct {
	host *LocalHost
	name string
}

func (f *localHandle) Name() string {
	return path.Base(f.name)
}

func (f *localHandle) QueryPermission(ctx context.Context) (PermissionState, error) {
	if err := ctx.Err(); err != nil {
		return PermissionDenied, err
	}
	info, err := hackpadfs.Stat(f.host.fs, f.name)
	if err != nil && !errors.Is(err, gofs.ErrNotExist) {
		return PermissionDenied, err
	}
	if err == nil && info.Mode().Perm()&0o200 == 0 {
		return PermissionDenied, nil
	}
	if p, ok := f.host.grant(f.name); ok {
		return p, nil
	}
	if f.host.autoGrant {
		return PermissionGranted, nil
	}
	return PermissionPrompt, nil
}

func (f *localHandle) RequestPermission(ctx context.Context) (PermissionState, error) {
	p, err := f.QueryPermission(ctx)
	if err != nil || p != PermissionPrompt {
		return p, err
	}
	ok, err := f.host.chooser.ConfirmPermission(ctx, f.Name())
	if errors.Is(err, ErrAborted) {
		return PermissionPrompt, nil
	}
	if err != nil {
		return PermissionDenied, err
	}
	if ok {
		p = PermissionGranted
	} else {
		p = PermissionDenied
	}
	f.host.setGrant(f.name, p)
	return p, nil
}

func (f *localHandle) ReadText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := hackpadfs.ReadFile(f.host.fs, f.name)
	if errors.Is(err, gofs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", f.name, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteAll writes to a sibling temp file and renames it over the target.
// The target must exist; the save picker creates it.
func (f *localHandle) WriteAll(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var perm gofs.FileMode
	info, err := hackpadfs.Stat(f.host.fs, f.name)
	switch {
	case err == nil:
		if info.Mode().Perm()&0o200 == 0 {
			return fmt.Errorf("%s is read-only: %w", f.name, ErrNotAllowed)
		}
		perm = info.Mode().Perm()
	case errors.Is(err, gofs.ErrNotExist):
		return fmt.Errorf("%s: %w", f.name, ErrNotFound)
	default:
		return err
	}

	tmp := path.Join(path.Dir(f.name), "."+path.Base(f.name)+".tmp")
	if err := hackpadfs.WriteFullFile(f.host.fs, tmp, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := hackpadfs.Rename(f.host.fs, tmp, f.name); err != nil {
		_ = hackpadfs.Remove(f.host.fs, tmp)
		return fmt.Errorf("replacing %s: %w", f.name, err)
	}
	return nil
}

func (f *localHandle) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := hackpadfs.Stat(f.host.fs, f.name)
	if errors.Is(err, gofs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// IsTempFile reports whether p is one of WriteAll's temp files.
func IsTempFile(p string) bool {
	base := filepath.Base(p)
	return strings.HasPrefix(base, ".") && strings.HasSuffix(base, ".tmp")
}
