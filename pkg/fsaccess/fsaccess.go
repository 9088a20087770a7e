// Package fsaccess models user-granted persistent file handles.
//
// It mirrors the browser File System Access API: a Host offers save/open
// pickers that return FileHandles, and each handle carries a read-write
// permission that is either granted, still promptable, or denied.
// Two hosts are provided: LocalHost, backed by a hackpadfs filesystem,
// and BrowserHost (js/wasm only), backed by the real browser API.
package fsaccess

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAborted is returned when the user dismisses a picker or prompt.
	ErrAborted = errors.New("fsaccess: aborted by user")

	// ErrNotFound is returned when a handle's file no longer exists.
	ErrNotFound = errors.New("fsaccess: file not found")

	// ErrNotAllowed is returned when the host refuses an operation
	// outright (no user gesture, security policy, read-only file).
	ErrNotAllowed = errors.New("fsaccess: not allowed")

	// ErrUnsupported is returned by hosts without picker support.
	ErrUnsupported = errors.New("fsaccess: file system access unsupported")
)

// PermissionState is the host's three-valued read-write permission.
type PermissionState int

const (
	PermissionDenied PermissionState = iota
	PermissionPrompt
	PermissionGranted
)

func (p PermissionState) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionPrompt:
		return "prompt"
	default:
		return "denied"
	}
}

// ParsePermissionState maps the browser's status strings.
func ParsePermissionState(s string) (PermissionState, error) {
	switch s {
	case "granted":
		return PermissionGranted, nil
	case "prompt":
		return PermissionPrompt, nil
	case "denied":
		return PermissionDenied, nil
	}
	return PermissionDenied, fmt.Errorf("unknown permission state %q", s)
}

// FileType is one entry of a picker's type filter.
type FileType struct {
	Description string
	Accept      map[string][]string // MIME type -> extensions
}

// PickerOptions configures a save or open picker.
type PickerOptions struct {
	SuggestedName string
	Types         []FileType
}

// JSONPickerOptions returns the options used for dataset files.
func JSONPickerOptions(suggestedName string) PickerOptions {
	return PickerOptions{
		SuggestedName: suggestedName,
		Types: []FileType{{
			Description: "JSON Files",
			Accept:      map[string][]string{"application/json": {".json"}},
		}},
	}
}

// FileHandle is an opaque capability for one file.
// Handles returned by a host are comparable with ==.
type FileHandle interface {
	Name() string
	QueryPermission(ctx context.Context) (PermissionState, error)
	// RequestPermission may prompt the user.
	RequestPermission(ctx context.Context) (PermissionState, error)
	// ReadText returns the whole file. Missing files yield ErrNotFound.
	ReadText(ctx context.Context) (string, error)
	// WriteAll replaces the whole file atomically: readers observe
	// either the old or the new content.
	WriteAll(ctx context.Context, data []byte) error
	Exists(ctx context.Context) (bool, error)
}

// Host provides pickers for new and existing files.
type Host interface {
	SupportsFileSystemAccess() bool
	ShowSaveFilePicker(ctx context.Context, opts PickerOptions) (FileHandle, error)
	ShowOpenFilePicker(ctx context.Context, opts PickerOptions) (FileHandle, error)
}

// HandleCodec converts handles to and from a durable text token, for
// hosts whose handles can be stored outside the host itself.
type HandleCodec interface {
	EncodeHandle(h FileHandle) (string, error)
	DecodeHandle(token string) (FileHandle, error)
}

// Locator is implemented by hosts that can name a handle's file on the
// local disk, which makes it watchable.
type Locator interface {
	OSPath(h FileHandle) (string, bool)
}

// Supported reports whether h can hand out persistent file handles.
func Supported(h Host) bool {
	return h != nil && h.SupportsFileSystemAccess()
}
