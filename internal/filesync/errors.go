package filesync

import (
	"errors"

	"github.com/kittclouds/garagebook/internal/store"
)

var (
	// ErrCapabilityUnsupported means the host cannot hand out persistent
	// file handles. The app runs in memory-only mode.
	ErrCapabilityUnsupported = errors.New("persistent file access unsupported")

	// ErrStoreUnavailable means the handle store could not be opened.
	// It is treated as "no remembered file".
	ErrStoreUnavailable = store.ErrStoreUnavailable

	// ErrPermissionDenied means the user declined or revoked access.
	ErrPermissionDenied = errors.New("permission to the data file was denied")

	// ErrHandleNotFound means the connected file was moved or deleted.
	ErrHandleNotFound = errors.New("data file no longer exists")

	// ErrMalformedContent means the file is not a dataset document.
	ErrMalformedContent = errors.New("data file content is malformed")
)
