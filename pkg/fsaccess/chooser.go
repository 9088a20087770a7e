package fsaccess

import (
	"context"
	"sync"
)

// Chooser stands in for the browser's native dialogs on LocalHost.
// Implementations return ErrAborted when the user backs out.
type Chooser interface {
	ChooseSavePath(ctx context.Context, opts PickerOptions) (string, error)
	ChooseOpenPath(ctx context.Context, opts PickerOptions) (string, error)
	ConfirmPermission(ctx context.Context, name string) (bool, error)
}

// StaticChooser answers every dialog from fixed values. It is used for
// non-interactive runs and tests. Empty paths abort.
type StaticChooser struct {
	mu        sync.Mutex
	SavePath  string
	OpenPath  string
	Allow     bool
	Confirmed []string
}

func (c *StaticChooser) ChooseSavePath(ctx context.Context, opts PickerOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SavePath == "" {
		return "", ErrAborted
	}
	return c.SavePath, nil
}

func (c *StaticChooser) ChooseOpenPath(ctx context.Context, opts PickerOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.OpenPath == "" {
		return "", ErrAborted
	}
	return c.OpenPath, nil
}

func (c *StaticChooser) ConfirmPermission(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Confirmed = append(c.Confirmed, name)
	return c.Allow, nil
}
