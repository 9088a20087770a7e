package filesync

import (
	"errors"
	"sync"

	"github.com/kittclouds/garagebook/pkg/fsaccess"
)

// State is the lifecycle of the file connection.
type State int

const (
	// StateUnconnected: no handle.
	StateUnconnected State = iota
	// StateConnected: a handle with a granted (or freshly adopted) permission.
	StateConnected
	// StatePermissionPending: a restored handle that still needs a user
	// gesture before it can be used.
	StatePermissionPending
	// StatePermissionDenied: the last handle was evicted for a denial.
	// No handle is held.
	StatePermissionDenied
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StatePermissionPending:
		return "permission-pending"
	case StatePermissionDenied:
		return "permission-denied"
	default:
		return "unconnected"
	}
}

// Snapshot is a consistent view of a Connection.
type Snapshot struct {
	State  State
	Handle fsaccess.FileHandle
	// Reason is why the last handle was evicted, if it was.
	Reason error
}

// Connection holds the single active file handle. It is owned by one
// Synchronizer and safe for concurrent use.
type Connection struct {
	mu     sync.RWMutex
	state  State
	handle fsaccess.FileHandle
	reason error
}

// NewConnection returns an unconnected Connection.
func NewConnection() *Connection {
	return &Connection{}
}

// Connect adopts h as the connected file, replacing any previous one.
func (c *Connection) Connect(h fsaccess.FileHandle) {
	c.set(StateConnected, h, nil)
}

// Restore adopts h as a remembered handle awaiting a permission check.
func (c *Connection) Restore(h fsaccess.FileHandle) {
	c.set(StatePermissionPending, h, nil)
}

// MarkGranted promotes h to connected if it is still the current handle.
func (c *Connection) MarkGranted(h fsaccess.FileHandle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h == nil || c.handle != h {
		return false
	}
	c.state = StateConnected
	return true
}

// Evict drops h if it is still the current handle. It reports whether
// anything was dropped, so a stale eviction never clobbers a newer file.
func (c *Connection) Evict(h fsaccess.FileHandle, reason error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h == nil || c.handle != h {
		return false
	}
	c.handle = nil
	c.reason = reason
	if errors.Is(reason, ErrPermissionDenied) {
		c.state = StatePermissionDenied
	} else {
		c.state = StateUnconnected
	}
	return true
}

func (c *Connection) Handle() fsaccess.FileHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handle
}

// IsConnected reports whether a handle is held, granted or not.
func (c *Connection) IsConnected() bool {
	return c.Handle() != nil
}

func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{State: c.state, Handle: c.handle, Reason: c.reason}
}

func (c *Connection) set(state State, h fsaccess.FileHandle, reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.handle = h
	c.reason = reason
}
