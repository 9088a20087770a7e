package filesync

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kittclouds/garagebook/pkg/fsaccess"
)

// Decision is what the gate does with a permission state.
type Decision int

const (
	DecisionEvict Decision = iota
	DecisionAllow
	// DecisionDefer keeps the handle and reports no access yet.
	DecisionDefer
	// DecisionRequest asks the user.
	DecisionRequest
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionDefer:
		return "defer"
	case DecisionRequest:
		return "request"
	default:
		return "evict"
	}
}

// DecideSilent is the policy when no user gesture is available.
func DecideSilent(p fsaccess.PermissionState) Decision {
	switch p {
	case fsaccess.PermissionGranted:
		return DecisionAllow
	case fsaccess.PermissionPrompt:
		return DecisionDefer
	default:
		return DecisionEvict
	}
}

// DecideEnsure is the policy inside a user gesture.
func DecideEnsure(p fsaccess.PermissionState) Decision {
	switch p {
	case fsaccess.PermissionGranted:
		return DecisionAllow
	case fsaccess.PermissionPrompt:
		return DecisionRequest
	default:
		return DecisionEvict
	}
}

// Gate applies the permission policy to the connection's handle.
// It fails closed: any host error evicts.
type Gate struct {
	conn *Connection
	log  *zap.SugaredLogger
}

// NewGate creates a gate over conn.
func NewGate(conn *Connection, log *zap.SugaredLogger) *Gate {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Gate{conn: conn, log: log}
}

// CheckSilently never prompts. A promptable handle is kept but reported
// as not usable yet.
func (g *Gate) CheckSilently(ctx context.Context, h fsaccess.FileHandle) bool {
	p, err := h.QueryPermission(ctx)
	if err != nil {
		g.evict(h, err)
		return false
	}
	return g.apply(h, DecideSilent(p))
}

// Ensure may prompt the user, so it must run inside a user gesture.
func (g *Gate) Ensure(ctx context.Context, h fsaccess.FileHandle) bool {
	p, err := h.QueryPermission(ctx)
	if err != nil {
		g.evict(h, err)
		return false
	}
	d := DecideEnsure(p)
	if d != DecisionRequest {
		return g.apply(h, d)
	}

	p, err = h.RequestPermission(ctx)
	if err != nil {
		g.evict(h, err)
		return false
	}
	if p != fsaccess.PermissionGranted {
		g.log.Infow("permission request refused", "file", h.Name(), "result", p.String())
		g.evict(h, nil)
		return false
	}
	g.conn.MarkGranted(h)
	return true
}

func (g *Gate) apply(h fsaccess.FileHandle, d Decision) bool {
	switch d {
	case DecisionAllow:
		g.conn.MarkGranted(h)
		return true
	case DecisionDefer:
		return false
	default:
		g.log.Infow("permission denied", "file", h.Name())
		g.evict(h, nil)
		return false
	}
}

// evict maps a host failure to an eviction reason. Only a confirmed
// missing file counts as not found; everything else is a denial.
func (g *Gate) evict(h fsaccess.FileHandle, err error) {
	reason := ErrPermissionDenied
	if err != nil {
		if errors.Is(err, fsaccess.ErrNotFound) {
			reason = ErrHandleNotFound
		}
		g.log.Warnw("permission check failed", "file", h.Name(), "error", err)
	}
	g.conn.Evict(h, reason)
}
