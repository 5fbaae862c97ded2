// Package directory maps logical identities to their live connection handles
// so lobby pushes reach every socket a client holds open.
package directory

import (
	"sync"

	"go.uber.org/zap"
)

// Role tags the purpose of an attached connection handle.
type Role string

const (
	// RolePrimary is the foreground request/response connection.
	RolePrimary Role = "primary"
	// RoleNotifier is a background connection held open solely for pushes.
	RoleNotifier Role = "notifier"
)

// Handle is the minimal surface a delivery target must expose. Both framed
// lobby connections and test fakes satisfy it.
type Handle interface {
	WriteFrame(payload []byte) error
	Close() error
}

type entry struct {
	handle Handle
	role   Role
}

// Directory tracks the live handles attached to each identity. All mutation
// is serialised under one lock; sends happen outside it so a slow peer never
// blocks unrelated deliveries.
type Directory struct {
	mu      sync.Mutex
	byIdent map[string][]entry
	logger  *zap.Logger
}

// New constructs an empty directory.
func New(logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{byIdent: make(map[string][]entry), logger: logger}
}

// Attach registers a handle under the identity. Attaching the same handle
// twice is a no-op, so reconnect races stay idempotent.
func (d *Directory) Attach(identity string, handle Handle, role Role) {
	if d == nil || identity == "" || handle == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.byIdent[identity] {
		if e.handle == handle {
			return
		}
	}
	d.byIdent[identity] = append(d.byIdent[identity], entry{handle: handle, role: role})
}

// Detach removes one handle from the identity, dropping the identity entry
// entirely once no handles remain.
func (d *Directory) Detach(identity string, handle Handle) {
	if d == nil || identity == "" || handle == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(identity, handle)
}

// Deliver attempts to send the payload to every live handle for the identity
// and returns the number of successful deliveries. Handles whose send fails
// are pruned before any further delivery attempt. Zero deliveries is not an
// error: the recipient may simply be offline.
func (d *Directory) Deliver(identity string, payload []byte) int {
	if d == nil || identity == "" {
		return 0
	}
	d.mu.Lock()
	//1.- Snapshot the handle list so the send loop runs without the lock held.
	targets := append([]entry(nil), d.byIdent[identity]...)
	d.mu.Unlock()

	delivered := 0
	var dead []Handle
	for _, e := range targets {
		if err := e.handle.WriteFrame(payload); err != nil {
			d.logger.Warn("push delivery failed",
				zap.String("identity", identity),
				zap.String("role", string(e.role)),
				zap.Error(err))
			dead = append(dead, e.handle)
			continue
		}
		delivered++
	}

	if len(dead) > 0 {
		d.mu.Lock()
		for _, h := range dead {
			d.removeLocked(identity, h)
		}
		d.mu.Unlock()
		for _, h := range dead {
			_ = h.Close()
		}
	}
	return delivered
}

// Handles reports how many live handles the identity currently holds.
func (d *Directory) Handles(identity string) int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byIdent[identity])
}

func (d *Directory) removeLocked(identity string, handle Handle) {
	entries := d.byIdent[identity]
	for i, e := range entries {
		if e.handle == handle {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(d.byIdent, identity)
		return
	}
	d.byIdent[identity] = entries
}
