// Package server tracks which client identities are currently reachable and
// maps each one to its live connection.
package server

import (
	"sync"

	"github.com/samber/lo"
)

// Registry maps a client identity to its active connection. It is the only
// structure mutated by multiple connection goroutines, so every operation is
// mutex-protected; the relay reads it exclusively through Snapshot.
//
// At most one entry exists per identity at any instant. Registering an
// identity that is already present silently replaces the previous entry (last
// writer wins); no collision error is raised.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry creates an empty connection registry. One instance is created at
// process start and shared by reference with the relay and every session
// handler; it is never package-level state.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register inserts or replaces the entry for identity and returns the client
// it displaced, or nil. The caller decides what to do with the displaced
// connection; the registry itself never closes handles.
func (r *Registry) Register(identity string, c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	displaced := r.clients[identity]
	r.clients[identity] = c
	return displaced
}

// Unregister removes the entry for identity. When owner is non-nil the entry
// is removed only while it still maps to owner, so the teardown of a displaced
// connection cannot evict its replacement. Removal of an absent identity is a
// no-op, which tolerates duplicate or out-of-order unregistration.
func (r *Registry) Unregister(identity string, owner *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.clients[identity]
	if !ok {
		return
	}
	if owner != nil && current != owner {
		return
	}
	delete(r.clients, identity)
}

// Snapshot returns a point-in-time slice of all registered clients. The relay
// iterates the snapshot during broadcast so that concurrent registrations and
// removals never produce a torn read.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.clients)
}

// Lookup returns the client registered under identity, if any.
func (r *Registry) Lookup(identity string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[identity]
	return c, ok
}

// Len reports the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}
