package registry

import (
	"errors"
	"sync"
	"time"
)

var errClosed = errors.New("registry: client connection is closed")
var errNotFound = errors.New("registry: client not found")

// Registry is the single source of truth for "is this client still
// connected". It sits above rooms.Registry in lock order: code that
// needs both the client registry and a room/channel lock always takes
// this one first.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func New() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register adds a newly accepted connection. Registering an ID that
// already exists replaces the prior entry and closes it, since a
// duplicate ID means the previous socket is stale (reconnect races).
func (r *Registry) Register(id, kind string, sender Sender) *Client {
	client := newClient(id, kind, sender)

	r.mu.Lock()
	prior, existed := r.clients[id]
	r.clients[id] = client
	r.mu.Unlock()

	if existed {
		prior.markClosed()
		_ = prior.sender.Close()
	}
	return client
}

// Unregister removes a client by ID and marks it closed. No-op if the
// ID is already gone.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	client, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
	}
	r.mu.Unlock()

	if ok {
		client.markClosed()
	}
}

// Get looks up a connected client by ID.
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Count returns the number of currently registered connections,
// regardless of kind.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Snapshot returns every currently registered client. Used by broadcast
// and admin listing paths; callers must not assume the slice stays in
// sync with later registrations.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// CleanupStale unregisters and closes every client whose last activity
// is older than maxIdle, returning the IDs it removed.
func (r *Registry) CleanupStale(maxIdle time.Duration) []string {
	cutoff := time.Now().UTC().Add(-maxIdle)

	r.mu.Lock()
	var stale []*Client
	for id, c := range r.clients {
		if c.LastSeen().Before(cutoff) {
			stale = append(stale, c)
			delete(r.clients, id)
		}
	}
	r.mu.Unlock()

	removed := make([]string, 0, len(stale))
	for _, c := range stale {
		c.markClosed()
		_ = c.sender.Close()
		removed = append(removed, c.ID)
	}
	return removed
}

// Health summarizes registry state for the status command and
// telemetry snapshots.
type Health struct {
	TotalConnections int
	Clients          int
	Operators        int
}

func (r *Registry) Health() Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h := Health{TotalConnections: len(r.clients)}
	for _, c := range r.clients {
		if c.Kind == "operator" {
			h.Operators++
		} else {
			h.Clients++
		}
	}
	return h
}
