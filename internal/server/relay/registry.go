package relay

import (
	"sort"
	"sync"
)

// Registry maps authenticated identities to their live connection. It is
// process-wide shared state touched by every connection task, so all access
// goes through the mutex; the backing map is never exposed.
//
// At most one connection is registered per identity. A second authentication
// for the same identity replaces the prior mapping without closing the
// superseded transport (last-writer-wins).
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: map[string]*Client{}}
}

// Register binds id to c, replacing any existing mapping.
func (r *Registry) Register(id string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[id] = c
}

// Deregister removes the mapping for id, but only while it still points at
// c: a superseded connection's teardown must not evict its replacement.
// Calling it repeatedly is a no-op.
func (r *Registry) Deregister(id string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients[id] == c {
		delete(r.clients, id)
	}
}

// Lookup returns the live connection for id, if any.
func (r *Registry) Lookup(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Online returns the currently registered identities, sorted.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
