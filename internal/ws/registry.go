package ws

import (
	"sort"
	"sync"
)

type registryEntry struct {
	client *Client
	epoch  uint64
}

// Registry maps a user id to its single live connection. A user reconnecting
// overwrites the previous entry (last-connection-wins), so at most one client
// is reachable per user at any instant.
//
// Entries carry an epoch so that a stale disconnect arriving after a newer
// connection has registered cannot evict it: Unregister only removes the entry
// when the epoch matches the one handed out at Register time.
type Registry struct {
	mu        sync.RWMutex
	conns     map[string]registryEntry
	nextEpoch uint64
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]registryEntry),
	}
}

// Register binds userID to client, unconditionally replacing any previous
// binding. The returned epoch must be passed back to Unregister on teardown.
func (r *Registry) Register(userID string, client *Client) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEpoch++
	r.conns[userID] = registryEntry{client: client, epoch: r.nextEpoch}
	return r.nextEpoch
}

// Unregister removes the entry for userID if it still belongs to the
// connection identified by epoch. Returns true if an entry was removed.
// Calling it twice, or after a newer connection took over the id, is a no-op.
func (r *Registry) Unregister(userID string, epoch uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[userID]
	if !ok || entry.epoch != epoch {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the live client for userID, if any.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.conns[userID]
	if !ok {
		return nil, false
	}
	return entry.client, true
}

// Snapshot returns the sorted set of currently registered user ids, read
// under a single lock so concurrent mutation cannot tear the view.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	users := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		users = append(users, userID)
	}
	r.mu.RUnlock()

	sort.Strings(users)
	return users
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
