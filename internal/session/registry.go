package session

import (
	"sync"

	"github.com/Tyrowin/relaychat/internal/ids"
)

// Outbox is the outbound delivery channel of one live connection.
//
// Enqueue never blocks: it returns false when the outbox is closed or cannot
// take the payload. Close is idempotent and wakes the tasks that own the
// connection.
type Outbox interface {
	Enqueue(payload []byte) bool
	Close()
}

// Entry is one credential/outbox pair of a registry snapshot.
type Entry struct {
	Credential ids.Credential
	Outbox     Outbox
}

// Lookup resolves a credential to its session record.
type Lookup func(ids.Credential) (Record, bool)

// Registry maps session credentials to the outbox of their open connection.
// An entry exists only while that connection is open.
type Registry struct {
	mu      sync.RWMutex
	entries map[ids.Credential]Outbox
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[ids.Credential]Outbox)}
}

// Register inserts the outbox for cred, replacing any previous one. A replaced
// outbox is no longer reachable through the registry; its owner notices on its
// own when its socket fails.
func (r *Registry) Register(cred ids.Credential, ob Outbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[cred] = ob
}

// Unregister removes the entry for cred. It reports whether one was present.
func (r *Registry) Unregister(cred ids.Credential) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[cred]
	delete(r.entries, cred)
	return ok
}

// release removes the entry for cred only if it still maps to ob.
func (r *Registry) release(cred ids.Credential, ob Outbox) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.entries[cred]; !ok || current != ob {
		return false
	}
	delete(r.entries, cred)
	return true
}

// get returns the outbox registered for cred.
func (r *Registry) get(cred ids.Credential) (Outbox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ob, ok := r.entries[cred]
	return ob, ok
}

// AllExcept returns a snapshot of every entry except the one for cred.
func (r *Registry) AllExcept(cred ids.Credential) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]Entry, 0, len(r.entries))
	for c, ob := range r.entries {
		if c == cred {
			continue
		}
		snapshot = append(snapshot, Entry{Credential: c, Outbox: ob})
	}
	return snapshot
}

// ChannelsForUser returns the outboxes whose credential resolves, through
// lookup, to a session of userID. Every entry is resolved, so the cost is
// linear in the number of open connections.
func (r *Registry) ChannelsForUser(lookup Lookup, userID ids.UserID) []Outbox {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channelsForUserLocked(lookup, userID)
}

// TODO: keep a user id -> credential index here once connection counts make
// the linear scan show up in routing latency.
func (r *Registry) channelsForUserLocked(lookup Lookup, userID ids.UserID) []Outbox {
	var out []Outbox
	for cred, ob := range r.entries {
		rec, ok := lookup(cred)
		if ok && rec.UserID == userID {
			out = append(out, ob)
		}
	}
	return out
}

// Len returns the number of open connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
