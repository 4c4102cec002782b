package presence

import (
	"sync"
	"time"
)

// Conn is the push side of a live connection. Enqueue hands a frame to the
// connection's outbound buffer and reports failure when the connection is
// closed or the buffer is full.
type Conn interface {
	Enqueue(payload []byte) error
}

type entry struct {
	conn         Conn
	registeredAt time.Time
}

// Registry is the in-process mapping between a verified user identity and
// its single active connection. It holds no history and is
// never persisted; a multi-process deployment would replace it with an
// external directory without changing this contract.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register associates identity with conn, last-writer-wins. A prior entry
// for the same identity is silently dropped without closing its connection;
// closing is the lifecycle controller's job on its own disconnect event.
func (r *Registry) Register(identity string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[identity] = entry{conn: conn, registeredAt: time.Now()}
}

// Unregister removes the entry for identity only if it still points at conn.
// A stale disconnect therefore cannot evict a newer connection registered
// for the same identity.
func (r *Registry) Unregister(identity string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[identity]; ok && cur.conn == conn {
		delete(r.entries, identity)
	}
}

func (r *Registry) Lookup(identity string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[identity]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

func (r *Registry) Online(identity string) bool {
	_, ok := r.Lookup(identity)
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns the current identity -> connection mapping. Used for
// process shutdown; the registry itself holds no history.
func (r *Registry) Snapshot() map[string]Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Conn, len(r.entries))
	for id, e := range r.entries {
		out[id] = e.conn
	}
	return out
}
