package chat

import (
	"log"
	"sync"
	"time"

	"github.com/Purplemerit/notion-realtime/internal/blob"
	"github.com/Purplemerit/notion-realtime/internal/metrics"
	"github.com/Purplemerit/notion-realtime/internal/presence"
	"github.com/Purplemerit/notion-realtime/internal/repository"
)

// Hub owns the shared connection state of one process: the presence
// registry and the per-connection room membership. Handlers run on
// per-connection goroutines, so both structures are lock-guarded.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	registry *presence.Registry
	store    repository.MessageStore
	blobs    blob.Store
	lookback time.Duration
}

func NewHub(store repository.MessageStore, blobs blob.Store, lookback time.Duration) *Hub {
	log.Println("[HUB] Initializing new Hub instance...")
	return &Hub{
		rooms:    make(map[string]map[*Client]struct{}),
		registry: presence.NewRegistry(),
		store:    store,
		blobs:    blobs,
		lookback: lookback,
	}
}

// Attach registers the client's presence. A previous connection for the
// same identity is displaced last-writer-wins; its own disconnect event
// will clean it up without touching the new entry.
func (h *Hub) Attach(c *Client) {
	h.registry.Register(c.Identity, c)
	metrics.ActiveConnections.Set(float64(h.registry.Count()))
	log.Printf("[HUB] Client connected: %s (active: %d)", c.Identity, h.registry.Count())
}

// Detach unregisters presence under the matching-connection rule and
// removes the client from every room it joined.
func (h *Hub) Detach(c *Client) {
	h.registry.Unregister(c.Identity, c)

	h.mu.Lock()
	for name, members := range h.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, name)
			}
		}
	}
	h.mu.Unlock()

	c.shutdown()
	metrics.ActiveConnections.Set(float64(h.registry.Count()))
	log.Printf("[HUB] Client disconnected: %s (active: %d)", c.Identity, h.registry.Count())
}

// Online reports whether an identity currently has a live connection.
func (h *Hub) Online(identity string) bool {
	return h.registry.Online(identity)
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) roomMembers(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	return members
}

// Shutdown closes every live client. Pending messages stay in the store
// and replay on the next connect.
func (h *Hub) Shutdown() {
	log.Println("[HUB] Shutting down all client connections...")
	for _, conn := range h.registry.Snapshot() {
		if c, ok := conn.(*Client); ok {
			h.Detach(c)
		}
	}
}
