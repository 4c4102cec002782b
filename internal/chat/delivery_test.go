package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Purplemerit/notion-realtime/internal/types"
)

// A message sent while the recipient was offline arrives exactly once on
// the next connect and flips to delivered in the store.
func TestOfflinePrivateMessageReplayedOnConnect(t *testing.T) {
	h, store := newTestHub(nil)

	id := seedPrivate(t, store, "b@example.com", "a@example.com", "hi", time.Now().Add(-time.Minute))

	a := newTestClient(h, "a@example.com")
	h.Attach(a)
	h.Replay(context.Background(), a)

	events := drainEvents(t, a)
	if len(events) != 1 {
		t.Fatalf("expected 1 replayed event, got %d", len(events))
	}
	if events[0].Event != types.EventPrivateMessage {
		t.Fatalf("expected %q event, got %q", types.EventPrivateMessage, events[0].Event)
	}
	m := decodeMessage(t, events[0])
	if m.Body != "hi" {
		t.Errorf("expected body %q, got %q", "hi", m.Body)
	}
	if m.ID != id {
		t.Errorf("replayed message id mismatch")
	}

	stored, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("lookup after replay: %v", err)
	}
	if !stored.Delivered || stored.DeliveredAt == nil {
		t.Errorf("message not marked delivered after replay")
	}
}

// Replayed private messages arrive in non-decreasing creation-time order.
func TestReplayPreservesCreationOrder(t *testing.T) {
	h, store := newTestHub(nil)

	base := time.Now().Add(-time.Hour)
	// Seed out of order on purpose.
	seedPrivate(t, store, "b@example.com", "a@example.com", "second", base.Add(2*time.Minute))
	seedPrivate(t, store, "b@example.com", "a@example.com", "first", base.Add(1*time.Minute))
	seedPrivate(t, store, "b@example.com", "a@example.com", "third", base.Add(3*time.Minute))

	a := newTestClient(h, "a@example.com")
	h.Attach(a)
	h.Replay(context.Background(), a)

	events := drainEvents(t, a)
	if len(events) != 3 {
		t.Fatalf("expected 3 replayed events, got %d", len(events))
	}
	want := []string{"first", "second", "third"}
	for i, env := range events {
		if got := decodeMessage(t, env).Body; got != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got)
		}
	}
}

// A dead connection stops replay without marking anything delivered, so the
// backlog survives for the next connect.
func TestReplayStopsOnDeadConnection(t *testing.T) {
	h, store := newTestHub(nil)

	seedPrivate(t, store, "b@example.com", "a@example.com", "one", time.Now().Add(-2*time.Minute))
	seedPrivate(t, store, "b@example.com", "a@example.com", "two", time.Now().Add(-time.Minute))

	a := newTestClient(h, "a@example.com")
	h.Attach(a)
	a.shutdown()

	h.Replay(context.Background(), a)

	pending, err := store.FetchUndelivered(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("fetch undelivered: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("expected 2 messages still pending, got %d", len(pending))
	}
}

// Group backlog replay covers channels the user has sent into, inside the
// lookback window, excluding the user's own messages.
func TestGroupBacklogReplay(t *testing.T) {
	h, store := newTestHub(nil)

	now := time.Now()
	// a participated in #general by sending once.
	seedGroup(t, store, "a@example.com", "general", "my own", now.Add(-2*time.Hour))
	seedGroup(t, store, "b@example.com", "general", "recent", now.Add(-time.Hour))
	seedGroup(t, store, "b@example.com", "general", "ancient", now.Add(-30*24*time.Hour))
	// a never sent into #random, so it is not replayed.
	seedGroup(t, store, "b@example.com", "random", "unseen", now.Add(-time.Hour))

	a := newTestClient(h, "a@example.com")
	h.Attach(a)
	h.Replay(context.Background(), a)

	events := drainEvents(t, a)
	if len(events) != 1 {
		t.Fatalf("expected 1 group backlog event, got %d", len(events))
	}
	if events[0].Event != types.EventGroupMessage {
		t.Fatalf("expected %q event, got %q", types.EventGroupMessage, events[0].Event)
	}
	if got := decodeMessage(t, events[0]).Body; got != "recent" {
		t.Errorf("expected %q, got %q", "recent", got)
	}
}

// Reconnecting inside the lookback window replays group messages again.
// At-least-once is the contract; clients deduplicate by id.
func TestGroupBacklogReplaysAgainOnReconnect(t *testing.T) {
	h, store := newTestHub(nil)

	now := time.Now()
	seedGroup(t, store, "a@example.com", "general", "mine", now.Add(-2*time.Hour))
	seedGroup(t, store, "b@example.com", "general", "news", now.Add(-time.Hour))

	for i := 0; i < 2; i++ {
		a := newTestClient(h, "a@example.com")
		h.Attach(a)
		h.Replay(context.Background(), a)
		events := drainEvents(t, a)
		if len(events) != 1 {
			t.Fatalf("connect %d: expected 1 event, got %d", i, len(events))
		}
		h.Detach(a)
	}
}

// Sending to an online recipient pushes immediately, marks delivered, and
// acks the sender with delivered=true.
func TestSendPrivateToOnlineRecipient(t *testing.T) {
	h, store := newTestHub(nil)

	a := newTestClient(h, "a@example.com")
	b := newTestClient(h, "b@example.com")
	h.Attach(a)
	h.Attach(b)

	sendEvent(t, h, a, types.EventPrivateMessage, types.PrivateMessage{Receiver: "b@example.com", Text: "yo"})

	bEvents := drainEvents(t, b)
	if len(bEvents) != 1 || bEvents[0].Event != types.EventPrivateMessage {
		t.Fatalf("expected one message event for recipient, got %+v", bEvents)
	}
	delivered := decodeMessage(t, bEvents[0])
	if delivered.Body != "yo" || delivered.Sender != "a@example.com" {
		t.Errorf("unexpected delivered payload: %+v", delivered)
	}

	aEvents := drainEvents(t, a)
	if len(aEvents) != 1 || aEvents[0].Event != types.EventPrivateSent {
		t.Fatalf("expected one ack for sender, got %+v", aEvents)
	}
	var ack struct {
		Delivered bool `json:"delivered"`
	}
	if err := jsonUnmarshal(aEvents[0].Data, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.Delivered {
		t.Errorf("ack should report delivered=true")
	}

	stored, err := store.GetByID(context.Background(), delivered.ID)
	if err != nil {
		t.Fatalf("lookup sent message: %v", err)
	}
	if !stored.Delivered {
		t.Errorf("store should show message delivered")
	}
}

// Sending to an offline recipient persists the message pending and acks the
// sender with delivered=false.
func TestSendPrivateToOfflineRecipient(t *testing.T) {
	h, store := newTestHub(nil)

	a := newTestClient(h, "a@example.com")
	h.Attach(a)

	sendEvent(t, h, a, types.EventPrivateMessage, types.PrivateMessage{Receiver: "b@example.com", Text: "later"})

	aEvents := drainEvents(t, a)
	if len(aEvents) != 1 || aEvents[0].Event != types.EventPrivateSent {
		t.Fatalf("expected one ack, got %+v", aEvents)
	}
	var ack struct {
		Delivered bool `json:"delivered"`
	}
	if err := jsonUnmarshal(aEvents[0].Data, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Delivered {
		t.Errorf("ack should report delivered=false for offline recipient")
	}

	pending, err := store.FetchUndelivered(context.Background(), "b@example.com")
	if err != nil {
		t.Fatalf("fetch undelivered: %v", err)
	}
	if len(pending) != 1 || pending[0].Body != "later" {
		t.Fatalf("expected one pending message, got %+v", pending)
	}
}

// A store failure on send surfaces as one upstream error event and no ack.
func TestSendPrivateStoreFailure(t *testing.T) {
	h, store := newTestHub(nil)
	h.store = &saveFailStore{MemoryStore: store}

	a := newTestClient(h, "a@example.com")
	h.Attach(a)

	sendEvent(t, h, a, types.EventPrivateMessage, types.PrivateMessage{Receiver: "b@example.com", Text: "x"})

	events := drainEvents(t, a)
	if len(events) != 1 || events[0].Event != types.EventError {
		t.Fatalf("expected one error event, got %+v", events)
	}
	var ep types.ErrorPayload
	if err := jsonUnmarshal(events[0].Data, &ep); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if ep.Code != types.CodeUpstreamFailed {
		t.Errorf("expected code %s, got %s", types.CodeUpstreamFailed, ep.Code)
	}
}

// Replacing a presence entry must not let the old connection's disconnect
// evict the new one.
func TestStaleDisconnectKeepsNewerConnection(t *testing.T) {
	h, _ := newTestHub(nil)

	first := newTestClient(h, "a@example.com")
	second := newTestClient(h, "a@example.com")
	h.Attach(first)
	h.Attach(second)

	h.Detach(first)

	if !h.Online("a@example.com") {
		t.Fatalf("newer connection was evicted by stale disconnect")
	}

	b := newTestClient(h, "b@example.com")
	h.Attach(b)
	sendEvent(t, h, b, types.EventPrivateMessage, types.PrivateMessage{Receiver: "a@example.com", Text: "ping"})

	if got := len(drainEvents(t, second)); got != 1 {
		t.Errorf("expected delivery to the surviving connection, got %d events", got)
	}
	if got := len(drainEvents(t, first)); got != 0 {
		t.Errorf("stale connection should receive nothing, got %d events", got)
	}
}

func jsonUnmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
