package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Purplemerit/notion-realtime/internal/blob"
	"github.com/Purplemerit/notion-realtime/internal/middleware"
	"github.com/Purplemerit/notion-realtime/internal/models"
	"github.com/Purplemerit/notion-realtime/internal/repository"
	"github.com/Purplemerit/notion-realtime/internal/types"

	"github.com/google/uuid"
)

func newTestHub(blobs blob.Store) (*Hub, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	if blobs == nil {
		blobs = blob.Disabled{}
	}
	return NewHub(store, blobs, 7*24*time.Hour), store
}

// newTestClient builds a client with no transport attached; frames are read
// straight off the send buffer instead of a socket.
func newTestClient(h *Hub, identity string) *Client {
	return &Client{
		Hub:      h,
		Identity: identity,
		Limiter:  middleware.NewRateLimiter(5, 500*time.Millisecond),
		send:     make(chan []byte, 64),
	}
}

func drainEvents(t *testing.T, c *Client) []types.Envelope {
	t.Helper()
	var events []types.Envelope
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return events
			}
			var env types.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("malformed outbound frame: %v", err)
			}
			events = append(events, env)
		default:
			return events
		}
	}
}

func decodeMessage(t *testing.T, env types.Envelope) models.Message {
	t.Helper()
	var m models.Message
	if err := json.Unmarshal(env.Data, &m); err != nil {
		t.Fatalf("decode message payload: %v", err)
	}
	return m
}

func seedPrivate(t *testing.T, store *repository.MemoryStore, sender, receiver, text string, at time.Time) uuid.UUID {
	t.Helper()
	m := &models.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Receiver:  receiver,
		Body:      text,
		Mode:      models.ModePrivate,
		Kind:      models.KindText,
		CreatedAt: at,
	}
	if err := store.Save(context.Background(), m); err != nil {
		t.Fatalf("seed private message: %v", err)
	}
	return m.ID
}

func seedGroup(t *testing.T, store *repository.MemoryStore, sender, channel, text string, at time.Time) uuid.UUID {
	t.Helper()
	m := &models.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Channel:   channel,
		Body:      text,
		Mode:      models.ModeGroup,
		Kind:      models.KindText,
		CreatedAt: at,
	}
	if err := store.Save(context.Background(), m); err != nil {
		t.Fatalf("seed group message: %v", err)
	}
	return m.ID
}

func sendEvent(t *testing.T, h *Hub, c *Client, event string, payload any) {
	t.Helper()
	frame, err := types.Marshal(event, payload)
	if err != nil {
		t.Fatalf("build %s frame: %v", event, err)
	}
	h.Route(c, frame)
}

type fakeBlob struct {
	url     string
	err     error
	uploads int
}

func (f *fakeBlob) Upload(_ context.Context, _ []byte, _, _ string) (string, error) {
	f.uploads++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

// saveFailStore forces Save to fail while delegating everything else.
type saveFailStore struct {
	*repository.MemoryStore
}

func (s *saveFailStore) Save(context.Context, *models.Message) error {
	return errors.New("store unavailable")
}
