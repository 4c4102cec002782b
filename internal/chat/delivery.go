package chat

import (
	"context"
	"log"
	"time"

	"github.com/Purplemerit/notion-realtime/internal/metrics"
	"github.com/Purplemerit/notion-realtime/internal/models"
	"github.com/Purplemerit/notion-realtime/internal/types"
)

// Replay pushes everything the client missed while offline. It must finish
// before the client's read pump starts, so a freshly connected client has
// caught up before it can send.
//
// Private replay is at-least-once: each message is pushed first and marked
// delivered second. A crash or store failure between the two redelivers on
// the next connect; clients deduplicate by message id. A failed push means
// the connection died, which stops replay for this client without rolling
// back prior pushes.
func (h *Hub) Replay(ctx context.Context, c *Client) {
	pending, err := h.store.FetchUndelivered(ctx, c.Identity)
	if err != nil {
		log.Printf("[HUB] Undelivered lookup failed for %s: %v", c.Identity, err)
	} else if len(pending) > 0 {
		log.Printf("[HUB] Replaying %d private messages to %s", len(pending), c.Identity)
		for _, m := range pending {
			if err := h.push(c, m); err != nil {
				log.Printf("[HUB] Replay aborted for %s: %v", c.Identity, err)
				return
			}
			if err := h.store.MarkDelivered(ctx, m.ID); err != nil {
				log.Printf("[HUB] Delivered flag update failed for %s: %v", m.ID, err)
			}
			metrics.MessagesReplayed.WithLabelValues(string(models.ModePrivate)).Inc()
		}
	}

	h.replayGroupBacklog(ctx, c)
}

// replayGroupBacklog pushes recent messages from the channels the user has
// sent into. There is no delivered bookkeeping for group messages, so a
// repeated reconnect inside the lookback window replays them again; this is
// accepted behavior, with client-side dedup by id.
func (h *Hub) replayGroupBacklog(ctx context.Context, c *Client) {
	channels, err := h.store.ChannelsFor(ctx, c.Identity)
	if err != nil {
		log.Printf("[HUB] Channel lookup failed for %s: %v", c.Identity, err)
		return
	}
	if len(channels) == 0 {
		return
	}

	since := time.Now().Add(-h.lookback)
	backlog, err := h.store.FetchChannelBacklog(ctx, channels, since, c.Identity)
	if err != nil {
		log.Printf("[HUB] Group backlog lookup failed for %s: %v", c.Identity, err)
		return
	}
	if len(backlog) == 0 {
		return
	}

	log.Printf("[HUB] Replaying %d group messages to %s", len(backlog), c.Identity)
	for _, m := range backlog {
		if err := h.push(c, m); err != nil {
			log.Printf("[HUB] Group replay aborted for %s: %v", c.Identity, err)
			return
		}
		metrics.MessagesReplayed.WithLabelValues(string(models.ModeGroup)).Inc()
	}
}

// push emits a persisted message to one connection under the event name its
// kind and mode call for.
func (h *Hub) push(c *Client, m *models.Message) error {
	payload, err := types.Marshal(eventFor(m), m)
	if err != nil {
		return err
	}
	return c.Enqueue(payload)
}

func eventFor(m *models.Message) string {
	if m.IsMedia() {
		return types.EventMediaMessage
	}
	if m.Mode == models.ModeGroup {
		return types.EventGroupMessage
	}
	return types.EventPrivateMessage
}

// deliverPrivate attempts immediate delivery of a freshly persisted private
// message and reports whether the recipient had it pushed. The delivered
// flag is only set after a successful push.
func (h *Hub) deliverPrivate(ctx context.Context, m *models.Message) bool {
	conn, ok := h.registry.Lookup(m.Receiver)
	if !ok {
		metrics.MessagesDeferred.Inc()
		log.Printf("[HUB] %s offline, message %s saved for later delivery", m.Receiver, m.ID)
		return false
	}

	payload, err := types.Marshal(eventFor(m), m)
	if err != nil {
		return false
	}
	if err := conn.Enqueue(payload); err != nil {
		metrics.MessagesDeferred.Inc()
		log.Printf("[HUB] Push to %s failed, deferring message %s: %v", m.Receiver, m.ID, err)
		return false
	}

	if err := h.store.MarkDelivered(ctx, m.ID); err != nil {
		log.Printf("[HUB] Delivered flag update failed for %s: %v", m.ID, err)
	}
	metrics.MessagesDelivered.WithLabelValues(string(models.ModePrivate)).Inc()
	return true
}

// broadcastGroup fans a persisted group message out to the channel's live
// members, excluding the sender.
func (h *Hub) broadcastGroup(sender *Client, m *models.Message) {
	payload, err := types.Marshal(eventFor(m), m)
	if err != nil {
		return
	}
	for _, member := range h.roomMembers(m.Channel) {
		if member == sender {
			continue
		}
		if err := member.Enqueue(payload); err != nil {
			log.Printf("[HUB] Group push to %s failed: %v", member.Identity, err)
			continue
		}
		metrics.MessagesDelivered.WithLabelValues(string(models.ModeGroup)).Inc()
	}
}
