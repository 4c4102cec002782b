package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"time"

	"github.com/Purplemerit/notion-realtime/internal/models"
	"github.com/Purplemerit/notion-realtime/internal/types"

	"github.com/google/uuid"
)

const (
	eventTimeout  = 5 * time.Second
	uploadTimeout = 30 * time.Second
)

// sentAck is the acknowledgement returned to the originating connection for
// every successful send. Delivered reports whether an immediate push to a
// live recipient happened, so the sender renders status without polling.
type sentAck struct {
	*models.Message
	Delivered bool `json:"delivered"`
}

// Route dispatches one inbound frame. Unknown or malformed frames fail
// closed: one error event to the sender, no persistence, no propagation.
func (h *Hub) Route(c *Client, raw []byte) {
	var env types.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		log.Printf("[HUB] Malformed frame from %s", c.Identity)
		c.EmitError(types.CodeInvalidPayload, "Malformed event frame")
		return
	}

	switch env.Event {
	case types.EventPrivateMessage:
		h.handlePrivateMessage(c, env.Data)
	case types.EventGroupMessage:
		h.handleGroupMessage(c, env.Data)
	case types.EventCreateGroup:
		h.handleGroupLifecycle(c, env.Data, types.EventGroupCreated)
	case types.EventJoinGroup:
		h.handleGroupLifecycle(c, env.Data, types.EventGroupJoined)
	case types.EventLeaveGroup:
		h.handleLeaveGroup(c, env.Data)
	case types.EventSendMedia:
		h.handleSendMedia(c, env.Data)
	case types.EventTyping:
		h.handleTyping(c, env.Data)
	case types.EventMarkRead:
		h.handleMarkRead(c, env.Data)
	case types.EventCheckOnline:
		h.handleCheckOnline(c, env.Data)
	default:
		log.Printf("[HUB] Unknown event %q from %s", env.Event, c.Identity)
		c.EmitError(types.CodeInvalidPayload, "Unknown event: "+env.Event)
	}
}

func (h *Hub) handlePrivateMessage(c *Client, data json.RawMessage) {
	var p types.PrivateMessage
	if err := json.Unmarshal(data, &p); err != nil {
		c.EmitError(types.CodeInvalidPayload, "Invalid message payload")
		return
	}
	if err := p.Validate(); err != nil {
		c.EmitError(types.CodeInvalidPayload, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	// Persist first so the message exists even if no one is online.
	m := &models.Message{
		ID:        uuid.New(),
		Sender:    c.Identity,
		Receiver:  p.Receiver,
		Body:      p.Text,
		Mode:      models.ModePrivate,
		Kind:      models.KindText,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.Save(ctx, m); err != nil {
		c.EmitError(types.CodeUpstreamFailed, "Failed to save message")
		return
	}

	delivered := h.deliverPrivate(ctx, m)
	m.Delivered = delivered
	_ = c.Emit(types.EventPrivateSent, sentAck{Message: m, Delivered: delivered})
}

func (h *Hub) handleGroupMessage(c *Client, data json.RawMessage) {
	var p types.GroupMessage
	if err := json.Unmarshal(data, &p); err != nil {
		c.EmitError(types.CodeInvalidPayload, "Invalid group message payload")
		return
	}
	if err := p.Validate(); err != nil {
		c.EmitError(types.CodeInvalidPayload, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	m := &models.Message{
		ID:        uuid.New(),
		Sender:    c.Identity,
		Channel:   p.GroupName,
		Body:      p.Text,
		Mode:      models.ModeGroup,
		Kind:      models.KindText,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.Save(ctx, m); err != nil {
		c.EmitError(types.CodeUpstreamFailed, "Failed to save message")
		return
	}

	h.broadcastGroup(c, m)
	_ = c.Emit(types.EventGroupSent, sentAck{Message: m})
}

// handleGroupLifecycle covers createGroup and joinGroup, which the transport
// treats identically: both are an idempotent join of the connection to the
// channel. Joining a channel twice is a no-op success.
func (h *Hub) handleGroupLifecycle(c *Client, data json.RawMessage, ack string) {
	var p types.GroupRequest
	if err := json.Unmarshal(data, &p); err != nil {
		c.EmitError(types.CodeInvalidPayload, "Invalid group payload")
		return
	}
	if err := p.Validate(); err != nil {
		c.EmitError(types.CodeInvalidPayload, err.Error())
		return
	}

	h.join(c, p.GroupName)
	log.Printf("[HUB] %s joined group %s", c.Identity, p.GroupName)
	_ = c.Emit(ack, types.GroupAck{GroupName: p.GroupName})
}

func (h *Hub) handleLeaveGroup(c *Client, data json.RawMessage) {
	var p types.GroupRequest
	if err := json.Unmarshal(data, &p); err != nil {
		c.EmitError(types.CodeInvalidPayload, "Invalid group payload")
		return
	}
	if err := p.Validate(); err != nil {
		c.EmitError(types.CodeInvalidPayload, err.Error())
		return
	}

	h.leave(c, p.GroupName)
	log.Printf("[HUB] %s left group %s", c.Identity, p.GroupName)
	_ = c.Emit(types.EventGroupLeft, types.GroupAck{GroupName: p.GroupName})
}

// handleSendMedia uploads the attachment before anything is persisted. An
// upload failure produces one error event and zero store records; partial
// media messages are forbidden.
func (h *Hub) handleSendMedia(c *Client, data json.RawMessage) {
	var p types.MediaUpload
	if err := json.Unmarshal(data, &p); err != nil {
		c.EmitError(types.CodeInvalidPayload, "Invalid media payload")
		return
	}
	if err := p.Validate(); err != nil {
		c.EmitError(types.CodeInvalidPayload, err.Error())
		return
	}

	raw, err := base64.StdEncoding.DecodeString(p.FileBase64)
	if err != nil {
		c.EmitError(types.CodeInvalidPayload, "fileBase64 is not valid base64")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	mediaURL, err := h.blobs.Upload(ctx, raw, p.FileName, p.FileType)
	if err != nil {
		log.Printf("[HUB] Media upload failed for %s: %v", c.Identity, err)
		c.EmitError(types.CodeUploadFailed, "Media upload failed")
		return
	}

	m := &models.Message{
		ID:        uuid.New(),
		Sender:    c.Identity,
		Body:      p.FileName,
		Kind:      models.KindMedia,
		MediaURL:  mediaURL,
		Filename:  p.FileName,
		MimeType:  p.FileType,
		CreatedAt: time.Now().UTC(),
	}

	switch p.Mode {
	case string(models.ModePrivate):
		m.Mode = models.ModePrivate
		m.Receiver = p.Receiver
		if err := h.store.Save(ctx, m); err != nil {
			c.EmitError(types.CodeUpstreamFailed, "Failed to save message")
			return
		}
		delivered := h.deliverPrivate(ctx, m)
		m.Delivered = delivered
		_ = c.Emit(types.EventMediaSent, sentAck{Message: m, Delivered: delivered})

	case string(models.ModeGroup):
		m.Mode = models.ModeGroup
		m.Channel = p.GroupName
		if err := h.store.Save(ctx, m); err != nil {
			c.EmitError(types.CodeUpstreamFailed, "Failed to save message")
			return
		}
		h.broadcastGroup(c, m)
		_ = c.Emit(types.EventMediaSent, sentAck{Message: m})
	}
}

func (h *Hub) handleTyping(c *Client, data json.RawMessage) {
	var p types.Typing
	if err := json.Unmarshal(data, &p); err != nil {
		c.EmitError(types.CodeInvalidPayload, "Invalid typing payload")
		return
	}
	if err := p.Validate(); err != nil {
		c.EmitError(types.CodeInvalidPayload, err.Error())
		return
	}

	conn, ok := h.registry.Lookup(p.Receiver)
	if !ok {
		return
	}
	payload, err := types.Marshal(types.EventUserTyping, types.UserTyping{UserID: c.Identity, IsTyping: p.IsTyping})
	if err != nil {
		return
	}
	_ = conn.Enqueue(payload)
}

// handleMarkRead transitions the read flag, which only the message's
// recipient may do, and notifies the original sender if online.
func (h *Hub) handleMarkRead(c *Client, data json.RawMessage) {
	var p types.MarkRead
	if err := json.Unmarshal(data, &p); err != nil {
		c.EmitError(types.CodeInvalidPayload, "Invalid markRead payload")
		return
	}
	if err := p.Validate(); err != nil {
		c.EmitError(types.CodeInvalidPayload, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	m, err := h.store.GetByID(ctx, p.MessageID)
	if err != nil {
		c.EmitError(types.CodeInvalidPayload, "Unknown message")
		return
	}
	if m.Receiver != c.Identity {
		c.EmitError(types.CodeInvalidPayload, "Only the recipient can mark a message read")
		return
	}

	if err := h.store.MarkRead(ctx, m.ID); err != nil {
		c.EmitError(types.CodeUpstreamFailed, "Failed to update read state")
		return
	}

	if conn, ok := h.registry.Lookup(m.Sender); ok {
		payload, err := types.Marshal(types.EventMessageRead, types.ReadReceipt{MessageID: m.ID, ReadAt: time.Now().UTC()})
		if err == nil {
			_ = conn.Enqueue(payload)
		}
	}
}

func (h *Hub) handleCheckOnline(c *Client, data json.RawMessage) {
	var p types.OnlineQuery
	if err := json.Unmarshal(data, &p); err != nil {
		c.EmitError(types.CodeInvalidPayload, "Invalid status payload")
		return
	}
	if err := p.Validate(); err != nil {
		c.EmitError(types.CodeInvalidPayload, err.Error())
		return
	}

	_ = c.Emit(types.EventOnlineStatus, types.OnlineStatus{UserID: p.UserID, IsOnline: h.registry.Online(p.UserID)})
}
