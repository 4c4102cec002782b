package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageMode string

const (
	ModePrivate MessageMode = "private"
	ModeGroup   MessageMode = "group"
)

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindMedia MessageKind = "media"
)

// Message is the unit of communication. Exactly one of Receiver (private)
// or Channel (group) is set, selected by Mode. Delivery state applies to
// private messages only; group messages carry no per-recipient bookkeeping.
type Message struct {
	ID       uuid.UUID   `json:"id"`
	Sender   string      `json:"sender"`
	Receiver string      `json:"receiver,omitempty"`
	Channel  string      `json:"groupName,omitempty"`
	Body     string      `json:"text"`
	Mode     MessageMode `json:"mode"`
	Kind     MessageKind `json:"kind"`

	MediaURL string `json:"mediaUrl,omitempty"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mimetype,omitempty"`

	Delivered   bool       `json:"isDelivered"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	Read        bool       `json:"isRead"`
	ReadAt      *time.Time `json:"readAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (m *Message) IsMedia() bool {
	return m.Kind == KindMedia
}
