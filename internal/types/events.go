package types

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Inbound event names.
const (
	EventPrivateMessage = "message"
	EventGroupMessage   = "groupMessage"
	EventCreateGroup    = "createGroup"
	EventJoinGroup      = "joinGroup"
	EventLeaveGroup     = "leaveGroup"
	EventSendMedia      = "sendMedia"
	EventTyping         = "typing"
	EventMarkRead       = "markRead"
	EventCheckOnline    = "checkOnlineStatus"
)

// Outbound event names.
const (
	EventMediaMessage = "mediaMessage"
	EventPrivateSent  = "message:sent"
	EventGroupSent    = "groupMessage:sent"
	EventMediaSent    = "mediaMessage:sent"
	EventGroupCreated = "groupCreated"
	EventGroupJoined  = "groupJoined"
	EventGroupLeft    = "groupLeft"
	EventUserTyping   = "userTyping"
	EventMessageRead  = "messageRead"
	EventOnlineStatus = "onlineStatus"
	EventError        = "error"
	EventSystem       = "system"
)

// Machine-readable error codes carried on error events.
const (
	CodeTokenRequired  = "AUTH_TOKEN_REQUIRED"
	CodeTokenInvalid   = "AUTH_INVALID_TOKEN"
	CodeTokenExpired   = "AUTH_TOKEN_EXPIRED"
	CodeInvalidPayload = "INVALID_PAYLOAD"
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeUpstreamFailed = "UPSTREAM_FAILURE"
)

// Envelope is the wire frame for every event in both directions.
// Data holds the event-specific payload and is validated per event
// kind before any side effect is taken.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Marshal builds an outbound frame for event with payload v.
func Marshal(event string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

type ErrorPayload struct {
	Message       string `json:"message"`
	Code          string `json:"code"`
	RequiresLogin bool   `json:"requiresLogin,omitempty"`
}

type PrivateMessage struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Text     string `json:"text"`
}

func (p *PrivateMessage) Validate() error {
	if p.Receiver == "" {
		return errors.New("receiver is required")
	}
	if p.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

type GroupMessage struct {
	Sender    string `json:"sender"`
	GroupName string `json:"groupName"`
	Text      string `json:"text"`
}

func (p *GroupMessage) Validate() error {
	if p.GroupName == "" {
		return errors.New("groupName is required")
	}
	if p.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

type GroupRequest struct {
	GroupName string `json:"groupName"`
}

func (p *GroupRequest) Validate() error {
	if p.GroupName == "" {
		return errors.New("groupName is required")
	}
	return nil
}

type MediaUpload struct {
	Sender     string `json:"sender"`
	Receiver   string `json:"receiver,omitempty"`
	GroupName  string `json:"groupName,omitempty"`
	FileName   string `json:"fileName"`
	FileType   string `json:"fileType"`
	FileBase64 string `json:"fileBase64"`
	Mode       string `json:"mode"`
}

func (p *MediaUpload) Validate() error {
	if p.FileName == "" || p.FileType == "" || p.FileBase64 == "" {
		return errors.New("fileName, fileType and fileBase64 are required")
	}
	switch p.Mode {
	case "private":
		if p.Receiver == "" {
			return errors.New("receiver is required for private media")
		}
	case "group":
		if p.GroupName == "" {
			return errors.New("groupName is required for group media")
		}
	default:
		return errors.New("mode must be private or group")
	}
	return nil
}

type Typing struct {
	Receiver string `json:"receiver"`
	IsTyping bool   `json:"isTyping"`
}

func (p *Typing) Validate() error {
	if p.Receiver == "" {
		return errors.New("receiver is required")
	}
	return nil
}

type MarkRead struct {
	MessageID uuid.UUID `json:"messageId"`
}

func (p *MarkRead) Validate() error {
	if p.MessageID == uuid.Nil {
		return errors.New("messageId is required")
	}
	return nil
}

type OnlineQuery struct {
	UserID string `json:"userId"`
}

func (p *OnlineQuery) Validate() error {
	if p.UserID == "" {
		return errors.New("userId is required")
	}
	return nil
}

// UserTyping is forwarded to the private receiver of a typing event.
type UserTyping struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// ReadReceipt notifies a sender that the recipient read their message.
type ReadReceipt struct {
	MessageID uuid.UUID `json:"messageId"`
	ReadAt    time.Time `json:"readAt"`
}

type OnlineStatus struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

type GroupAck struct {
	GroupName string `json:"groupName"`
}
