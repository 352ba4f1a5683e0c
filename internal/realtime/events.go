package realtime

import (
	"encoding/json"

	"github.com/nightvibe/nightvibe/internal/domain"
)

// Inbound event names.
const (
	EventConnected        = "connected"
	EventMessageNew       = "message:new"
	EventMessageRead      = "message:read"
	EventMessageDelivered = "message:delivered"
	EventTypingStart      = "typing:start"
	EventTypingStop       = "typing:stop"
	EventUserOnline       = "user:online"
	EventUserOffline      = "user:offline"
)

// Outbound event names not shared with the inbound set.
const (
	EventAuth      = "auth"
	EventChatJoin  = "chat:join"
	EventChatLeave = "chat:leave"
)

// Frame is the wire envelope of every realtime message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ReadReceipt reports that UserID has read messages in ChatID. An empty
// MessageIDs means every message up to now.
type ReadReceipt struct {
	ChatID     string   `json:"chatId"`
	UserID     string   `json:"userId"`
	MessageIDs []string `json:"messageIds,omitempty"`
}

// DeliveryReceipt reports that a message reached UserID's device.
type DeliveryReceipt struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId,omitempty"`
}

// Typing is a typing indicator change.
type Typing struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

// Presence is an online/offline notification.
type Presence struct {
	UserID string `json:"userId"`
}

// Handlers is a set of callbacks for pushed events. Nil members are ignored.
// Callbacks run on the connection's read goroutine and must not block.
type Handlers struct {
	OnMessage     func(domain.Message)
	OnRead        func(ReadReceipt)
	OnDelivered   func(DeliveryReceipt)
	OnTypingStart func(Typing)
	OnTypingStop  func(Typing)
	OnUserOnline  func(Presence)
	OnUserOffline func(Presence)
}

// merge returns h with every non-nil callback of o laid over it.
func (h Handlers) merge(o Handlers) Handlers {
	if o.OnMessage != nil {
		h.OnMessage = o.OnMessage
	}
	if o.OnRead != nil {
		h.OnRead = o.OnRead
	}
	if o.OnDelivered != nil {
		h.OnDelivered = o.OnDelivered
	}
	if o.OnTypingStart != nil {
		h.OnTypingStart = o.OnTypingStart
	}
	if o.OnTypingStop != nil {
		h.OnTypingStop = o.OnTypingStop
	}
	if o.OnUserOnline != nil {
		h.OnUserOnline = o.OnUserOnline
	}
	if o.OnUserOffline != nil {
		h.OnUserOffline = o.OnUserOffline
	}
	return h
}
