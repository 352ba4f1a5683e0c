package domain

import (
	"encoding/json"
	"time"
)

// MessageKind is the content type of a message.
type MessageKind string

const (
	KindText   MessageKind = "text"
	KindImage  MessageKind = "image"
	KindEvent  MessageKind = "event"
	KindSystem MessageKind = "system"
)

// Status is the delivery state of a message.
//
//	pending → sent → delivered → read
//	pending → failed
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// Rank orders the forward progression of a status. Failed sits outside the
// progression and ranks like pending.
func (s Status) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// Advance returns the later of s and next. Server statuses never regress.
func (s Status) Advance(next Status) Status {
	if next.Rank() > s.Rank() {
		return next
	}
	return s
}

// Message is a server-confirmed chat message.
type Message struct {
	ID        string      `json:"_id"`
	ChatID    string      `json:"chat"`
	Sender    User        `json:"sender"`
	Kind      MessageKind `json:"messageType"`
	Content   string      `json:"content"`
	Status    Status      `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	ReplyTo   *Message    `json:"replyTo,omitempty"`
	Deleted   bool        `json:"isDeleted,omitempty"`
	ClientID  string      `json:"clientId,omitempty"`
}

// UnmarshalJSON tolerates "id"/"chatId"/"type" spellings, a bare reply id,
// and a missing status (treated as sent).
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var aux struct {
		plain
		AltID     string          `json:"id"`
		AltChatID string          `json:"chatId"`
		AltKind   MessageKind     `json:"type"`
		ReplyTo   json.RawMessage `json:"replyTo"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Message(aux.plain)
	if m.ID == "" {
		m.ID = aux.AltID
	}
	if m.ChatID == "" {
		m.ChatID = aux.AltChatID
	}
	if m.Kind == "" {
		m.Kind = aux.AltKind
	}
	if m.Kind == "" {
		m.Kind = KindText
	}
	if m.Status == "" {
		m.Status = StatusSent
	}
	m.ReplyTo = nil
	if len(aux.ReplyTo) > 0 && string(aux.ReplyTo) != "null" {
		if aux.ReplyTo[0] == '"' {
			var id string
			if err := json.Unmarshal(aux.ReplyTo, &id); err != nil {
				return err
			}
			m.ReplyTo = &Message{ID: id}
		} else {
			var reply Message
			if err := json.Unmarshal(aux.ReplyTo, &reply); err != nil {
				return err
			}
			m.ReplyTo = &reply
		}
	}
	return nil
}

// Before reports whether a sorts before b in a transcript: by CreatedAt,
// ties broken by ID.
func Before(aCreated time.Time, aID string, bCreated time.Time, bID string) bool {
	if !aCreated.Equal(bCreated) {
		return aCreated.Before(bCreated)
	}
	return aID < bID
}

// Draft is the client-side payload of a message being sent.
type Draft struct {
	ChatID    string      `json:"-"`
	Kind      MessageKind `json:"messageType"`
	Content   string      `json:"content"`
	ReplyToID string      `json:"replyTo,omitempty"`
	ClientID  string      `json:"clientId,omitempty"`
}
