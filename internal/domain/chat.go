package domain

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// ChatKind distinguishes one-to-one chats from group chats.
type ChatKind string

const (
	ChatDirect ChatKind = "direct"
	ChatGroup  ChatKind = "group"
)

// Chat is the client's cached copy of a conversation.
type Chat struct {
	ID           string         `json:"_id"`
	Kind         ChatKind       `json:"type"`
	Name         string         `json:"name,omitempty"`
	Participants []User         `json:"participants"`
	LastMessage  *Message       `json:"lastMessage,omitempty"`
	UnreadCount  map[string]int `json:"unreadCount,omitempty"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// UnmarshalJSON accepts "id" as well as "_id", and the boolean "isGroup"
// flag some endpoints return instead of "type".
func (c *Chat) UnmarshalJSON(data []byte) error {
	type plain Chat
	var aux struct {
		plain
		AltID   string `json:"id"`
		IsGroup *bool  `json:"isGroup"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Chat(aux.plain)
	if c.ID == "" {
		c.ID = aux.AltID
	}
	if c.Kind == "" {
		c.Kind = ChatDirect
		if aux.IsGroup != nil && *aux.IsGroup {
			c.Kind = ChatGroup
		}
	}
	return nil
}

// Unread returns the unread counter for userID.
func (c *Chat) Unread(userID string) int {
	if c.UnreadCount == nil {
		return 0
	}
	return c.UnreadCount[userID]
}

// SetUnread sets the unread counter for userID.
func (c *Chat) SetUnread(userID string, n int) {
	if c.UnreadCount == nil {
		c.UnreadCount = make(map[string]int)
	}
	c.UnreadCount[userID] = n
}

// Clone returns a copy that shares no maps, slices or pointers with c.
func (c Chat) Clone() Chat {
	c.Participants = slices.Clone(c.Participants)
	c.UnreadCount = maps.Clone(c.UnreadCount)
	if c.LastMessage != nil {
		m := *c.LastMessage
		c.LastMessage = &m
	}
	return c
}

// Title returns the chat name, or the first participant that is not self.
func (c *Chat) Title(selfID string) string {
	if c.Name != "" {
		return c.Name
	}
	for _, p := range c.Participants {
		if p.ID != selfID && p.Username != "" {
			return p.Username
		}
	}
	return c.ID
}
