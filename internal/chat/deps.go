// Package chat holds the chat view-models: one ViewModel per open chat,
// merging REST history with realtime pushes, and a List tracking every
// chat's last message and unread counter.
package chat

import (
	"context"
	"errors"

	"github.com/nightvibe/nightvibe/internal/domain"
	"github.com/nightvibe/nightvibe/internal/realtime"
)

var (
	// ErrNotFailed is returned by Retry for an id that is not a failed entry.
	ErrNotFailed = errors.New("message is not in a failed state")
	// ErrNotConfirmed is returned by Delete for an id the server never
	// acknowledged.
	ErrNotConfirmed = errors.New("message is not confirmed")
	// ErrEmptyMessage is returned by Send for a draft without content.
	ErrEmptyMessage = errors.New("message is empty")
)

// Backend is the REST surface the view-models need.
type Backend interface {
	Messages(ctx context.Context, chatID string, page, limit int) ([]domain.Message, error)
	SendMessage(ctx context.Context, d domain.Draft) (*domain.Message, error)
	MarkRead(ctx context.Context, chatID string) error
	DeleteMessage(ctx context.Context, messageID string) error
	ListChats(ctx context.Context) ([]domain.Chat, error)
}

// Channel is the realtime surface the view-models need.
type Channel interface {
	// Connect opens the channel if it is down. It is a no-op while
	// connecting or connected.
	Connect(ctx context.Context)
	Subscribe(chatID string, h realtime.Handlers) func()
	JoinChat(chatID string) bool
	LeaveChat(chatID string) bool
	SendTyping(chatID string, isTyping bool) bool
	MarkDelivered(messageID string) bool
	MarkMessagesAsRead(chatID, userID string) bool
}

// Cache is the local copy the view-models warm up from before the network
// answers. It may be nil.
type Cache interface {
	ListMessages(ctx context.Context, chatID string, limit int) ([]domain.Message, error)
	ListChats(ctx context.Context, limit int) ([]domain.Chat, error)
}

// TranscriptChanged is published on the bus when a transcript changes.
// Messages holds the confirmed messages that were added or updated.
type TranscriptChanged struct {
	ChatID   string
	Messages []domain.Message
}

// ListChanged is published when the chat list changes. Full marks the
// complete list as returned by the server; otherwise Chats holds only the
// chats that changed.
type ListChanged struct {
	Chats []domain.Chat
	Full  bool
}

// MessageFailed is published when a send fails.
type MessageFailed struct {
	ChatID string
	TempID string
	Reason string
}

// MessageConfirmed is published when an optimistic entry is confirmed.
type MessageConfirmed struct {
	ChatID  string
	TempID  string
	Message domain.Message
}
