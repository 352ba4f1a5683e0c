package api

import (
	"time"

	"github.com/nightvibe/nightvibe/internal/chat"
	"github.com/nightvibe/nightvibe/internal/domain"
	"github.com/nightvibe/nightvibe/internal/payment"
)

// Empty is the request or response of calls that carry nothing.
type Empty struct{}

type StatusResponse struct {
	Profile      string             `json:"profile"`
	LoggedIn     bool               `json:"loggedIn"`
	User         *domain.User       `json:"user,omitempty"`
	Realtime     string             `json:"realtime"`
	SocketID     string             `json:"socketId,omitempty"`
	Onboarded    bool               `json:"onboarded"`
	AccountType  domain.AccountType `json:"accountType"`
	UptimeMs     int64              `json:"uptimeMs"`
	ChatCount    int64              `json:"chatCount"`
	MessageCount int64              `json:"messageCount"`
	LastChatSync time.Time          `json:"lastChatSync,omitzero"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// Signup creates the account first; Username is then required.
	Signup      bool               `json:"signup,omitempty"`
	Username    string             `json:"username,omitempty"`
	AccountType domain.AccountType `json:"accountType,omitempty"`
}

type LoginResponse struct {
	User domain.User `json:"user"`
}

type SetOnboardedRequest struct {
	Onboarded bool `json:"onboarded"`
}

type SetAccountTypeRequest struct {
	AccountType domain.AccountType `json:"accountType"`
}

type ListChatsRequest struct {
	Query string `json:"query,omitempty"`
}

type ChatSummary struct {
	ID          string          `json:"id"`
	Kind        domain.ChatKind `json:"kind"`
	Title       string          `json:"title"`
	LastMessage *domain.Message `json:"lastMessage,omitempty"`
	Unread      int             `json:"unread"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type ListChatsResponse struct {
	Chats []ChatSummary `json:"chats"`
	// Offline is set when the list came from the local cache.
	Offline bool   `json:"offline,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type CreateChatRequest struct {
	// UserID opens a direct chat; Name and ParticipantIDs create a group.
	UserID         string   `json:"userId,omitempty"`
	Name           string   `json:"name,omitempty"`
	ParticipantIDs []string `json:"participantIds,omitempty"`
}

type ChatRequest struct {
	ChatID string `json:"chatId"`
}

type Entry struct {
	Key       string             `json:"key"`
	TempID    string             `json:"tempId,omitempty"`
	Status    domain.Status      `json:"status"`
	Sender    domain.User        `json:"sender"`
	Kind      domain.MessageKind `json:"kind"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"createdAt"`
	ReplyToID string             `json:"replyToId,omitempty"`
	Deleted   bool               `json:"deleted,omitempty"`
	Reason    string             `json:"reason,omitempty"`
}

type TypingUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

type TranscriptResponse struct {
	ChatID  string       `json:"chatId"`
	Entries []Entry      `json:"entries"`
	HasMore bool         `json:"hasMore"`
	Active  bool         `json:"active"`
	Typing  []TypingUser `json:"typing,omitempty"`
	Warning string       `json:"warning,omitempty"`
}

type LoadMoreResponse struct {
	Loaded  int  `json:"loaded"`
	HasMore bool `json:"hasMore"`
}

type SendRequest struct {
	ChatID    string             `json:"chatId"`
	Content   string             `json:"content"`
	Kind      domain.MessageKind `json:"kind,omitempty"`
	ReplyToID string             `json:"replyToId,omitempty"`
}

type RetryRequest struct {
	ChatID string `json:"chatId"`
	TempID string `json:"tempId"`
}

// SendResponse carries the resulting entry. A failed send is not a call
// error: the entry comes back Failed with its reason, ready for Retry.
type SendResponse struct {
	Entry Entry `json:"entry"`
}

type TypingRequest struct {
	ChatID string `json:"chatId"`
	Typing bool   `json:"typing"`
}

type TypingResponse struct {
	Sent bool `json:"sent"`
}

type DeleteRequest struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

type PurchaseRequest struct {
	ItemID        string `json:"itemId"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
}

type RetryConfirmRequest struct {
	Product         string `json:"product"`
	ItemID          string `json:"itemId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type PurchaseResponse struct {
	Outcome         payment.Outcome `json:"outcome"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	Message         string          `json:"message,omitempty"`
	TicketPath      string          `json:"ticketPath,omitempty"`
}

type PageRequest struct {
	Page  int    `json:"page,omitempty"`
	Limit int    `json:"limit,omitempty"`
	City  string `json:"city,omitempty"`
}

type IDRequest struct {
	ID string `json:"id"`
}

type EventsResponse struct {
	Events []domain.Event `json:"events"`
}

type VendorsResponse struct {
	Vendors []domain.Vendor `json:"vendors"`
}

type GuidesResponse struct {
	Guides []domain.Guide `json:"guides"`
}

func entryOf(e chat.Entry) Entry {
	switch e := e.(type) {
	case chat.Pending:
		return Entry{
			Key: e.TempID, TempID: e.TempID, Status: chat.Status(e), Sender: e.Sender,
			Kind: e.Draft.Kind, Content: e.Draft.Content, CreatedAt: e.CreatedAt, ReplyToID: e.Draft.ReplyToID,
		}
	case chat.Failed:
		return Entry{
			Key: e.TempID, TempID: e.TempID, Status: chat.Status(e), Sender: e.Sender,
			Kind: e.Draft.Kind, Content: e.Draft.Content, CreatedAt: e.CreatedAt, ReplyToID: e.Draft.ReplyToID,
			Reason: e.Reason,
		}
	case chat.Confirmed:
		m := e.Message
		out := Entry{
			Key: m.ID, Status: chat.Status(e), Sender: m.Sender, Kind: m.Kind,
			Content: m.Content, CreatedAt: m.CreatedAt, Deleted: m.Deleted,
		}
		if m.ReplyTo != nil {
			out.ReplyToID = m.ReplyTo.ID
		}
		return out
	default:
		panic("api: unknown entry type")
	}
}

func transcriptOf(s chat.Snapshot) *TranscriptResponse {
	out := &TranscriptResponse{
		ChatID:  s.ChatID,
		Entries: make([]Entry, 0, len(s.Entries)),
		HasMore: s.HasMore,
		Active:  s.Active,
	}
	for _, e := range s.Entries {
		out.Entries = append(out.Entries, entryOf(e))
	}
	for _, t := range s.Typing {
		out.Typing = append(out.Typing, TypingUser{UserID: t.UserID, Username: t.Username})
	}
	return out
}

func summaryOf(c domain.Chat, selfID string) ChatSummary {
	updated := c.UpdatedAt
	if c.LastMessage != nil && c.LastMessage.CreatedAt.After(updated) {
		updated = c.LastMessage.CreatedAt
	}
	return ChatSummary{
		ID:          c.ID,
		Kind:        c.Kind,
		Title:       c.Title(selfID),
		LastMessage: c.LastMessage,
		Unread:      c.Unread(selfID),
		UpdatedAt:   updated,
	}
}
