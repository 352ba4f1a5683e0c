package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nightvibe/nightvibe/internal/domain"
)

// ListChats returns the chats of the logged-in user.
func (c *Client) ListChats(ctx context.Context) ([]domain.Chat, error) {
	var chats []domain.Chat
	err := c.do(ctx, request{method: http.MethodGet, route: "/chats", path: "/chats"}, &chats)
	return chats, err
}

// GetChat returns one chat.
func (c *Client) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	var chat domain.Chat
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/chats/:id",
		path:   "/chats/" + url.PathEscape(chatID),
	}, &chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// CreateDirectChat opens (or returns the existing) one-to-one chat with userID.
func (c *Client) CreateDirectChat(ctx context.Context, userID string) (*domain.Chat, error) {
	var chat domain.Chat
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/chats/direct",
		path:   "/chats/direct",
		body:   map[string]string{"participantId": userID},
	}, &chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// CreateGroupChat creates a named group with the given participants.
func (c *Client) CreateGroupChat(ctx context.Context, name string, participantIDs []string) (*domain.Chat, error) {
	var chat domain.Chat
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/chats/group",
		path:   "/chats/group",
		body: map[string]any{
			"name":         name,
			"participants": participantIDs,
		},
	}, &chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// SearchChats runs a server-side search over chat names and participants.
func (c *Client) SearchChats(ctx context.Context, query string) ([]domain.Chat, error) {
	var chats []domain.Chat
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/chats/search",
		path:   "/chats/search",
		query:  url.Values{"query": {query}},
	}, &chats)
	return chats, err
}

// Messages fetches one page of a chat's history. Pages are 1-based.
func (c *Client) Messages(ctx context.Context, chatID string, page, limit int) ([]domain.Message, error) {
	var msgs []domain.Message
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/chats/:id/messages",
		path:   "/chats/" + url.PathEscape(chatID) + "/messages",
		query:  pageQuery(page, limit),
	}, &msgs)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].ChatID == "" {
			msgs[i].ChatID = chatID
		}
	}
	return msgs, nil
}

// SendMessage posts a message and returns the server's authoritative copy.
func (c *Client) SendMessage(ctx context.Context, d domain.Draft) (*domain.Message, error) {
	var msg domain.Message
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/chats/:id/messages",
		path:   "/chats/" + url.PathEscape(d.ChatID) + "/messages",
		body:   d,
	}, &msg)
	if err != nil {
		return nil, err
	}
	if msg.ChatID == "" {
		msg.ChatID = d.ChatID
	}
	return &msg, nil
}

// MarkRead marks every message in the chat as read by the current user.
func (c *Client) MarkRead(ctx context.Context, chatID string) error {
	return c.do(ctx, request{
		method: http.MethodPut,
		route:  "/chats/:id/read",
		path:   "/chats/" + url.PathEscape(chatID) + "/read",
	}, nil)
}

// DeleteMessage soft-deletes a message on the server.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		route:  "/messages/:id",
		path:   "/messages/" + url.PathEscape(messageID),
	}, nil)
}
