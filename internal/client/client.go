// Package client is the vibectl side of the control API.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nightvibe/nightvibe/internal/api"
	"github.com/nightvibe/nightvibe/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewFromConn wraps an existing connection. The connection must request
// the JSON content subtype.
func NewFromConn(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func call[Resp, Req any](ctx context.Context, c *Client, service, method string, req *Req) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, api.FullMethod(service, method), req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Session

func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	return call[api.StatusResponse](ctx, c, "SessionService", "Status", &api.Empty{})
}

func (c *Client) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	return call[api.LoginResponse](ctx, c, "SessionService", "Login", req)
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := call[api.Empty](ctx, c, "SessionService", "Logout", &api.Empty{})
	return err
}

func (c *Client) SetOnboarded(ctx context.Context, v bool) error {
	_, err := call[api.Empty](ctx, c, "SessionService", "SetOnboarded", &api.SetOnboardedRequest{Onboarded: v})
	return err
}

func (c *Client) SetAccountType(ctx context.Context, t domain.AccountType) error {
	_, err := call[api.Empty](ctx, c, "SessionService", "SetAccountType", &api.SetAccountTypeRequest{AccountType: t})
	return err
}

// Chats

func (c *Client) ListChats(ctx context.Context, query string) (*api.ListChatsResponse, error) {
	return call[api.ListChatsResponse](ctx, c, "ChatService", "ListChats", &api.ListChatsRequest{Query: query})
}

func (c *Client) CreateChat(ctx context.Context, req *api.CreateChatRequest) (*api.ChatSummary, error) {
	return call[api.ChatSummary](ctx, c, "ChatService", "CreateChat", req)
}

func (c *Client) OpenChat(ctx context.Context, chatID string) (*api.TranscriptResponse, error) {
	return call[api.TranscriptResponse](ctx, c, "ChatService", "OpenChat", &api.ChatRequest{ChatID: chatID})
}

func (c *Client) CloseChat(ctx context.Context, chatID string) error {
	_, err := call[api.Empty](ctx, c, "ChatService", "CloseChat", &api.ChatRequest{ChatID: chatID})
	return err
}

func (c *Client) LoadMore(ctx context.Context, chatID string) (*api.LoadMoreResponse, error) {
	return call[api.LoadMoreResponse](ctx, c, "ChatService", "LoadMore", &api.ChatRequest{ChatID: chatID})
}

func (c *Client) Transcript(ctx context.Context, chatID string) (*api.TranscriptResponse, error) {
	return call[api.TranscriptResponse](ctx, c, "ChatService", "Transcript", &api.ChatRequest{ChatID: chatID})
}

func (c *Client) Send(ctx context.Context, req *api.SendRequest) (*api.SendResponse, error) {
	return call[api.SendResponse](ctx, c, "ChatService", "Send", req)
}

func (c *Client) Retry(ctx context.Context, chatID, tempID string) (*api.SendResponse, error) {
	return call[api.SendResponse](ctx, c, "ChatService", "Retry", &api.RetryRequest{ChatID: chatID, TempID: tempID})
}

func (c *Client) MarkRead(ctx context.Context, chatID string) error {
	_, err := call[api.Empty](ctx, c, "ChatService", "MarkRead", &api.ChatRequest{ChatID: chatID})
	return err
}

func (c *Client) Typing(ctx context.Context, chatID string, typing bool) (bool, error) {
	resp, err := call[api.TypingResponse](ctx, c, "ChatService", "Typing", &api.TypingRequest{ChatID: chatID, Typing: typing})
	if err != nil {
		return false, err
	}
	return resp.Sent, nil
}

func (c *Client) Delete(ctx context.Context, chatID, messageID string) error {
	_, err := call[api.Empty](ctx, c, "ChatService", "Delete", &api.DeleteRequest{ChatID: chatID, MessageID: messageID})
	return err
}

// WatchTranscript calls fn with the chat's transcript and again after every
// change, until ctx ends, fn returns an error, or the daemon closes the
// stream.
func (c *Client) WatchTranscript(ctx context.Context, chatID string, fn func(*api.TranscriptResponse) error) error {
	desc := &grpc.StreamDesc{StreamName: "WatchTranscript", ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, api.FullMethod("ChatService", "WatchTranscript"))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&api.ChatRequest{ChatID: chatID}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		var t api.TranscriptResponse
		if err := stream.RecvMsg(&t); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(&t); err != nil {
			return err
		}
	}
}

// Payments

func (c *Client) PurchaseTicket(ctx context.Context, eventID, paymentMethod string) (*api.PurchaseResponse, error) {
	return call[api.PurchaseResponse](ctx, c, "PaymentService", "PurchaseTicket", &api.PurchaseRequest{ItemID: eventID, PaymentMethod: paymentMethod})
}

func (c *Client) PurchaseGuide(ctx context.Context, guideID, paymentMethod string) (*api.PurchaseResponse, error) {
	return call[api.PurchaseResponse](ctx, c, "PaymentService", "PurchaseGuide", &api.PurchaseRequest{ItemID: guideID, PaymentMethod: paymentMethod})
}

func (c *Client) RetryConfirm(ctx context.Context, req *api.RetryConfirmRequest) (*api.PurchaseResponse, error) {
	return call[api.PurchaseResponse](ctx, c, "PaymentService", "RetryConfirm", req)
}

// Discover

func (c *Client) ExploreEvents(ctx context.Context, page, limit int) (*api.EventsResponse, error) {
	return call[api.EventsResponse](ctx, c, "DiscoverService", "ExploreEvents", &api.PageRequest{Page: page, Limit: limit})
}

func (c *Client) JoinEvent(ctx context.Context, eventID string) error {
	_, err := call[api.Empty](ctx, c, "DiscoverService", "JoinEvent", &api.IDRequest{ID: eventID})
	return err
}

func (c *Client) ListVendors(ctx context.Context, page, limit int, city string) (*api.VendorsResponse, error) {
	return call[api.VendorsResponse](ctx, c, "DiscoverService", "ListVendors", &api.PageRequest{Page: page, Limit: limit, City: city})
}

func (c *Client) ListGuides(ctx context.Context, city string) (*api.GuidesResponse, error) {
	return call[api.GuidesResponse](ctx, c, "DiscoverService", "ListGuides", &api.PageRequest{City: city})
}

func (c *Client) Stats(ctx context.Context) (*domain.Stats, error) {
	return call[domain.Stats](ctx, c, "DiscoverService", "Stats", &api.Empty{})
}
