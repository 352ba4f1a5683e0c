package api

import (
	"context"
	"errors"
	"strings"

	"github.com/nightvibe/nightvibe/internal/backend"
	"github.com/nightvibe/nightvibe/internal/bus"
	"github.com/nightvibe/nightvibe/internal/chat"
	"github.com/nightvibe/nightvibe/internal/domain"
	"github.com/nightvibe/nightvibe/internal/session"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Directory creates and finds chats.
type Directory interface {
	CreateDirectChat(ctx context.Context, userID string) (*domain.Chat, error)
	CreateGroupChat(ctx context.Context, name string, participantIDs []string) (*domain.Chat, error)
	SearchChats(ctx context.Context, query string) ([]domain.Chat, error)
}

// ChatServer is the chat half of the control API.
type ChatServer interface {
	ListChats(context.Context, *ListChatsRequest) (*ListChatsResponse, error)
	CreateChat(context.Context, *CreateChatRequest) (*ChatSummary, error)
	OpenChat(context.Context, *ChatRequest) (*TranscriptResponse, error)
	CloseChat(context.Context, *ChatRequest) (*Empty, error)
	LoadMore(context.Context, *ChatRequest) (*LoadMoreResponse, error)
	Transcript(context.Context, *ChatRequest) (*TranscriptResponse, error)
	Send(context.Context, *SendRequest) (*SendResponse, error)
	Retry(context.Context, *RetryRequest) (*SendResponse, error)
	MarkRead(context.Context, *ChatRequest) (*Empty, error)
	Typing(context.Context, *TypingRequest) (*TypingResponse, error)
	Delete(context.Context, *DeleteRequest) (*Empty, error)
	WatchTranscript(*ChatRequest, ServerStream[TranscriptResponse]) error
}

// ChatService implements ChatServer on top of the chat hub.
type ChatService struct {
	hub      *chat.Hub
	dir      Directory
	sessions *session.Manager
	bus      *bus.Bus
	logger   *zap.Logger
}

// NewChatService creates a new chat service.
func NewChatService(hub *chat.Hub, dir Directory, sessions *session.Manager, b *bus.Bus, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{hub: hub, dir: dir, sessions: sessions, bus: b, logger: logger}
}

func (s *ChatService) self() (domain.User, error) {
	sess := s.sessions.Current()
	if sess == nil {
		return domain.User{}, toStatus(backend.ErrUnauthenticated)
	}
	return sess.User, nil
}

func (s *ChatService) ListChats(ctx context.Context, req *ListChatsRequest) (*ListChatsResponse, error) {
	self, err := s.self()
	if err != nil {
		return nil, err
	}

	resp := &ListChatsResponse{}
	var chats []domain.Chat
	if q := strings.TrimSpace(req.Query); q != "" {
		if chats, err = s.dir.SearchChats(ctx, q); err != nil {
			return nil, toStatus(err)
		}
	} else {
		chats, err = s.hub.List().Load(ctx)
		if err != nil {
			if len(chats) == 0 {
				return nil, toStatus(err)
			}
			resp.Offline = true
			resp.Warning = backend.UserMessage(err)
		}
	}

	resp.Chats = make([]ChatSummary, 0, len(chats))
	for _, c := range chats {
		resp.Chats = append(resp.Chats, summaryOf(c, self.ID))
	}
	return resp, nil
}

func (s *ChatService) CreateChat(ctx context.Context, req *CreateChatRequest) (*ChatSummary, error) {
	self, err := s.self()
	if err != nil {
		return nil, err
	}

	var c *domain.Chat
	switch {
	case req.UserID != "":
		c, err = s.dir.CreateDirectChat(ctx, req.UserID)
	case req.Name != "" && len(req.ParticipantIDs) > 0:
		c, err = s.dir.CreateGroupChat(ctx, req.Name, req.ParticipantIDs)
	default:
		return nil, invalid("either a user id or a group name with participants is required")
	}
	if err != nil {
		return nil, toStatus(err)
	}
	sum := summaryOf(*c, self.ID)
	return &sum, nil
}

func (s *ChatService) OpenChat(ctx context.Context, req *ChatRequest) (*TranscriptResponse, error) {
	if _, err := s.self(); err != nil {
		return nil, err
	}
	if req.ChatID == "" {
		return nil, invalid("chat id is required")
	}
	vm, err := s.hub.Open(ctx, req.ChatID)
	resp := transcriptOf(vm.Snapshot())
	if err != nil {
		if len(resp.Entries) == 0 {
			return nil, toStatus(err)
		}
		resp.Warning = backend.UserMessage(err)
	}
	return resp, nil
}

func (s *ChatService) CloseChat(_ context.Context, req *ChatRequest) (*Empty, error) {
	if err := s.hub.Close(req.ChatID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *ChatService) LoadMore(ctx context.Context, req *ChatRequest) (*LoadMoreResponse, error) {
	vm, err := s.hub.Get(req.ChatID)
	if err != nil {
		return nil, toStatus(err)
	}
	n, err := vm.LoadMore(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &LoadMoreResponse{Loaded: n, HasMore: vm.Snapshot().HasMore}, nil
}

func (s *ChatService) Transcript(_ context.Context, req *ChatRequest) (*TranscriptResponse, error) {
	vm, err := s.hub.Get(req.ChatID)
	if err != nil {
		return nil, toStatus(err)
	}
	return transcriptOf(vm.Snapshot()), nil
}

func (s *ChatService) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	vm, err := s.hub.Get(req.ChatID)
	if err != nil {
		return nil, toStatus(err)
	}
	e, err := vm.Send(ctx, domain.Draft{Kind: req.Kind, Content: req.Content, ReplyToID: req.ReplyToID})
	return s.sendResult(e, err)
}

func (s *ChatService) Retry(ctx context.Context, req *RetryRequest) (*SendResponse, error) {
	vm, err := s.hub.Get(req.ChatID)
	if err != nil {
		return nil, toStatus(err)
	}
	e, err := vm.Retry(ctx, req.TempID)
	return s.sendResult(e, err)
}

func (s *ChatService) sendResult(e chat.Entry, err error) (*SendResponse, error) {
	if e == nil {
		return nil, toStatus(err)
	}
	if err != nil {
		s.logger.Debug("send ended in failed entry", zap.Error(err))
	}
	return &SendResponse{Entry: entryOf(e)}, nil
}

func (s *ChatService) MarkRead(ctx context.Context, req *ChatRequest) (*Empty, error) {
	vm, err := s.hub.Get(req.ChatID)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := vm.MarkRead(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *ChatService) Typing(_ context.Context, req *TypingRequest) (*TypingResponse, error) {
	vm, err := s.hub.Get(req.ChatID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TypingResponse{Sent: vm.Typing(req.Typing)}, nil
}

func (s *ChatService) Delete(ctx context.Context, req *DeleteRequest) (*Empty, error) {
	vm, err := s.hub.Get(req.ChatID)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := vm.Delete(ctx, req.MessageID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

// WatchTranscript opens the chat if needed, sends its transcript, then a
// fresh transcript after every change until the client goes away.
func (s *ChatService) WatchTranscript(req *ChatRequest, stream ServerStream[TranscriptResponse]) error {
	ctx := stream.Context()
	ch, unsub := s.bus.Subscribe(bus.KindTranscriptChanged, 64)
	defer unsub()

	vm, err := s.hub.Get(req.ChatID)
	if errors.Is(err, chat.ErrNotOpen) {
		if _, err := s.self(); err != nil {
			return err
		}
		vm, err = s.hub.Open(ctx, req.ChatID)
		if err != nil {
			s.logger.Warn("watch: initial history fetch failed", zap.String("chat", req.ChatID), zap.Error(err))
		}
	} else if err != nil {
		return toStatus(err)
	}

	if err := stream.Send(transcriptOf(vm.Snapshot())); err != nil {
		return err
	}
	for {
		select {
		case evt := <-ch:
			tc, ok := evt.Payload.(chat.TranscriptChanged)
			if !ok || tc.ChatID != req.ChatID {
				continue
			}
			// Coalesce a burst into one snapshot.
			drain(ch)
			if err := stream.Send(transcriptOf(vm.Snapshot())); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func drain(ch <-chan bus.Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

const chatServiceName = "ChatService"

// ChatServiceDesc describes ChatServer to grpc.Server.RegisterService.
var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: servicePrefix + chatServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(chatServiceName, "ListChats", ChatServer.ListChats),
		unary(chatServiceName, "CreateChat", ChatServer.CreateChat),
		unary(chatServiceName, "OpenChat", ChatServer.OpenChat),
		unary(chatServiceName, "CloseChat", ChatServer.CloseChat),
		unary(chatServiceName, "LoadMore", ChatServer.LoadMore),
		unary(chatServiceName, "Transcript", ChatServer.Transcript),
		unary(chatServiceName, "Send", ChatServer.Send),
		unary(chatServiceName, "Retry", ChatServer.Retry),
		unary(chatServiceName, "MarkRead", ChatServer.MarkRead),
		unary(chatServiceName, "Typing", ChatServer.Typing),
		unary(chatServiceName, "Delete", ChatServer.Delete),
	},
	Streams: []grpc.StreamDesc{
		serverStreaming("WatchTranscript", ChatServer.WatchTranscript),
	},
}
