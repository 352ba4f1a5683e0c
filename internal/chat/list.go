package chat

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/nightvibe/nightvibe/internal/bus"
	"github.com/nightvibe/nightvibe/internal/domain"
	"github.com/nightvibe/nightvibe/internal/realtime"
	"go.uber.org/zap"
)

// List tracks every chat of the session: last message and unread counters.
// It listens to all chats as a wildcard subscriber, so it coexists with
// any number of open view-models.
type List struct {
	api    Backend
	ch     Channel
	cache  Cache
	bus    *bus.Bus
	logger *zap.Logger
	self   domain.User
	isOpen func(chatID string) bool

	mu     sync.Mutex
	chats  map[string]domain.Chat
	unsub  func()
	loaded bool
}

// NewList creates a list for self. isOpen reports whether a chat is
// currently on screen; messages to an open chat do not count as unread.
func NewList(api Backend, ch Channel, cache Cache, b *bus.Bus, self domain.User, isOpen func(string) bool, logger *zap.Logger) *List {
	if logger == nil {
		logger = zap.NewNop()
	}
	if isOpen == nil {
		isOpen = func(string) bool { return false }
	}
	return &List{
		api:    api,
		ch:     ch,
		cache:  cache,
		bus:    b,
		logger: logger,
		self:   self,
		isOpen: isOpen,
		chats:  make(map[string]domain.Chat),
	}
}

// Load fetches the chats over REST and starts listening for pushes. When
// the network fails, the cached chats are served and the error returned.
func (l *List) Load(ctx context.Context) ([]domain.Chat, error) {
	l.mu.Lock()
	if l.unsub == nil {
		l.unsub = l.ch.Subscribe("", realtime.Handlers{OnMessage: l.onMessage})
	}
	l.mu.Unlock()

	chats, err := l.api.ListChats(ctx)
	if err != nil {
		l.logger.Warn("load chats", zap.Error(err))
		if l.cache != nil {
			if cached, cerr := l.cache.ListChats(ctx, 200); cerr == nil {
				l.replace(cached, false)
			}
		}
		return l.Chats(), err
	}
	l.replace(chats, true)
	return l.Chats(), nil
}

func (l *List) replace(chats []domain.Chat, persist bool) {
	l.mu.Lock()
	clear(l.chats)
	for _, c := range chats {
		l.chats[c.ID] = c.Clone()
	}
	l.loaded = true
	l.mu.Unlock()
	if persist {
		l.bus.Emit(bus.KindChatListChanged, ListChanged{Chats: cloneChats(chats), Full: true})
	}
}

// Chats returns the chats ordered by most recent activity.
func (l *List) Chats() []domain.Chat {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Chat, 0, len(l.chats))
	for _, c := range l.chats {
		out = append(out, c.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Chat) int {
		if c := activity(b).Compare(activity(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Get returns one chat.
func (l *List) Get(chatID string) (domain.Chat, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.chats[chatID]
	return c.Clone(), ok
}

// ResetUnread zeroes userID's unread counter for chatID.
func (l *List) ResetUnread(chatID, userID string) {
	l.mu.Lock()
	c, ok := l.chats[chatID]
	if ok {
		// Stored chats are never written in place: readers may hold them.
		c = c.Clone()
		c.SetUnread(userID, 0)
		l.chats[chatID] = c
	}
	l.mu.Unlock()
	if ok {
		l.bus.Emit(bus.KindChatListChanged, ListChanged{Chats: []domain.Chat{c.Clone()}})
	}
}

// Close stops listening for pushes.
func (l *List) Close() {
	l.mu.Lock()
	unsub := l.unsub
	l.unsub = nil
	l.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// onMessage moves a chat's last message forward. Only a message newer than
// the current last one counts as unread, so redelivered pushes and messages
// already in the loaded list are not counted twice.
func (l *List) onMessage(msg domain.Message) {
	l.mu.Lock()
	c, ok := l.chats[msg.ChatID]
	if ok {
		c = c.Clone()
	} else {
		c = domain.Chat{ID: msg.ChatID, Kind: domain.ChatDirect}
	}
	if c.LastMessage != nil && !domain.Before(c.LastMessage.CreatedAt, c.LastMessage.ID, msg.CreatedAt, msg.ID) {
		l.mu.Unlock()
		return
	}
	m := msg
	c.LastMessage = &m
	if msg.CreatedAt.After(c.UpdatedAt) {
		c.UpdatedAt = msg.CreatedAt
	}
	if msg.Sender.ID != l.self.ID && !l.isOpen(msg.ChatID) {
		c.SetUnread(l.self.ID, c.Unread(l.self.ID)+1)
	}
	l.chats[msg.ChatID] = c
	l.mu.Unlock()

	l.bus.Emit(bus.KindChatListChanged, ListChanged{Chats: []domain.Chat{c.Clone()}})
}

func cloneChats(chats []domain.Chat) []domain.Chat {
	out := make([]domain.Chat, len(chats))
	for i, c := range chats {
		out[i] = c.Clone()
	}
	return out
}

func activity(c domain.Chat) time.Time {
	if c.LastMessage != nil && c.LastMessage.CreatedAt.After(c.UpdatedAt) {
		return c.LastMessage.CreatedAt
	}
	return c.UpdatedAt
}
