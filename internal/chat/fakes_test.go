package chat

import (
	"context"
	"sync"

	"github.com/nightvibe/nightvibe/internal/domain"
	"github.com/nightvibe/nightvibe/internal/realtime"
)

type fakeAPI struct {
	mu          sync.Mutex
	pages       map[int][]domain.Message
	send        func(domain.Draft) (*domain.Message, error)
	sent        []domain.Draft
	markReadErr error
	markReads   int
	deleted     []string
	chats       []domain.Chat
	chatsErr    error
}

func (f *fakeAPI) Messages(_ context.Context, _ string, page, _ int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[page], nil
}

func (f *fakeAPI) SendMessage(_ context.Context, d domain.Draft) (*domain.Message, error) {
	f.mu.Lock()
	f.sent = append(f.sent, d)
	send := f.send
	f.mu.Unlock()
	return send(d)
}

func (f *fakeAPI) MarkRead(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReads++
	return f.markReadErr
}

func (f *fakeAPI) DeleteMessage(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) ListChats(context.Context) ([]domain.Chat, error) {
	return f.chats, f.chatsErr
}

type fakeChannel struct {
	mu        sync.Mutex
	connected bool
	connects  int
	subs      map[string]map[int]realtime.Handlers
	next      int
	joined    []string
	left      []string
	delivered []string
	readFor   []string
	typing    []bool
}

func newFakeChannel(connected bool) *fakeChannel {
	return &fakeChannel{connected: connected, subs: make(map[string]map[int]realtime.Handlers)}
}

func (f *fakeChannel) Connect(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
}

func (f *fakeChannel) Subscribe(chatID string, h realtime.Handlers) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	if f.subs[chatID] == nil {
		f.subs[chatID] = make(map[int]realtime.Handlers)
	}
	f.subs[chatID][id] = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs[chatID], id)
	}
}

func (f *fakeChannel) handlers(chatID string) []realtime.Handlers {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []realtime.Handlers
	for _, h := range f.subs[chatID] {
		out = append(out, h)
	}
	for _, h := range f.subs[""] {
		out = append(out, h)
	}
	return out
}

func (f *fakeChannel) subscribers(chatID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[chatID])
}

func (f *fakeChannel) push(msg domain.Message) {
	for _, h := range f.handlers(msg.ChatID) {
		if h.OnMessage != nil {
			h.OnMessage(msg)
		}
	}
}

func (f *fakeChannel) pushRead(r realtime.ReadReceipt) {
	for _, h := range f.handlers(r.ChatID) {
		if h.OnRead != nil {
			h.OnRead(r)
		}
	}
}

func (f *fakeChannel) pushDelivered(r realtime.DeliveryReceipt) {
	for _, h := range f.handlers(r.ChatID) {
		if h.OnDelivered != nil {
			h.OnDelivered(r)
		}
	}
}

func (f *fakeChannel) pushTyping(t realtime.Typing, start bool) {
	for _, h := range f.handlers(t.ChatID) {
		cb := h.OnTypingStop
		if start {
			cb = h.OnTypingStart
		}
		if cb != nil {
			cb(t)
		}
	}
}

func (f *fakeChannel) record(dst *[]string, v string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	*dst = append(*dst, v)
	return f.connected
}

func (f *fakeChannel) JoinChat(id string) bool { return f.record(&f.joined, id) }
func (f *fakeChannel) LeaveChat(id string) bool { return f.record(&f.left, id) }
func (f *fakeChannel) MarkDelivered(id string) bool { return f.record(&f.delivered, id) }
func (f *fakeChannel) MarkMessagesAsRead(chatID, _ string) bool {
	return f.record(&f.readFor, chatID)
}

func (f *fakeChannel) SendTyping(_ string, isTyping bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, isTyping)
	return f.connected
}
