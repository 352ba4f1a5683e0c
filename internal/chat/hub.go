package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/nightvibe/nightvibe/internal/bus"
	"github.com/nightvibe/nightvibe/internal/domain"
	"go.uber.org/zap"
)

// ErrNotOpen is returned for operations on a chat that was never opened.
var ErrNotOpen = errors.New("chat is not open")

// HubConfig carries the shared dependencies of every view-model.
type HubConfig struct {
	API      Backend
	Channel  Channel
	Cache    Cache
	Bus      *bus.Bus
	Logger   *zap.Logger
	PageSize int
}

// Hub owns the view-models of the logged-in user: at most one per chat,
// plus the chat list.
type Hub struct {
	cfg    HubConfig
	logger *zap.Logger

	mu    sync.Mutex
	self  domain.User
	rooms map[string]*ViewModel
	list  *List
}

// NewHub creates an empty hub.
func NewHub(cfg HubConfig) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{cfg: cfg, logger: logger, rooms: make(map[string]*ViewModel)}
}

// SetSelf sets the logged-in user. Changing identity drops every cached
// view-model.
func (h *Hub) SetSelf(u domain.User) {
	h.mu.Lock()
	same := h.self.ID == u.ID
	h.mu.Unlock()
	if !same {
		h.Reset()
	}
	h.mu.Lock()
	h.self = u
	h.mu.Unlock()
}

// Self returns the logged-in user.
func (h *Hub) Self() domain.User {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.self
}

// List returns the chat list, creating it on first use.
func (h *Hub) List() *List {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.list == nil {
		h.list = NewList(h.cfg.API, h.cfg.Channel, h.cfg.Cache, h.cfg.Bus, h.self, h.isOpen, h.logger)
	}
	return h.list
}

// Open activates the view-model of chatID, creating it if needed. The
// view-model is returned even when the history fetch fails. Opening a chat
// also brings the realtime channel back if reconnecting gave up.
func (h *Hub) Open(ctx context.Context, chatID string) (*ViewModel, error) {
	h.cfg.Channel.Connect(ctx)

	h.mu.Lock()
	vm, ok := h.rooms[chatID]
	if !ok {
		vm = NewViewModel(Config{
			ChatID:   chatID,
			Self:     h.self,
			PageSize: h.cfg.PageSize,
			API:      h.cfg.API,
			Channel:  h.cfg.Channel,
			Cache:    h.cfg.Cache,
			Bus:      h.cfg.Bus,
			Logger:   h.logger,
			Unread:   h,
		})
		h.rooms[chatID] = vm
	}
	h.mu.Unlock()

	return vm, vm.Activate(ctx)
}

// Get returns the view-model of chatID if it was opened.
func (h *Hub) Get(chatID string) (*ViewModel, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	vm, ok := h.rooms[chatID]
	if !ok {
		return nil, ErrNotOpen
	}
	return vm, nil
}

// Close deactivates chatID; its transcript stays cached.
func (h *Hub) Close(chatID string) error {
	vm, err := h.Get(chatID)
	if err != nil {
		return err
	}
	vm.Deactivate()
	return nil
}

// Reset deactivates and forgets every view-model.
func (h *Hub) Reset() {
	h.mu.Lock()
	rooms := h.rooms
	list := h.list
	h.rooms = make(map[string]*ViewModel)
	h.list = nil
	h.mu.Unlock()

	for _, vm := range rooms {
		vm.Deactivate()
	}
	if list != nil {
		list.Close()
	}
}

// ResetUnread forwards to the chat list, if one was loaded.
func (h *Hub) ResetUnread(chatID, userID string) {
	h.mu.Lock()
	list := h.list
	h.mu.Unlock()
	if list != nil {
		list.ResetUnread(chatID, userID)
	}
}

// isOpen is called by the list with its own lock held, never h.mu.
func (h *Hub) isOpen(chatID string) bool {
	h.mu.Lock()
	vm, ok := h.rooms[chatID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	return vm.Snapshot().Active
}
