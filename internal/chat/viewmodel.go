package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nightvibe/nightvibe/internal/backend"
	"github.com/nightvibe/nightvibe/internal/bus"
	"github.com/nightvibe/nightvibe/internal/domain"
	"github.com/nightvibe/nightvibe/internal/metrics"
	"github.com/nightvibe/nightvibe/internal/realtime"
	"go.uber.org/zap"
)

// TempPrefix marks ids of entries the server has not confirmed.
const TempPrefix = "tmp-"

// Config carries the dependencies of a ViewModel.
type Config struct {
	ChatID   string
	Self     domain.User
	PageSize int
	API      Backend
	Channel  Channel
	Cache    Cache
	Bus      *bus.Bus
	Logger   *zap.Logger
	// Unread is told when the user reads the chat. Optional.
	Unread interface{ ResetUnread(chatID, userID string) }
}

// Snapshot is a point-in-time copy of a view-model's state.
type Snapshot struct {
	ChatID  string
	Entries []Entry
	HasMore bool
	Active  bool
	Typing  []realtime.Typing
}

// ViewModel is the state of one chat screen.
type ViewModel struct {
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	transcript Transcript
	page       int
	hasMore    bool
	active     bool
	unsub      func()
	typing     map[string]realtime.Typing
}

// NewViewModel creates an inactive view-model.
func NewViewModel(cfg Config) *ViewModel {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 30
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewModel{
		cfg:     cfg,
		logger:  logger.With(zap.String("chat", cfg.ChatID)),
		hasMore: true,
		typing:  make(map[string]realtime.Typing),
	}
}

// ChatID returns the chat this view-model shows.
func (vm *ViewModel) ChatID() string { return vm.cfg.ChatID }

// Activate subscribes to the chat's realtime events, fetches the first
// history page, joins the chat's room and marks it read. A fetch error is returned but the
// view-model stays active so pushes keep arriving.
func (vm *ViewModel) Activate(ctx context.Context) error {
	vm.mu.Lock()
	if vm.active {
		vm.mu.Unlock()
		return nil
	}
	vm.active = true
	vm.unsub = vm.cfg.Channel.Subscribe(vm.cfg.ChatID, realtime.Handlers{
		OnMessage:     vm.onMessage,
		OnRead:        vm.onRead,
		OnDelivered:   vm.onDelivered,
		OnTypingStart: vm.onTypingStart,
		OnTypingStop:  vm.onTypingStop,
	})
	warm := vm.transcript.Len() == 0
	vm.mu.Unlock()

	if warm && vm.cfg.Cache != nil {
		cached, err := vm.cfg.Cache.ListMessages(ctx, vm.cfg.ChatID, vm.cfg.PageSize)
		if err != nil {
			vm.logger.Warn("read cached transcript", zap.Error(err))
		} else if len(cached) > 0 {
			vm.merge("cache", cached, false)
		}
	}

	msgs, err := vm.cfg.API.Messages(ctx, vm.cfg.ChatID, 1, vm.cfg.PageSize)
	if err == nil {
		vm.mu.Lock()
		vm.page = 1
		vm.hasMore = len(msgs) >= vm.cfg.PageSize
		vm.mu.Unlock()
		vm.merge("history", msgs, true)
	} else {
		vm.logger.Warn("fetch first history page", zap.Error(err))
	}

	vm.cfg.Channel.JoinChat(vm.cfg.ChatID)
	vm.markSeen()
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	return nil
}

// markSeen tells the server the chat was read and zeroes the local unread
// counter without waiting for a reply.
func (vm *ViewModel) markSeen() {
	vm.cfg.Channel.MarkMessagesAsRead(vm.cfg.ChatID, vm.cfg.Self.ID)
	if vm.cfg.Unread != nil {
		vm.cfg.Unread.ResetUnread(vm.cfg.ChatID, vm.cfg.Self.ID)
	}
}

// LoadMore fetches the next older history page. It returns how many
// messages the page held; 0 with a nil error means history is exhausted.
func (vm *ViewModel) LoadMore(ctx context.Context) (int, error) {
	vm.mu.Lock()
	if !vm.hasMore {
		vm.mu.Unlock()
		return 0, nil
	}
	next := vm.page + 1
	vm.mu.Unlock()

	msgs, err := vm.cfg.API.Messages(ctx, vm.cfg.ChatID, next, vm.cfg.PageSize)
	if err != nil {
		return 0, fmt.Errorf("load page %d: %w", next, err)
	}

	vm.mu.Lock()
	if next > vm.page {
		vm.page = next
		vm.hasMore = len(msgs) >= vm.cfg.PageSize
	}
	vm.mu.Unlock()
	vm.merge("history", msgs, true)
	return len(msgs), nil
}

// Send appends an optimistic entry and posts the draft. It returns the
// resulting Confirmed entry, or the Failed entry along with the error.
func (vm *ViewModel) Send(ctx context.Context, d domain.Draft) (Entry, error) {
	if d.Kind == "" {
		d.Kind = domain.KindText
	}
	if strings.TrimSpace(d.Content) == "" {
		return nil, ErrEmptyMessage
	}
	tempID := TempPrefix + uuid.NewString()
	d.ChatID = vm.cfg.ChatID
	d.ClientID = tempID

	vm.mu.Lock()
	vm.transcript.AddPending(Pending{TempID: tempID, Draft: d, Sender: vm.cfg.Self, CreatedAt: time.Now()})
	vm.mu.Unlock()
	vm.publish(nil)

	return vm.deliver(ctx, tempID, d)
}

// Retry re-issues the payload of a failed entry under the same temporary id.
func (vm *ViewModel) Retry(ctx context.Context, tempID string) (Entry, error) {
	vm.mu.Lock()
	d, ok := vm.transcript.Retry(tempID)
	vm.mu.Unlock()
	if !ok {
		return nil, ErrNotFailed
	}
	vm.publish(nil)
	return vm.deliver(ctx, tempID, d)
}

func (vm *ViewModel) deliver(ctx context.Context, tempID string, d domain.Draft) (Entry, error) {
	msg, err := vm.cfg.API.SendMessage(ctx, d)
	if err != nil {
		reason := backend.UserMessage(err)
		vm.mu.Lock()
		vm.transcript.Fail(tempID, reason)
		e, _ := vm.transcript.Get(tempID)
		vm.mu.Unlock()

		metrics.IncSend("failed")
		vm.logger.Warn("send failed", zap.String("temp_id", tempID), zap.Error(err))
		vm.cfg.Bus.Emit(bus.KindMessageFailed, MessageFailed{ChatID: vm.cfg.ChatID, TempID: tempID, Reason: reason})
		vm.publish(nil)
		return e, fmt.Errorf("send message: %w", err)
	}

	if msg.Sender.ID == "" {
		msg.Sender = vm.cfg.Self
	}
	vm.mu.Lock()
	vm.transcript.Resolve(tempID, *msg)
	e, _ := vm.transcript.Get(msg.ID)
	vm.mu.Unlock()

	metrics.IncSend("sent")
	vm.cfg.Bus.Emit(bus.KindMessageConfirmed, MessageConfirmed{ChatID: vm.cfg.ChatID, TempID: tempID, Message: *msg})
	vm.publish([]domain.Message{*msg})
	return e, nil
}

// Deactivate leaves the chat's room and drops the realtime subscription.
// The transcript stays cached for the next Activate.
func (vm *ViewModel) Deactivate() {
	vm.mu.Lock()
	if !vm.active {
		vm.mu.Unlock()
		return
	}
	vm.active = false
	unsub := vm.unsub
	vm.unsub = nil
	clear(vm.typing)
	vm.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	vm.cfg.Channel.LeaveChat(vm.cfg.ChatID)
}

// MarkRead tells the other participants the chat was read, zeroes the local
// unread counter immediately, then confirms over REST. Messages are promoted
// to read only once the server confirms.
func (vm *ViewModel) MarkRead(ctx context.Context) error {
	vm.markSeen()

	if err := vm.cfg.API.MarkRead(ctx, vm.cfg.ChatID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	vm.mu.Lock()
	changed := vm.transcript.MarkReadBy(vm.cfg.Self.ID, nil)
	vm.mu.Unlock()
	if len(changed) > 0 {
		vm.publish(changed)
	}
	return nil
}

// Delete removes a confirmed message on the server and flags it deleted
// locally.
func (vm *ViewModel) Delete(ctx context.Context, messageID string) error {
	vm.mu.Lock()
	e, ok := vm.transcript.Get(messageID)
	vm.mu.Unlock()
	if !ok {
		return fmt.Errorf("message %q: %w", messageID, ErrNotConfirmed)
	}
	if _, confirmed := e.(Confirmed); !confirmed {
		return fmt.Errorf("message %q: %w", messageID, ErrNotConfirmed)
	}

	if err := vm.cfg.API.DeleteMessage(ctx, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	vm.mu.Lock()
	msg, changed := vm.transcript.MarkDeleted(messageID)
	vm.mu.Unlock()
	if changed {
		vm.publish([]domain.Message{msg})
	}
	return nil
}

// Typing forwards the local typing state; it reports whether it was sent.
func (vm *ViewModel) Typing(isTyping bool) bool {
	return vm.cfg.Channel.SendTyping(vm.cfg.ChatID, isTyping)
}

// Snapshot returns a copy of the current state.
func (vm *ViewModel) Snapshot() Snapshot {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	typing := make([]realtime.Typing, 0, len(vm.typing))
	for _, t := range vm.typing {
		typing = append(typing, t)
	}
	slices.SortFunc(typing, func(a, b realtime.Typing) int { return strings.Compare(a.UserID, b.UserID) })
	return Snapshot{
		ChatID:  vm.cfg.ChatID,
		Entries: vm.transcript.Entries(),
		HasMore: vm.hasMore,
		Active:  vm.active,
		Typing:  typing,
	}
}

func (vm *ViewModel) merge(source string, msgs []domain.Message, persist bool) {
	vm.mu.Lock()
	changed, dups := vm.transcript.Merge(msgs...)
	vm.mu.Unlock()

	for range changed {
		metrics.IncMerge(source, false)
	}
	for i := 0; i < dups; i++ {
		metrics.IncMerge(source, true)
	}
	if !persist {
		changed = nil
	}
	if len(changed) > 0 || source == "cache" {
		vm.publish(changed)
	}
}

func (vm *ViewModel) publish(changed []domain.Message) {
	vm.cfg.Bus.Emit(bus.KindTranscriptChanged, TranscriptChanged{ChatID: vm.cfg.ChatID, Messages: changed})
}

func (vm *ViewModel) onMessage(msg domain.Message) {
	if msg.ChatID != vm.cfg.ChatID {
		return
	}
	vm.merge("push", []domain.Message{msg}, true)
	if msg.Sender.ID != vm.cfg.Self.ID {
		vm.cfg.Channel.MarkDelivered(msg.ID)
	}
	vm.mu.Lock()
	delete(vm.typing, msg.Sender.ID)
	vm.mu.Unlock()
}

func (vm *ViewModel) onRead(r realtime.ReadReceipt) {
	vm.mu.Lock()
	changed := vm.transcript.MarkReadBy(r.UserID, r.MessageIDs)
	vm.mu.Unlock()
	if len(changed) > 0 {
		vm.publish(changed)
	}
}

func (vm *ViewModel) onDelivered(r realtime.DeliveryReceipt) {
	vm.mu.Lock()
	msg, changed := vm.transcript.Advance(r.MessageID, domain.StatusDelivered)
	vm.mu.Unlock()
	if changed {
		vm.publish([]domain.Message{msg})
	}
}

func (vm *ViewModel) onTypingStart(t realtime.Typing) {
	if t.UserID == vm.cfg.Self.ID {
		return
	}
	vm.mu.Lock()
	vm.typing[t.UserID] = t
	vm.mu.Unlock()
	vm.publish(nil)
}

func (vm *ViewModel) onTypingStop(t realtime.Typing) {
	vm.mu.Lock()
	_, had := vm.typing[t.UserID]
	delete(vm.typing, t.UserID)
	vm.mu.Unlock()
	if had {
		vm.publish(nil)
	}
}
