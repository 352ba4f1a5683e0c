// Package sync mirrors what the view-models learn into the local cache, so
// a chat re-opened after a restart shows its transcript before the network
// answers.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/nightvibe/nightvibe/internal/bus"
	"github.com/nightvibe/nightvibe/internal/chat"
	"github.com/nightvibe/nightvibe/internal/domain"
	"github.com/nightvibe/nightvibe/internal/metrics"
	"github.com/nightvibe/nightvibe/internal/store"
	"go.uber.org/zap"
)

const dropPollInterval = 10 * time.Second

// CacheUpdated is the payload of bus.KindCacheUpdated.
type CacheUpdated struct {
	Scope    string
	Chats    int
	Messages int
}

// Engine handles idempotent ingestion of chats and messages into the store.
// It subscribes to "chat." and "session." events on the bus.
type Engine struct {
	db         *store.DB
	bus        *bus.Bus
	reconciler *Reconciler
	logger     *zap.Logger

	cancel  context.CancelFunc
	done    chan struct{}
	dropped int
}

// NewEngine creates a new sync engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:         db,
		bus:        b,
		reconciler: NewReconciler(db),
		logger:     logger,
	}
}

// Reconciler returns the checkpoint store the engine writes to.
func (e *Engine) Reconciler() *Reconciler { return e.reconciler }

// Start subscribes to the bus and ingests events until Stop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	chatCh, unsubChat := e.bus.Subscribe("chat.", 256)
	sessCh, unsubSess := e.bus.Subscribe("session.", 8)

	go func() {
		defer close(e.done)
		defer unsubChat()
		defer unsubSess()
		tick := time.NewTicker(dropPollInterval)
		defer tick.Stop()
		for {
			select {
			case evt := <-chatCh:
				e.handleEvent(ctx, evt)
			case evt := <-sessCh:
				e.handleEvent(ctx, evt)
			case <-tick.C:
				e.reportDropped()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the ingest loop to exit.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.reportDropped()
}

func (e *Engine) reportDropped() {
	n := e.bus.Dropped()
	if n > e.dropped {
		metrics.AddBusDropped(n - e.dropped)
		e.logger.Warn("bus subscribers dropped events", zap.Int("total", n))
	}
	e.dropped = n
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.KindTranscriptChanged:
		tc, ok := evt.Payload.(chat.TranscriptChanged)
		if !ok || len(tc.Messages) == 0 {
			return
		}
		if err := e.IngestMessages(ctx, tc.ChatID, tc.Messages); err != nil {
			e.logger.Error("failed to ingest messages", zap.Error(err), zap.String("chat", tc.ChatID))
		}
	case bus.KindChatListChanged:
		lc, ok := evt.Payload.(chat.ListChanged)
		if !ok || (len(lc.Chats) == 0 && !lc.Full) {
			return
		}
		if err := e.IngestChats(ctx, lc.Chats, lc.Full); err != nil {
			e.logger.Error("failed to ingest chats", zap.Error(err), zap.Int("count", len(lc.Chats)))
		}
	case bus.KindSessionLoggedOut:
		if err := e.db.ClearCache(ctx); err != nil {
			e.logger.Error("failed to clear cache", zap.Error(err))
			return
		}
		e.logger.Info("local cache cleared")
	}
}

// IngestMessages writes a batch of confirmed messages of one chat (idempotent).
func (e *Engine) IngestMessages(ctx context.Context, chatID string, msgs []domain.Message) error {
	if err := e.db.UpsertMessages(ctx, msgs); err != nil {
		return fmt.Errorf("upsert messages: %w", err)
	}
	if err := e.reconciler.MarkSynced(ctx, ChatScope(chatID), time.Now()); err != nil {
		e.logger.Warn("update checkpoint", zap.Error(err))
	}
	e.bus.Emit(bus.KindCacheUpdated, CacheUpdated{Scope: ChatScope(chatID), Messages: len(msgs)})
	return nil
}

// IngestChats writes chat list entries. A full list from the server
// replaces every cached row; otherwise each chat is merged so a push
// without participants does not erase them.
func (e *Engine) IngestChats(ctx context.Context, chats []domain.Chat, full bool) error {
	if full {
		if err := e.db.ReplaceChats(ctx, chats); err != nil {
			return fmt.Errorf("replace chats: %w", err)
		}
		if err := e.reconciler.MarkSynced(ctx, ScopeChats, time.Now()); err != nil {
			e.logger.Warn("update checkpoint", zap.Error(err))
		}
	} else {
		for i := range chats {
			if err := e.db.UpsertChat(ctx, &chats[i]); err != nil {
				return fmt.Errorf("upsert chat %s: %w", chats[i].ID, err)
			}
		}
	}
	e.bus.Emit(bus.KindCacheUpdated, CacheUpdated{Scope: ScopeChats, Chats: len(chats)})
	return nil
}
