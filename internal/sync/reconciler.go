package sync

import (
	"context"
	"strconv"
	"time"

	"github.com/nightvibe/nightvibe/internal/store"
)

// ScopeChats is the checkpoint scope of the chat list.
const ScopeChats = "chats"

// Reconciler manages cache sync checkpoints.
type Reconciler struct {
	db *store.DB
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB) *Reconciler {
	return &Reconciler{db: db}
}

// ChatScope is the checkpoint scope of one chat's transcript.
func ChatScope(chatID string) string { return "chat:" + chatID }

// MarkSynced records that scope was written to the cache at t.
func (r *Reconciler) MarkSynced(ctx context.Context, scope string, t time.Time) error {
	return r.db.PutCheckpoint(ctx, scope+".synced_at", strconv.FormatInt(t.UnixMilli(), 10))
}

// LastSynced returns when scope was last written, or the zero time.
func (r *Reconciler) LastSynced(ctx context.Context, scope string) (time.Time, error) {
	v, err := r.db.GetCheckpoint(ctx, scope+".synced_at")
	if err != nil || v == "" {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}
