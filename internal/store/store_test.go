package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nightvibe/nightvibe/internal/domain"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func msg(id, chat, sender string, at int64, status domain.Status) domain.Message {
	return domain.Message{
		ID:        id,
		ChatID:    chat,
		Sender:    domain.User{ID: sender, Username: sender},
		Kind:      domain.KindText,
		Content:   "body " + id,
		Status:    status,
		CreatedAt: time.UnixMilli(at).UTC(),
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 3 {
		t.Errorf("version = %d, want 3 (init + secrets + sync state)", result.Version)
	}
}

func TestFreshMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vibe.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Previous != 0 || result.Version != 3 || !result.Changed {
		t.Errorf("result = %+v, want 0 -> 3 changed", *result)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("db perm = %o, want 600", perm)
	}
}

func TestChatUpsertAndList(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	chat := &domain.Chat{ID: "c1", Kind: domain.ChatDirect, Name: "Alice", UpdatedAt: time.UnixMilli(1000)}
	chat.SetUnread("me", 3)
	if err := db.UpsertChat(ctx, chat); err != nil {
		t.Fatal(err)
	}
	chat.Name = "Alice Updated"
	if err := db.UpsertChat(ctx, chat); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertChat(ctx, &domain.Chat{ID: "c2", Kind: domain.ChatGroup, UpdatedAt: time.UnixMilli(5000)}); err != nil {
		t.Fatal(err)
	}

	chats, err := db.ListChats(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 {
		t.Fatalf("got %d chats, want 2", len(chats))
	}
	if chats[0].ID != "c2" {
		t.Errorf("first chat = %q, want c2 (most recent)", chats[0].ID)
	}
	if chats[1].Name != "Alice Updated" {
		t.Errorf("name = %q, want Alice Updated", chats[1].Name)
	}
	if got := chats[1].Unread("me"); got != 3 {
		t.Errorf("unread = %d, want 3", got)
	}
}

func TestGetChat(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	last := msg("m1", "a", "bob", 2000, domain.StatusSent)
	if err := db.UpsertChat(ctx, &domain.Chat{ID: "a", Name: "A", LastMessage: &last}); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetChat(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.Name != "A" {
		t.Fatalf("got %v, want A", c)
	}
	if c.LastMessage == nil || c.LastMessage.ID != "m1" {
		t.Errorf("last message = %v, want m1", c.LastMessage)
	}
	if c.UpdatedAt.UnixMilli() != 2000 {
		t.Errorf("updated_at = %d, want 2000 (taken from last message)", c.UpdatedAt.UnixMilli())
	}

	c, err = db.GetChat(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("expected nil for missing chat")
	}
}

func TestReplaceChats(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	chats := []domain.Chat{
		{ID: "x", UpdatedAt: time.UnixMilli(1)},
		{ID: "y", UpdatedAt: time.UnixMilli(2)},
	}
	if err := db.ReplaceChats(ctx, chats); err != nil {
		t.Fatal(err)
	}
	n, err := db.ChatCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	// A later full list without x drops it and its messages.
	if err := db.UpsertMessages(ctx, []domain.Message{msg("mx", "x", "bob", 1, domain.StatusSent), msg("my", "y", "bob", 2, domain.StatusSent)}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceChats(ctx, []domain.Chat{{ID: "y", UpdatedAt: time.UnixMilli(3)}}); err != nil {
		t.Fatal(err)
	}
	if c, _ := db.GetChat(ctx, "x"); c != nil {
		t.Errorf("stale chat x survived: %+v", c)
	}
	if msgs, _ := db.ListMessages(ctx, "x", 10); len(msgs) != 0 {
		t.Errorf("messages of x = %d, want 0", len(msgs))
	}
	if msgs, _ := db.ListMessages(ctx, "y", 10); len(msgs) != 1 {
		t.Errorf("messages of y = %d, want 1", len(msgs))
	}

	if err := db.ReplaceChats(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if n, _ := db.ChatCount(ctx); n != 0 {
		t.Errorf("count after empty list = %d, want 0", n)
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	m := msg("m1", "chat", "bob", 1000, domain.StatusSent)
	if err := db.UpsertMessages(ctx, []domain.Message{m}); err != nil {
		t.Fatal(err)
	}
	m.Content = "edited"
	if err := db.UpsertMessages(ctx, []domain.Message{m}); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages(ctx, "chat", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent upsert failed)", len(msgs))
	}
	if msgs[0].Content != "edited" {
		t.Errorf("content = %q, want edited", msgs[0].Content)
	}
}

func TestMessageStatusNeverRegresses(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.UpsertMessages(ctx, []domain.Message{msg("m1", "chat", "bob", 1000, domain.StatusRead)}); err != nil {
		t.Fatal(err)
	}
	// A stale history page reports the message as merely sent.
	if err := db.UpsertMessages(ctx, []domain.Message{msg("m1", "chat", "bob", 1000, domain.StatusSent)}); err != nil {
		t.Fatal(err)
	}
	msgs, err := db.ListMessages(ctx, "chat", 10)
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].Status != domain.StatusRead {
		t.Errorf("status = %q, want read", msgs[0].Status)
	}
}

func TestListMessagesReturnsNewestAscending(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	batch := []domain.Message{
		msg("m3", "chat", "bob", 3000, domain.StatusSent),
		msg("m1", "chat", "bob", 1000, domain.StatusSent),
		msg("m2b", "chat", "bob", 2000, domain.StatusSent),
		msg("m2a", "chat", "bob", 2000, domain.StatusSent),
		msg("other", "elsewhere", "bob", 2500, domain.StatusSent),
	}
	if err := db.UpsertMessages(ctx, batch); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages(ctx, "chat", 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"m2a", "m2b", "m3"}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Errorf("msgs[%d] = %q, want %q", i, msgs[i].ID, id)
		}
	}
}

func TestMarkChatRead(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	batch := []domain.Message{
		msg("in1", "chat", "bob", 1000, domain.StatusSent),
		msg("in2", "chat", "bob", 2000, domain.StatusDelivered),
		msg("out", "chat", "me", 3000, domain.StatusSent),
	}
	if err := db.UpsertMessages(ctx, batch); err != nil {
		t.Fatal(err)
	}
	n, err := db.MarkChatRead(ctx, "chat", "me")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("affected = %d, want 2", n)
	}
	msgs, _ := db.ListMessages(ctx, "chat", 10)
	for _, m := range msgs {
		want := domain.StatusRead
		if m.Sender.ID == "me" {
			want = domain.StatusSent
		}
		if m.Status != want {
			t.Errorf("%s status = %q, want %q", m.ID, m.Status, want)
		}
	}
}

func TestSecrets(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.PutSecret(ctx, "token", []byte("n1"), []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := db.PutSecret(ctx, "token", []byte("n2"), []byte("v2")); err != nil {
		t.Fatal(err)
	}
	s, err := db.GetSecret(ctx, "token")
	if err != nil {
		t.Fatal(err)
	}
	if s == nil || string(s.Value) != "v2" || string(s.Nonce) != "n2" {
		t.Fatalf("got %+v, want overwritten value", s)
	}

	if err := db.DeleteSecrets(ctx, "token", "absent"); err != nil {
		t.Fatal(err)
	}
	s, err = db.GetSecret(ctx, "token")
	if err != nil {
		t.Fatal(err)
	}
	if s != nil {
		t.Errorf("expected nil after delete, got %+v", s)
	}
}

func TestCheckpointsAndClearCache(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	v, err := db.GetCheckpoint(ctx, "chats.synced_at")
	if err != nil || v != "" {
		t.Fatalf("unset checkpoint = %q, %v; want empty, nil", v, err)
	}
	if err := db.PutCheckpoint(ctx, "chats.synced_at", "1"); err != nil {
		t.Fatal(err)
	}
	if err := db.PutCheckpoint(ctx, "chats.synced_at", "2"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetCheckpoint(ctx, "chats.synced_at"); v != "2" {
		t.Errorf("checkpoint = %q, want 2", v)
	}

	if err := db.UpsertChat(ctx, &domain.Chat{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessages(ctx, []domain.Message{msg("m1", "a", "bob", 1000, domain.StatusSent)}); err != nil {
		t.Fatal(err)
	}
	if err := db.PutSecret(ctx, "token", []byte("n"), []byte("v")); err != nil {
		t.Fatal(err)
	}

	if err := db.ClearCache(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := db.ChatCount(ctx); n != 0 {
		t.Errorf("chats after clear = %d, want 0", n)
	}
	if n, _ := db.MessageCount(ctx); n != 0 {
		t.Errorf("messages after clear = %d, want 0", n)
	}
	if v, _ := db.GetCheckpoint(ctx, "chats.synced_at"); v != "" {
		t.Errorf("checkpoint after clear = %q, want empty", v)
	}
	if s, _ := db.GetSecret(ctx, "token"); s == nil {
		t.Error("secrets must survive a cache clear")
	}
}
