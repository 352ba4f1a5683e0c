package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nightvibe/nightvibe/internal/domain"
)

// UpsertChat inserts or updates the cached copy of a chat. Empty name,
// participants and last message keep the stored values.
func (db *DB) UpsertChat(ctx context.Context, c *domain.Chat) error {
	row, err := chatToRow(c)
	if err != nil {
		return err
	}
	_, err = db.NamedExecContext(ctx, `
		INSERT INTO chats (id, kind, name, participants, last_message, unread, updated_at)
		VALUES (:id, :kind, :name, :participants, :last_message, :unread, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE chats.name END,
			participants = CASE WHEN excluded.participants NOT IN ('null', '[]') THEN excluded.participants ELSE chats.participants END,
			last_message = CASE WHEN excluded.last_message != '' THEN excluded.last_message ELSE chats.last_message END,
			unread = excluded.unread,
			updated_at = MAX(chats.updated_at, excluded.updated_at)`, row)
	return err
}

// ReplaceChats makes chats the whole cached list in a single transaction.
// Chats missing from it are dropped along with their messages.
func (db *DB) ReplaceChats(ctx context.Context, chats []domain.Chat) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteChatsExcept(ctx, tx, chats); err != nil {
		return err
	}

	for i := range chats {
		row, err := chatToRow(&chats[i])
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO chats (id, kind, name, participants, last_message, unread, updated_at)
			VALUES (:id, :kind, :name, :participants, :last_message, :unread, :updated_at)
			ON CONFLICT(id) DO UPDATE SET
				kind = excluded.kind,
				name = excluded.name,
				participants = excluded.participants,
				last_message = excluded.last_message,
				unread = excluded.unread,
				updated_at = excluded.updated_at`, row); err != nil {
			return fmt.Errorf("upsert chat %q: %w", row.ID, err)
		}
	}
	return tx.Commit()
}

// ListChats returns cached chats, most recently active first.
func (db *DB) ListChats(ctx context.Context, limit int) ([]domain.Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []chatRow
	if err := db.SelectContext(ctx, &rows, `
		SELECT id, kind, name, participants, last_message, unread, updated_at
		FROM chats
		ORDER BY updated_at DESC
		LIMIT ?`, limit); err != nil {
		return nil, err
	}
	chats := make([]domain.Chat, 0, len(rows))
	for _, r := range rows {
		c, err := rowToChat(r)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, nil
}

// GetChat returns a cached chat, or nil when unknown.
func (db *DB) GetChat(ctx context.Context, id string) (*domain.Chat, error) {
	var r chatRow
	err := db.GetContext(ctx, &r, `
		SELECT id, kind, name, participants, last_message, unread, updated_at
		FROM chats WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c, err := rowToChat(r)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ChatCount returns the number of cached chats.
func (db *DB) ChatCount(ctx context.Context) (int64, error) {
	var n int64
	err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM chats`)
	return n, err
}

func deleteChatsExcept(ctx context.Context, tx *sqlx.Tx, keep []domain.Chat) error {
	if len(keep) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chats`); err != nil {
			return fmt.Errorf("delete chats: %w", err)
		}
		return nil
	}
	ids := make([]string, len(keep))
	for i, c := range keep {
		ids[i] = c.ID
	}
	for _, q := range []string{
		`DELETE FROM messages WHERE chat_id NOT IN (?)`,
		`DELETE FROM chats WHERE id NOT IN (?)`,
	} {
		query, args, err := sqlx.In(q, ids)
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("delete stale chats: %w", err)
		}
	}
	return nil
}

func chatToRow(c *domain.Chat) (chatRow, error) {
	participants, err := json.Marshal(c.Participants)
	if err != nil {
		return chatRow{}, fmt.Errorf("encode participants: %w", err)
	}
	unread, err := json.Marshal(c.UnreadCount)
	if err != nil {
		return chatRow{}, fmt.Errorf("encode unread: %w", err)
	}
	var last []byte
	if c.LastMessage != nil {
		if last, err = json.Marshal(c.LastMessage); err != nil {
			return chatRow{}, fmt.Errorf("encode last message: %w", err)
		}
	}
	updated := c.UpdatedAt
	if c.LastMessage != nil && c.LastMessage.CreatedAt.After(updated) {
		updated = c.LastMessage.CreatedAt
	}
	return chatRow{
		ID:           c.ID,
		Kind:         string(c.Kind),
		Name:         c.Name,
		Participants: string(participants),
		LastMessage:  string(last),
		Unread:       string(unread),
		UpdatedAt:    updated.UnixMilli(),
	}, nil
}

func rowToChat(r chatRow) (domain.Chat, error) {
	c := domain.Chat{
		ID:        r.ID,
		Kind:      domain.ChatKind(r.Kind),
		Name:      r.Name,
		UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(r.Participants), &c.Participants); err != nil {
		return c, fmt.Errorf("decode participants of %q: %w", r.ID, err)
	}
	if r.Unread != "" && r.Unread != "null" {
		if err := json.Unmarshal([]byte(r.Unread), &c.UnreadCount); err != nil {
			return c, fmt.Errorf("decode unread of %q: %w", r.ID, err)
		}
	}
	if r.LastMessage != "" {
		var m domain.Message
		if err := json.Unmarshal([]byte(r.LastMessage), &m); err != nil {
			return c, fmt.Errorf("decode last message of %q: %w", r.ID, err)
		}
		c.LastMessage = &m
	}
	return c, nil
}
