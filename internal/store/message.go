package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nightvibe/nightvibe/internal/domain"
)

// statusRank mirrors domain.Status.Rank so an upsert never moves a message
// backwards (e.g. a stale history page arriving after a read receipt).
const statusRank = `CASE %s WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 ELSE 0 END`

var upsertMessageSQL = fmt.Sprintf(`
	INSERT INTO messages (id, chat_id, sender_id, sender_name, kind, content, status, reply_to_id, deleted, created_at)
	VALUES (:id, :chat_id, :sender_id, :sender_name, :kind, :content, :status, :reply_to_id, :deleted, :created_at)
	ON CONFLICT(id) DO UPDATE SET
		sender_name = CASE WHEN excluded.sender_name != '' THEN excluded.sender_name ELSE messages.sender_name END,
		content = excluded.content,
		status = CASE WHEN (%s) > (%s) THEN excluded.status ELSE messages.status END,
		deleted = MAX(messages.deleted, excluded.deleted)`,
	fmt.Sprintf(statusRank, "excluded.status"), fmt.Sprintf(statusRank, "messages.status"))

// UpsertMessages stores confirmed messages in one transaction (idempotent on id).
func (db *DB) UpsertMessages(ctx context.Context, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range msgs {
		if msgs[i].ID == "" || msgs[i].ChatID == "" {
			continue
		}
		if _, err := tx.NamedExecContext(ctx, upsertMessageSQL, messageToRow(&msgs[i])); err != nil {
			return fmt.Errorf("upsert message %q: %w", msgs[i].ID, err)
		}
	}
	return tx.Commit()
}

// ListMessages returns the newest `limit` messages of a chat, oldest first.
func (db *DB) ListMessages(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []messageRow
	if err := db.SelectContext(ctx, &rows, `
		SELECT * FROM (
			SELECT id, chat_id, sender_id, sender_name, kind, content, status, reply_to_id, deleted, created_at
			FROM messages
			WHERE chat_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		) ORDER BY created_at ASC, id ASC`, chatID, limit); err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, rowToMessage(r))
	}
	return msgs, nil
}

// MarkChatRead promotes every message in chatID not sent by readerID to read.
func (db *DB) MarkChatRead(ctx context.Context, chatID, readerID string) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE messages SET status = 'read'
		WHERE chat_id = ? AND sender_id != ? AND status IN ('sent', 'delivered')`, chatID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MessageCount returns the total number of cached messages.
func (db *DB) MessageCount(ctx context.Context) (int64, error) {
	var n int64
	err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM messages`)
	return n, err
}

func messageToRow(m *domain.Message) messageRow {
	r := messageRow{
		ID:         m.ID,
		ChatID:     m.ChatID,
		SenderID:   m.Sender.ID,
		SenderName: m.Sender.Username,
		Kind:       string(m.Kind),
		Content:    m.Content,
		Status:     string(m.Status),
		Deleted:    m.Deleted,
		CreatedAt:  m.CreatedAt.UnixMilli(),
	}
	if m.ReplyTo != nil {
		r.ReplyToID = m.ReplyTo.ID
	}
	return r
}

func rowToMessage(r messageRow) domain.Message {
	m := domain.Message{
		ID:        r.ID,
		ChatID:    r.ChatID,
		Sender:    domain.User{ID: r.SenderID, Username: r.SenderName},
		Kind:      domain.MessageKind(r.Kind),
		Content:   r.Content,
		Status:    domain.Status(r.Status),
		Deleted:   r.Deleted,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.ReplyToID != "" {
		m.ReplyTo = &domain.Message{ID: r.ReplyToID}
	}
	return m
}
