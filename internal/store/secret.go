package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PutSecret stores an already-encrypted value under key.
func (db *DB) PutSecret(ctx context.Context, key string, nonce, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO secrets (key, nonce, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET nonce = excluded.nonce, value = excluded.value, updated_at = excluded.updated_at`,
		key, nonce, value, time.Now().UnixMilli())
	return err
}

// GetSecret returns the encrypted entry for key, or nil when absent.
func (db *DB) GetSecret(ctx context.Context, key string) (*Secret, error) {
	var s Secret
	err := db.GetContext(ctx, &s, `SELECT key, nonce, value, updated_at FROM secrets WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSecrets removes the given keys.
func (db *DB) DeleteSecrets(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if _, err := db.ExecContext(ctx, `DELETE FROM secrets WHERE key = ?`, k); err != nil {
			return err
		}
	}
	return nil
}
