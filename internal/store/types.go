package store

// chatRow is the on-disk shape of a chat. Nested values are stored as JSON.
type chatRow struct {
	ID           string `db:"id"`
	Kind         string `db:"kind"`
	Name         string `db:"name"`
	Participants string `db:"participants"`
	LastMessage  string `db:"last_message"`
	Unread       string `db:"unread"`
	UpdatedAt    int64  `db:"updated_at"`
}

// messageRow is the on-disk shape of a confirmed message.
type messageRow struct {
	ID         string `db:"id"`
	ChatID     string `db:"chat_id"`
	SenderID   string `db:"sender_id"`
	SenderName string `db:"sender_name"`
	Kind       string `db:"kind"`
	Content    string `db:"content"`
	Status     string `db:"status"`
	ReplyToID  string `db:"reply_to_id"`
	Deleted    bool   `db:"deleted"`
	CreatedAt  int64  `db:"created_at"`
}

// Secret is an encrypted credential-store entry.
type Secret struct {
	Key       string `db:"key"`
	Nonce     []byte `db:"nonce"`
	Value     []byte `db:"value"`
	UpdatedAt int64  `db:"updated_at"`
}
