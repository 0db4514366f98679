package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_rooms (
	id         text        PRIMARY KEY DEFAULT gen_random_uuid()::text,
	team_id    text        NOT NULL UNIQUE,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id                text        PRIMARY KEY,
	room_id           text        NOT NULL REFERENCES chat_rooms (id),
	sender_id         text        NOT NULL,
	sender_first_name text        NOT NULL DEFAULT '',
	sender_last_name  text        NOT NULL DEFAULT '',
	content           text        NOT NULL CHECK (content <> ''),
	created_at        timestamptz NOT NULL
);

CREATE INDEX IF NOT EXISTS chat_messages_room_created_idx
	ON chat_messages (room_id, created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS chat_read_status (
	room_id      text        NOT NULL REFERENCES chat_rooms (id),
	user_id      text        NOT NULL,
	last_read_at timestamptz NOT NULL,
	PRIMARY KEY (room_id, user_id)
);
`

// Migrate creates the chat tables if they are missing.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
