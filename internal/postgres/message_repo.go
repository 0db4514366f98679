package postgres

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type MessageRepository struct {
	db querier
}

func NewMessageRepository(db querier) *MessageRepository {
	return &MessageRepository{db: db}
}

// AppendMessage stores a message that was already broadcast. The id is assigned
// at send time, so a repeated append of the same message is a no-op.
func (r *MessageRepository) AppendMessage(ctx context.Context, m *domain.Message) error {
	const q = `
		INSERT INTO chat_messages (id, room_id, sender_id, sender_first_name, sender_last_name, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.Exec(ctx, q,
		m.ID, m.RoomID, m.Sender.ID, m.Sender.FirstName, m.Sender.LastName, m.Content, m.Timestamp)
	return mapPgError(err)
}

// History returns a page of messages newest first. before is the cursor of
// the previous page; appends never shift an existing page.
func (r *MessageRepository) History(ctx context.Context, roomID, before string, limit int) ([]domain.Message, string, error) {
	limit = clampLimit(limit, 50, 100)
	cur, err := DecodeCursor(before)
	if err != nil {
		return nil, "", err
	}

	const q = `
		SELECT id, room_id, sender_id, sender_first_name, sender_last_name, content, created_at
		FROM chat_messages
		WHERE room_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR created_at < $2
		    OR (created_at = $2 AND id < $3)
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	var createdAt, id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, q, roomID, createdAt, id, limit)
	if err != nil {
		return nil, "", fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Message, 0, limit)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Sender.ID, &m.Sender.FirstName, &m.Sender.LastName, &m.Content, &m.Timestamp); err != nil {
			return nil, "", err
		}
		m.Timestamp = m.Timestamp.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{CreatedAt: last.Timestamp, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}
