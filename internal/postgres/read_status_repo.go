package postgres

import (
	"context"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type ReadStatusRepository struct {
	db querier
}

func NewReadStatusRepository(db querier) *ReadStatusRepository {
	return &ReadStatusRepository{db: db}
}

// UpsertReadStatus keeps one row per (room, user); last_read_at never moves back.
func (r *ReadStatusRepository) UpsertReadStatus(ctx context.Context, roomID, userID string, at time.Time) error {
	const q = `
		INSERT INTO chat_read_status (room_id, user_id, last_read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id)
		DO UPDATE SET last_read_at = GREATEST(chat_read_status.last_read_at, EXCLUDED.last_read_at)`

	_, err := r.db.Exec(ctx, q, roomID, userID, at)
	return mapPgError(err)
}

func (r *ReadStatusRepository) ReadStatuses(ctx context.Context, roomID string) ([]domain.ReadStatus, error) {
	rows, err := r.db.Query(ctx,
		`SELECT room_id, user_id, last_read_at FROM chat_read_status WHERE room_id=$1 ORDER BY user_id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReadStatus
	for rows.Next() {
		var rs domain.ReadStatus
		if err := rows.Scan(&rs.RoomID, &rs.UserID, &rs.LastReadAt); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// UnreadCount counts messages from others newer than the user's last read mark.
func (r *ReadStatusRepository) UnreadCount(ctx context.Context, roomID, userID string) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM chat_messages m
		WHERE m.room_id = $1
		  AND m.sender_id <> $2
		  AND m.created_at > COALESCE(
		    (SELECT last_read_at FROM chat_read_status WHERE room_id = $1 AND user_id = $2),
		    '-infinity'::timestamptz)`

	var n int
	err := r.db.QueryRow(ctx, q, roomID, userID).Scan(&n)
	return n, err
}
