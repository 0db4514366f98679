package domain

import "time"

// Room is the durable chat room record owned by a team.
type Room struct {
	ID        string    `db:"id"`
	TeamID    string    `db:"team_id"`
	CreatedAt time.Time `db:"created_at"`
}

// ReadStatus is one row per participant per room; updated, never duplicated.
type ReadStatus struct {
	RoomID     string    `db:"room_id"`
	UserID     string    `db:"user_id"`
	LastReadAt time.Time `db:"last_read_at"`
}
