package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Message is immutable once created. Timestamp is assigned at send time and is
// the same value in the broadcast copy and in the persisted row.
type Message struct {
	ID        string    `json:"_id"`
	RoomID    string    `json:"-"`
	Content   string    `json:"content"`
	Sender    Identity  `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage trims content and stamps the message. Timestamps are truncated to
// milliseconds so JSON clients and Postgres see the same instant.
func NewMessage(roomID string, sender Identity, content string, maxLen int, now time.Time) (*Message, error) {
	if roomID == "" {
		return nil, ErrEmptyRoomID
	}
	if sender.ID == "" {
		return nil, ErrUnauthenticated
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if maxLen > 0 && utf8.RuneCountInString(content) > maxLen {
		return nil, ErrContentTooLong
	}

	return &Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Content:   content,
		Sender:    sender,
		Timestamp: now.UTC().Truncate(time.Millisecond),
	}, nil
}
