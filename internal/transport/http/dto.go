package http

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateRoomRequest struct {
	TeamID string `json:"teamId"`
}

type RoomItem struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"teamId"`
	CreatedAt time.Time `json:"createdAt"`
}

type SenderItem struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type MessageItem struct {
	ID        string     `json:"_id"`
	Content   string     `json:"content"`
	Sender    SenderItem `json:"sender"`
	Timestamp time.Time  `json:"timestamp"`
}

type HistoryResponse struct {
	Items      []MessageItem `json:"items"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

type UnreadResponse struct {
	RoomID string `json:"roomId"`
	Unread int    `json:"unread"`
}

type ReadResponse struct {
	RoomID     string    `json:"roomId"`
	LastReadAt time.Time `json:"lastReadAt"`
}

type ReadStatusItem struct {
	UserID     string    `json:"userId"`
	LastReadAt time.Time `json:"lastReadAt"`
}

type ReadStatusResponse struct {
	RoomID string           `json:"roomId"`
	Items  []ReadStatusItem `json:"items"`
}

type ParticipantItem struct {
	UserID    string    `json:"userId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	JoinedAt  time.Time `json:"joinedAt"`
}

type ParticipantsResponse struct {
	RoomID string            `json:"roomId"`
	Items  []ParticipantItem `json:"items"`
}
