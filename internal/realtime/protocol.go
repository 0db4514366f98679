package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// Message types on the wire.
const (
	TypeAuth              = "auth"
	TypeJoin              = "join"
	TypeLeave             = "leave"
	TypeMessage           = "message"
	TypeTyping            = "typing"
	TypeRead              = "read"
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"
	TypeError             = "error"
)

// Close codes sent to the peer.
const (
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseAuthTimeout     = 4001
	CloseSuperseded      = 4002
)

var (
	errMalformed      = errors.New("malformed payload")
	errUnknownType    = errors.New("unknown message type")
	errMissingRoom    = errors.New("roomId is required")
	errAlreadyAuthed  = errors.New("already authenticated")
	errInvalidContent = errors.New("message content must be a string or {content}")
)

// inbound is the union of every client frame.
type inbound struct {
	Type    string          `json:"type"`
	Token   string          `json:"token,omitempty"`
	RoomID  string          `json:"roomId,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
	Content string          `json:"content,omitempty"`
}

func decodeInbound(data []byte) (inbound, error) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return inbound{}, errMalformed
	}
	if in.Type == "" {
		return inbound{}, errMalformed
	}
	return in, nil
}

// content accepts "message":"hi", "message":{"content":"hi"} and a bare
// "content":"hi".
func (in inbound) content() (string, error) {
	raw := bytes.TrimSpace(in.Message)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return in.Content, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", errInvalidContent
		}
		return s, nil
	case '{':
		var obj struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", errInvalidContent
		}
		return obj.Content, nil
	default:
		return "", errInvalidContent
	}
}

type authOK struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type authFailed struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type joinAck struct {
	Type         string   `json:"type"`
	RoomID       string   `json:"roomId"`
	Success      bool     `json:"success"`
	Participants []string `json:"participants"`
}

type roomAck struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	Success bool   `json:"success"`
}

// PresenceEvent always carries the full participant list, never a delta.
type PresenceEvent struct {
	Type         string   `json:"type"`
	RoomID       string   `json:"roomId"`
	UserID       string   `json:"userId"`
	Participants []string `json:"participants"`
}

type ChatEvent struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId"`
	Message *domain.Message `json:"message"`
}

type TypingEvent struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId"`
	User   domain.Identity `json:"user"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type readAck struct {
	Type   string    `json:"type"`
	RoomID string    `json:"roomId"`
	At     time.Time `json:"at"`
}
