package realtime

import (
	"log/slog"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

// Presence announces membership changes and relays typing signals. Nothing
// it sends is persisted.
type Presence struct {
	b   *Broadcaster
	log *slog.Logger
}

func NewPresence(b *Broadcaster, log *slog.Logger) *Presence {
	return &Presence{b: b, log: logger.Component(log, "presence")}
}

// Joined tells the rest of the room that userID arrived. The joiner already
// has the list from its join ack.
func (p *Presence) Joined(roomID, userID string, participants []string) {
	p.announce(TypeParticipantJoined, roomID, userID, participants, userID)
}

func (p *Presence) Left(roomID, userID string, participants []string) {
	p.announce(TypeParticipantLeft, roomID, userID, participants)
}

// Typing relays a typing signal to everyone in the room but the typist.
func (p *Presence) Typing(roomID string, user domain.Identity) Result {
	res, err := p.b.Broadcast(roomID, TypingEvent{Type: TypeTyping, RoomID: roomID, User: user}, user.ID)
	if err != nil {
		p.log.Error("typing event", "room_id", roomID, logger.Err(err))
	}
	return res
}

func (p *Presence) announce(kind, roomID, userID string, participants []string, exclude ...string) {
	if participants == nil {
		participants = []string{}
	}
	ev := PresenceEvent{Type: kind, RoomID: roomID, UserID: userID, Participants: participants}
	res, err := p.b.Broadcast(roomID, ev, exclude...)
	if err != nil {
		p.log.Error("presence event", "room_id", roomID, "type", kind, logger.Err(err))
		return
	}
	p.log.Debug("presence", "type", kind, "room_id", roomID, "user_id", userID, "delivered", res.Delivered)
}
