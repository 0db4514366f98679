package realtime

import (
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

// sendMessage runs one chat message through validation, synchronous fan-out
// and asynchronous persistence. Persistence failure never undoes delivery.
// Must be called with s.mu held.
func (s *Session) sendMessage(roomID, content string) (*domain.Message, error) {
	h := s.hub
	if !h.membership.IsMember(roomID, s.identity.ID, s.conn.ID()) {
		return nil, domain.ErrNotMember
	}

	msg, err := domain.NewMessage(roomID, s.identity, content, h.cfg.MaxContentLength, h.cfg.Now())
	if err != nil {
		return nil, err
	}

	res, err := h.broadcast.Broadcast(roomID, ChatEvent{Type: TypeMessage, RoomID: roomID, Message: msg})
	if err != nil {
		return nil, err
	}
	s.log.Debug("message broadcast",
		"room_id", roomID,
		"msg_id", msg.ID,
		"delivered", res.Delivered,
		"failed", res.Failed,
	)

	if err := h.persister.EnqueueMessage(msg); err != nil {
		s.log.Warn("message not queued for persistence",
			"room_id", roomID,
			"msg_id", msg.ID,
			logger.Err(err),
		)
	}
	return msg, nil
}
