package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

type sessionState int

const (
	stateAuthenticating sessionState = iota
	stateAuthenticated
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateAuthenticating:
		return "authenticating"
	case stateAuthenticated:
		return "authenticated"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session supervises one connection from accept to close. Inbound frames
// are handled one at a time; the auth timer and shutdown may race with
// them and are serialized on mu.
type Session struct {
	hub  *Hub
	conn Conn

	mu       sync.Mutex
	state    sessionState
	identity domain.Identity
	rooms    map[string]struct{}
	timer    *time.Timer

	log *slog.Logger
}

func newSession(h *Hub, c Conn) *Session {
	return &Session{
		hub:   h,
		conn:  c,
		state: stateAuthenticating,
		rooms: make(map[string]struct{}),
		log:   h.log.With("conn_id", c.ID()),
	}
}

func (s *Session) startAuthTimer(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateAuthenticating {
		return
	}
	s.timer = time.AfterFunc(d, s.authExpired)
}

func (s *Session) authExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateAuthenticating {
		return
	}
	s.log.Info("authentication timed out")
	s.closeLocked(CloseAuthTimeout, "authentication timeout")
}

// Identity returns the authenticated identity; ok is false before auth.
func (s *Session) Identity() (domain.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.state == stateAuthenticated
}

// Rooms returns the rooms this session has joined.
func (s *Session) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		out = append(out, id)
	}
	return out
}

// Handle dispatches one inbound frame.
func (s *Session) Handle(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateClosed {
		return
	}

	in, err := decodeInbound(data)
	if err != nil {
		s.log.Debug("protocol error", logger.Err(err))
		if s.state == stateAuthenticated {
			s.reply(errorEvent{Type: TypeError, Message: err.Error()})
		}
		return
	}

	if s.state == stateAuthenticating {
		if in.Type != TypeAuth {
			s.log.Debug("frame ignored before auth", "type", in.Type)
			return
		}
		s.authenticate(in.Token)
		return
	}

	switch in.Type {
	case TypeAuth:
		s.protocolError(errAlreadyAuthed)
	case TypeJoin:
		s.join(in.RoomID)
	case TypeLeave:
		s.leave(in.RoomID)
	case TypeMessage:
		s.message(in)
	case TypeTyping:
		s.typing(in.RoomID)
	case TypeRead:
		s.read(in.RoomID)
	default:
		s.log.Debug("protocol error", "type", in.Type, logger.Err(errUnknownType))
		s.protocolError(errUnknownType)
	}
}

func (s *Session) authenticate(token string) {
	id, err := s.hub.verifier.Verify(token)
	if err != nil {
		s.log.Info("authentication failed", logger.Err(err))
		s.reply(authFailed{Type: TypeAuth, Success: false, Error: err.Error()})
		s.closeLocked(ClosePolicyViolation, "authentication failed")
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.identity = id
	s.state = stateAuthenticated
	s.log = s.log.With("user_id", id.ID)

	if prev := s.hub.registry.Register(id.ID, s.conn); prev != nil {
		if old := s.hub.sessionOf(prev); old != nil && old != s {
			old.supersede()
		}
	}
	s.log.Info("authenticated")
	s.reply(authOK{
		Type:      TypeAuth,
		Success:   true,
		UserID:    id.ID,
		FirstName: id.FirstName,
		LastName:  id.LastName,
	})
}

func (s *Session) join(roomID string) {
	if roomID == "" {
		s.protocolError(errMissingRoom)
		return
	}

	if err := s.hub.roomExists(roomID); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			s.log.Warn("join rejected", "room_id", roomID, logger.Err(err))
		} else {
			s.log.Error("room lookup", "room_id", roomID, logger.Err(err))
		}
		s.reply(joinAck{Type: TypeJoin, RoomID: roomID, Success: false, Participants: []string{}})
		return
	}

	members, added := s.hub.membership.Join(roomID, s.identity, s.conn.ID())
	s.rooms[roomID] = struct{}{}
	ids := userIDs(members)

	s.reply(joinAck{Type: TypeJoin, RoomID: roomID, Success: true, Participants: ids})
	if added {
		s.hub.presence.Joined(roomID, s.identity.ID, ids)
	}
	s.log.Debug("joined room", "room_id", roomID, "participants", len(ids))
}

func (s *Session) leave(roomID string) {
	if roomID == "" {
		s.protocolError(errMissingRoom)
		return
	}

	members, removed := s.hub.membership.Leave(roomID, s.identity.ID, s.conn.ID())
	delete(s.rooms, roomID)
	s.reply(roomAck{Type: TypeLeave, RoomID: roomID, Success: removed})
	if removed {
		s.hub.presence.Left(roomID, s.identity.ID, userIDs(members))
		s.log.Debug("left room", "room_id", roomID)
	}
}

func (s *Session) message(in inbound) {
	if in.RoomID == "" {
		s.protocolError(errMissingRoom)
		return
	}
	content, err := in.content()
	if err != nil {
		s.protocolError(err)
		return
	}

	_, err = s.sendMessage(in.RoomID, content)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotMember):
		s.log.Warn("message dropped", "room_id", in.RoomID, logger.Err(err))
	case errors.Is(err, domain.ErrEmptyContent), errors.Is(err, domain.ErrContentTooLong):
		s.protocolError(err)
	default:
		s.log.Error("send message", "room_id", in.RoomID, logger.Err(err))
	}
}

func (s *Session) typing(roomID string) {
	if roomID == "" {
		s.protocolError(errMissingRoom)
		return
	}
	if !s.hub.membership.IsMember(roomID, s.identity.ID, s.conn.ID()) {
		s.log.Warn("typing dropped", "room_id", roomID, logger.Err(domain.ErrNotMember))
		return
	}
	s.hub.presence.Typing(roomID, s.identity)
}

// read records the caller's last-read mark through the same store path the
// REST surface uses.
func (s *Session) read(roomID string) {
	if roomID == "" {
		s.protocolError(errMissingRoom)
		return
	}
	if !s.hub.membership.IsMember(roomID, s.identity.ID, s.conn.ID()) {
		s.log.Warn("read mark dropped", "room_id", roomID, logger.Err(domain.ErrNotMember))
		return
	}

	at := s.hub.cfg.Now().UTC().Truncate(time.Millisecond)
	if err := s.hub.persister.EnqueueReadMark(roomID, s.identity.ID, at); err != nil {
		s.log.Warn("read mark not queued", "room_id", roomID, logger.Err(err))
		s.reply(errorEvent{Type: TypeError, Message: "read status unavailable"})
		return
	}
	s.reply(readAck{Type: TypeRead, RoomID: roomID, At: at})
}

func (s *Session) protocolError(err error) {
	s.reply(errorEvent{Type: TypeError, Message: err.Error()})
}

func (s *Session) reply(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("marshal reply", logger.Err(err))
		return
	}
	if err := s.conn.Send(data); err != nil {
		s.log.Debug("reply not delivered", logger.Err(err))
	}
}

// Close releases everything the session holds. The transport calls it when
// the connection ends; it is safe to call more than once and before auth.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
}

// supersede ends a session whose identity reconnected elsewhere. Frames still
// in flight on the old socket are ignored from here on.
func (s *Session) supersede() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed {
		return
	}
	s.log.Info("session superseded")
	s.closeLocked(CloseSuperseded, "session superseded")
}

// terminate closes the transport with code and cleans up.
func (s *Session) terminate(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked(code, reason)
}

func (s *Session) closeLocked(code int, reason string) {
	if s.state == stateClosed {
		return
	}
	if err := s.conn.Close(code, reason); err != nil {
		s.log.Debug("close connection", "code", code, logger.Err(err))
	}
	s.cleanupLocked()
}

func (s *Session) cleanupLocked() {
	if s.state == stateClosed {
		return
	}
	wasAuthed := s.state == stateAuthenticated
	s.state = stateClosed
	if s.timer != nil {
		s.timer.Stop()
	}
	s.hub.untrack(s)
	if !wasAuthed {
		return
	}

	for roomID := range s.rooms {
		members, removed := s.hub.membership.Leave(roomID, s.identity.ID, s.conn.ID())
		if removed {
			s.hub.presence.Left(roomID, s.identity.ID, userIDs(members))
		}
	}
	clear(s.rooms)
	s.hub.registry.Unregister(s.identity.ID, s.conn)
	s.log.Info("session closed")
}
