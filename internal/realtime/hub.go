// Package realtime holds the in-memory side of room messaging: who is
// connected, who is in which room, and how events reach them.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

// Verifier resolves an identity from a credential.
type Verifier interface {
	Verify(token string) (domain.Identity, error)
}

// RoomFinder resolves a durable room; a missing room is domain.ErrRoomNotFound.
type RoomFinder interface {
	FindRoom(ctx context.Context, id string) (*domain.Room, error)
}

// Persister is the asynchronous durable side. Both calls must return without
// waiting for storage.
type Persister interface {
	EnqueueMessage(m *domain.Message) error
	EnqueueReadMark(roomID, userID string, at time.Time) error
}

type Config struct {
	AuthTimeout       time.Duration
	RoomLookupTimeout time.Duration
	MaxContentLength  int
	Now               func() time.Time
}

type Stats struct {
	Sessions    int `json:"sessions"`
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Members     int `json:"members"`
}

// Hub owns the shared state every session works against.
type Hub struct {
	cfg Config

	registry   *Registry
	membership *Membership
	broadcast  *Broadcaster
	presence   *Presence

	verifier  Verifier
	rooms     RoomFinder
	persister Persister
	log       *slog.Logger

	// rooms confirmed to exist; durable rooms are never deleted
	known sync.Map

	mu       sync.Mutex
	sessions map[string]*Session // conn id -> session
	closing  bool
}

func NewHub(cfg Config, verifier Verifier, rooms RoomFinder, persister Persister, log *slog.Logger) *Hub {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = 10 * time.Second
	}
	if cfg.RoomLookupTimeout <= 0 {
		cfg.RoomLookupTimeout = 2 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logger.L()
	}

	reg := NewRegistry(log)
	mem := NewMembership(log)
	b := NewBroadcaster(reg, mem, log)
	return &Hub{
		cfg:        cfg,
		registry:   reg,
		membership: mem,
		broadcast:  b,
		presence:   NewPresence(b, log),
		verifier:   verifier,
		rooms:      rooms,
		persister:  persister,
		log:        logger.Component(log, "supervisor"),
		sessions:   make(map[string]*Session),
	}
}

func (h *Hub) Registry() *Registry     { return h.registry }
func (h *Hub) Membership() *Membership { return h.membership }

// Open starts supervising a freshly accepted connection. The caller feeds
// every inbound frame to Session.Handle and calls Session.Close when the
// transport goes away.
func (h *Hub) Open(c Conn) *Session {
	s := newSession(h, c)

	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		s.terminate(CloseGoingAway, "server shutting down")
		return s
	}
	h.sessions[c.ID()] = s
	h.mu.Unlock()

	s.startAuthTimer(h.cfg.AuthTimeout)
	return s
}

func (h *Hub) untrack(s *Session) {
	h.mu.Lock()
	if h.sessions[s.conn.ID()] == s {
		delete(h.sessions, s.conn.ID())
	}
	h.mu.Unlock()
}

func (h *Hub) sessionOf(c Conn) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.sessions[c.ID()]
	if s == nil || s.conn != c {
		return nil
	}
	return s
}

// roomExists checks the durable record once per room and remembers hits.
func (h *Hub) roomExists(roomID string) error {
	if _, ok := h.known.Load(roomID); ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.RoomLookupTimeout)
	defer cancel()

	if _, err := h.rooms.FindRoom(ctx, roomID); err != nil {
		return err
	}
	h.known.Store(roomID, struct{}{})
	return nil
}

// Participants returns the live members of a room in join order.
func (h *Hub) Participants(roomID string) []Member {
	return h.membership.Members(roomID)
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	sessions := len(h.sessions)
	h.mu.Unlock()

	rooms, members := h.membership.Stats()
	return Stats{
		Sessions:    sessions,
		Connections: h.registry.Len(),
		Rooms:       rooms,
		Members:     members,
	}
}

// Shutdown closes every session with CloseGoingAway and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closing = true
	list := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		list = append(list, s)
	}
	h.mu.Unlock()

	for _, s := range list {
		s.terminate(CloseGoingAway, "server shutting down")
	}
	h.log.Info("hub stopped", "sessions", len(list))
}
