package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

type fakeConn struct {
	id string

	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	code    int
	sendErr error
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if c.closed {
		return errors.New("connection closed")
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close(code int, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.code = code
	return nil
}

func (c *fakeConn) isClosed() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.code
}

// events decodes every frame received so far.
func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ev := range c.events(t) {
		if ev["type"] == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

type fakeVerifier map[string]domain.Identity

func (v fakeVerifier) Verify(token string) (domain.Identity, error) {
	id, ok := v[token]
	if !ok {
		return domain.Identity{}, errors.New("invalid token")
	}
	return id, nil
}

type fakeRooms struct {
	mu    sync.Mutex
	ids   map[string]bool
	err   error
	calls int
}

func newFakeRooms(ids ...string) *fakeRooms {
	r := &fakeRooms{ids: make(map[string]bool)}
	for _, id := range ids {
		r.ids[id] = true
	}
	return r
}

func (r *fakeRooms) FindRoom(_ context.Context, id string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if !r.ids[id] {
		return nil, domain.ErrRoomNotFound
	}
	return &domain.Room{ID: id}, nil
}

type readMark struct {
	roomID, userID string
	at             time.Time
}

type fakePersister struct {
	mu       sync.Mutex
	messages []*domain.Message
	marks    []readMark
	err      error
}

func (p *fakePersister) EnqueueMessage(m *domain.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, m)
	return nil
}

func (p *fakePersister) EnqueueReadMark(roomID, userID string, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.marks = append(p.marks, readMark{roomID, userID, at})
	return nil
}

func (p *fakePersister) stored() []*domain.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.Message(nil), p.messages...)
}

var (
	alice = domain.Identity{ID: "alice", FirstName: "alice", LastName: "A"}
	bob   = domain.Identity{ID: "bob", FirstName: "bob", LastName: "B"}
	carol = domain.Identity{ID: "carol", FirstName: "carol", LastName: "C"}
)

func newTestHub(t *testing.T, p *fakePersister) *Hub {
	t.Helper()
	v := fakeVerifier{"t-alice": alice, "t-bob": bob, "t-carol": carol}
	rooms := newFakeRooms("team-1", "team-2", "team-9", "A", "B")
	return NewHub(Config{AuthTimeout: time.Minute, MaxContentLength: 20}, v, rooms, p, logger.Discard())
}

func frame(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// connect opens a session and authenticates it with token.
func connect(t *testing.T, h *Hub, connID, token string) (*Session, *fakeConn) {
	t.Helper()
	c := newFakeConn(connID)
	s := h.Open(c)
	s.Handle(frame(t, map[string]any{"type": "auth", "token": token}))
	_, ok := s.Identity()
	require.True(t, ok)
	return s, c
}

func join(t *testing.T, s *Session, roomID string) {
	t.Helper()
	s.Handle(frame(t, map[string]any{"type": "join", "roomId": roomID}))
}

func participants(ev map[string]any) []string {
	raw, _ := ev["participants"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, v.(string))
	}
	return out
}
