package realtime

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

// Member is one identity present in a room through a specific connection.
type Member struct {
	Identity domain.Identity
	ConnID   string
	JoinedAt time.Time
}

type room struct {
	mu      sync.Mutex
	members map[string]Member // userID -> member
	dead    bool              // emptied and unlinked from the table
}

// snapshot must be called with r.mu held.
func (r *room) snapshot() []Member {
	out := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].Identity.ID < out[j].Identity.ID
	})
	return out
}

// Membership maps a room id to the identities present in it. The table lock
// only guards the room map; membership changes lock the single room.
type Membership struct {
	mu    sync.RWMutex
	rooms map[string]*room

	now func() time.Time
	log *slog.Logger
}

func NewMembership(log *slog.Logger) *Membership {
	return &Membership{
		rooms: make(map[string]*room),
		now:   time.Now,
		log:   logger.Component(log, "membership"),
	}
}

// acquire returns the live room for id, creating it if needed, with its lock held.
func (m *Membership) acquire(id string) *room {
	for {
		m.mu.RLock()
		r := m.rooms[id]
		m.mu.RUnlock()

		if r == nil {
			m.mu.Lock()
			r = m.rooms[id]
			if r == nil || r.dead {
				r = &room{members: make(map[string]Member)}
				m.rooms[id] = r
				m.log.Debug("room created", "room_id", id)
			}
			m.mu.Unlock()
		}

		r.mu.Lock()
		if !r.dead {
			return r
		}
		r.mu.Unlock()

		// lost a race with the last leave; replace the dead entry
		m.mu.Lock()
		if m.rooms[id] == r {
			delete(m.rooms, id)
		}
		m.mu.Unlock()
	}
}

// Join adds the identity to the room through connID and returns the full
// participant list. added is false when the identity was already present; a
// new connection for a present identity takes the entry over.
func (m *Membership) Join(roomID string, id domain.Identity, connID string) (participants []Member, added bool) {
	r := m.acquire(roomID)
	defer r.mu.Unlock()

	cur, present := r.members[id.ID]
	switch {
	case !present:
		r.members[id.ID] = Member{Identity: id, ConnID: connID, JoinedAt: m.now()}
		added = true
	case cur.ConnID != connID:
		cur.ConnID = connID
		cur.Identity = id
		r.members[id.ID] = cur
	}
	return r.snapshot(), added
}

// Leave removes userID from the room if its entry belongs to connID. The room
// entry is deleted when its last member leaves.
func (m *Membership) Leave(roomID, userID, connID string) (participants []Member, removed bool) {
	m.mu.RLock()
	r := m.rooms[roomID]
	m.mu.RUnlock()
	if r == nil {
		return nil, false
	}

	r.mu.Lock()
	if r.dead {
		r.mu.Unlock()
		return nil, false
	}
	cur, ok := r.members[userID]
	if !ok || cur.ConnID != connID {
		participants = r.snapshot()
		r.mu.Unlock()
		return participants, false
	}
	delete(r.members, userID)
	participants = r.snapshot()
	empty := len(r.members) == 0
	if empty {
		r.dead = true
	}
	r.mu.Unlock()

	if empty {
		m.mu.Lock()
		if m.rooms[roomID] == r {
			delete(m.rooms, roomID)
		}
		m.mu.Unlock()
		m.log.Debug("room removed", "room_id", roomID)
	}
	return participants, true
}

// Members returns a snapshot of the room, nil when the room has no entry.
func (m *Membership) Members(roomID string) []Member {
	m.mu.RLock()
	r := m.rooms[roomID]
	m.mu.RUnlock()
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dead {
		return nil
	}
	return r.snapshot()
}

// IsMember reports whether userID is in the room through connID.
func (m *Membership) IsMember(roomID, userID, connID string) bool {
	m.mu.RLock()
	r := m.rooms[roomID]
	m.mu.RUnlock()
	if r == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.members[userID]
	return ok && !r.dead && cur.ConnID == connID
}

func (m *Membership) Exists(roomID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[roomID]
	return ok
}

// Stats returns the number of rooms and the total member count.
func (m *Membership) Stats() (rooms, members int) {
	m.mu.RLock()
	list := make([]*room, 0, len(m.rooms))
	for _, r := range m.rooms {
		list = append(list, r)
	}
	m.mu.RUnlock()

	for _, r := range list {
		r.mu.Lock()
		if !r.dead {
			rooms++
			members += len(r.members)
		}
		r.mu.Unlock()
	}
	return rooms, members
}

func userIDs(members []Member) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Identity.ID)
	}
	return out
}
