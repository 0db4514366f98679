package realtime

import (
	"log/slog"
	"sync"

	"github.com/cwrk-planet/chat-service/pkg/logger"
)

// Registry maps an identity to its single live connection.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn

	log *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		conns: make(map[string]Conn),
		log:   logger.Component(log, "registry"),
	}
}

// Register installs c for userID. A previous connection for the same identity
// is closed with CloseSuperseded before c is installed. The superseded handle
// is returned, nil if there was none.
func (r *Registry) Register(userID string, c Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.conns[userID]
	if prev == c {
		return nil
	}
	if prev != nil {
		if err := prev.Close(CloseSuperseded, "session superseded"); err != nil {
			r.log.Debug("close superseded connection", "user_id", userID, "conn_id", prev.ID(), logger.Err(err))
		}
		r.log.Info("connection superseded", "user_id", userID, "old_conn_id", prev.ID(), "conn_id", c.ID())
	}
	r.conns[userID] = c
	return prev
}

func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[userID]
	return c, ok
}

// Unregister removes the mapping only while c is still the registered
// connection, so a superseded session cannot evict its successor.
func (r *Registry) Unregister(userID string, c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.conns[userID]; !ok || cur != c {
		return false
	}
	delete(r.conns, userID)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
