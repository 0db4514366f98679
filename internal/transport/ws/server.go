package ws

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cwrk-planet/chat-service/internal/realtime"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

type Config struct {
	PingInterval   time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string
}

type Server struct {
	hub      *realtime.Hub
	cfg      Config
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewServer(hub *realtime.Hub, cfg Config, log *slog.Logger) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 15 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 5 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 << 10
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}

	s := &Server{
		hub: hub,
		cfg: cfg,
		log: logger.Component(log, "ws"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// ServeHTTP upgrades GET /ws. Authentication happens over the socket with
// the first auth frame.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		s.log.Warn("ws upgrade failed", logger.Err(err), "remote", r.RemoteAddr)
		return
	}

	c := newWsConn(uuid.NewString(), conn, s.cfg.SendBuffer, s.cfg.WriteWait)
	s.log.Debug("ws connected", "conn_id", c.id, "remote", r.RemoteAddr)

	session := s.hub.Open(c)
	go c.writePump(s.cfg.PingInterval)
	s.readLoop(c, session)
}

func (s *Server) readLoop(c *wsConn, session *realtime.Session) {
	pongWait := 2 * s.cfg.PingInterval

	defer func() {
		session.Close()
		_ = c.Close(websocket.CloseNormalClosure, "")
		s.log.Debug("ws disconnected", "conn_id", c.id)
	}()

	c.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("ws read", "conn_id", c.id, logger.Err(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		session.Handle(data)
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
