package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errClosed     = errors.New("websocket connection closed")
	errBufferFull = errors.New("websocket send buffer full")
)

// wsConn adapts a gorilla connection to realtime.Conn. All writes happen on
// the write pump; Send only queues.
type wsConn struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	writeWait time.Duration

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newWsConn(id string, c *websocket.Conn, buffer int, writeWait time.Duration) *wsConn {
	return &wsConn{
		id:        id,
		conn:      c,
		send:      make(chan []byte, buffer),
		done:      make(chan struct{}),
		writeWait: writeWait,
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(data []byte) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errClosed
	default:
		return errBufferFull
	}
}

// Close asks the write pump to flush what is queued, send a close frame with
// code and drop the socket. Only the first call counts.
func (c *wsConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
	return nil
}

func (c *wsConn) writePump(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.write(data); err != nil {
				_ = c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				_ = c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.done:
			c.flush()
			msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait))
			return
		}
	}
}

func (c *wsConn) write(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// flush writes whatever was queued before Close.
func (c *wsConn) flush() {
	for {
		select {
		case data := <-c.send:
			if err := c.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}
