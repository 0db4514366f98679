package realtime

// Conn is one live transport connection. Send must not block: it queues the
// frame or fails. Frames queued by one goroutine are written in order.
type Conn interface {
	ID() string
	Send(data []byte) error
	Close(code int, reason string) error
}
