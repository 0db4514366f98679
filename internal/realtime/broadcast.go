package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/chat-service/pkg/logger"
)

// Result counts the outcome of one fan-out.
type Result struct {
	Delivered int
	Skipped   int
	Failed    int
}

// Broadcaster delivers one payload to every live connection of a room.
type Broadcaster struct {
	registry   *Registry
	membership *Membership
	log        *slog.Logger
}

func NewBroadcaster(reg *Registry, mem *Membership, log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		registry:   reg,
		membership: mem,
		log:        logger.Component(log, "broadcast"),
	}
}

// Broadcast serializes payload once and writes it to each member of roomID
// that is not in exclude. A member whose registered connection is gone or
// belongs to a different session is skipped. A failed write is logged and
// does not stop delivery to the others.
func (b *Broadcaster) Broadcast(roomID string, payload any, exclude ...string) (Result, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal broadcast payload: %w", err)
	}
	return b.BroadcastRaw(roomID, data, exclude...), nil
}

func (b *Broadcaster) BroadcastRaw(roomID string, data []byte, exclude ...string) Result {
	var skip map[string]struct{}
	if len(exclude) > 0 {
		skip = make(map[string]struct{}, len(exclude))
		for _, id := range exclude {
			skip[id] = struct{}{}
		}
	}

	var res Result
	for _, m := range b.membership.Members(roomID) {
		if _, ok := skip[m.Identity.ID]; ok {
			res.Skipped++
			continue
		}
		c, ok := b.registry.Lookup(m.Identity.ID)
		if !ok || c.ID() != m.ConnID {
			res.Skipped++
			continue
		}
		if err := c.Send(data); err != nil {
			res.Failed++
			b.log.Warn("delivery failed",
				"room_id", roomID,
				"user_id", m.Identity.ID,
				"conn_id", m.ConnID,
				logger.Err(err),
			)
			continue
		}
		res.Delivered++
	}
	return res
}
