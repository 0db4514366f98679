package realtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/chat-service/pkg/logger"
)

func newBroadcastFixture() (*Registry, *Membership, *Broadcaster) {
	reg := NewRegistry(logger.Discard())
	mem := NewMembership(logger.Discard())
	return reg, mem, NewBroadcaster(reg, mem, logger.Discard())
}

func TestBroadcast_ReachesLiveMembersOnly(t *testing.T) {
	reg, mem, b := newBroadcastFixture()
	ca, cb, cc, outsider := newFakeConn("ca"), newFakeConn("cb"), newFakeConn("cc"), newFakeConn("cx")

	reg.Register("alice", ca)
	reg.Register("bob", cb)
	reg.Register("carol", cc)
	reg.Register("dave", outsider)
	mem.Join("team-1", alice, "ca")
	mem.Join("team-1", bob, "cb")
	mem.Join("team-1", carol, "cc")

	res, err := b.Broadcast("team-1", map[string]string{"type": "ping"}, "carol")
	require.NoError(t, err)
	assert.Equal(t, Result{Delivered: 2, Skipped: 1}, res)

	assert.Len(t, ca.events(t), 1)
	assert.Len(t, cb.events(t), 1)
	assert.Empty(t, cc.events(t), "excluded")
	assert.Empty(t, outsider.events(t), "not a member")
}

func TestBroadcast_SkipsDeadAndStaleConnections(t *testing.T) {
	reg, mem, b := newBroadcastFixture()
	ca, stale, fresh := newFakeConn("ca"), newFakeConn("old"), newFakeConn("new")

	reg.Register("alice", ca)
	mem.Join("team-1", alice, "ca")
	// bob joined without ever registering
	mem.Join("team-1", bob, "cb")
	// carol's membership still points at a superseded connection
	reg.Register("carol", stale)
	mem.Join("team-1", carol, "old")
	reg.Register("carol", fresh)

	res, err := b.Broadcast("team-1", map[string]string{"type": "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, 2, res.Skipped)
	assert.Empty(t, fresh.events(t))
}

func TestBroadcast_IsolatesWriteFailures(t *testing.T) {
	reg, mem, b := newBroadcastFixture()
	ca, cb, cc := newFakeConn("ca"), newFakeConn("cb"), newFakeConn("cc")
	cb.sendErr = errors.New("buffer full")

	for _, p := range []struct {
		c  *fakeConn
		id string
	}{{ca, "alice"}, {cb, "bob"}, {cc, "carol"}} {
		reg.Register(p.id, p.c)
	}
	mem.Join("team-1", alice, "ca")
	mem.Join("team-1", bob, "cb")
	mem.Join("team-1", carol, "cc")

	res, err := b.Broadcast("team-1", map[string]string{"type": "x"})
	require.NoError(t, err)
	assert.Equal(t, Result{Delivered: 2, Failed: 1}, res)
	assert.Len(t, ca.events(t), 1)
	assert.Len(t, cc.events(t), 1)
}

func TestBroadcast_UnknownRoom(t *testing.T) {
	_, _, b := newBroadcastFixture()
	res, err := b.Broadcast("nope", map[string]string{"type": "x"})
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestBroadcast_MarshalError(t *testing.T) {
	_, _, b := newBroadcastFixture()
	_, err := b.Broadcast("team-1", make(chan int))
	assert.Error(t, err)
}
