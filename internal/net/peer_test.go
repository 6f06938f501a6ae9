package net_test

import (
	"errors"
	stdnet "net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	simnet "github.com/simwire/server/internal/net"
	"github.com/simwire/server/internal/net/packet"
)

type recordingSender struct {
	frames [][]byte
	fail   map[string]bool
}

func (r *recordingSender) SendTo(data []byte, addr stdnet.Addr) error {
	if r.fail[string(data)] {
		return errors.New("unreachable")
	}
	r.frames = append(r.frames, data)
	return nil
}

func udpAddr(port int) stdnet.Addr {
	return &stdnet.UDPAddr{IP: stdnet.IPv4(127, 0, 0, 1), Port: port}
}

func TestPeerOutbox(t *testing.T) {
	p := simnet.NewPeer(udpAddr(7000), zaptest.NewLogger(t))
	assert.Equal(t, packet.StateHandshake, p.State())

	p.Send([]byte("a"))
	p.Send([]byte("b"))
	p.Send([]byte("c"))
	assert.Equal(t, 3, p.Pending())

	s := &recordingSender{fail: map[string]bool{"b": true}}
	sent, failed := p.FlushOutput(s)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, failed)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("c")}, s.frames)
	assert.Zero(t, p.Pending())

	p.SetState(packet.StateDisconnecting)
	p.Send([]byte("late"))
	assert.Zero(t, p.Pending())
}

func TestPeerStore(t *testing.T) {
	log := zaptest.NewLogger(t)
	store := simnet.NewPeerStore()
	a := simnet.NewPeer(udpAddr(1), log)
	b := simnet.NewPeer(udpAddr(2), log)
	store.Add(a)
	store.Add(b)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, []*simnet.Peer{a, b}, store.All())

	got, ok := store.ByAddr(udpAddr(2))
	require.True(t, ok)
	assert.Same(t, b, got)

	// Rejoining from the same address replaces the old session.
	a2 := simnet.NewPeer(udpAddr(1), log)
	store.Add(a2)
	assert.Equal(t, []*simnet.Peer{b, a2}, store.All())
	_, ok = store.ByID(a.ID)
	assert.False(t, ok)

	removed, ok := store.Remove(b.ID)
	require.True(t, ok)
	assert.Same(t, b, removed)
	_, ok = store.Remove(b.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())
}
