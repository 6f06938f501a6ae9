package net_test

import (
	"errors"
	stdnet "net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	simnet "github.com/simwire/server/internal/net"
)

func listen(t *testing.T, inSize, maxFrame int) *simnet.Socket {
	t.Helper()
	s, err := simnet.Listen("127.0.0.1:0", inSize, maxFrame, zaptest.NewLogger(t))
	require.NoError(t, err)
	s.Start()
	t.Cleanup(s.Close)
	return s
}

func TestSocketRoundTrip(t *testing.T) {
	a := listen(t, 8, 64)
	b := listen(t, 8, 64)

	assert.Empty(t, b.Poll(0), "poll never blocks")

	require.NoError(t, a.SendTo([]byte("one"), b.LocalAddr()))
	require.NoError(t, a.SendTo([]byte("two"), b.LocalAddr()))

	var got []simnet.Datagram
	require.Eventually(t, func() bool {
		got = append(got, b.Poll(0)...)
		return len(got) == 2
	}, 2*time.Second, 5*time.Millisecond)

	// Loopback UDP does not reorder in practice, but delivery order is not
	// part of the contract.
	assert.ElementsMatch(t, [][]byte{[]byte("one"), []byte("two")}, [][]byte{got[0].Data, got[1].Data})
	assert.Equal(t, a.LocalAddr().String(), got[0].Addr.String())
}

func TestSocketPollLimit(t *testing.T) {
	a := listen(t, 8, 64)
	b := listen(t, 8, 64)
	for i := 0; i < 3; i++ {
		require.NoError(t, a.SendTo([]byte{byte(i)}, b.LocalAddr()))
	}
	var total int
	require.Eventually(t, func() bool {
		batch := b.Poll(1)
		assert.LessOrEqual(t, len(batch), 1)
		total += len(batch)
		return total == 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSocketDropsOversize(t *testing.T) {
	a := listen(t, 8, 64)
	b := listen(t, 8, 4)
	require.NoError(t, a.SendTo([]byte("toolong"), b.LocalAddr()))
	require.NoError(t, a.SendTo([]byte("ok"), b.LocalAddr()))

	var got []simnet.Datagram
	require.Eventually(t, func() bool {
		got = append(got, b.Poll(0)...)
		return len(got) == 1 && b.Dropped() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte("ok"), got[0].Data)
}

func TestSocketSendAfterClose(t *testing.T) {
	a := listen(t, 8, 64)
	a.Close()
	a.Close()
	err := a.SendTo([]byte("x"), &stdnet.UDPAddr{IP: stdnet.IPv4(127, 0, 0, 1), Port: 9})
	assert.True(t, errors.Is(err, stdnet.ErrClosed))
}

// failingConn fails every read until closed.
type failingConn struct {
	stdnet.PacketConn
	reads  atomic.Int64
	closed chan struct{}
}

func (c *failingConn) ReadFrom([]byte) (int, stdnet.Addr, error) {
	c.reads.Add(1)
	select {
	case <-c.closed:
		return 0, nil, stdnet.ErrClosed
	default:
		return 0, nil, errors.New("connection refused")
	}
}

func (c *failingConn) LocalAddr() stdnet.Addr {
	return &stdnet.UDPAddr{IP: stdnet.IPv4(127, 0, 0, 1)}
}

func (c *failingConn) Close() error {
	close(c.closed)
	return nil
}

func TestSocketBacksOffOnReadErrors(t *testing.T) {
	conn := &failingConn{closed: make(chan struct{})}
	s := simnet.NewSocket(conn, 8, 64, zaptest.NewLogger(t))
	s.Start()

	require.Eventually(t, func() bool { return s.ReadErrors() >= 3 }, 2*time.Second, time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	// 5+10+20+40+80ms of backoff leaves room for only a handful of reads.
	assert.Less(t, conn.reads.Load(), int64(20))
	assert.Empty(t, s.Poll(0))

	s.Close()
	stopped := conn.reads.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, conn.reads.Load(), stopped+1, "reader exits after close")
}
