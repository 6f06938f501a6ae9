package net

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Datagram is one received payload and its sender.
type Datagram struct {
	Data []byte
	Addr net.Addr
}

// Socket is an unreliable, unordered datagram endpoint. A reader goroutine
// pushes datagrams onto a bounded queue; the game loop drains it with Poll
// and never blocks on the network.
type Socket struct {
	conn     net.PacketConn
	inbox    chan Datagram
	maxFrame int

	dropped    atomic.Uint64
	readErrors atomic.Uint64
	closeCh    chan struct{}
	closeOnce  sync.Once
	closed     atomic.Bool

	log *zap.Logger
}

// Listen binds a UDP socket. inSize bounds the receive queue; maxFrame is the
// largest datagram accepted.
func Listen(bindAddr string, inSize, maxFrame int, log *zap.Logger) (*Socket, error) {
	conn, err := net.ListenPacket("udp", bindAddr)
	if err != nil {
		return nil, err
	}
	return NewSocket(conn, inSize, maxFrame, log), nil
}

// NewSocket wraps an existing packet connection.
func NewSocket(conn net.PacketConn, inSize, maxFrame int, log *zap.Logger) *Socket {
	return &Socket{
		conn:     conn,
		inbox:    make(chan Datagram, inSize),
		maxFrame: maxFrame,
		closeCh:  make(chan struct{}),
		log:      log.With(zap.String("local", conn.LocalAddr().String())),
	}
}

// Start launches the reader goroutine.
func (s *Socket) Start() {
	go s.readLoop()
}

// readLoop runs in its own goroutine. Datagrams that do not fit the queue or
// exceed the frame limit are dropped; the transport is unreliable anyway.
func (s *Socket) readLoop() {
	buf := make([]byte, s.maxFrame+1)
	var backoff time.Duration
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.readErrors.Add(1)
			backoff = nextBackoff(backoff)
			s.log.Debug("read error", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-s.closeCh:
				return
			}
			continue
		}
		backoff = 0
		if n > s.maxFrame {
			s.dropped.Add(1)
			s.log.Debug("oversized datagram dropped", zap.Stringer("from", addr))
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case s.inbox <- Datagram{Data: data, Addr: addr}:
		case <-s.closeCh:
			return
		default:
			s.dropped.Add(1)
			s.log.Debug("receive queue full, datagram dropped", zap.Stringer("from", addr))
		}
	}
}

const (
	minReadBackoff = 5 * time.Millisecond
	maxReadBackoff = time.Second
)

// nextBackoff doubles the wait after each consecutive read error.
func nextBackoff(cur time.Duration) time.Duration {
	if cur == 0 {
		return minReadBackoff
	}
	return min(cur*2, maxReadBackoff)
}

// Poll drains up to max queued datagrams without blocking. max <= 0 drains
// everything currently queued.
func (s *Socket) Poll(max int) []Datagram {
	var out []Datagram
	for max <= 0 || len(out) < max {
		select {
		case d := <-s.inbox:
			out = append(out, d)
		default:
			return out
		}
	}
	return out
}

// SendTo writes one datagram.
func (s *Socket) SendTo(data []byte, addr net.Addr) error {
	if s.closed.Load() {
		return net.ErrClosed
	}
	_, err := s.conn.WriteTo(data, addr)
	return err
}

// LocalAddr returns the bound address.
func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Dropped returns how many datagrams were discarded on receive.
func (s *Socket) Dropped() uint64 {
	return s.dropped.Load()
}

// ReadErrors returns how many non-close read errors the reader has seen.
func (s *Socket) ReadErrors() uint64 {
	return s.readErrors.Load()
}

// Close stops the reader goroutine and closes the connection.
func (s *Socket) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
	})
}
