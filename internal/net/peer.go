package net

import (
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simwire/server/internal/net/packet"
)

// Sender is the send half of a Socket.
type Sender interface {
	SendTo(data []byte, addr net.Addr) error
}

// Peer is the remote end of a session. It is touched only by the game loop,
// so nothing here is locked.
type Peer struct {
	ID   uuid.UUID
	Addr net.Addr
	Name string

	state  packet.SessionState
	outBuf [][]byte // buffered frames, flushed in the output phase

	log *zap.Logger
}

func NewPeer(addr net.Addr, log *zap.Logger) *Peer {
	id := uuid.New()
	return &Peer{
		ID:    id,
		Addr:  addr,
		state: packet.StateHandshake,
		log:   log.With(zap.String("peer", id.String()), zap.Stringer("addr", addr)),
	}
}

func (p *Peer) State() packet.SessionState {
	return p.state
}

func (p *Peer) SetState(st packet.SessionState) {
	p.state = st
}

// Log returns the peer-scoped logger.
func (p *Peer) Log() *zap.Logger {
	return p.log
}

// Send buffers a frame. Nothing is written until FlushOutput.
func (p *Peer) Send(frame []byte) {
	if p.state == packet.StateDisconnecting {
		return
	}
	p.outBuf = append(p.outBuf, frame)
}

// Pending returns the number of buffered frames.
func (p *Peer) Pending() int {
	return len(p.outBuf)
}

// FlushOutput writes every buffered frame and empties the buffer. Send
// errors are logged and counted; the remaining frames are still attempted.
func (p *Peer) FlushOutput(s Sender) (sent, failed int) {
	for _, frame := range p.outBuf {
		if err := s.SendTo(frame, p.Addr); err != nil {
			p.log.Debug("send failed", zap.Error(err))
			failed++
			continue
		}
		sent++
	}
	clear(p.outBuf)
	p.outBuf = p.outBuf[:0]
	return sent, failed
}

// PeerStore indexes joined peers by address and by id. Iteration follows
// join order.
type PeerStore struct {
	byAddr map[string]*Peer
	byID   map[uuid.UUID]*Peer
	order  []*Peer
}

func NewPeerStore() *PeerStore {
	return &PeerStore{
		byAddr: make(map[string]*Peer),
		byID:   make(map[uuid.UUID]*Peer),
	}
}

// Add stores p, replacing any peer previously joined from the same address.
func (s *PeerStore) Add(p *Peer) {
	if old, ok := s.byAddr[p.Addr.String()]; ok {
		s.Remove(old.ID)
	}
	s.byAddr[p.Addr.String()] = p
	s.byID[p.ID] = p
	s.order = append(s.order, p)
}

// Remove drops the peer with the given id.
func (s *PeerStore) Remove(id uuid.UUID) (*Peer, bool) {
	p, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	delete(s.byID, id)
	delete(s.byAddr, p.Addr.String())
	for i, q := range s.order {
		if q == p {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return p, true
}

func (s *PeerStore) ByAddr(addr net.Addr) (*Peer, bool) {
	p, ok := s.byAddr[addr.String()]
	return p, ok
}

func (s *PeerStore) ByID(id uuid.UUID) (*Peer, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// All returns the joined peers in join order. The slice must not be kept
// across Add or Remove.
func (s *PeerStore) All() []*Peer {
	return s.order
}

func (s *PeerStore) Len() int {
	return len(s.order)
}
