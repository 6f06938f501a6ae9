package system_test

import (
	stdnet "net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/simwire/server/internal/component"
	"github.com/simwire/server/internal/core/event"
	coresys "github.com/simwire/server/internal/core/system"
	"github.com/simwire/server/internal/data"
	"github.com/simwire/server/internal/net"
	"github.com/simwire/server/internal/net/packet"
	"github.com/simwire/server/internal/system"
)

type fakeSocket struct {
	in   []net.Datagram
	sent map[string][][]byte
	fail bool
}

func (f *fakeSocket) Poll(max int) []net.Datagram {
	n := min(max, len(f.in))
	out := f.in[:n]
	f.in = f.in[n:]
	return out
}

func (f *fakeSocket) SendTo(data []byte, addr stdnet.Addr) error {
	if f.fail {
		return stdnet.ErrClosed
	}
	if f.sent == nil {
		f.sent = make(map[string][][]byte)
	}
	f.sent[addr.String()] = append(f.sent[addr.String()], data)
	return nil
}

func addr(port int) *stdnet.UDPAddr {
	return &stdnet.UDPAddr{IP: stdnet.IPv4(127, 0, 0, 1), Port: port}
}

func TestInputDispatchesWithPeerState(t *testing.T) {
	s := newState(t)
	log := zaptest.NewLogger(t)
	reg := packet.NewRegistry[*net.Peer](s.Proto, log)

	var hellos, goodbyes []*net.Peer
	packet.Handle(reg, []packet.SessionState{packet.StateHandshake}, func(p *net.Peer, _ packet.Hello) {
		hellos = append(hellos, p)
	})
	packet.Handle(reg, []packet.SessionState{packet.StateJoined}, func(p *net.Peer, _ packet.Goodbye) {
		goodbyes = append(goodbyes, p)
	})

	joined := net.NewPeer(addr(9001), log)
	joined.SetState(packet.StateJoined)
	s.Peers.Add(joined)

	hello := s.Proto.MustEncode(packet.Hello{Name: "x"})
	bye := s.Proto.MustEncode(packet.Goodbye{})
	sock := &fakeSocket{in: []net.Datagram{
		{Data: hello, Addr: addr(9002)},
		{Data: bye, Addr: addr(9001)},
		{Data: bye, Addr: addr(9003)}, // unknown sender, not allowed
		{Data: []byte{0xff}, Addr: addr(9001)},
	}}
	in := system.NewInputSystem(sock, reg, s, 3, log)
	assert.Equal(t, coresys.PhaseInput, in.Phase())

	in.Update(0)
	require.Len(t, hellos, 1)
	assert.Equal(t, addr(9002).String(), hellos[0].Addr.String())
	assert.Equal(t, packet.StateHandshake, hellos[0].State())
	assert.Equal(t, []*net.Peer{joined}, goodbyes)
	assert.Len(t, sock.in, 1, "per-tick limit leaves the rest queued")

	in.Update(0)
	assert.Empty(t, sock.in)
	assert.Len(t, goodbyes, 1)
}

func TestEventStageDeliversLastIterationsEvents(t *testing.T) {
	s := newState(t)
	var got []event.PeerLeft
	event.Subscribe(s.Bus, func(e event.PeerLeft) { got = append(got, e) })

	stage := system.NewEventSystem(s)
	event.Emit(s.Bus, event.PeerLeft{Reason: "goodbye"})
	assert.Empty(t, got)

	stage.Update(0)
	assert.Equal(t, []event.PeerLeft{{Reason: "goodbye"}}, got)

	stage.Update(0)
	assert.Len(t, got, 1)
}

func TestOutputFlushesJoinedPeers(t *testing.T) {
	s := newState(t)
	log := zaptest.NewLogger(t)
	p := net.NewPeer(addr(9001), log)
	p.SetState(packet.StateJoined)
	s.Peers.Add(p)
	s.Broadcast(packet.Goodbye{})
	s.Broadcast(packet.Goodbye{})

	sock := &fakeSocket{}
	out := system.NewOutputSystem(sock, s, log)
	out.Update(0)
	assert.Len(t, sock.sent[addr(9001).String()], 2)
	assert.Equal(t, 0, p.Pending())

	// Failed sends are dropped, not retried.
	s.Broadcast(packet.Goodbye{})
	sock.fail = true
	out.Update(0)
	assert.Equal(t, 0, p.Pending())
}

func TestRunnerOrdersStages(t *testing.T) {
	s := newState(t)
	log := zaptest.NewLogger(t)
	reg := packet.NewRegistry[*net.Peer](s.Proto, log)
	sock := &fakeSocket{}
	system.SubscribeReplication(s, log)
	s.ECS.AddSystem(system.NewWanderSystem(nil, s.Rand, log))
	s.ECS.AddSystem(system.NewReplicationSystem(s))

	p := net.NewPeer(addr(9001), log)
	p.SetState(packet.StateJoined)
	s.Peers.Add(p)

	r := coresys.NewRunner()
	// Registered out of order on purpose.
	r.Register(system.NewOutputSystem(sock, s, log))
	r.Register(system.NewTickSystem(s))
	r.Register(system.NewEventSystem(s))
	r.Register(system.NewInputSystem(sock, reg, s, 16, log))

	h := s.Spawn(&spawnTpl, 0, 0, component.DirUp)
	r.Tick(10 * time.Millisecond)

	assert.Equal(t, uint64(1), s.Ticks())
	frames := sock.sent[addr(9001).String()]
	// Spawn announcement from the event stage, then this tick's position.
	require.Len(t, frames, 5)
	_, first, err := s.Proto.Decode(frames[0])
	require.NoError(t, err)
	assert.Equal(t, packet.CreateEntity{Entity: h}, first)
	_, last, err := s.Proto.Decode(frames[4])
	require.NoError(t, err)
	assert.IsType(t, component.Position{}, last.(packet.SetComponent).Payload)
}

var spawnTpl = data.MobTemplate{Name: "w", Size: 10, Wander: true}
