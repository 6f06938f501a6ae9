package world

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/simwire/server/internal/component"
	"github.com/simwire/server/internal/core/ecs"
	"github.com/simwire/server/internal/core/event"
	"github.com/simwire/server/internal/data"
	"github.com/simwire/server/internal/net"
	"github.com/simwire/server/internal/net/packet"
)

// State is the server's in-memory world: the entity runtime plus the peers
// it replicates to. Accessed only from the game loop goroutine, no locks.
type State struct {
	ECS   *ecs.World[TickContext]
	Peers *net.PeerStore
	Proto *packet.Protocol
	Bus   *event.Bus
	Rand  *rand.Rand

	ticks uint64
	log   *zap.Logger
}

func NewState(proto *packet.Protocol, rng *rand.Rand, log *zap.Logger) *State {
	s := &State{
		ECS:   ecs.NewWorld[TickContext](),
		Peers: net.NewPeerStore(),
		Proto: proto,
		Bus:   event.NewBus(),
		Rand:  rng,
		log:   log,
	}
	s.ECS.OnDestroy(func(h ecs.Handle) {
		s.Broadcast(packet.DestroyEntity{Entity: h})
	})
	return s
}

// Ticks returns the number of ticks run so far.
func (s *State) Ticks() uint64 {
	return s.ticks
}

// Step runs one world tick of length dt.
func (s *State) Step(dt time.Duration) {
	ctx := TickContext{Number: s.ticks, Dt: dt.Seconds()}
	s.ECS.Tick(ctx)
	s.ticks++
}

// Send queues msg to one peer.
func (s *State) Send(p *net.Peer, msg any) {
	p.Send(s.Proto.MustEncode(msg))
}

// Broadcast queues msg to every joined peer. The frame is encoded once.
func (s *State) Broadcast(msg any) {
	if s.Peers.Len() == 0 {
		return
	}
	frame := s.Proto.MustEncode(msg)
	for _, p := range s.Peers.All() {
		if p.State() == packet.StateJoined {
			p.Send(frame)
		}
	}
}

// announce returns the packets that describe entity h from scratch.
func (s *State) announce(h ecs.Handle) []any {
	msgs := []any{packet.CreateEntity{Entity: h}}
	s.ECS.Store().With(h, func(m *ecs.ComponentMap) {
		for _, c := range component.Snapshot(m) {
			msgs = append(msgs, packet.SetComponent{Entity: h, Payload: c})
		}
	})
	return msgs
}

// SendSnapshot queues every live entity and its replicable components to p.
func (s *State) SendSnapshot(p *net.Peer) int {
	n := 0
	for h := range s.ECS.Entities() {
		for _, msg := range s.announce(h) {
			s.Send(p, msg)
		}
		n++
	}
	return n
}

// BroadcastEntity announces h to every joined peer.
func (s *State) BroadcastEntity(h ecs.Handle) {
	for _, msg := range s.announce(h) {
		s.Broadcast(msg)
	}
}

// Spawn creates one mob from a template. Peers learn about it through the
// EntitySpawned event on the next dispatch.
func (s *State) Spawn(tpl *data.MobTemplate, x, y float64, dir component.Dir) ecs.Handle {
	h := s.ECS.CreateEntity()
	store := s.ECS.Store()
	ecs.Attach(store, h, component.Position{X: x, Y: y})
	ecs.Attach(store, h, component.Render{Color: tpl.Color, Size: tpl.Size})
	if tpl.Wander {
		ecs.Attach(store, h, component.Wander{Dir: dir})
	}
	event.Emit(s.Bus, event.EntitySpawned{Entity: h})
	s.log.Debug("mob spawned",
		zap.String("mob", tpl.Name),
		zap.Stringer("entity", h),
		zap.Float64("x", x),
		zap.Float64("y", y),
	)
	return h
}

// SpawnAll creates every mob in the list and returns how many were made.
func (s *State) SpawnAll(list *data.SpawnList) int {
	n := 0
	for _, e := range list.Spawns {
		tpl := list.Template(e.Mob)
		dir, _ := component.ParseDir(e.Dir)
		for i := 0; i < e.Count; i++ {
			x, y := e.X, e.Y
			if e.RandomX > 0 {
				x += (s.Rand.Float64()*2 - 1) * e.RandomX
			}
			if e.RandomY > 0 {
				y += (s.Rand.Float64()*2 - 1) * e.RandomY
			}
			s.Spawn(tpl, x, y, dir)
			n++
		}
	}
	return n
}
