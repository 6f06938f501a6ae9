package system

import (
	"go.uber.org/zap"

	"github.com/simwire/server/internal/component"
	"github.com/simwire/server/internal/core/ecs"
	"github.com/simwire/server/internal/core/event"
	"github.com/simwire/server/internal/net/packet"
	"github.com/simwire/server/internal/world"
)

// ReplicationSystem sends every entity's Position to all joined peers each
// tick. It runs last among the behavior units so peers see this tick's moves.
type ReplicationSystem struct {
	state *world.State
}

func NewReplicationSystem(state *world.State) *ReplicationSystem {
	return &ReplicationSystem{state: state}
}

func (s *ReplicationSystem) Requires() []ecs.Kind {
	return ecs.Kinds(ecs.KindOf[component.Position]())
}

func (s *ReplicationSystem) Run(_ world.TickContext, store *ecs.Store[ecs.ComponentMap], matched []ecs.Handle) {
	if s.state.Peers.Len() == 0 {
		return
	}
	ecs.Each1(store, matched, func(h ecs.Handle, p *component.Position) {
		s.state.Broadcast(packet.SetComponent{Entity: h, Payload: *p})
	})
}

// SubscribeReplication wires the events that need full entity descriptions:
// a joining peer gets a snapshot of the world, and a spawned entity is
// announced to everyone.
func SubscribeReplication(state *world.State, log *zap.Logger) {
	event.Subscribe(state.Bus, func(e event.PeerJoined) {
		p, ok := state.Peers.ByID(e.Peer)
		if !ok {
			return // left again before the snapshot
		}
		n := state.SendSnapshot(p)
		p.Log().Info("snapshot queued", zap.Int("entities", n))
	})
	event.Subscribe(state.Bus, func(e event.EntitySpawned) {
		if state.ECS.Alive(e.Entity) {
			state.BroadcastEntity(e.Entity)
		}
	})
	event.Subscribe(state.Bus, func(e event.PeerLeft) {
		log.Info("peer left", zap.String("peer", e.Peer.String()), zap.String("reason", e.Reason))
	})
}
