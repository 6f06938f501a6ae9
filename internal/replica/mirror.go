// Package replica keeps a local entity world in step with a remote server's
// from the packets the server replicates.
package replica

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simwire/server/internal/component"
	"github.com/simwire/server/internal/core/ecs"
	"github.com/simwire/server/internal/net/packet"
	"github.com/simwire/server/internal/world"
)

// link pairs a remote handle with the local entity that mirrors it.
type link struct {
	remote ecs.Handle
	local  ecs.Handle
}

// Mirror applies server packets to a local world. Remote and local handles
// are unrelated; the mirror translates between them. It is not safe for
// concurrent use.
type Mirror struct {
	world   *ecs.World[world.TickContext]
	byIndex map[uint64]link // keyed by remote index

	self   uuid.UUID
	joined bool

	log *zap.Logger
}

func NewMirror(log *zap.Logger) *Mirror {
	return &Mirror{
		world:   ecs.NewWorld[world.TickContext](),
		byIndex: make(map[uint64]link),
		log:     log,
	}
}

// World returns the local world. Callers may read it and run systems on it,
// but entity lifetimes belong to the mirror.
func (m *Mirror) World() *ecs.World[world.TickContext] { return m.world }

// Joined reports whether the server acked our Hello, and the id it gave us.
func (m *Mirror) Joined() (uuid.UUID, bool) { return m.self, m.joined }

// Len returns the number of mirrored entities.
func (m *Mirror) Len() int { return len(m.byIndex) }

// Local returns the local entity mirroring remote.
func (m *Mirror) Local(remote ecs.Handle) (ecs.Handle, bool) {
	l, ok := m.byIndex[remote.Index]
	if !ok || l.remote != remote {
		return ecs.Handle{}, false
	}
	return l.local, true
}

// Apply folds one server packet into the local world. Packets that refer to
// unknown or superseded entities are dropped; datagrams can arrive late or
// twice.
func (m *Mirror) Apply(msg any) {
	switch v := msg.(type) {
	case packet.HelloAck:
		m.self, m.joined = v.Peer, true
		m.log.Info("joined", zap.String("peer", v.Peer.String()))
	case packet.CreateEntity:
		m.create(v.Entity)
	case packet.SetComponent:
		m.set(v.Entity, v.Payload)
	case packet.DestroyEntity:
		m.destroy(v.Entity)
	default:
		m.log.Debug("packet ignored by mirror", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (m *Mirror) create(remote ecs.Handle) {
	if l, ok := m.byIndex[remote.Index]; ok {
		switch {
		case l.remote == remote:
			return // snapshot and spawn notice can both announce it
		case l.remote.Generation > remote.Generation:
			m.log.Debug("stale create ignored", zap.Stringer("remote", remote), zap.Stringer("current", l.remote))
			return
		}
		// The slot was reused and we missed the destroy.
		m.world.DestroyEntity(l.local)
	}
	m.byIndex[remote.Index] = link{remote: remote, local: m.world.CreateEntity()}
}

func (m *Mirror) set(remote ecs.Handle, p component.Payload) {
	local, ok := m.Local(remote)
	if !ok {
		m.log.Debug("component for unknown entity ignored", zap.Stringer("remote", remote))
		return
	}
	if p == nil {
		return
	}
	m.world.Store().WithMut(local, func(cm *ecs.ComponentMap) {
		component.Apply(cm, p)
	})
}

func (m *Mirror) destroy(remote ecs.Handle) {
	local, ok := m.Local(remote)
	if !ok {
		m.log.Debug("destroy for unknown entity ignored", zap.Stringer("remote", remote))
		return
	}
	delete(m.byIndex, remote.Index)
	m.world.DestroyEntity(local)
}
