package handler

import (
	"go.uber.org/zap"

	"github.com/simwire/server/internal/core/event"
	"github.com/simwire/server/internal/net"
	"github.com/simwire/server/internal/net/packet"
)

// HandleGoodbye processes Goodbye. The peer is dropped at once; anything still
// in its outbox is discarded.
func HandleGoodbye(p *net.Peer, _ packet.Goodbye, deps *Deps) {
	p.SetState(packet.StateDisconnecting)
	deps.World.Peers.Remove(p.ID)
	event.Emit(deps.World.Bus, event.PeerLeft{Peer: p.ID, Reason: "goodbye"})
	p.Log().Info("peer left", zap.Int("peers", deps.World.Peers.Len()))
}
