package handler

import (
	"go.uber.org/zap"

	"github.com/simwire/server/internal/net"
	"github.com/simwire/server/internal/net/packet"
	"github.com/simwire/server/internal/world"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	World *world.State
	Log   *zap.Logger
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry[*net.Peer], deps *Deps) {
	// A joined peer may say Hello again if its ack was lost.
	packet.Handle(reg,
		[]packet.SessionState{packet.StateHandshake, packet.StateJoined},
		func(p *net.Peer, msg packet.Hello) {
			HandleHello(p, msg, deps)
		},
	)
	packet.Handle(reg,
		[]packet.SessionState{packet.StateJoined},
		func(p *net.Peer, msg packet.Goodbye) {
			HandleGoodbye(p, msg, deps)
		},
	)
}
