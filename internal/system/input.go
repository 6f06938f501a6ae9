package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/simwire/server/internal/core/system"
	"github.com/simwire/server/internal/net"
	"github.com/simwire/server/internal/net/packet"
	"github.com/simwire/server/internal/world"
)

// Poller is the receive half of a Socket.
type Poller interface {
	Poll(max int) []net.Datagram
}

// InputSystem drains queued datagrams and dispatches them through the packet
// registry. Phase 0 (Input).
type InputSystem struct {
	poller     Poller
	registry   *packet.Registry[*net.Peer]
	state      *world.State
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(poller Poller, registry *packet.Registry[*net.Peer], state *world.State, maxPerTick int, log *zap.Logger) *InputSystem {
	return &InputSystem{
		poller:     poller,
		registry:   registry,
		state:      state,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	for _, d := range s.poller.Poll(s.maxPerTick) {
		p, ok := s.state.Peers.ByAddr(d.Addr)
		if !ok {
			// Not joined yet; the Hello handler stores it if accepted.
			p = net.NewPeer(d.Addr, s.log)
		}
		if err := s.registry.Dispatch(p, p.State(), d.Data); err != nil {
			p.Log().Debug("packet dispatch error", zap.Error(err))
		}
	}
}
