package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/simwire/server/internal/core/system"
	"github.com/simwire/server/internal/net"
	"github.com/simwire/server/internal/world"
)

// EventSystem rotates the event bus and delivers last iteration's events.
// Phase 1 (PreUpdate).
type EventSystem struct {
	state *world.State
}

func NewEventSystem(state *world.State) *EventSystem {
	return &EventSystem{state: state}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventSystem) Update(_ time.Duration) {
	s.state.Bus.SwapBuffers()
	s.state.Bus.DispatchAll()
}

// TickSystem runs one world tick. Phase 2 (Update).
type TickSystem struct {
	state *world.State
}

func NewTickSystem(state *world.State) *TickSystem {
	return &TickSystem{state: state}
}

func (s *TickSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *TickSystem) Update(dt time.Duration) {
	s.state.Step(dt)
}

// OutputSystem flushes every peer's outbox to the socket. Phase 3 (Output).
type OutputSystem struct {
	sender net.Sender
	state  *world.State
	log    *zap.Logger
}

func NewOutputSystem(sender net.Sender, state *world.State, log *zap.Logger) *OutputSystem {
	return &OutputSystem{sender: sender, state: state, log: log}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	for _, p := range s.state.Peers.All() {
		if _, failed := p.FlushOutput(s.sender); failed > 0 {
			p.Log().Debug("frames not sent", zap.Int("failed", failed))
		}
	}
}
