package system

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/simwire/server/internal/component"
	"github.com/simwire/server/internal/core/ecs"
	"github.com/simwire/server/internal/scripting"
	"github.com/simwire/server/internal/world"
)

const (
	// MoveSpeed is how far a wandering mob moves per second.
	MoveSpeed = 500.0
	// ChangeInterval is the number of ticks between heading changes.
	ChangeInterval = 60
)

// DirectionPolicy picks a new heading. *scripting.Engine implements it.
type DirectionPolicy interface {
	ChooseDirection(ctx scripting.WanderContext) (string, bool)
}

// WanderSystem moves every entity with Wander and Position, re-rolling the
// heading every ChangeInterval ticks.
type WanderSystem struct {
	policy DirectionPolicy // nil: uniform random
	rng    *rand.Rand
	log    *zap.Logger
}

func NewWanderSystem(policy DirectionPolicy, rng *rand.Rand, log *zap.Logger) *WanderSystem {
	return &WanderSystem{policy: policy, rng: rng, log: log}
}

func (s *WanderSystem) Requires() []ecs.Kind {
	return ecs.Kinds(ecs.KindOf[component.Wander](), ecs.KindOf[component.Position]())
}

func (s *WanderSystem) Run(ctx world.TickContext, store *ecs.Store[ecs.ComponentMap], matched []ecs.Handle) {
	step := MoveSpeed * ctx.Dt
	ecs.Each2(store, matched, func(h ecs.Handle, w *component.Wander, p *component.Position) {
		if w.ChangeCount == 0 {
			w.Dir = s.choose(ctx, h, w, p)
		}
		dx, dy := w.Dir.Step(step)
		p.X += dx
		p.Y += dy
		w.ChangeCount = (w.ChangeCount + 1) % ChangeInterval
	})
}

func (s *WanderSystem) choose(ctx world.TickContext, h ecs.Handle, w *component.Wander, p *component.Position) component.Dir {
	if s.policy != nil {
		name, ok := s.policy.ChooseDirection(scripting.WanderContext{
			Entity: h.String(),
			X:      p.X,
			Y:      p.Y,
			Dir:    w.Dir.String(),
			Tick:   ctx.Number,
		})
		if ok {
			if d, valid := component.ParseDir(name); valid {
				return d
			}
			s.log.Debug("wander policy returned unknown dir", zap.String("dir", name))
		}
	}
	return component.Dir(s.rng.Intn(len(component.DirNames)))
}
