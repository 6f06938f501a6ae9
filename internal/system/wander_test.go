package system_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/simwire/server/internal/component"
	"github.com/simwire/server/internal/core/ecs"
	"github.com/simwire/server/internal/net/packet"
	"github.com/simwire/server/internal/scripting"
	"github.com/simwire/server/internal/system"
	"github.com/simwire/server/internal/world"
)

type fixedPolicy struct {
	dir   string
	ok    bool
	calls []scripting.WanderContext
}

func (p *fixedPolicy) ChooseDirection(ctx scripting.WanderContext) (string, bool) {
	p.calls = append(p.calls, ctx)
	return p.dir, p.ok
}

func newState(t *testing.T) *world.State {
	t.Helper()
	proto, err := packet.NewProtocol(4096)
	require.NoError(t, err)
	return world.NewState(proto, rand.New(rand.NewSource(7)), zaptest.NewLogger(t))
}

func spawnWanderer(s *world.State, x, y float64) ecs.Handle {
	h := s.ECS.CreateEntity()
	ecs.Attach(s.ECS.Store(), h, component.Position{X: x, Y: y})
	ecs.Attach(s.ECS.Store(), h, component.Wander{Dir: component.DirUp})
	return h
}

func TestWanderMovesAlongPolicyHeading(t *testing.T) {
	s := newState(t)
	policy := &fixedPolicy{dir: "Left", ok: true}
	s.ECS.AddSystem(system.NewWanderSystem(policy, s.Rand, zaptest.NewLogger(t)))
	h := spawnWanderer(s, 0, 0)

	s.Step(0) // dt 0: heading chosen, no movement
	pos, _ := ecs.Component[component.Position](s.ECS.Store(), h)
	assert.Equal(t, component.Position{}, pos)
	require.Len(t, policy.calls, 1)
	assert.Equal(t, "Up", policy.calls[0].Dir)
	assert.Equal(t, h.String(), policy.calls[0].Entity)

	w, _ := ecs.Component[component.Wander](s.ECS.Store(), h)
	assert.Equal(t, component.DirLeft, w.Dir)
	assert.Equal(t, uint32(1), w.ChangeCount)

	// Left is +X. 0.1s at MoveSpeed is 50 units.
	s.ECS.Tick(world.TickContext{Number: 1, Dt: 0.1})
	pos, _ = ecs.Component[component.Position](s.ECS.Store(), h)
	assert.InDelta(t, 50, pos.X, 1e-9)
	assert.InDelta(t, 0, pos.Y, 1e-9)
	assert.Len(t, policy.calls, 1)
}

func TestWanderRerollsEveryInterval(t *testing.T) {
	s := newState(t)
	policy := &fixedPolicy{dir: "Down", ok: true}
	s.ECS.AddSystem(system.NewWanderSystem(policy, s.Rand, zaptest.NewLogger(t)))
	h := spawnWanderer(s, 0, 0)

	for i := 0; i < system.ChangeInterval; i++ {
		s.Step(0)
	}
	assert.Len(t, policy.calls, 1)
	w, _ := ecs.Component[component.Wander](s.ECS.Store(), h)
	assert.Equal(t, uint32(0), w.ChangeCount)

	s.Step(0)
	assert.Len(t, policy.calls, 2)
	assert.Equal(t, uint64(system.ChangeInterval), policy.calls[1].Tick)
}

func TestWanderFallsBackToRandom(t *testing.T) {
	s := newState(t)
	for _, policy := range []system.DirectionPolicy{
		nil,
		&fixedPolicy{ok: false},
		&fixedPolicy{dir: "Sideways", ok: true},
	} {
		sys := system.NewWanderSystem(policy, rand.New(rand.NewSource(3)), zaptest.NewLogger(t))
		h := spawnWanderer(s, 0, 0)
		sys.Run(world.TickContext{Dt: 1}, s.ECS.Store(), []ecs.Handle{h})

		w, _ := ecs.Component[component.Wander](s.ECS.Store(), h)
		assert.Less(t, int(w.Dir), len(component.DirNames))
		pos, _ := ecs.Component[component.Position](s.ECS.Store(), h)
		assert.InDelta(t, system.MoveSpeed, abs(pos.X)+abs(pos.Y), 1e-9)
	}
}

func TestWanderIgnoresEntitiesWithoutPosition(t *testing.T) {
	s := newState(t)
	s.ECS.AddSystem(system.NewWanderSystem(nil, s.Rand, zaptest.NewLogger(t)))
	h := s.ECS.CreateEntity()
	ecs.Attach(s.ECS.Store(), h, component.Wander{})

	s.Step(0)
	w, _ := ecs.Component[component.Wander](s.ECS.Store(), h)
	assert.Equal(t, uint32(0), w.ChangeCount)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
