package ecs_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simwire/server/internal/core/ecs"
)

type position struct{ X, Y float64 }
type velocity struct{ DX, DY float64 }
type label struct{ Name string }

type tickCtx struct{ dt float64 }

func TestComponentMap(t *testing.T) {
	m := ecs.NewComponentMap()
	assert.False(t, ecs.Has[position](&m))

	ecs.Set(&m, position{X: 1, Y: 2})
	require.True(t, ecs.Has[position](&m))
	assert.Equal(t, position{X: 1, Y: 2}, *ecs.Get[position](&m))

	ecs.Get[position](&m).X = 5
	assert.Equal(t, 5.0, ecs.Get[position](&m).X)

	ecs.Set(&m, position{X: 9})
	assert.Equal(t, position{X: 9}, *ecs.Get[position](&m))
	assert.Equal(t, 1, m.Len())

	ecs.Set(&m, label{Name: "a"})
	assert.Equal(t, []ecs.Kind{ecs.KindOf[label](), ecs.KindOf[position]()}, m.Kinds())

	ecs.Remove[position](&m)
	assert.False(t, ecs.Has[position](&m))
	_, ok := ecs.Lookup[position](&m)
	assert.False(t, ok)
	requirePanicIs(t, ecs.ErrMissingComponent, func() { ecs.Get[position](&m) })
}

func TestKindOfDistinguishesTypes(t *testing.T) {
	assert.Equal(t, ecs.KindOf[position](), ecs.KindOf[position]())
	assert.NotEqual(t, ecs.KindOf[position](), ecs.KindOf[velocity]())
	assert.NotEqual(t, ecs.KindOf[position](), ecs.KindOf[*position]())
	assert.Equal(t, "ecs_test.position", ecs.KindOf[position]().String())
}

func TestWorldCreateDestroy(t *testing.T) {
	w := ecs.NewWorld[tickCtx]()
	a := w.CreateEntity()
	b := w.CreateEntity()
	require.True(t, w.Alive(a))
	assert.True(t, w.Store().Has(a))

	var destroyed []ecs.Handle
	w.OnDestroy(func(h ecs.Handle) { destroyed = append(destroyed, h) })

	assert.True(t, w.DestroyEntity(a))
	assert.False(t, w.Alive(a))
	assert.False(t, w.Store().Has(a))
	assert.False(t, w.DestroyEntity(a))
	assert.Equal(t, []ecs.Handle{a}, destroyed)
	assert.Equal(t, []ecs.Handle{b}, slices.Collect(w.Entities()))

	c := w.CreateEntity()
	assert.Equal(t, a.Index, c.Index)
	assert.Greater(t, c.Generation, a.Generation)
	assert.False(t, w.DestroyEntity(a), "stale handle must not destroy the new occupant")
	assert.True(t, w.Alive(c))
}

func TestWorldDestroyDetectsDivergence(t *testing.T) {
	w := ecs.NewWorld[tickCtx]()
	h := w.CreateEntity()
	other := w.CreateEntity()

	require.True(t, w.Store().Remove(h))
	requirePanicIs(t, ecs.ErrDiverged, func() { w.DestroyEntity(h) })

	assert.True(t, w.DestroyEntity(other), "consistent entities still destroy cleanly")
}

func TestWorldTickFiltersAndOrder(t *testing.T) {
	w := ecs.NewWorld[tickCtx]()
	mover := w.CreateEntity()
	ecs.Attach(w.Store(), mover, position{})
	ecs.Attach(w.Store(), mover, velocity{DX: 1, DY: 2})
	still := w.CreateEntity()
	ecs.Attach(w.Store(), still, position{X: 10})
	bare := w.CreateEntity()

	var order []string
	var seenAll, seenMove []ecs.Handle

	w.AddSystem(ecs.SystemFunc[tickCtx]{
		Kinds: ecs.Kinds(ecs.KindOf[position](), ecs.KindOf[velocity]()),
		Fn: func(ctx tickCtx, s *ecs.Store[ecs.ComponentMap], matched []ecs.Handle) {
			order = append(order, "move")
			seenMove = append(seenMove, matched...)
			ecs.Each2(s, matched, func(_ ecs.Handle, p *position, v *velocity) {
				p.X += v.DX * ctx.dt
				p.Y += v.DY * ctx.dt
			})
		},
	})
	w.AddSystem(ecs.SystemFunc[tickCtx]{
		Fn: func(_ tickCtx, s *ecs.Store[ecs.ComponentMap], matched []ecs.Handle) {
			order = append(order, "all")
			seenAll = append(seenAll, matched...)
			// Sees the mutation made by the previous system in the same tick.
			p, ok := ecs.Component[position](s, mover)
			require.True(t, ok)
			assert.Equal(t, position{X: 0.5, Y: 1}, p)
		},
	})

	w.Tick(tickCtx{dt: 0.5})
	assert.Equal(t, []string{"move", "all"}, order)
	assert.Equal(t, []ecs.Handle{mover}, seenMove)
	assert.Equal(t, []ecs.Handle{mover, still, bare}, seenAll)
}

func TestWorldFilterReevaluatedEachTick(t *testing.T) {
	w := ecs.NewWorld[tickCtx]()
	h := w.CreateEntity()

	var counts []int
	w.AddSystem(ecs.SystemFunc[tickCtx]{
		Kinds: ecs.Kinds(ecs.KindOf[label]()),
		Fn: func(_ tickCtx, _ *ecs.Store[ecs.ComponentMap], matched []ecs.Handle) {
			counts = append(counts, len(matched))
		},
	})

	w.Tick(tickCtx{})
	ecs.Attach(w.Store(), h, label{Name: "x"})
	w.Tick(tickCtx{})
	ecs.Detach[label](w.Store(), h)
	w.Tick(tickCtx{})
	assert.Equal(t, []int{0, 1, 0}, counts)
}

func TestWorldDestroyedEntityLeavesEveryFilter(t *testing.T) {
	w := ecs.NewWorld[tickCtx]()
	a := w.CreateEntity()
	b := w.CreateEntity()
	w.DestroyEntity(a)

	var seen []ecs.Handle
	w.AddSystem(ecs.SystemFunc[tickCtx]{
		Fn: func(_ tickCtx, _ *ecs.Store[ecs.ComponentMap], matched []ecs.Handle) {
			seen = append(seen, matched...)
		},
	})
	w.Tick(tickCtx{})
	assert.Equal(t, []ecs.Handle{b}, seen)
}

func TestWorldDeferredDestruction(t *testing.T) {
	w := ecs.NewWorld[tickCtx]()
	a := w.CreateEntity()
	b := w.CreateEntity()

	var second []ecs.Handle
	w.AddSystem(ecs.SystemFunc[tickCtx]{
		Fn: func(tickCtx, *ecs.Store[ecs.ComponentMap], []ecs.Handle) {
			w.MarkForDestruction(a)
			w.MarkForDestruction(a)
			requirePanicIs(t, ecs.ErrTickInProgress, func() { w.DestroyEntity(b) })
		},
	})
	w.AddSystem(ecs.SystemFunc[tickCtx]{
		Fn: func(_ tickCtx, _ *ecs.Store[ecs.ComponentMap], matched []ecs.Handle) {
			second = append(second, matched...)
		},
	})

	w.Tick(tickCtx{})
	assert.Equal(t, []ecs.Handle{a, b}, second, "destruction is not observed mid-tick")
	assert.False(t, w.Alive(a))
	assert.True(t, w.Alive(b))
	assert.Equal(t, 1, w.Len())

	// Outside a tick, marking destroys immediately.
	w.MarkForDestruction(b)
	assert.False(t, w.Alive(b))
}

func TestWorldBorrowLeakFailsFast(t *testing.T) {
	w := ecs.NewWorld[tickCtx]()
	h := w.CreateEntity()
	w.AddSystem(ecs.SystemFunc[tickCtx]{
		Fn: func(_ tickCtx, s *ecs.Store[ecs.ComponentMap], matched []ecs.Handle) {
			s.BorrowMut(h) // never released
		},
	})
	w.AddSystem(ecs.SystemFunc[tickCtx]{
		Fn: func(tickCtx, *ecs.Store[ecs.ComponentMap], []ecs.Handle) {},
	})
	requirePanicIs(t, ecs.ErrBorrowConflict, func() { w.Tick(tickCtx{}) })
}

func TestEach3AndComponent(t *testing.T) {
	w := ecs.NewWorld[tickCtx]()
	h := w.CreateEntity()
	ecs.Attach(w.Store(), h, position{})
	ecs.Attach(w.Store(), h, velocity{DX: 3})
	ecs.Attach(w.Store(), h, label{Name: "n"})

	matched := w.Match(ecs.Kinds(ecs.KindOf[position](), ecs.KindOf[velocity](), ecs.KindOf[label]()))
	require.Equal(t, []ecs.Handle{h}, matched)
	ecs.Each3(w.Store(), matched, func(_ ecs.Handle, p *position, v *velocity, l *label) {
		p.X += v.DX
		l.Name += "!"
	})
	ecs.Each1(w.Store(), matched, func(_ ecs.Handle, p *position) { p.Y = 1 })

	p, _ := ecs.Component[position](w.Store(), h)
	l, _ := ecs.Component[label](w.Store(), h)
	assert.Equal(t, position{X: 3, Y: 1}, p)
	assert.Equal(t, "n!", l.Name)

	_, ok := ecs.Component[position](w.Store(), ecs.Handle{Index: 77})
	assert.False(t, ok)
}
