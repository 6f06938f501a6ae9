package ecs

import (
	"iter"

	"github.com/rotisserie/eris"
)

// World is the top-level ECS container. It owns the handle arena, one
// ComponentMap per live entity, the ordered system list, and a deferred
// destruction queue flushed when a tick ends.
type World[C any] struct {
	arena        *Arena
	maps         *Store[ComponentMap]
	systems      []System[C]
	destroyQueue []Handle
	onDestroy    []func(Handle)
	ticking      bool
	matched      []Handle
}

func NewWorld[C any]() *World[C] {
	return &World[C]{
		arena:        NewArena(),
		maps:         NewStore[ComponentMap](),
		systems:      make([]System[C], 0, 16),
		destroyQueue: make([]Handle, 0, 64),
		matched:      make([]Handle, 0, 256),
	}
}

// Store exposes the per-entity component maps.
func (w *World[C]) Store() *Store[ComponentMap] { return w.maps }

// AddSystem appends s. Systems run in the order they were added.
func (w *World[C]) AddSystem(s System[C]) {
	w.systems = append(w.systems, s)
}

func (w *World[C]) Systems() []System[C] { return w.systems }

// OnDestroy registers fn to be called after an entity is destroyed.
func (w *World[C]) OnDestroy(fn func(Handle)) {
	w.onDestroy = append(w.onDestroy, fn)
}

// CreateEntity allocates a handle with an empty component map.
func (w *World[C]) CreateEntity() Handle {
	h := w.arena.Allocate()
	w.maps.Set(h, NewComponentMap())
	return h
}

func (w *World[C]) Alive(h Handle) bool {
	return w.arena.IsLive(h)
}

// Len returns the number of live entities.
func (w *World[C]) Len() int {
	return w.arena.Len()
}

// DestroyEntity removes h's components and frees its handle. It returns false
// if h was already destroyed or is stale. Systems must use MarkForDestruction
// instead; calling this during a tick panics.
func (w *World[C]) DestroyEntity(h Handle) bool {
	if w.ticking {
		panic(eris.Wrapf(ErrTickInProgress, "destroy %s", h))
	}
	return w.destroy(h)
}

func (w *World[C]) destroy(h Handle) bool {
	mapRemoved := w.maps.Remove(h)
	freed := w.arena.Deallocate(h)
	if mapRemoved != freed {
		panic(eris.Wrapf(ErrDiverged, "destroy %s: map removed=%t, handle freed=%t", h, mapRemoved, freed))
	}
	if freed {
		for _, fn := range w.onDestroy {
			fn(h)
		}
	}
	return freed
}

// MarkForDestruction queues h for destruction at the end of the current tick,
// or destroys it immediately when no tick is running.
func (w *World[C]) MarkForDestruction(h Handle) {
	if !w.ticking {
		w.destroy(h)
		return
	}
	w.destroyQueue = append(w.destroyQueue, h)
}

// FlushDestroyQueue destroys every queued entity. Entities queued twice are
// destroyed once.
func (w *World[C]) FlushDestroyQueue() {
	for _, h := range w.destroyQueue {
		w.destroy(h)
	}
	w.destroyQueue = w.destroyQueue[:0]
}

// Entities yields every live handle in index order.
func (w *World[C]) Entities() iter.Seq[Handle] {
	return w.arena.Entries()
}

// Tick runs every system once, in registration order. Each system's entity
// set is computed right before it runs, so it sees changes made by the
// systems ahead of it. Queued destructions are applied after the last system.
func (w *World[C]) Tick(ctx C) {
	w.ticking = true
	defer func() {
		w.ticking = false
	}()
	for _, s := range w.systems {
		matched := w.Match(s.Requires())
		s.Run(ctx, w.maps, matched)
	}
	w.ticking = false
	w.FlushDestroyQueue()
}

// Match returns the live entities carrying every kind in required. The
// returned slice is reused by the next call.
func (w *World[C]) Match(required []Kind) []Handle {
	w.matched = w.matched[:0]
	for h := range w.arena.Entries() {
		ok := false
		w.maps.With(h, func(m *ComponentMap) {
			ok = m.HasAll(required)
		})
		if ok {
			w.matched = append(w.matched, h)
		}
	}
	return w.matched
}
