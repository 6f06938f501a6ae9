package ecs

import (
	"fmt"
	"iter"
)

// Handle identifies an entity slot. Index selects the slot; Generation tells
// successive occupants of the same slot apart, so a handle kept past its
// entity's destruction is detected as stale instead of aliasing the next one.
type Handle struct {
	Index      uint64
	Generation uint64
}

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.Index, h.Generation)
}

type slot struct {
	live       bool
	generation uint64
}

// Arena hands out handles with generational indices and a free list.
type Arena struct {
	slots []slot
	free  []uint64
	live  int
}

func NewArena() *Arena {
	return &Arena{
		slots: make([]slot, 0, 1024),
		free:  make([]uint64, 0, 256),
	}
}

// Allocate returns a fresh live handle. Freed indices are reused last-in
// first-out, with the slot generation bumped on every reuse.
func (a *Arena) Allocate() Handle {
	a.live++
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.live = true
		s.generation++
		return Handle{Index: idx, Generation: s.generation}
	}
	idx := uint64(len(a.slots))
	a.slots = append(a.slots, slot{live: true})
	return Handle{Index: idx}
}

// Deallocate frees h and reports whether it was live. Freeing a stale or
// already freed handle is a no-op that returns false.
func (a *Arena) Deallocate(h Handle) bool {
	if !a.IsLive(h) {
		return false
	}
	a.slots[h.Index].live = false
	a.free = append(a.free, h.Index)
	a.live--
	return true
}

func (a *Arena) IsLive(h Handle) bool {
	if h.Index >= uint64(len(a.slots)) {
		return false
	}
	s := a.slots[h.Index]
	return s.live && s.generation == h.Generation
}

// Entries yields every live handle in index order. The sequence can be ranged
// over any number of times; allocating or freeing while ranging is not
// supported.
func (a *Arena) Entries() iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for i, s := range a.slots {
			if !s.live {
				continue
			}
			if !yield(Handle{Index: uint64(i), Generation: s.generation}) {
				return
			}
		}
	}
}

// Len returns the number of live handles.
func (a *Arena) Len() int {
	return a.live
}
