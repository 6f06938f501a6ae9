package ecs

import "github.com/rotisserie/eris"

type entry[T any] struct {
	value      T
	generation uint64
	readers    int
	writer     bool
}

func (e *entry[T]) guarded() bool {
	return e.readers > 0 || e.writer
}

// Store associates a value with each handle index and rejects access through
// handles whose generation does not match the stored one.
//
// Borrows are checked at runtime: any number of Refs may be held on an entry,
// or exactly one RefMut. Breaking that rule panics with ErrBorrowConflict.
type Store[T any] struct {
	data []*entry[T]
	n    int
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		data: make([]*entry[T], 0, 1024),
	}
}

// Set writes v at h.Index tagged with h.Generation, growing the backing slice
// as needed. Writing through a handle older than the stored entry panics.
func (s *Store[T]) Set(h Handle, v T) bool {
	for uint64(len(s.data)) <= h.Index {
		s.data = append(s.data, nil)
	}
	if e := s.data[h.Index]; e != nil {
		if e.generation > h.Generation {
			panic(eris.Wrapf(ErrStaleWrite, "set %s: stored generation %d", h, e.generation))
		}
		if e.guarded() {
			panic(eris.Wrapf(ErrBorrowConflict, "set %s while borrowed", h))
		}
	} else {
		s.n++
	}
	s.data[h.Index] = &entry[T]{value: v, generation: h.Generation}
	return true
}

// Remove clears the entry at h.Index unless a newer generation occupies it.
// It reports whether an entry was actually removed.
func (s *Store[T]) Remove(h Handle) bool {
	if h.Index >= uint64(len(s.data)) {
		return false
	}
	e := s.data[h.Index]
	if e == nil || e.generation > h.Generation {
		return false
	}
	if e.guarded() {
		panic(eris.Wrapf(ErrBorrowConflict, "remove %s while borrowed", h))
	}
	s.data[h.Index] = nil
	s.n--
	return true
}

func (s *Store[T]) Has(h Handle) bool {
	return s.lookup(h) != nil
}

// Len returns the number of occupied entries.
func (s *Store[T]) Len() int {
	return s.n
}

func (s *Store[T]) lookup(h Handle) *entry[T] {
	if h.Index >= uint64(len(s.data)) {
		return nil
	}
	e := s.data[h.Index]
	if e == nil || e.generation != h.Generation {
		return nil
	}
	return e
}

// Borrow takes a shared guard on the entry for h.
func (s *Store[T]) Borrow(h Handle) (*Ref[T], bool) {
	e := s.lookup(h)
	if e == nil {
		return nil, false
	}
	if e.writer {
		panic(eris.Wrapf(ErrBorrowConflict, "borrow %s: exclusively borrowed", h))
	}
	e.readers++
	return &Ref[T]{e: e, h: h}, true
}

// BorrowMut takes an exclusive guard on the entry for h.
func (s *Store[T]) BorrowMut(h Handle) (*RefMut[T], bool) {
	e := s.lookup(h)
	if e == nil {
		return nil, false
	}
	if e.writer {
		panic(eris.Wrapf(ErrBorrowConflict, "borrow_mut %s: exclusively borrowed", h))
	}
	if e.readers > 0 {
		panic(eris.Wrapf(ErrBorrowConflict, "borrow_mut %s: %d shared borrows outstanding", h, e.readers))
	}
	e.writer = true
	return &RefMut[T]{e: e, h: h}, true
}

// With runs fn under a shared guard and reports whether h had an entry.
func (s *Store[T]) With(h Handle, fn func(*T)) bool {
	ref, ok := s.Borrow(h)
	if !ok {
		return false
	}
	defer ref.Release()
	fn(ref.Get())
	return true
}

// WithMut runs fn under an exclusive guard and reports whether h had an entry.
func (s *Store[T]) WithMut(h Handle, fn func(*T)) bool {
	ref, ok := s.BorrowMut(h)
	if !ok {
		return false
	}
	defer ref.Release()
	fn(ref.Get())
	return true
}

// Ref is a shared borrow. The value must not be modified through it.
type Ref[T any] struct {
	e        *entry[T]
	h        Handle
	released bool
}

func (r *Ref[T]) Get() *T {
	if r.released {
		panic(eris.Wrapf(ErrBorrowConflict, "use of released borrow on %s", r.h))
	}
	return &r.e.value
}

func (r *Ref[T]) Release() {
	if r.released {
		panic(eris.Wrapf(ErrBorrowConflict, "double release of borrow on %s", r.h))
	}
	r.released = true
	r.e.readers--
}

// RefMut is an exclusive borrow.
type RefMut[T any] struct {
	e        *entry[T]
	h        Handle
	released bool
}

func (r *RefMut[T]) Get() *T {
	if r.released {
		panic(eris.Wrapf(ErrBorrowConflict, "use of released borrow on %s", r.h))
	}
	return &r.e.value
}

func (r *RefMut[T]) Release() {
	if r.released {
		panic(eris.Wrapf(ErrBorrowConflict, "double release of borrow on %s", r.h))
	}
	r.released = true
	r.e.writer = false
}
