package ecs

// Attach sets component c on h's map. It returns false if h has no map.
func Attach[T any](s *Store[ComponentMap], h Handle, c T) bool {
	return s.WithMut(h, func(m *ComponentMap) {
		Set(m, c)
	})
}

// Detach removes the component of type T from h. It returns false if h has
// no map.
func Detach[T any](s *Store[ComponentMap], h Handle) bool {
	return s.WithMut(h, func(m *ComponentMap) {
		Remove[T](m)
	})
}

// Component returns a copy of h's component of type T.
func Component[T any](s *Store[ComponentMap], h Handle) (T, bool) {
	var (
		out T
		ok  bool
	)
	s.With(h, func(m *ComponentMap) {
		var c *T
		if c, ok = Lookup[T](m); ok {
			out = *c
		}
	})
	return out, ok
}

// Each1 calls fn for every matched entity with its A component, under an
// exclusive borrow of the entity's map.
func Each1[A any](s *Store[ComponentMap], matched []Handle, fn func(Handle, *A)) {
	for _, h := range matched {
		s.WithMut(h, func(m *ComponentMap) {
			fn(h, Get[A](m))
		})
	}
}

// Each2 calls fn for every matched entity with its A and B components.
func Each2[A, B any](s *Store[ComponentMap], matched []Handle, fn func(Handle, *A, *B)) {
	for _, h := range matched {
		s.WithMut(h, func(m *ComponentMap) {
			fn(h, Get[A](m), Get[B](m))
		})
	}
}

// Each3 calls fn for every matched entity with its A, B and C components.
func Each3[A, B, C any](s *Store[ComponentMap], matched []Handle, fn func(Handle, *A, *B, *C)) {
	for _, h := range matched {
		s.WithMut(h, func(m *ComponentMap) {
			fn(h, Get[A](m), Get[B](m), Get[C](m))
		})
	}
}
