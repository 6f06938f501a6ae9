package ecs

import (
	"reflect"
	"sort"

	"github.com/rotisserie/eris"
)

// Kind identifies a component type. Two kinds are equal iff they were derived
// from the same Go type.
type Kind struct {
	t reflect.Type
}

func KindOf[T any]() Kind {
	return Kind{t: reflect.TypeFor[T]()}
}

func (k Kind) String() string {
	if k.t == nil {
		return "<nil>"
	}
	return k.t.String()
}

// ComponentMap holds at most one component of each kind for a single entity.
// Components are boxed as *T so lookups hand out mutable pointers.
type ComponentMap struct {
	data map[Kind]any
}

func NewComponentMap() ComponentMap {
	return ComponentMap{data: make(map[Kind]any, 4)}
}

func (m *ComponentMap) HasKind(k Kind) bool {
	_, ok := m.data[k]
	return ok
}

// HasAll reports whether every kind in ks is present.
func (m *ComponentMap) HasAll(ks []Kind) bool {
	for _, k := range ks {
		if _, ok := m.data[k]; !ok {
			return false
		}
	}
	return true
}

// Kinds returns the kinds present, sorted by type name.
func (m *ComponentMap) Kinds() []Kind {
	out := make([]Kind, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (m *ComponentMap) Len() int {
	return len(m.data)
}

// Set inserts or replaces the component of type T.
func Set[T any](m *ComponentMap, c T) {
	if m.data == nil {
		m.data = make(map[Kind]any, 4)
	}
	p := new(T)
	*p = c
	m.data[KindOf[T]()] = p
}

// Lookup returns the component of type T if present.
func Lookup[T any](m *ComponentMap) (*T, bool) {
	c, ok := m.data[KindOf[T]()]
	if !ok {
		return nil, false
	}
	return c.(*T), true
}

// Get returns the component of type T. Callers must have established presence
// first (normally through a system's Requires list); a miss panics.
func Get[T any](m *ComponentMap) *T {
	c, ok := Lookup[T](m)
	if !ok {
		panic(eris.Wrapf(ErrMissingComponent, "%s", KindOf[T]()))
	}
	return c
}

func Has[T any](m *ComponentMap) bool {
	return m.HasKind(KindOf[T]())
}

func Remove[T any](m *ComponentMap) {
	delete(m.data, KindOf[T]())
}
