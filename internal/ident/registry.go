// Package ident assigns small dense ids to Go types, one counter per named
// group. The ids are used as wire discriminants that are independent of any
// sum-type tags inside the payload.
package ident

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
)

// ID is a type's position in its group.
type ID uint8

// GroupLimit is the number of registrations a single group accepts.
const GroupLimit = 255

var (
	ErrGroupExhausted = errors.New("ident: group exhausted")
	ErrDuplicate      = errors.New("ident: type already registered in group")
	ErrFrozen         = errors.New("ident: registry is frozen")
	ErrUnknown        = errors.New("ident: unknown type")
)

type group struct {
	types []reflect.Type
	ids   map[reflect.Type]ID
}

// Registry holds the append-only id counters. It is filled at startup and
// frozen before the first tick; reads are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]*group
	frozen bool
}

func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]*group, 4)}
}

// Assign gives t the next id in group. The first type in a group gets 0.
// Ids are never reused or reordered.
func (r *Registry) Assign(groupName string, t reflect.Type) (ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return 0, fmt.Errorf("%w: assign %s to %q", ErrFrozen, t, groupName)
	}
	g, ok := r.groups[groupName]
	if !ok {
		g = &group{ids: make(map[reflect.Type]ID, 8)}
		r.groups[groupName] = g
	}
	if id, dup := g.ids[t]; dup {
		return id, fmt.Errorf("%w: %s is %q #%d", ErrDuplicate, t, groupName, id)
	}
	if len(g.types) >= GroupLimit {
		return 0, fmt.Errorf("%w: %q is limited to %d types, cannot add %s",
			ErrGroupExhausted, groupName, GroupLimit, t)
	}
	id := ID(len(g.types))
	g.types = append(g.types, t)
	g.ids[t] = id
	return id, nil
}

// Register assigns an id to T in group.
func Register[T any](r *Registry, groupName string) (ID, error) {
	return r.Assign(groupName, reflect.TypeFor[T]())
}

// MustRegister is Register for startup code. Running out of ids is a
// configuration error, so it panics.
func MustRegister[T any](r *Registry, groupName string) ID {
	id, err := Register[T](r, groupName)
	if err != nil {
		panic(eris.Wrapf(err, "register %s", reflect.TypeFor[T]()))
	}
	return id
}

// Lookup returns the id of t in group.
func (r *Registry) Lookup(groupName string, t reflect.Type) (ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[groupName]
	if !ok {
		return 0, false
	}
	id, ok := g.ids[t]
	return id, ok
}

// IDOf returns the id of T in group.
func IDOf[T any](r *Registry, groupName string) (ID, error) {
	t := reflect.TypeFor[T]()
	id, ok := r.Lookup(groupName, t)
	if !ok {
		return 0, fmt.Errorf("%w: %s in %q", ErrUnknown, t, groupName)
	}
	return id, nil
}

// TypeOf returns the type registered under id in group.
func (r *Registry) TypeOf(groupName string, id ID) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[groupName]
	if !ok || int(id) >= len(g.types) {
		return nil, false
	}
	return g.types[id], true
}

// Types returns the types of group in id order.
func (r *Registry) Types(groupName string) []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[groupName]
	if !ok {
		return nil
	}
	return append([]reflect.Type(nil), g.types...)
}

// Groups returns the group names, sorted.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}
