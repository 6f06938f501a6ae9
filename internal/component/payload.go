package component

import (
	"github.com/simwire/server/internal/core/ecs"
	"github.com/simwire/server/internal/wire"
)

// Payload is a replicable component. Its variants, in wire order, are
// Position, Render and Wander.
type Payload interface {
	isPayload()
}

func (Position) isPayload() {}
func (Render) isPayload()   {}
func (Wander) isPayload()   {}

// Register declares the component sum types on c. Call before any packet
// carrying a Payload is derived.
func Register(c *wire.Codec) error {
	if err := wire.RegisterEnum[Dir](c, DirNames...); err != nil {
		return err
	}
	return wire.RegisterSum[Payload](c, Position{}, Render{}, Wander{})
}

// Apply stores p in m, replacing any component of the same kind.
func Apply(m *ecs.ComponentMap, p Payload) {
	switch v := p.(type) {
	case Position:
		ecs.Set(m, v)
	case Render:
		ecs.Set(m, v)
	case Wander:
		ecs.Set(m, v)
	}
}

// Snapshot returns copies of the replicable components in m, in wire order.
func Snapshot(m *ecs.ComponentMap) []Payload {
	out := make([]Payload, 0, 3)
	if p, ok := ecs.Lookup[Position](m); ok {
		out = append(out, *p)
	}
	if r, ok := ecs.Lookup[Render](m); ok {
		out = append(out, *r)
	}
	if w, ok := ecs.Lookup[Wander](m); ok {
		out = append(out, *w)
	}
	return out
}
