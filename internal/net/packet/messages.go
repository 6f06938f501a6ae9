package packet

import (
	"github.com/google/uuid"

	"github.com/simwire/server/internal/component"
	"github.com/simwire/server/internal/core/ecs"
	"github.com/simwire/server/internal/ident"
)

// Group is the ident group packet ids are drawn from.
const Group = "packet"

// Hello opens a session. Schema is the sender's packet-group fingerprint.
type Hello struct {
	Name   string
	Schema ident.Fingerprint
}

// HelloAck accepts a Hello and tells the peer its session id.
type HelloAck struct {
	Peer uuid.UUID
}

// CreateEntity announces an entity the receiver should mirror.
type CreateEntity struct {
	Entity ecs.Handle
}

// SetComponent replaces one component of a mirrored entity.
type SetComponent struct {
	Entity  ecs.Handle
	Payload component.Payload
}

// DestroyEntity retires a mirrored entity.
type DestroyEntity struct {
	Entity ecs.Handle
}

// Goodbye closes a session.
type Goodbye struct{}

// messages lists every packet type in id order. Appending is safe; reordering
// changes the wire ids and the schema fingerprint.
var messages = []any{
	Hello{},
	HelloAck{},
	CreateEntity{},
	SetComponent{},
	DestroyEntity{},
	Goodbye{},
}
