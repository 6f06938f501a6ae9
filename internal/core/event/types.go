package event

import (
	"github.com/google/uuid"

	"github.com/simwire/server/internal/core/ecs"
)

// PeerJoined is emitted after a peer's Hello is accepted.
type PeerJoined struct {
	Peer uuid.UUID
	Name string
}

// PeerLeft is emitted when a peer says goodbye or is dropped.
type PeerLeft struct {
	Peer   uuid.UUID
	Reason string
}

// EntitySpawned is emitted when the server creates an entity outside a tick.
type EntitySpawned struct {
	Entity ecs.Handle
}
