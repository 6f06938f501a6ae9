package packet

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/simwire/server/internal/core/ecs"
	"github.com/simwire/server/internal/ident"
)

// SessionState represents a peer's current protocol phase.
type SessionState int

const (
	StateHandshake     SessionState = iota // nothing accepted yet, only Hello allowed
	StateJoined                            // Hello accepted, receiving replication
	StateDisconnecting                     // Goodbye seen or peer dropped
)

func (s SessionState) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StateJoined:
		return "Joined"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc is the callback signature for packet handlers. msg is the
// decoded packet value.
type HandlerFunc[S any] func(sess S, msg any)

type handlerEntry[S any] struct {
	name          string
	fn            HandlerFunc[S]
	allowedStates map[SessionState]bool
}

// Registry maps packet ids to handlers with state-based access control.
type Registry[S any] struct {
	proto    *Protocol
	handlers map[ident.ID]*handlerEntry[S]
	log      *zap.Logger
}

func NewRegistry[S any](proto *Protocol, log *zap.Logger) *Registry[S] {
	return &Registry[S]{
		proto:    proto,
		handlers: make(map[ident.ID]*handlerEntry[S]),
		log:      log,
	}
}

// Handle maps packet type T to fn, restricted to the given session states.
// T must be one of the packet types; anything else is a startup bug.
func Handle[S, T any](reg *Registry[S], states []SessionState, fn func(sess S, msg T)) {
	t := reflect.TypeFor[T]()
	id, ok := reg.proto.ids.Lookup(Group, t)
	if !ok {
		panic(eris.Wrapf(ident.ErrUnknown, "handle %s", t))
	}
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[id] = &handlerEntry[S]{
		name:          t.Name(),
		fn:            func(sess S, msg any) { fn(sess, msg.(T)) },
		allowedStates: allowed,
	}
}

// Dispatch decodes the frame, validates the session state, and calls the
// handler. Unknown or unhandled ids are ignored. Decode failures, disallowed
// states and ordinary handler panics are returned as errors; a panic caused
// by a broken invariant propagates.
func (reg *Registry[S]) Dispatch(sess S, state SessionState, frame []byte) error {
	if len(frame) == 0 {
		return fmt.Errorf("empty packet")
	}
	id := ident.ID(frame[0])
	reg.log.Debug("packet received",
		zap.Uint8("id", uint8(id)),
		zap.Int("size", len(frame)),
		zap.String("state", state.String()),
	)

	entry, ok := reg.handlers[id]
	if !ok {
		reg.log.Debug("unhandled packet id", zap.Uint8("id", uint8(id)), zap.String("state", state.String()))
		return nil
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("packet not allowed in state",
			zap.String("packet", entry.name),
			zap.String("state", state.String()),
		)
		return fmt.Errorf("packet %s not allowed in state %s", entry.name, state)
	}

	_, msg, err := reg.proto.Decode(frame)
	if err != nil {
		return fmt.Errorf("decode %s: %w", entry.name, err)
	}
	return reg.safeCall(entry, sess, msg)
}

// fatal lists the panic causes that mean server state is broken. They are
// never turned into a per-packet error.
var fatal = []error{
	ErrOversize,
	ecs.ErrStaleWrite,
	ecs.ErrBorrowConflict,
	ecs.ErrDiverged,
	ecs.ErrTickInProgress,
	ecs.ErrMissingComponent,
}

func isFatal(rec any) bool {
	err, ok := rec.(error)
	if !ok {
		return false
	}
	for _, target := range fatal {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// safeCall executes a handler with panic recovery so one bad packet cannot
// crash the loop. Invariant panics are re-raised.
func (reg *Registry[S]) safeCall(entry *handlerEntry[S], sess S, msg any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if isFatal(rec) {
				reg.log.Error("fatal handler panic",
					zap.String("packet", entry.name),
					zap.Any("panic", rec),
				)
				panic(rec)
			}
			reg.log.Error("handler panic recovered",
				zap.String("packet", entry.name),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %s: %v", entry.name, rec)
		}
	}()
	entry.fn(sess, msg)
	return nil
}
