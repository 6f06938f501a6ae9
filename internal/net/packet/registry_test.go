package packet_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/simwire/server/internal/core/ecs"
	"github.com/simwire/server/internal/net/packet"
	"github.com/simwire/server/internal/wire"
)

type fakeSession struct {
	hellos   []string
	destroys []ecs.Handle
}

func newRegistry(t *testing.T) (*packet.Protocol, *packet.Registry[*fakeSession]) {
	t.Helper()
	p := newProtocol(t, 4096)
	reg := packet.NewRegistry[*fakeSession](p, zaptest.NewLogger(t))
	packet.Handle(reg, []packet.SessionState{packet.StateHandshake},
		func(s *fakeSession, msg packet.Hello) { s.hellos = append(s.hellos, msg.Name) })
	packet.Handle(reg, []packet.SessionState{packet.StateJoined},
		func(s *fakeSession, msg packet.DestroyEntity) { s.destroys = append(s.destroys, msg.Entity) })
	packet.Handle(reg, []packet.SessionState{packet.StateJoined},
		func(s *fakeSession, msg packet.Goodbye) { panic("boom") })
	return p, reg
}

func TestDispatchRoutesByType(t *testing.T) {
	p, reg := newRegistry(t)
	s := &fakeSession{}

	require.NoError(t, reg.Dispatch(s, packet.StateHandshake, p.MustEncode(packet.Hello{Name: "ann"})))
	require.NoError(t, reg.Dispatch(s, packet.StateJoined, p.MustEncode(packet.DestroyEntity{Entity: ecs.Handle{Index: 3}})))

	assert.Equal(t, []string{"ann"}, s.hellos)
	assert.Equal(t, []ecs.Handle{{Index: 3}}, s.destroys)
}

func TestDispatchChecksState(t *testing.T) {
	p, reg := newRegistry(t)
	s := &fakeSession{}
	err := reg.Dispatch(s, packet.StateJoined, p.MustEncode(packet.Hello{Name: "late"}))
	assert.ErrorContains(t, err, "not allowed in state Joined")
	assert.Empty(t, s.hellos)
}

func TestDispatchIgnoresUnhandled(t *testing.T) {
	p, reg := newRegistry(t)
	s := &fakeSession{}
	assert.NoError(t, reg.Dispatch(s, packet.StateJoined, p.MustEncode(packet.CreateEntity{})))
	assert.NoError(t, reg.Dispatch(s, packet.StateJoined, []byte{200}))
	assert.Error(t, reg.Dispatch(s, packet.StateJoined, nil))
}

func TestDispatchReportsDecodeErrors(t *testing.T) {
	p, reg := newRegistry(t)
	frame := p.MustEncode(packet.DestroyEntity{})
	err := reg.Dispatch(&fakeSession{}, packet.StateJoined, frame[:3])
	assert.ErrorIs(t, err, wire.ErrTruncated)
}

func TestDispatchRecoversHandlerPanics(t *testing.T) {
	p, reg := newRegistry(t)
	err := reg.Dispatch(&fakeSession{}, packet.StateJoined, p.MustEncode(packet.Goodbye{}))
	assert.ErrorContains(t, err, "handler panic for Goodbye")
}

func recoverErr(t *testing.T, fn func()) error {
	t.Helper()
	var rec any
	func() {
		defer func() { rec = recover() }()
		fn()
	}()
	require.NotNil(t, rec, "expected a panic")
	err, ok := rec.(error)
	require.True(t, ok, "panic value %v is not an error", rec)
	return err
}

func TestDispatchPropagatesInvariantPanics(t *testing.T) {
	p, reg := newRegistry(t)
	tiny := newProtocol(t, 16)
	packet.Handle(reg, []packet.SessionState{packet.StateHandshake},
		func(s *fakeSession, msg packet.Hello) { tiny.MustEncode(packet.CreateEntity{}) })
	packet.Handle(reg, []packet.SessionState{packet.StateJoined},
		func(s *fakeSession, msg packet.DestroyEntity) {
			panic(eris.Wrapf(ecs.ErrDiverged, "destroy %v", msg.Entity))
		})

	err := recoverErr(t, func() {
		_ = reg.Dispatch(&fakeSession{}, packet.StateHandshake, p.MustEncode(packet.Hello{Name: "ann"}))
	})
	assert.True(t, errors.Is(err, packet.ErrOversize))

	err = recoverErr(t, func() {
		_ = reg.Dispatch(&fakeSession{}, packet.StateJoined, p.MustEncode(packet.DestroyEntity{}))
	})
	assert.True(t, errors.Is(err, ecs.ErrDiverged))

	// Ordinary panics are still contained.
	assert.NotPanics(t, func() {
		err = reg.Dispatch(&fakeSession{}, packet.StateJoined, p.MustEncode(packet.Goodbye{}))
	})
	assert.Error(t, err)
}

func TestHandleRejectsNonPackets(t *testing.T) {
	_, reg := newRegistry(t)
	assert.Panics(t, func() {
		packet.Handle(reg, nil, func(*fakeSession, ecs.Handle) {})
	})
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "Handshake", packet.StateHandshake.String())
	assert.Equal(t, "Unknown(9)", packet.SessionState(9).String())
}
