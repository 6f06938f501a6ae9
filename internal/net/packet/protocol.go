package packet

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/rotisserie/eris"

	"github.com/simwire/server/internal/component"
	"github.com/simwire/server/internal/ident"
	"github.com/simwire/server/internal/wire"
)

// ErrOversize is the panic cause when an encoded frame exceeds the
// configured maximum. Such a frame should never have been built.
var ErrOversize = errors.New("packet: frame exceeds maximum size")

// Protocol frames messages as [id u8][payload] and back. It owns the ident
// registry and the codec; both are frozen once NewProtocol returns.
type Protocol struct {
	ids      *ident.Registry
	codec    *wire.Codec
	maxFrame int
}

// NewProtocol registers the component sum types and every packet type, in
// their fixed order, and derives all codec plans up front.
func NewProtocol(maxFrame int) (*Protocol, error) {
	p := &Protocol{
		ids:      ident.NewRegistry(),
		codec:    wire.NewCodec(),
		maxFrame: maxFrame,
	}
	if err := component.Register(p.codec); err != nil {
		return nil, fmt.Errorf("register components: %w", err)
	}
	for _, m := range messages {
		t := reflect.TypeOf(m)
		if _, err := p.ids.Assign(Group, t); err != nil {
			return nil, fmt.Errorf("assign packet id: %w", err)
		}
		if err := p.codec.DeriveType(t); err != nil {
			return nil, fmt.Errorf("derive %s: %w", t, err)
		}
	}
	p.ids.Freeze()
	p.codec.Freeze()
	return p, nil
}

// Registry returns the frozen ident registry.
func (p *Protocol) Registry() *ident.Registry { return p.ids }

// Codec returns the frozen codec.
func (p *Protocol) Codec() *wire.Codec { return p.codec }

// MaxFrame returns the frame size limit in bytes.
func (p *Protocol) MaxFrame() int { return p.maxFrame }

// Schema returns the fingerprint of the packet group, sent in Hello.
func (p *Protocol) Schema() ident.Fingerprint {
	return p.ids.Fingerprint(Group)
}

// ID returns the wire id of msg's type.
func (p *Protocol) ID(msg any) (ident.ID, bool) {
	return p.ids.Lookup(Group, reflect.TypeOf(msg))
}

// Encode frames msg. It returns an error for unknown message types and
// values the codec rejects, and panics if the frame is larger than MaxFrame.
func (p *Protocol) Encode(msg any) ([]byte, error) {
	id, ok := p.ID(msg)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a packet", ident.ErrUnknown, msg)
	}
	w := wire.NewWriter()
	w.U8(uint8(id))
	if err := p.codec.MarshalTo(w, msg); err != nil {
		return nil, fmt.Errorf("encode %T: %w", msg, err)
	}
	if p.maxFrame > 0 && w.Size() > p.maxFrame {
		panic(eris.Wrapf(ErrOversize, "%T is %d bytes, limit %d", msg, w.Size(), p.maxFrame))
	}
	return w.Buffer(), nil
}

// MustEncode is Encode for messages built by the server itself, where an
// encode failure is a programming error.
func (p *Protocol) MustEncode(msg any) []byte {
	frame, err := p.Encode(msg)
	if err != nil {
		panic(eris.Wrap(err, "encode packet"))
	}
	return frame
}

// Decode parses one frame. The returned message is a value of one of the
// packet types, not a pointer.
func (p *Protocol) Decode(frame []byte) (ident.ID, any, error) {
	if len(frame) == 0 {
		return 0, nil, &wire.DecodeError{Err: wire.ErrTruncated, Detail: "empty frame"}
	}
	id := ident.ID(frame[0])
	t, ok := p.ids.TypeOf(Group, id)
	if !ok {
		return id, nil, &wire.DecodeError{
			Err:    wire.ErrDiscriminant,
			Value:  uint64(id),
			Detail: fmt.Sprintf("unknown packet id %d", id),
		}
	}
	v := reflect.New(t)
	n, err := p.codec.Unmarshal(frame[1:], v.Interface())
	if err != nil {
		return id, nil, shift(err, 1)
	}
	if rest := len(frame) - 1 - n; rest != 0 {
		return id, nil, &wire.DecodeError{
			Err:    wire.ErrTrailingBytes,
			Offset: 1 + n,
			Value:  uint64(rest),
			Detail: fmt.Sprintf("%d bytes after %s", rest, t),
		}
	}
	return id, v.Elem().Interface(), nil
}

// shift rebases a decode error's offset from the payload to the frame.
func shift(err error, by int) error {
	if de, ok := err.(*wire.DecodeError); ok {
		cp := *de
		cp.Offset += by
		return &cp
	}
	return err
}
