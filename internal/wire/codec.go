package wire

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"
	"unicode/utf8"
)

// Marshaler is implemented by types that write their own wire form instead
// of having one derived from their shape.
type Marshaler interface {
	MarshalWire(w *Writer) error
}

// Unmarshaler is the decoding half of Marshaler. It is looked up on the
// pointer type.
type Unmarshaler interface {
	UnmarshalWire(r *Reader) error
}

var (
	marshalerType   = reflect.TypeFor[Marshaler]()
	unmarshalerType = reflect.TypeFor[Unmarshaler]()
	byteType        = reflect.TypeFor[byte]()
)

// plan is the derived encoder/decoder pair for one Go type.
type plan struct {
	name    string
	minSize int
	enc     func(w *Writer, v reflect.Value) error
	dec     func(r *Reader, v reflect.Value) error
}

// Codec derives and caches wire plans from Go type shapes. Sum types and
// enums must be registered before the first value that contains them is
// encoded. A codec is built once at startup; after Freeze it accepts no
// further registrations and is safe for concurrent use.
type Codec struct {
	mu      sync.RWMutex
	plans   map[reflect.Type]*plan
	sums    map[reflect.Type]*sumType
	enums   map[reflect.Type]*enumType
	pending []reflect.Type
	frozen  bool
}

func NewCodec() *Codec {
	return &Codec{
		plans: make(map[reflect.Type]*plan, 64),
		sums:  make(map[reflect.Type]*sumType, 8),
		enums: make(map[reflect.Type]*enumType, 8),
	}
}

// Freeze rejects any later RegisterSum or RegisterEnum call.
func (c *Codec) Freeze() {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
}

// Derive builds the plan for T now, so shape errors surface at startup
// rather than on first use.
func Derive[T any](c *Codec) error {
	return c.DeriveType(reflect.TypeFor[T]())
}

// DeriveType is Derive for a type known only at run time.
func (c *Codec) DeriveType(t reflect.Type) error {
	_, err := c.planFor(t)
	return err
}

func (c *Codec) planFor(t reflect.Type) (*plan, error) {
	c.mu.RLock()
	p, ok := c.plans[t]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = c.pending[:0]
	p, err := c.derive(t)
	if err != nil {
		// Plans built alongside the failed one may point at it.
		for _, pt := range c.pending {
			delete(c.plans, pt)
		}
		return nil, err
	}
	return p, nil
}

// derive must be called with c.mu held. The plan is cached before it is
// built so recursive types resolve to the same plan.
func (c *Codec) derive(t reflect.Type) (*plan, error) {
	if p, ok := c.plans[t]; ok {
		return p, nil
	}
	p := &plan{name: t.String()}
	c.plans[t] = p
	c.pending = append(c.pending, t)
	if err := c.build(p, t); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Codec) build(p *plan, t reflect.Type) error {
	if s, ok := c.sums[t]; ok {
		return c.buildSum(p, s)
	}
	if e, ok := c.enums[t]; ok {
		buildEnum(p, e)
		return nil
	}
	if t.Kind() != reflect.Interface && t.Implements(marshalerType) && reflect.PointerTo(t).Implements(unmarshalerType) {
		p.enc = func(w *Writer, v reflect.Value) error {
			return v.Interface().(Marshaler).MarshalWire(w)
		}
		p.dec = func(r *Reader, v reflect.Value) error {
			return v.Addr().Interface().(Unmarshaler).UnmarshalWire(r)
		}
		return nil
	}

	switch t.Kind() {
	case reflect.Bool:
		p.minSize = 1
		p.enc = func(w *Writer, v reflect.Value) error {
			w.Bool(v.Bool())
			return nil
		}
		p.dec = func(r *Reader, v reflect.Value) error {
			b, err := r.Bool()
			v.SetBool(b)
			return err
		}
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		buildInt(p, t)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		buildUint(p, t)
	case reflect.Float32:
		p.minSize = 4
		p.enc = func(w *Writer, v reflect.Value) error {
			w.F32(float32(v.Float()))
			return nil
		}
		p.dec = func(r *Reader, v reflect.Value) error {
			f, err := r.F32()
			v.SetFloat(float64(f))
			return err
		}
	case reflect.Float64:
		p.minSize = 8
		p.enc = func(w *Writer, v reflect.Value) error {
			w.F64(v.Float())
			return nil
		}
		p.dec = func(r *Reader, v reflect.Value) error {
			f, err := r.F64()
			v.SetFloat(f)
			return err
		}
	case reflect.String:
		p.minSize = 8
		p.enc = func(w *Writer, v reflect.Value) error {
			s := v.String()
			if !utf8.ValidString(s) {
				return fmt.Errorf("%w: invalid utf-8 in %s", ErrUnsupportedValue, v.Type())
			}
			w.String(s)
			return nil
		}
		p.dec = func(r *Reader, v reflect.Value) error {
			s, err := r.String()
			if err != nil {
				return err
			}
			v.SetString(s)
			return nil
		}
	case reflect.Slice:
		return c.buildSlice(p, t)
	case reflect.Array:
		return c.buildArray(p, t)
	case reflect.Struct:
		return c.buildStruct(p, t)
	case reflect.Interface:
		return fmt.Errorf("%w: interface %s is not a registered sum type", ErrUnsupportedType, t)
	default:
		return fmt.Errorf("%w: %s (kind %s)", ErrUnsupportedType, t, t.Kind())
	}
	return nil
}

func buildInt(p *plan, t reflect.Type) {
	switch t.Kind() {
	case reflect.Int8:
		p.minSize = 1
		p.enc = func(w *Writer, v reflect.Value) error { w.I8(int8(v.Int())); return nil }
		p.dec = func(r *Reader, v reflect.Value) error {
			n, err := r.I8()
			v.SetInt(int64(n))
			return err
		}
	case reflect.Int16:
		p.minSize = 2
		p.enc = func(w *Writer, v reflect.Value) error { w.I16(int16(v.Int())); return nil }
		p.dec = func(r *Reader, v reflect.Value) error {
			n, err := r.I16()
			v.SetInt(int64(n))
			return err
		}
	case reflect.Int32:
		p.minSize = 4
		p.enc = func(w *Writer, v reflect.Value) error { w.I32(int32(v.Int())); return nil }
		p.dec = func(r *Reader, v reflect.Value) error {
			n, err := r.I32()
			v.SetInt(int64(n))
			return err
		}
	default:
		// int is carried as 64 bits whatever the platform word size.
		p.minSize = 8
		p.enc = func(w *Writer, v reflect.Value) error { w.I64(v.Int()); return nil }
		p.dec = func(r *Reader, v reflect.Value) error {
			n, err := r.I64()
			if err == nil && v.OverflowInt(n) {
				return &DecodeError{Err: ErrOverflow, Offset: r.Offset() - 8, Value: uint64(n), Detail: fmt.Sprintf("%d overflows %s", n, v.Type())}
			}
			v.SetInt(n)
			return err
		}
	}
}

func buildUint(p *plan, t reflect.Type) {
	switch t.Kind() {
	case reflect.Uint8:
		p.minSize = 1
		p.enc = func(w *Writer, v reflect.Value) error { w.U8(uint8(v.Uint())); return nil }
		p.dec = func(r *Reader, v reflect.Value) error {
			n, err := r.U8()
			v.SetUint(uint64(n))
			return err
		}
	case reflect.Uint16:
		p.minSize = 2
		p.enc = func(w *Writer, v reflect.Value) error { w.U16(uint16(v.Uint())); return nil }
		p.dec = func(r *Reader, v reflect.Value) error {
			n, err := r.U16()
			v.SetUint(uint64(n))
			return err
		}
	case reflect.Uint32:
		p.minSize = 4
		p.enc = func(w *Writer, v reflect.Value) error { w.U32(uint32(v.Uint())); return nil }
		p.dec = func(r *Reader, v reflect.Value) error {
			n, err := r.U32()
			v.SetUint(uint64(n))
			return err
		}
	default:
		// uint is carried as 64 bits whatever the platform word size.
		p.minSize = 8
		p.enc = func(w *Writer, v reflect.Value) error { w.U64(v.Uint()); return nil }
		p.dec = func(r *Reader, v reflect.Value) error {
			n, err := r.U64()
			if err == nil && v.OverflowUint(n) {
				return &DecodeError{Err: ErrOverflow, Offset: r.Offset() - 8, Value: n, Detail: fmt.Sprintf("%d overflows %s", n, v.Type())}
			}
			v.SetUint(n)
			return err
		}
	}
}

// isRawByte reports whether t is plain uint8 with no registered override.
func (c *Codec) isRawByte(t reflect.Type) bool {
	_, isEnum := c.enums[t]
	return t == byteType && !isEnum
}

func (c *Codec) buildSlice(p *plan, t reflect.Type) error {
	p.minSize = 8
	if c.isRawByte(t.Elem()) {
		p.enc = func(w *Writer, v reflect.Value) error {
			w.Bytes(v.Bytes())
			return nil
		}
		p.dec = func(r *Reader, v reflect.Value) error {
			b, err := r.Bytes()
			if err != nil {
				return err
			}
			if len(b) == 0 {
				v.Set(reflect.Zero(t))
				return nil
			}
			v.SetBytes(bytes.Clone(b))
			return nil
		}
		return nil
	}

	elem, err := c.derive(t.Elem())
	if err != nil {
		return fmt.Errorf("%s element: %w", t, err)
	}
	p.enc = func(w *Writer, v reflect.Value) error {
		n := v.Len()
		w.SeqLen(n)
		for i := 0; i < n; i++ {
			if err := elem.enc(w, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	p.dec = func(r *Reader, v reflect.Value) error {
		n, err := r.SeqLen(elem.minSize)
		if err != nil {
			return err
		}
		if n == 0 {
			v.Set(reflect.Zero(t))
			return nil
		}
		out := reflect.MakeSlice(t, n, n)
		for i := 0; i < n; i++ {
			if err := elem.dec(r, out.Index(i)); err != nil {
				return err
			}
		}
		v.Set(out)
		return nil
	}
	return nil
}

func (c *Codec) buildArray(p *plan, t reflect.Type) error {
	n := t.Len()
	if c.isRawByte(t.Elem()) {
		p.minSize = n
		p.enc = func(w *Writer, v reflect.Value) error {
			for i := 0; i < n; i++ {
				w.U8(uint8(v.Index(i).Uint()))
			}
			return nil
		}
		p.dec = func(r *Reader, v reflect.Value) error {
			raw, err := r.Raw(n)
			if err != nil {
				return err
			}
			for i, b := range raw {
				v.Index(i).SetUint(uint64(b))
			}
			return nil
		}
		return nil
	}

	elem, err := c.derive(t.Elem())
	if err != nil {
		return fmt.Errorf("%s element: %w", t, err)
	}
	p.minSize = n * elem.minSize
	p.enc = func(w *Writer, v reflect.Value) error {
		for i := 0; i < n; i++ {
			if err := elem.enc(w, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	p.dec = func(r *Reader, v reflect.Value) error {
		for i := 0; i < n; i++ {
			if err := elem.dec(r, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

type fieldPlan struct {
	index int
	name  string
	plan  *plan
}

// buildStruct encodes fields in declaration order with no names or counts on
// the wire. Fields tagged `wire:"-"` are skipped; any other unexported field
// is an error because it could not be decoded.
func (c *Codec) buildStruct(p *plan, t reflect.Type) error {
	fields := make([]fieldPlan, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Tag.Get("wire") == "-" {
			continue
		}
		if !f.IsExported() {
			return fmt.Errorf("%w: %s.%s is unexported", ErrUnsupportedType, t, f.Name)
		}
		fp, err := c.derive(f.Type)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", t, f.Name, err)
		}
		fields = append(fields, fieldPlan{index: i, name: f.Name, plan: fp})
		p.minSize += fp.minSize
	}
	p.enc = func(w *Writer, v reflect.Value) error {
		for _, f := range fields {
			if err := f.plan.enc(w, v.Field(f.index)); err != nil {
				return fmt.Errorf("%s.%s: %w", t, f.name, err)
			}
		}
		return nil
	}
	p.dec = func(r *Reader, v reflect.Value) error {
		for _, f := range fields {
			if err := f.plan.dec(r, v.Field(f.index)); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// MarshalTo appends the encoding of v to w. A pointer is followed once, so
// passing a pointer to an interface variable encodes it as its sum type.
func (c *Codec) MarshalTo(w *Writer, v any) error {
	if v == nil {
		return fmt.Errorf("%w: nil", ErrUnsupportedValue)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return fmt.Errorf("%w: nil %s", ErrUnsupportedValue, rv.Type())
		}
		rv = rv.Elem()
	}
	return c.encodeValue(w, rv)
}

func (c *Codec) encodeValue(w *Writer, rv reflect.Value) error {
	p, err := c.planFor(rv.Type())
	if err != nil {
		return err
	}
	return p.enc(w, rv)
}

// Marshal returns the encoding of v. See MarshalTo.
func (c *Codec) Marshal(v any) ([]byte, error) {
	w := NewWriter()
	if err := c.MarshalTo(w, v); err != nil {
		return nil, err
	}
	return w.Buffer(), nil
}

// Unmarshal decodes one value from the front of data into the value ptr
// points at and returns the number of bytes consumed. On failure it returns
// 0 and an error; decode failures are *DecodeError.
func (c *Codec) Unmarshal(data []byte, ptr any) (int, error) {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return 0, fmt.Errorf("%w: unmarshal target must be a non-nil pointer, got %T", ErrUnsupportedValue, ptr)
	}
	p, err := c.planFor(rv.Type().Elem())
	if err != nil {
		return 0, err
	}
	r := NewReader(data)
	if err := p.dec(r, rv.Elem()); err != nil {
		return 0, err
	}
	return r.Offset(), nil
}

// Encode encodes v using the static type T, so an interface T is encoded as
// its registered sum type.
func Encode[T any](c *Codec, v T) ([]byte, error) {
	w := NewWriter()
	if err := c.encodeValue(w, reflect.ValueOf(&v).Elem()); err != nil {
		return nil, err
	}
	return w.Buffer(), nil
}

// Decode decodes a T from the front of data.
func Decode[T any](c *Codec, data []byte) (int, T, error) {
	var out T
	n, err := c.Unmarshal(data, &out)
	return n, out, err
}

// DecodeExact decodes a T and fails if data holds anything after it.
func DecodeExact[T any](c *Codec, data []byte) (T, error) {
	n, out, err := Decode[T](c, data)
	if err != nil {
		return out, err
	}
	if n != len(data) {
		var zero T
		return zero, &DecodeError{
			Err:    ErrTrailingBytes,
			Offset: n,
			Value:  uint64(len(data) - n),
			Detail: fmt.Sprintf("%d bytes after %s", len(data)-n, reflect.TypeFor[T]()),
		}
	}
	return out, nil
}
