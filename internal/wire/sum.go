package wire

import (
	"fmt"
	"reflect"

	"github.com/rotisserie/eris"
)

// Discriminator marks a variant that asks for a fixed discriminant value.
// Discriminants are always the declaration index, so RegisterSum rejects
// any variant implementing it.
type Discriminator interface {
	WireDiscriminant() uint64
}

var discriminatorType = reflect.TypeFor[Discriminator]()

type sumType struct {
	name     string
	variants []reflect.Type
	index    map[reflect.Type]uint64
	width    int
}

// RegisterSum declares the interface type I as a sum type whose variants are
// the concrete struct types of the given values, in declaration order. On the
// wire a sum value is its variant's index, TagWidth(len(variants)) bytes wide,
// followed by the variant's fields.
func RegisterSum[I any](c *Codec, variants ...I) error {
	t := reflect.TypeFor[I]()
	if t.Kind() != reflect.Interface {
		return fmt.Errorf("%w: %s is not an interface", ErrInvalidSum, t)
	}
	if len(variants) == 0 {
		return fmt.Errorf("%w: %s has no variants", ErrInvalidSum, t)
	}
	s := &sumType{
		name:     t.String(),
		variants: make([]reflect.Type, 0, len(variants)),
		index:    make(map[reflect.Type]uint64, len(variants)),
		width:    TagWidth(uint64(len(variants))),
	}
	for i, v := range variants {
		vt := reflect.TypeOf(v)
		if vt == nil {
			return fmt.Errorf("%w: %s variant %d is nil", ErrInvalidSum, t, i)
		}
		if vt.Kind() != reflect.Struct {
			return fmt.Errorf("%w: %s variant %s is not a struct", ErrInvalidSum, t, vt)
		}
		if vt.Implements(discriminatorType) || reflect.PointerTo(vt).Implements(discriminatorType) {
			return fmt.Errorf("%w: %s variant %s declares an explicit discriminant", ErrInvalidSum, t, vt)
		}
		if _, dup := s.index[vt]; dup {
			return fmt.Errorf("%w: %s variant %s listed twice", ErrInvalidSum, t, vt)
		}
		s.index[vt] = uint64(i)
		s.variants = append(s.variants, vt)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return fmt.Errorf("%w: register %s", ErrFrozen, t)
	}
	if _, ok := c.sums[t]; ok {
		return fmt.Errorf("%w: %s registered twice", ErrInvalidSum, t)
	}
	c.sums[t] = s
	return nil
}

// MustRegisterSum is RegisterSum for startup code, where a bad registration
// is fatal.
func MustRegisterSum[I any](c *Codec, variants ...I) {
	if err := RegisterSum(c, variants...); err != nil {
		panic(eris.Wrap(err, "register sum type"))
	}
}

// Variants returns the variant types of sum type I in declaration order.
func Variants[I any](c *Codec) []reflect.Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sums[reflect.TypeFor[I]()]
	if !ok {
		return nil
	}
	return append([]reflect.Type(nil), s.variants...)
}

func (c *Codec) buildSum(p *plan, s *sumType) error {
	plans := make([]*plan, len(s.variants))
	for i, vt := range s.variants {
		vp, err := c.derive(vt)
		if err != nil {
			return fmt.Errorf("%s variant %s: %w", s.name, vt, err)
		}
		plans[i] = vp
	}
	n := uint64(len(s.variants))
	p.minSize = s.width
	p.enc = func(w *Writer, v reflect.Value) error {
		if v.IsNil() {
			return fmt.Errorf("%w: nil %s", ErrUnsupportedValue, s.name)
		}
		cv := v.Elem()
		idx, ok := s.index[cv.Type()]
		if !ok {
			return fmt.Errorf("%w: %s is not a variant of %s", ErrUnsupportedValue, cv.Type(), s.name)
		}
		w.Tag(idx, s.width)
		return plans[idx].enc(w, cv)
	}
	p.dec = func(r *Reader, v reflect.Value) error {
		idx, err := r.Tag(s.width, n, s.name)
		if err != nil {
			return err
		}
		nv := reflect.New(s.variants[idx]).Elem()
		if err := plans[idx].dec(r, nv); err != nil {
			return err
		}
		v.Set(nv)
		return nil
	}
	return nil
}

type enumType struct {
	name  string
	names []string
	width int
}

// Integer lists the kinds RegisterEnum accepts.
type Integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint
}

// RegisterEnum declares E as a field-less sum type whose variants are the
// values 0..len(names)-1, named in declaration order.
func RegisterEnum[E Integer](c *Codec, names ...string) error {
	t := reflect.TypeFor[E]()
	if len(names) == 0 {
		return fmt.Errorf("%w: %s has no variants", ErrInvalidSum, t)
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return fmt.Errorf("%w: %s variant %q listed twice", ErrInvalidSum, t, n)
		}
		seen[n] = true
	}
	last := reflect.New(t).Elem()
	if last.CanInt() {
		if last.OverflowInt(int64(len(names) - 1)) {
			return fmt.Errorf("%w: %s cannot hold %d variants", ErrInvalidSum, t, len(names))
		}
	} else if last.OverflowUint(uint64(len(names) - 1)) {
		return fmt.Errorf("%w: %s cannot hold %d variants", ErrInvalidSum, t, len(names))
	}
	e := &enumType{
		name:  t.String(),
		names: append([]string(nil), names...),
		width: TagWidth(uint64(len(names))),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return fmt.Errorf("%w: register %s", ErrFrozen, t)
	}
	if _, ok := c.enums[t]; ok {
		return fmt.Errorf("%w: %s registered twice", ErrInvalidSum, t)
	}
	if _, ok := c.plans[t]; ok {
		return fmt.Errorf("%w: %s already used as a plain integer", ErrInvalidSum, t)
	}
	c.enums[t] = e
	return nil
}

// MustRegisterEnum is RegisterEnum for startup code.
func MustRegisterEnum[E Integer](c *Codec, names ...string) {
	if err := RegisterEnum[E](c, names...); err != nil {
		panic(eris.Wrap(err, "register enum"))
	}
}

func buildEnum(p *plan, e *enumType) {
	n := uint64(len(e.names))
	p.minSize = e.width
	p.enc = func(w *Writer, v reflect.Value) error {
		var idx uint64
		switch v.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
			i := v.Int()
			if i < 0 {
				return fmt.Errorf("%w: %s value %d", ErrUnsupportedValue, e.name, i)
			}
			idx = uint64(i)
		default:
			idx = v.Uint()
		}
		if idx >= n {
			return fmt.Errorf("%w: %s value %d (%d variants)", ErrUnsupportedValue, e.name, idx, n)
		}
		w.Tag(idx, e.width)
		return nil
	}
	p.dec = func(r *Reader, v reflect.Value) error {
		idx, err := r.Tag(e.width, n, e.name)
		if err != nil {
			return err
		}
		if v.CanInt() {
			v.SetInt(int64(idx))
		} else {
			v.SetUint(idx)
		}
		return nil
	}
}

// EnumName returns the declared name of enum value v, or "" if v is out of
// range or E is not registered.
func EnumName[E Integer](c *Codec, v E) string {
	c.mu.RLock()
	e, ok := c.enums[reflect.TypeFor[E]()]
	c.mu.RUnlock()
	if !ok || v < 0 || uint64(v) >= uint64(len(e.names)) {
		return ""
	}
	return e.names[uint64(v)]
}
