package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Reader decodes wire fields from a byte slice. Every read either consumes
// exactly the bytes of its field or returns a *DecodeError and consumes
// nothing.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) take(n int, what string) ([]byte, error) {
	if r.Remaining() < n {
		return nil, &DecodeError{
			Err:    ErrTruncated,
			Offset: r.off,
			Value:  uint64(n),
			Detail: fmt.Sprintf("%s needs %d bytes, %d left", what, n, r.Remaining()),
		}
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1, "u8")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.take(2, "u16")
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4, "u32")
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.take(8, "u64")
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) I8() (int8, error) {
	v, err := r.U8()
	return int8(v), err
}

func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	return math.Float32frombits(v), err
}

func (r *Reader) F64() (float64, error) {
	v, err := r.U64()
	return math.Float64frombits(v), err
}

// Bool reads one byte. Anything other than 0 or 1 is a bad discriminant.
func (r *Reader) Bool() (bool, error) {
	start := r.off
	v, err := r.U8()
	if err != nil {
		return false, err
	}
	if v > 1 {
		r.off = start
		return false, &DecodeError{
			Err:    ErrDiscriminant,
			Offset: start,
			Value:  uint64(v),
			Detail: fmt.Sprintf("bool byte %d", v),
		}
	}
	return v == 1, nil
}

// Tag reads a width-byte discriminant and checks it against n variants.
func (r *Reader) Tag(width int, n uint64, typeName string) (uint64, error) {
	start := r.off
	var (
		v   uint64
		err error
	)
	switch width {
	case 1:
		var b uint8
		b, err = r.U8()
		v = uint64(b)
	case 2:
		var b uint16
		b, err = r.U16()
		v = uint64(b)
	case 4:
		var b uint32
		b, err = r.U32()
		v = uint64(b)
	default:
		v, err = r.U64()
	}
	if err != nil {
		return 0, err
	}
	if v >= n {
		r.off = start
		return 0, &DecodeError{
			Err:    ErrDiscriminant,
			Offset: start,
			Value:  v,
			Detail: fmt.Sprintf("discriminant %d for %s (%d variants)", v, typeName, n),
		}
	}
	return v, nil
}

// SeqLen reads a sequence length prefix and checks that at least
// n*minElem bytes follow it.
func (r *Reader) SeqLen(minElem int) (int, error) {
	start := r.off
	n, err := r.U64()
	if err != nil {
		return 0, err
	}
	if minElem > 0 && n > uint64(r.Remaining()/minElem) {
		r.off = start
		return 0, &DecodeError{
			Err:    ErrTruncated,
			Offset: start,
			Value:  n,
			Detail: fmt.Sprintf("length %d exceeds %d remaining bytes", n, r.Remaining()),
		}
	}
	if n > math.MaxInt32 {
		r.off = start
		return 0, &DecodeError{
			Err:    ErrTruncated,
			Offset: start,
			Value:  n,
			Detail: fmt.Sprintf("length %d too large", n),
		}
	}
	return int(n), nil
}

// Bytes reads a length-prefixed byte sequence. The result aliases the input.
func (r *Reader) Bytes() ([]byte, error) {
	start := r.off
	n, err := r.SeqLen(1)
	if err != nil {
		return nil, err
	}
	b, err := r.take(n, "bytes")
	if err != nil {
		r.off = start
		return nil, err
	}
	return b, nil
}

// String reads a length-prefixed UTF-8 string.
func (r *Reader) String() (string, error) {
	start := r.off
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		r.off = start
		return "", &DecodeError{
			Err:    ErrInvalidUTF8,
			Offset: start,
			Value:  uint64(len(b)),
			Detail: fmt.Sprintf("%d-byte string", len(b)),
		}
	}
	return string(b), nil
}

// Raw reads n bytes without a prefix. The result aliases the input.
func (r *Reader) Raw(n int) ([]byte, error) {
	return r.take(n, "raw")
}
