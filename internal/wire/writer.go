package wire

import (
	"encoding/binary"
	"math"
)

// Writer appends wire-encoded fields to a buffer. All multi-byte values are
// big-endian and fixed width; nothing is padded.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

func (w *Writer) U8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) U16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *Writer) U32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *Writer) U64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *Writer) I8(v int8)   { w.U8(uint8(v)) }
func (w *Writer) I16(v int16) { w.U16(uint16(v)) }
func (w *Writer) I32(v int32) { w.U32(uint32(v)) }
func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

// F32 writes the IEEE-754 bit pattern of v.
func (w *Writer) F32(v float32) { w.U32(math.Float32bits(v)) }

// F64 writes the IEEE-754 bit pattern of v.
func (w *Writer) F64(v float64) { w.U64(math.Float64bits(v)) }

// Bool writes a single byte, 0 or 1.
func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
		return
	}
	w.U8(0)
}

// Tag writes a discriminant using width bytes (1, 2, 4 or 8).
func (w *Writer) Tag(v uint64, width int) {
	switch width {
	case 1:
		w.U8(uint8(v))
	case 2:
		w.U16(uint16(v))
	case 4:
		w.U32(uint32(v))
	default:
		w.U64(v)
	}
}

// SeqLen writes a sequence length prefix.
func (w *Writer) SeqLen(n int) {
	w.U64(uint64(n))
}

// String writes a length-prefixed string. The length counts bytes. s must be
// valid UTF-8; the codec rejects anything else before it gets here.
func (w *Writer) String(s string) {
	w.SeqLen(len(s))
	w.buf = append(w.buf, s...)
}

// Bytes writes a length-prefixed byte sequence.
func (w *Writer) Bytes(b []byte) {
	w.SeqLen(len(b))
	w.buf = append(w.buf, b...)
}

// Raw appends b without a prefix.
func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// Buffer returns the encoded bytes.
func (w *Writer) Buffer() []byte {
	return w.buf
}

// Size returns the number of bytes written so far.
func (w *Writer) Size() int {
	return len(w.buf)
}
