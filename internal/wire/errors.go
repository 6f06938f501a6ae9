package wire

import (
	"errors"
	"fmt"
)

// Decode failures. Returned inside a *DecodeError; match with errors.Is.
var (
	ErrTruncated     = errors.New("truncated input")
	ErrInvalidUTF8   = errors.New("invalid utf-8")
	ErrDiscriminant  = errors.New("discriminant out of range")
	ErrTrailingBytes = errors.New("trailing bytes")
	ErrOverflow      = errors.New("value overflows target type")
)

// Registration and encoding failures.
var (
	ErrUnsupportedType  = errors.New("wire: unsupported type")
	ErrUnsupportedValue = errors.New("wire: unsupported value")
	ErrInvalidSum       = errors.New("wire: invalid sum type")
	ErrFrozen           = errors.New("wire: codec is frozen")
)

// DecodeError describes where and why decoding stopped.
type DecodeError struct {
	Err    error  // one of the decode sentinels above
	Offset int    // byte offset of the offending field
	Value  uint64 // offending value (discriminant or length), when meaningful
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("wire: %v at offset %d: %s", e.Err, e.Offset, e.Detail)
	}
	return fmt.Sprintf("wire: %v at offset %d", e.Err, e.Offset)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
