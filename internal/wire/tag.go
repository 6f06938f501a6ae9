package wire

import "math/bits"

// BytesFor returns the number of bytes needed to hold v. BytesFor(0) is 0.
func BytesFor(v uint64) int {
	return (bits.Len64(v) + 7) / 8
}

// TagWidth returns the discriminant width, in bytes, for a sum type with n
// variants: the bytes needed for the largest index n-1, rounded up to a
// fixed-width integer, and never less than one byte. Up to 256 variants take
// 1 byte, up to 65536 take 2, up to 2^32 take 4, anything larger 8.
func TagWidth(n uint64) int {
	if n == 0 {
		return 1
	}
	switch b := BytesFor(n - 1); {
	case b <= 1:
		return 1
	case b == 2:
		return 2
	case b <= 4:
		return 4
	default:
		return 8
	}
}
