package ident

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint is a BLAKE2b-256 digest of a group's type names in id order.
// Two builds that agree on every id of a group produce the same fingerprint.
type Fingerprint [blake2b.Size256]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:8])
}

// Fingerprint hashes the type names of group. Each name is followed by a NUL
// so that adjacent names cannot run together.
func (r *Registry) Fingerprint(groupName string) Fingerprint {
	h, _ := blake2b.New256(nil) // only fails for oversized keys
	h.Write([]byte(groupName))
	h.Write([]byte{0})
	for _, t := range r.Types(groupName) {
		h.Write([]byte(t.String()))
		h.Write([]byte{0})
	}
	var f Fingerprint
	h.Sum(f[:0])
	return f
}
