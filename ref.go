package hoard

import (
	"bytes"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// RefSize is the width in bytes of a Ref: the full output of SHA3-256.
const RefSize = 32

// Ref is the digest of a Block: its SHA3-256 hash. It is the only key type
// in the system — packfile block tables, append-only repository indexes,
// and superblock pointer lists are all keyed on Ref.
type Ref [RefSize]byte

// Zero is the zero value of a Ref. No real block ever hashes to it (SHA3-256
// is not known to have a preimage for the all-zero digest), so it doubles
// as an "absent" sentinel in a few call sites.
var Zero Ref

// Sum computes the Ref of a byte slice.
func Sum(data []byte) Ref {
	var r Ref
	h := sha3.Sum256(data)
	copy(r[:], h[:])
	return r
}

// IsZero reports whether r is the zero Ref.
func (r Ref) IsZero() bool {
	return r == Zero
}

// Compare orders two Refs by unsigned lexicographic byte comparison, the
// same ordering the packfile block table is sorted by.
func (r Ref) Compare(other Ref) int {
	return bytes.Compare(r[:], other[:])
}

// Less reports whether r sorts before other.
func (r Ref) Less(other Ref) bool {
	return r.Compare(other) < 0
}

// String renders r as lowercase hex.
func (r Ref) String() string {
	return hex.EncodeToString(r[:])
}

// RefFromBytes copies the first RefSize bytes of b into a new Ref. It does
// not hash b; b is assumed to already be a digest.
func RefFromBytes(b []byte) Ref {
	var r Ref
	copy(r[:], b)
	return r
}

// ParseRef decodes a hex string into a Ref. The string must be exactly
// 2*RefSize hex nibbles; upper and lower case are both accepted.
func ParseRef(s string) (Ref, error) {
	var r Ref
	if len(s) != 2*RefSize {
		return r, Errorf(KindFormat, nil, "ref %q has wrong length %d, want %d", s, len(s), 2*RefSize)
	}
	n, err := hex.Decode(r[:], []byte(s))
	if err != nil {
		return Zero, Errorf(KindFormat, err, "decoding ref %q", s)
	}
	if n != RefSize {
		return Zero, Errorf(KindFormat, nil, "ref %q decoded to %d bytes, want %d", s, n, RefSize)
	}
	return r, nil
}
