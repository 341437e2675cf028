// Package encode maps identities and messages to ring elements with
// SHAKE256, for use as preimage targets.
package encode

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"golang.org/x/crypto/sha3"

	"gpv-trapdoor/poly"
)

const (
	identityTag = "gpv-trapdoor/identity/v1"
	messageTag  = "gpv-trapdoor/message/v1"
)

// Identity returns the target syndrome of id, in Evaluation format.
func Identity(r *poly.Ring, id string) *poly.Element {
	return Expand(r, identityTag, []byte(id))
}

// Message returns the target syndrome of a salted message, in Evaluation
// format.
func Message(r *poly.Ring, salt, msg []byte) *poly.Element {
	return Expand(r, messageTag, salt, msg)
}

// Expand absorbs tag and the length-prefixed parts into SHAKE256 and squeezes
// N coefficients uniform in [0, q) by rejection. The element is returned in
// Evaluation format.
func Expand(r *poly.Ring, tag string, parts ...[]byte) *poly.Element {
	h := sha3.NewShake256()
	writeField(h, []byte(tag))
	for _, p := range parts {
		writeField(h, p)
	}

	q := r.Modulus()
	mask := uint64(1)<<bits.Len64(q-1) - 1
	coeffs := make([]uint64, r.N())
	var buf [8]byte
	for i := 0; i < len(coeffs); {
		if _, err := h.Read(buf[:]); err != nil {
			panic(fmt.Errorf("encode: shake read: %w", err))
		}
		if v := binary.LittleEndian.Uint64(buf[:]) & mask; v < q {
			coeffs[i] = v
			i++
		}
	}
	return r.FromUint64(coeffs, poly.Coefficient).SwitchFormat(poly.Evaluation)
}

func writeField(h sha3.ShakeHash, b []byte) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(b)))
	h.Write(n[:])
	h.Write(b)
}
