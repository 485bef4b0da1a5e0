// Package cryptoutil holds the low-level primitives the daemon's core
// pipeline is built on: Ethereum-flavored Keccak-256, big-integer helpers
// with saturating narrowing, hex codec helpers, and P-256 signature
// normalization. Nothing here talks to the network or to hardware.
package cryptoutil

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// Keccak256 hashes data with Ethereum's Keccak-256 (padding byte 0x01, not
// the FIPS-202 SHA3-256 padding byte 0x06). go-ethereum's crypto.Keccak256
// already uses the Ethereum-flavored sponge; this wrapper exists so every
// caller in this repo goes through one name instead of importing
// go-ethereum/crypto directly, and so the test vectors have one place to
// pin against.
func Keccak256(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}

// SaturatingUint64 narrows a uint256 (big.Int) to a uint64, saturating to
// math.MaxUint64 if the value doesn't fit. This is deliberate: every
// spending-limit check in the policy engine reads a narrowed amount, and a
// silently-truncated amount could under-report a transfer's size. Saturating
// up is the conservative direction — it can only make a check stricter.
func SaturatingUint64(v *big.Int) uint64 {
	if v == nil || v.Sign() < 0 {
		return 0
	}
	if v.BitLen() > 64 {
		return math.MaxUint64
	}
	return v.Uint64()
}

// FitsUint64 reports whether v can be represented exactly in a uint64. The
// intent parser uses this to reject (rather than silently saturate) a
// malformed `value` field — saturation is reserved for internal narrowing
// after the value is already known to be well-formed.
func FitsUint64(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.BitLen() <= 64
}
