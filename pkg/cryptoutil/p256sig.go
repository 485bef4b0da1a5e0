package cryptoutil

import (
	"crypto/elliptic"
	"fmt"
	"math/big"
)

// p256Order is the order n of the P-256 (secp256r1) curve's base point.
var p256Order = elliptic.P256().Params().N

// p256HalfOrder is n/2, the low-S threshold: a signature is "low-S" iff
// s <= n/2. Anything above that has an equivalent low-S twin (n-s) that
// verifies against the same public key, which is what makes high-S
// signatures malleable.
var p256HalfOrder = new(big.Int).Rsh(new(big.Int).Set(p256Order), 1)

// NormalizeLowS rewrites s to n-s whenever s > n/2, leaving r untouched.
// Idempotent: a second call on an already-normalized signature is a no-op.
func NormalizeLowS(r, s *big.Int) (*big.Int, *big.Int) {
	if s.Cmp(p256HalfOrder) > 0 {
		s = new(big.Int).Sub(p256Order, s)
	}
	return new(big.Int).Set(r), s
}

// IsLowS reports whether s is already at or below n/2.
func IsLowS(s *big.Int) bool {
	return s.Cmp(p256HalfOrder) <= 0
}

// RawSignature packs (r, s) into the wire format this daemon always
// produces: 64 raw bytes, r then s, each left-padded to 32 bytes. Never
// DER — DER is variable-length and the wallet contract expects a fixed
// 64-byte blob.
func RawSignature(r, s *big.Int) ([]byte, error) {
	if r.BitLen() > 256 || s.BitLen() > 256 {
		return nil, fmt.Errorf("signature component exceeds 256 bits")
	}
	out := make([]byte, 64)
	r.FillBytes(out[0:32])
	s.FillBytes(out[32:64])
	return out, nil
}

// ParseRawSignature is the inverse of RawSignature.
func ParseRawSignature(sig []byte) (r, s *big.Int, err error) {
	if len(sig) != 64 {
		return nil, nil, fmt.Errorf("raw P-256 signature must be 64 bytes, got %d", len(sig))
	}
	r = new(big.Int).SetBytes(sig[0:32])
	s = new(big.Int).SetBytes(sig[32:64])
	return r, s, nil
}
