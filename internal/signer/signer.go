// Package signer abstracts the hardware-isolated P-256 signer (Secure
// Enclave / TPM-backed keystore) the daemon signs every UserOperation and
// every config file with. The real hardware enclave is out of scope here: this
// package only defines the capability the rest of the daemon programs
// against, plus a software-backed implementation for environments without
// real hardware-bound keys.
package signer

import (
	"context"
	"crypto/elliptic"
	"fmt"
	"math/big"
)

// KeySlot names one of the two independent key handles the daemon expects
// from hardware: the routine key signs every UserOperation and the config
// file; the admin key exists only to let hardware attest to admin-gated
// operations (key rotation observation, future use) without ever touching
// the routine signing path.
type KeySlot string

const (
	KeySlotRoutine KeySlot = "routine"
	KeySlotAdmin   KeySlot = "admin"
)

// PublicKey is a P-256 (secp256r1) public key point.
type PublicKey struct {
	X *big.Int
	Y *big.Int
}

// HexXY renders the coordinates as fixed-width 0x-prefixed hex, the format
// the config store and the /address endpoint both use.
func (pk PublicKey) HexXY() (xHex, yHex string) {
	return fmt.Sprintf("0x%064x", pk.X), fmt.Sprintf("0x%064x", pk.Y)
}

// OnCurve reports whether the point is a valid P-256 point.
func (pk PublicKey) OnCurve() bool {
	if pk.X == nil || pk.Y == nil {
		return false
	}
	return elliptic.P256().IsOnCurve(pk.X, pk.Y)
}

// Signer is the capability the daemon needs from hardware: sign opaque
// bytes with one of the two key slots, and expose each slot's public key.
// Implementations MUST serialize concurrent signs against the same slot —
// Each slot must be single-use-at-a-time even though the two slots
// are independent of each other.
type Signer interface {
	// Sign produces a raw (r, s) signature over the SHA-nothing digest the
	// caller supplies — the daemon always passes an already-hashed 32-byte
	// digest (a userOpHash or a config-file keccak digest), never raw
	// message bytes, so the signer never needs to know the hash function.
	Sign(ctx context.Context, slot KeySlot, digest [32]byte) (r, s *big.Int, err error)

	// PublicKey returns the public point for the given slot.
	PublicKey(slot KeySlot) (PublicKey, error)
}

// ErrHardwareUnavailable is returned by a Signer implementation that has
// lost contact with its backing hardware. Callers map this to 503 and must
// never fall back to a software key outside of explicitly-configured dev
// environments.
var ErrHardwareUnavailable = fmt.Errorf("hardware signer unavailable")
