package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
)

// SoftEnclave is a software-backed Signer for development and test
// environments that lack real Secure Enclave / TPM hardware. It keeps the
// same two-slot, serialize-per-slot contract the real hardware signer must
// honor, so the rest of the daemon is unaware which implementation it is
// talking to.
type SoftEnclave struct {
	mu   sync.Mutex
	keys map[KeySlot]*ecdsa.PrivateKey
}

// NewSoftEnclave generates a fresh routine and admin P-256 keypair in
// process memory. Unlike real enclave hardware, these keys are extractable:
// Save writes them, wrapped, to a keystore file and LoadSoftEnclave reads
// them back.
func NewSoftEnclave() (*SoftEnclave, error) {
	routine, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate routine key: %w", err)
	}
	admin, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate admin key: %w", err)
	}
	return &SoftEnclave{
		keys: map[KeySlot]*ecdsa.PrivateKey{
			KeySlotRoutine: routine,
			KeySlotAdmin:   admin,
		},
	}, nil
}

// Sign implements Signer. The mutex serializes across both slots, which is
// stricter than strictly required (only per-slot serialization is needed) but
// is the simplest correct implementation for a software stand-in; the real
// hardware signer is expected to serialize per-slot only.
func (e *SoftEnclave) Sign(ctx context.Context, slot KeySlot, digest [32]byte) (r, s *big.Int, err error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key, ok := e.keys[slot]
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown key slot %q", ErrHardwareUnavailable, slot)
	}

	r, s, err = ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		return nil, nil, fmt.Errorf("enclave sign failed: %w", err)
	}
	return r, s, nil
}

// PublicKey implements Signer.
func (e *SoftEnclave) PublicKey(slot KeySlot) (PublicKey, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key, ok := e.keys[slot]
	if !ok {
		return PublicKey{}, fmt.Errorf("%w: unknown key slot %q", ErrHardwareUnavailable, slot)
	}
	return PublicKey{X: key.PublicKey.X, Y: key.PublicKey.Y}, nil
}
