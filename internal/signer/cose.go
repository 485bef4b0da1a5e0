package signer

import (
	"crypto/elliptic"
	"fmt"
	"math/big"
)

// ExtractPublicKeyFromCOSE parses a P-256 public key out of a CBOR COSE_Key
// blob (RFC 8152 §7), the format the human-presence oracle's companion UI
// uses when it forwards an attestation-style public key descriptor instead
// of raw coordinates. For P-256 (ES256):
//   - kty (1): 2 (EC2)
//   - alg (3): -7 (ES256)
//   - crv (-1): 1 (P-256)
//   - x (-2): 32 bytes
//   - y (-3): 32 bytes
//
// This is a byte-scan, not a general CBOR decoder — the daemon only ever
// needs these two fixed-length byte strings out of an otherwise-fixed-shape
// map, so pulling in a CBOR library for it would be solving a bigger
// problem than we have.
func ExtractPublicKeyFromCOSE(cosePublicKey []byte) (PublicKey, error) {
	if len(cosePublicKey) < 70 {
		return PublicKey{}, fmt.Errorf("COSE public key too short: %d bytes", len(cosePublicKey))
	}

	xStart, yStart := -1, -1
	for i := 0; i < len(cosePublicKey)-33; i++ {
		if cosePublicKey[i] == 0x21 && cosePublicKey[i+1] == 0x58 && cosePublicKey[i+2] == 0x20 {
			xStart = i + 3
		}
		if cosePublicKey[i] == 0x22 && cosePublicKey[i+1] == 0x58 && cosePublicKey[i+2] == 0x20 {
			yStart = i + 3
		}
	}
	if xStart == -1 || yStart == -1 {
		return PublicKey{}, fmt.Errorf("failed to find P-256 coordinates in COSE key (xStart=%d, yStart=%d)", xStart, yStart)
	}

	x := new(big.Int).SetBytes(cosePublicKey[xStart : xStart+32])
	y := new(big.Int).SetBytes(cosePublicKey[yStart : yStart+32])

	if !elliptic.P256().IsOnCurve(x, y) {
		return PublicKey{}, fmt.Errorf("public key point not on P-256 curve")
	}
	return PublicKey{X: x, Y: y}, nil
}
