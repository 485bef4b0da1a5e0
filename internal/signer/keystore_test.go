package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"path/filepath"
	"testing"

	"signerd/pkg/cryptoutil"
)

func TestKeystoreSaveLoadRoundTrip(t *testing.T) {
	enclave, err := NewSoftEnclave()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "keys.enc")
	secret := []byte("host secret for tests")

	if err := enclave.Save(path, secret); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadSoftEnclave(path, secret)
	if err != nil {
		t.Fatal(err)
	}

	for _, slot := range []KeySlot{KeySlotRoutine, KeySlotAdmin} {
		orig, err := enclave.PublicKey(slot)
		if err != nil {
			t.Fatal(err)
		}
		got, err := loaded.PublicKey(slot)
		if err != nil {
			t.Fatal(err)
		}
		if orig.X.Cmp(got.X) != 0 || orig.Y.Cmp(got.Y) != 0 {
			t.Fatalf("slot %s public key changed across save/load", slot)
		}
	}
}

func TestKeystoreWrongSecretFails(t *testing.T) {
	enclave, err := NewSoftEnclave()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "keys.enc")
	if err := enclave.Save(path, []byte("right secret")); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSoftEnclave(path, []byte("wrong secret")); err == nil {
		t.Fatalf("expected decryption with the wrong secret to fail")
	}
}

func TestLoadedEnclaveSignaturesVerify(t *testing.T) {
	enclave, err := NewSoftEnclave()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "keys.enc")
	secret := []byte("host secret")
	if err := enclave.Save(path, secret); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadSoftEnclave(path, secret)
	if err != nil {
		t.Fatal(err)
	}

	var digest [32]byte
	copy(digest[:], cryptoutil.Keccak256([]byte("probe")))

	r, s, err := loaded.Sign(context.Background(), KeySlotRoutine, digest)
	if err != nil {
		t.Fatal(err)
	}
	pub, err := enclave.PublicKey(KeySlotRoutine)
	if err != nil {
		t.Fatal(err)
	}
	ecKey := &ecdsa.PublicKey{Curve: elliptic.P256(), X: pub.X, Y: pub.Y}
	if !ecdsa.Verify(ecKey, digest[:], r, s) {
		t.Fatalf("signature from reloaded enclave failed to verify against original public key")
	}
}
