package signer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"golang.org/x/crypto/hkdf"
)

// The soft enclave's keys have to survive restarts or the config-file
// signature (and the on-chain signer registration) would break every time
// the daemon came back up. Keys are stored wrapped: AES-256-GCM under a
// key derived from a host-held secret via HKDF. Real enclave hardware
// keeps its keys non-extractable and never touches this file.

const keystoreFileMode = 0o600

// DeriveWrappingKey derives the 32-byte AES key from the host secret.
func DeriveWrappingKey(hostSecret []byte) ([]byte, error) {
	salt := []byte("signerd-keystore-v1")
	info := []byte("soft-enclave-wrapping-key")

	hkdfReader := hkdf.New(sha256.New, hostSecret, salt, info)
	key := make([]byte, 32) // AES-256
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

type storedKeys struct {
	RoutineD string `json:"routineD"`
	AdminD   string `json:"adminD"`
}

func sealKeys(plaintext, wrappingKey []byte) (string, error) {
	if len(wrappingKey) != 32 {
		return "", errors.New("wrapping key must be 32 bytes for AES-256")
	}
	block, err := aes.NewCipher(wrappingKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func openKeys(encoded string, wrappingKey []byte) ([]byte, error) {
	if len(wrappingKey) != 32 {
		return nil, errors.New("wrapping key must be 32 bytes for AES-256")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode keystore: %w", err)
	}
	block, err := aes.NewCipher(wrappingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	if len(data) < gcm.NonceSize() {
		return nil, errors.New("keystore ciphertext too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
	}
	return plaintext, nil
}

// Save wraps both key slots and writes the keystore file.
func (e *SoftEnclave) Save(path string, hostSecret []byte) error {
	e.mu.Lock()
	keys := storedKeys{
		RoutineD: fmt.Sprintf("%064x", e.keys[KeySlotRoutine].D),
		AdminD:   fmt.Sprintf("%064x", e.keys[KeySlotAdmin].D),
	}
	e.mu.Unlock()

	plaintext, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal keys: %w", err)
	}
	wrappingKey, err := DeriveWrappingKey(hostSecret)
	if err != nil {
		return err
	}
	sealed, err := sealKeys(plaintext, wrappingKey)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(sealed), keystoreFileMode); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	return nil
}

// LoadSoftEnclave reads a keystore written by Save and reconstructs the
// enclave with the same two keys.
func LoadSoftEnclave(path string, hostSecret []byte) (*SoftEnclave, error) {
	sealed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	wrappingKey, err := DeriveWrappingKey(hostSecret)
	if err != nil {
		return nil, err
	}
	plaintext, err := openKeys(string(sealed), wrappingKey)
	if err != nil {
		return nil, err
	}
	var keys storedKeys
	if err := json.Unmarshal(plaintext, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse keystore: %w", err)
	}

	routine, err := privateKeyFromHex(keys.RoutineD)
	if err != nil {
		return nil, fmt.Errorf("invalid routine key: %w", err)
	}
	admin, err := privateKeyFromHex(keys.AdminD)
	if err != nil {
		return nil, fmt.Errorf("invalid admin key: %w", err)
	}
	return &SoftEnclave{
		keys: map[KeySlot]*ecdsa.PrivateKey{
			KeySlotRoutine: routine,
			KeySlotAdmin:   admin,
		},
	}, nil
}

func privateKeyFromHex(dHex string) (*ecdsa.PrivateKey, error) {
	d, ok := new(big.Int).SetString(dHex, 16)
	if !ok || d.Sign() <= 0 {
		return nil, errors.New("malformed private scalar")
	}
	curve := elliptic.P256()
	if d.Cmp(curve.Params().N) >= 0 {
		return nil, errors.New("private scalar out of range")
	}
	key := &ecdsa.PrivateKey{D: d}
	key.PublicKey.Curve = curve
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(d.Bytes())
	return key, nil
}
