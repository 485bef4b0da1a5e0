// Package approval implements the 8-digit approval-code state machine:
// issuing a code when the policy engine requires human sign-off, and
// verifying a retried /sign request against it.
package approval

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"signerd/pkg/cryptoutil"
)

const (
	codeDigits        = 8
	codeModulus       = 100_000_000
	ttl               = 180 * time.Second
	maxFailedAttempts = 3
)

// Result is the outcome of a verification attempt.
type Result string

const (
	ResultApproved    Result = "approved"
	ResultInvalid     Result = "invalid"
	ResultExpired     Result = "expired"
	ResultRevoked     Result = "revoked"
	ResultRateLimited Result = "rate_limited"
)

// IntentFields is what the approvalHash binds on: the intent itself plus
// the daemon and chain identity, so a code issued for one wallet or chain
// can never verify against another.
type IntentFields struct {
	ChainID       uint64
	WalletAddress string
	Target        string
	Value         *big.Int
	Calldata      []byte
}

// ApprovalHash computes keccak256(chainId, walletAddress, target, value,
// keccak256(calldata), 0) — the literal trailing 0 is a placeholder for a
// future approval-kind discriminator. Expiry is deliberately excluded:
// the verifier recomputes this from the current intent without access to
// the original creation time, and the entry's TTL alone bounds replay.
func ApprovalHash(f IntentFields) [32]byte {
	chainIDBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(chainIDBytes, f.ChainID)

	value := f.Value
	if value == nil {
		value = new(big.Int)
	}
	valueBytes := make([]byte, 32)
	value.FillBytes(valueBytes)

	calldataDigest := cryptoutil.Keccak256(f.Calldata)

	digest := cryptoutil.Keccak256(
		chainIDBytes,
		[]byte(f.WalletAddress),
		[]byte(f.Target),
		valueBytes,
		calldataDigest,
		[]byte{0},
	)
	var out [32]byte
	copy(out[:], digest)
	return out
}

// pendingApproval is one outstanding code.
type pendingApproval struct {
	code           string
	hash           [32]byte
	summary        string
	createdAt      time.Time
	expiresAt      time.Time
	failedAttempts int
}

// Manager owns the set of outstanding approval codes and the global
// verification rate limiter. One Manager per process.
type Manager struct {
	mu      sync.Mutex
	byCode  map[string]*pendingApproval
	limiter *rate.Limiter
	now     func() time.Time
}

// NewManager returns a Manager allowing up to 5 failed verifications per
// rolling minute, refilling continuously (rate.NewLimiter with a per-second
// rate equivalent to 5/60s and a burst of 5 so an idle period doesn't let
// failures pile up beyond the stated cap).
func NewManager() *Manager {
	return &Manager{
		byCode:  make(map[string]*pendingApproval),
		limiter: rate.NewLimiter(rate.Every(time.Minute/5), 5),
		now:     time.Now,
	}
}

// Create issues a new 8-digit code bound to fields, with a human-readable
// summary for the approval notification. The code is drawn from a
// cryptographic RNG: 4 random bytes interpreted big-endian as a uint32,
// reduced mod 100_000_000, left-padded to 8 digits.
func (m *Manager) Create(fields IntentFields, summary string) (code string, hashPrefix string, err error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", "", fmt.Errorf("failed to draw random bytes for approval code: %w", err)
	}
	n := binary.BigEndian.Uint32(buf[:]) % codeModulus
	code = fmt.Sprintf("%0*d", codeDigits, n)

	hash := ApprovalHash(fields)
	now := m.now()

	m.mu.Lock()
	m.byCode[code] = &pendingApproval{
		code:      code,
		hash:      hash,
		summary:   summary,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	m.mu.Unlock()

	return code, hashPrefixOf(hash), nil
}

// hashPrefixOf returns the 18-character hex prefix of the hash that is the
// only form of the hash allowed into logs or responses.
func hashPrefixOf(h [32]byte) string {
	return cryptoutil.HexEncode(h[:])[:18]
}

// Verify checks code against fields (recomputing approvalHash from the
// current intent) and consumes the entry on success. The rate limiter is
// global, not per-code: it caps failed verification attempts across all
// outstanding approvals.
func (m *Manager) Verify(code string, fields IntentFields) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The limiter budgets failures only: a successful verification never
	// consumes a token, and the check happens before lookup so a caller
	// over budget learns nothing about which codes exist.
	if m.limiter.Tokens() < 1 {
		return ResultRateLimited
	}

	p, ok := m.byCode[code]
	if !ok {
		return m.failLocked(ResultInvalid)
	}

	if p.failedAttempts >= maxFailedAttempts {
		delete(m.byCode, code)
		return m.failLocked(ResultRevoked)
	}

	now := m.now()
	if !now.Before(p.expiresAt) {
		delete(m.byCode, code)
		return m.failLocked(ResultExpired)
	}

	want := ApprovalHash(fields)
	if want != p.hash {
		p.failedAttempts++
		if p.failedAttempts >= maxFailedAttempts {
			delete(m.byCode, code)
			return m.failLocked(ResultRevoked)
		}
		return m.failLocked(ResultInvalid)
	}

	delete(m.byCode, code)
	return ResultApproved
}

// failLocked books one failure against the global limiter and passes the
// result through. Caller must hold m.mu.
func (m *Manager) failLocked(r Result) Result {
	m.limiter.Allow()
	return r
}

// Sweep removes expired entries. Intended to run periodically from the
// daemon's background loop so expired codes don't accumulate between
// verification attempts.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for code, p := range m.byCode {
		if !now.Before(p.expiresAt) {
			delete(m.byCode, code)
			removed++
		}
	}
	return removed
}

// Pending returns the number of stored approval codes, including expired
// ones that Sweep has not removed yet.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byCode)
}
