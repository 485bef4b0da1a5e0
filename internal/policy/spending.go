// Package policy implements the default-deny evaluator (C7) and its
// spending tracker (C6). Spending state is reachable only through the
// tracker's methods; the allowlist lives in the config store and the
// engine only reads it through a callback.
package policy

import (
	"fmt"
	"sync"
	"time"

	"signerd/internal/config"
)

const hourWindow = 60 * time.Minute

// Budgets is the remaining headroom under each cap, saturating at zero.
type Budgets struct {
	RemainingPerTxEthWei    uint64
	RemainingDailyEthWei    uint64
	RemainingPerTxStable    uint64
	RemainingDailyStable    uint64
	RemainingTxThisHour     int
	SecondsUntilCooldownEnd int
}

// SpendingTracker accounts for per-tx, daily, hourly, and cooldown limits.
// It is safe for concurrent use: every method holds the tracker's mutex.
type SpendingTracker struct {
	mu sync.Mutex

	dailyEthSpentWei   uint64
	dailyStableSpent   uint64
	currentDayOrdinal  int64
	recentTxTimestamps []time.Time
	lastTxAt           time.Time

	now func() time.Time
}

// NewSpendingTracker returns a tracker starting at zero spend.
func NewSpendingTracker() *SpendingTracker {
	return &SpendingTracker{now: time.Now}
}

func dayOrdinal(t time.Time) int64 {
	return t.UTC().Unix() / 86400
}

// rolloverLocked resets daily counters when the day ordinal has advanced.
// Caller must hold s.mu.
func (s *SpendingTracker) rolloverLocked(t time.Time) {
	today := dayOrdinal(t)
	if today != s.currentDayOrdinal {
		s.currentDayOrdinal = today
		s.dailyEthSpentWei = 0
		s.dailyStableSpent = 0
	}
}

// pruneHourlyLocked drops timestamps older than the 60-minute window.
// Caller must hold s.mu.
func (s *SpendingTracker) pruneHourlyLocked(t time.Time) {
	cutoff := t.Add(-hourWindow)
	i := 0
	for i < len(s.recentTxTimestamps) && s.recentTxTimestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		s.recentTxTimestamps = s.recentTxTimestamps[i:]
	}
}

// Check evaluates ethAmountWei/stableAmount against profile's caps, in the
// authoritative order: per-tx eth, per-tx stable, daily eth, daily stable,
// hourly rate, cooldown.
func (s *SpendingTracker) Check(ethAmountWei, stableAmount uint64, profile config.SecurityProfile) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.rolloverLocked(now)
	s.pruneHourlyLocked(now)

	if ethAmountWei > profile.PerTxEthCapWei {
		return false, fmt.Sprintf("per-tx ETH cap exceeded: %d > %d wei", ethAmountWei, profile.PerTxEthCapWei)
	}
	if stableAmount > profile.PerTxStableCap {
		return false, fmt.Sprintf("per-tx stablecoin cap exceeded: %d > %d", stableAmount, profile.PerTxStableCap)
	}
	if s.dailyEthSpentWei+ethAmountWei > profile.DailyEthCapWei {
		return false, "daily ETH cap exceeded"
	}
	if s.dailyStableSpent+stableAmount > profile.DailyStableCap {
		return false, "daily stablecoin cap exceeded"
	}
	if len(s.recentTxTimestamps) >= profile.MaxTxPerHour {
		return false, fmt.Sprintf("hourly rate limit exceeded: %d tx/hour", profile.MaxTxPerHour)
	}
	if !s.lastTxAt.IsZero() {
		elapsed := now.Sub(s.lastTxAt)
		if elapsed < time.Duration(profile.MinCooldownSec)*time.Second {
			return false, fmt.Sprintf("cooldown not elapsed: %.1fs remaining", (time.Duration(profile.MinCooldownSec)*time.Second - elapsed).Seconds())
		}
	}

	return true, ""
}

// Record books a completed spend after an allow decision. Must only be
// called once the bundler submission has returned a transaction hash
// record never runs ahead of submission.
func (s *SpendingTracker) Record(ethAmountWei, stableAmount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.rolloverLocked(now)

	s.dailyEthSpentWei += ethAmountWei
	s.dailyStableSpent += stableAmount
	s.recentTxTimestamps = append(s.recentTxTimestamps, now)
	s.lastTxAt = now
}

// RemainingBudgets returns saturating-subtraction headroom under every cap.
func (s *SpendingTracker) RemainingBudgets(profile config.SecurityProfile) Budgets {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.rolloverLocked(now)
	s.pruneHourlyLocked(now)

	b := Budgets{
		RemainingPerTxEthWei: profile.PerTxEthCapWei,
		RemainingPerTxStable: profile.PerTxStableCap,
		RemainingDailyEthWei: saturatingSub(profile.DailyEthCapWei, s.dailyEthSpentWei),
		RemainingDailyStable: saturatingSub(profile.DailyStableCap, s.dailyStableSpent),
		RemainingTxThisHour:  max(0, profile.MaxTxPerHour-len(s.recentTxTimestamps)),
	}
	if !s.lastTxAt.IsZero() {
		elapsed := now.Sub(s.lastTxAt)
		remain := time.Duration(profile.MinCooldownSec)*time.Second - elapsed
		if remain > 0 {
			b.SecondsUntilCooldownEnd = int(remain.Seconds())
		}
	}
	return b
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
