package config

// SecurityProfile is an immutable template of spending and slippage limits.
// Overrides stored on DaemonConfig shadow individual fields without
// mutating the canonical profile itself.
type SecurityProfile struct {
	Name           string
	PerTxStableCap uint64 // 6-decimal USDC base units
	DailyStableCap uint64
	PerTxEthCapWei uint64
	DailyEthCapWei uint64
	MaxTxPerHour   int
	MinCooldownSec int
	MaxSlippageBps int
}

const (
	ProfileBalanced   = "balanced"
	ProfileAutonomous = "autonomous"
)

// canonicalProfiles holds the two shipped templates, balanced and autonomous. 1 ETH =
// 1e18 wei, 1 USDC = 1e6 base units per the 6-decimal stablecoin convention.
var canonicalProfiles = map[string]SecurityProfile{
	ProfileBalanced: {
		Name:           ProfileBalanced,
		PerTxStableCap: 100_000000,
		DailyStableCap: 500_000000,
		PerTxEthCapWei: 50_000000000000000,  // 0.05 ETH
		DailyEthCapWei: 250_000000000000000, // 0.25 ETH
		MaxTxPerHour:   10,
		MinCooldownSec: 5,
		MaxSlippageBps: 100,
	},
	ProfileAutonomous: {
		Name:           ProfileAutonomous,
		PerTxStableCap: 250_000000,
		DailyStableCap: 2000_000000,
		PerTxEthCapWei: 150_000000000000000, // 0.15 ETH
		DailyEthCapWei: 750_000000000000000, // 0.75 ETH
		MaxTxPerHour:   30,
		MinCooldownSec: 2,
		MaxSlippageBps: 200,
	},
}

// LookupProfile returns the canonical profile by name.
func LookupProfile(name string) (SecurityProfile, bool) {
	p, ok := canonicalProfiles[name]
	return p, ok
}

// Overrides holds per-field overrides a config file may carry to shadow a
// canonical profile's fields individually. A nil pointer field means "no
// override, use the profile's value".
type Overrides struct {
	PerTxStableCap *uint64 `json:"perTxStableCap,omitempty"`
	DailyStableCap *uint64 `json:"dailyStableCap,omitempty"`
	PerTxEthCapWei *uint64 `json:"perTxEthCapWei,omitempty"`
	DailyEthCapWei *uint64 `json:"dailyEthCapWei,omitempty"`
	MaxTxPerHour   *int    `json:"maxTxPerHour,omitempty"`
	MinCooldownSec *int    `json:"minCooldownSec,omitempty"`
	MaxSlippageBps *int    `json:"maxSlippageBps,omitempty"`
}

// Apply returns a SecurityProfile with each overridden field shadowed.
func (o Overrides) Apply(base SecurityProfile) SecurityProfile {
	out := base
	if o.PerTxStableCap != nil {
		out.PerTxStableCap = *o.PerTxStableCap
	}
	if o.DailyStableCap != nil {
		out.DailyStableCap = *o.DailyStableCap
	}
	if o.PerTxEthCapWei != nil {
		out.PerTxEthCapWei = *o.PerTxEthCapWei
	}
	if o.DailyEthCapWei != nil {
		out.DailyEthCapWei = *o.DailyEthCapWei
	}
	if o.MaxTxPerHour != nil {
		out.MaxTxPerHour = *o.MaxTxPerHour
	}
	if o.MinCooldownSec != nil {
		out.MinCooldownSec = *o.MinCooldownSec
	}
	if o.MaxSlippageBps != nil {
		out.MaxSlippageBps = *o.MaxSlippageBps
	}
	return out
}
