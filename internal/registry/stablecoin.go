// Package registry holds the two lookup tables the policy engine consults
// on every evaluation: which (chainId, address) pairs are recognized
// stablecoins, and which (chainId, address, selector) actions are
// autopilot-eligible DeFi protocol calls.
package registry

import "strings"

// StablecoinEntry is metadata about one recognized stablecoin deployment.
// Decimals is informational only — it never changes whether a transfer is
// routed to autopilot, only how amounts are formatted for summaries.
type StablecoinEntry struct {
	ChainID  uint64
	Address  string
	Decimals int
}

type stablecoinKey struct {
	chainID uint64
	address string
}

// StablecoinRegistry is keyed on (chainId, lower(address)) for O(1) lookup.
type StablecoinRegistry struct {
	entries map[stablecoinKey]StablecoinEntry
}

// canonicalUSDC bootstraps the registry with USDC on Ethereum mainnet (1)
// and Base (8453); additional entries are added through the registry's own
// lifecycle rule rather than hardcoded here.
var canonicalUSDC = []StablecoinEntry{
	{ChainID: 1, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
	{ChainID: 8453, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
}

// NewStablecoinRegistry returns a registry bootstrapped with the canonical
// USDC deployments. Extension beyond this set only happens via the admin
// path (Add), which the router gates behind the human-presence oracle.
func NewStablecoinRegistry() *StablecoinRegistry {
	r := &StablecoinRegistry{entries: make(map[stablecoinKey]StablecoinEntry)}
	for _, e := range canonicalUSDC {
		r.Add(e)
	}
	return r
}

func keyFor(chainID uint64, address string) stablecoinKey {
	return stablecoinKey{chainID: chainID, address: strings.ToLower(address)}
}

// Add registers (or overwrites) a stablecoin entry. Only reachable through
// the admin+oracle path.
func (r *StablecoinRegistry) Add(e StablecoinEntry) {
	r.entries[keyFor(e.ChainID, e.Address)] = e
}

// Lookup returns the stablecoin entry for (chainId, address), if any.
func (r *StablecoinRegistry) Lookup(chainID uint64, address string) (StablecoinEntry, bool) {
	e, ok := r.entries[keyFor(chainID, address)]
	return e, ok
}

// IsStablecoin is a convenience boolean form of Lookup.
func (r *StablecoinRegistry) IsStablecoin(chainID uint64, address string) bool {
	_, ok := r.Lookup(chainID, address)
	return ok
}
