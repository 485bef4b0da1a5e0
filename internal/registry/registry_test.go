package registry

import "testing"

func TestStablecoinBootstrapHasCanonicalUSDC(t *testing.T) {
	r := NewStablecoinRegistry()
	for _, chainID := range []uint64{1, 8453} {
		if !r.IsStablecoin(chainID, usdcFor(t, r, chainID)) {
			t.Fatalf("expected USDC on chain %d", chainID)
		}
	}
}

func usdcFor(t *testing.T, r *StablecoinRegistry, chainID uint64) string {
	t.Helper()
	for _, e := range canonicalUSDC {
		if e.ChainID == chainID {
			return e.Address
		}
	}
	t.Fatalf("no canonical USDC for chain %d", chainID)
	return ""
}

func TestStablecoinLookupIsCaseInsensitive(t *testing.T) {
	r := NewStablecoinRegistry()
	if !r.IsStablecoin(1, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48") {
		t.Fatalf("lowercased address must match")
	}
	if !r.IsStablecoin(1, "0xA0B86991C6218B36C1D19D4A2E9EB0CE3606EB48") {
		t.Fatalf("uppercased address must match")
	}
}

func TestStablecoinChainScoping(t *testing.T) {
	r := NewStablecoinRegistry()
	mainnetUSDC := "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	if r.IsStablecoin(8453, mainnetUSDC) {
		t.Fatalf("mainnet USDC address must not match on Base")
	}
}

func TestProtocolRegistryLookupNormalizes(t *testing.T) {
	r := NewProtocolRegistry([]AllowedAction{{
		ChainID: 1, Address: "0xAbCd000000000000000000000000000000000000",
		Selector: "0x3593564C", HumanName: "test",
	}})
	if _, ok := r.Lookup(1, "0xabcd000000000000000000000000000000000000", "0x3593564c"); !ok {
		t.Fatalf("lookup must be case-insensitive on address and selector")
	}
	if _, ok := r.Lookup(2, "0xabcd000000000000000000000000000000000000", "0x3593564c"); ok {
		t.Fatalf("wrong chain must not match")
	}
}

func TestAutonomousPackSupersetOfBalanced(t *testing.T) {
	balanced := BalancedProtocolPack()
	autonomous := AutonomousProtocolPack()
	if len(autonomous) <= len(balanced) {
		t.Fatalf("autonomous pack should extend the balanced pack")
	}
}
