package registry

import "strings"

// AllowedAction is one (chainId, contract, selector) tuple the active
// profile considers eligible for autopilot, with a human-readable label
// used in approval summaries and audit entries.
type AllowedAction struct {
	ChainID   uint64
	Address   string // lowercased
	Selector  string // 4-byte lowercase hex, "0x"-prefixed
	HumanName string
}

type protocolKey struct {
	chainID  uint64
	address  string
	selector string
}

// ProtocolRegistry is an O(1) (chainId, address, selector) lookup table.
// Its content is profile-dependent: the policy engine asks for the set
// matching the active profile.
type ProtocolRegistry struct {
	entries map[protocolKey]AllowedAction
}

// NewProtocolRegistry builds a registry from a flat action list, lowercasing
// addresses and selectors on the way in so Lookup never has to normalize.
func NewProtocolRegistry(actions []AllowedAction) *ProtocolRegistry {
	r := &ProtocolRegistry{entries: make(map[protocolKey]AllowedAction, len(actions))}
	for _, a := range actions {
		r.Add(a)
	}
	return r
}

func protoKeyFor(chainID uint64, address, selector string) protocolKey {
	return protocolKey{
		chainID:  chainID,
		address:  strings.ToLower(address),
		selector: strings.ToLower(selector),
	}
}

// Add registers an allowed action.
func (r *ProtocolRegistry) Add(a AllowedAction) {
	a.Address = strings.ToLower(a.Address)
	a.Selector = strings.ToLower(a.Selector)
	r.entries[protoKeyFor(a.ChainID, a.Address, a.Selector)] = a
}

// Lookup returns the allowed action for (chainId, address, selector), if
// the profile's protocol pack contains it.
func (r *ProtocolRegistry) Lookup(chainID uint64, address, selector string) (AllowedAction, bool) {
	a, ok := r.entries[protoKeyFor(chainID, address, selector)]
	return a, ok
}

// UniswapUniversalRouter addresses per chain, used by the slippage
// verification path to recognize the Universal Router `execute` selector
// as a swap rather than an opaque unknown call.
var UniswapUniversalRouter = map[uint64]string{
	1:    "0x66a9893cc07d91d95644aedd05d03f95e1dba8af",
	8453: "0x6ff5693b99212da76ad316178a184ab56d299b43",
}

// BalancedProtocolPack is the DeFi action allowlist for the "balanced"
// profile: the Uniswap Universal Router execute() entry point on the two
// chains this daemon is expected to run against.
func BalancedProtocolPack() []AllowedAction {
	var actions []AllowedAction
	for chainID, addr := range UniswapUniversalRouter {
		actions = append(actions, AllowedAction{
			ChainID: chainID, Address: addr, Selector: SelectorUniversalRouterExecute,
			HumanName: "Uniswap Universal Router swap",
		})
	}
	return actions
}

// AutonomousProtocolPack extends the balanced pack with Aave deposit and
// withdraw entry points, matching the wider trust the "autonomous" profile grants.
func AutonomousProtocolPack() []AllowedAction {
	actions := BalancedProtocolPack()
	aave := map[uint64]string{1: "0x7d2768de32b0b80b7a3454c06bdac94a69ddc7a9", 8453: "0xa238dd80c259a72e81d7e4664a9801593f98d1c5"}
	for chainID, addr := range aave {
		actions = append(actions,
			AllowedAction{ChainID: chainID, Address: addr, Selector: SelectorAaveDeposit, HumanName: "Aave deposit"},
			AllowedAction{ChainID: chainID, Address: addr, Selector: SelectorAaveWithdraw, HumanName: "Aave withdraw"},
		)
	}
	return actions
}

// Selector constants shared with the calldata package; duplicated here as
// literal strings (not an import of internal/calldata) to keep the
// registry free of a dependency on the decoder it's consulted alongside.
const (
	SelectorUniversalRouterExecute = "0x3593564c"
	SelectorAaveDeposit            = "0xe8eda9df"
	SelectorAaveWithdraw           = "0x69328dec"
)
