// Package calldata recognizes and decodes the calldata shapes the policy
// engine needs to understand: native transfers, ERC-20 transfers, the
// always-gated allowance/permit family, and Uniswap Universal Router swaps.
// Decode is pure and deterministic — it never touches the network.
package calldata

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"signerd/pkg/cryptoutil"
)

// Decoded is the result of decoding one intent's calldata.
type Decoded struct {
	Action     Action
	Selector   string // "" for native transfers
	IsKnown    bool
	Summary    string
	Recipient  string // for token_transfer
	AmountWei  uint64 // saturating narrowing of the decoded amount
	IsStable   bool
	SwapParams *SwapParams
}

// StablecoinChecker is the minimal view of the stablecoin registry the
// decoder needs; satisfied by *registry.StablecoinRegistry.
type StablecoinChecker interface {
	IsStablecoin(chainID uint64, address string) bool
}

// Decode classifies calldata sent to target carrying value, on chainId.
// Overflow policy: any uint256 read off the wire that doesn't fit in a
// uint64 saturates to max rather than wrapping, so a spending check
// downstream never under-reports an amount it couldn't fully represent.
func Decode(calldata []byte, target string, value *big.Int, chainID uint64, stablecoins StablecoinChecker) Decoded {
	if len(calldata) == 0 {
		return Decoded{
			Action:  ActionNativeTransfer,
			IsKnown: true,
			Summary: "Native transfer",
		}
	}

	if len(calldata) < 4 {
		return Decoded{Action: ActionUnknown, IsKnown: false, Summary: "Undecodable calldata (too short)"}
	}

	sel := selectorHex(calldata)
	action, known := knownSelectors[sel]
	if !known {
		return Decoded{Selector: sel, Action: ActionUnknown, IsKnown: false, Summary: "Unknown calldata selector " + sel}
	}

	switch sel {
	case SelectorTransfer:
		return decodeTransfer(calldata, sel, target, chainID, stablecoins)
	case SelectorUniversalRouterExec:
		return decodeUniversalRouterExecute(calldata, sel)
	default:
		return Decoded{
			Selector: sel,
			Action:   action,
			IsKnown:  true,
			Summary:  summaryForAction(action, sel),
		}
	}
}

func summaryForAction(action Action, sel string) string {
	switch action {
	case ActionAllowance:
		return "Allowance change (" + sel + ")"
	case ActionPermit:
		return "Permit signature request (" + sel + ")"
	case ActionProtocolCall:
		return "Protocol call (" + sel + ")"
	default:
		return "Calldata " + sel
	}
}

// decodeTransfer extracts recipient/amount from ERC-20 transfer(address,uint256):
// selector (4 bytes) + recipient word (32 bytes, left-padded address) +
// amount word (32 bytes).
func decodeTransfer(calldata []byte, sel, target string, chainID uint64, stablecoins StablecoinChecker) Decoded {
	if len(calldata) < 4+32+32 {
		return Decoded{Selector: sel, Action: ActionUnknown, IsKnown: false, Summary: "Undecodable transfer calldata"}
	}
	recipientWord := calldata[4:36]
	amountWord := calldata[36:68]

	recipient := common.BytesToAddress(recipientWord[12:32]).Hex()
	amount := new(big.Int).SetBytes(amountWord)
	amountWei := cryptoutil.SaturatingUint64(amount)

	isStable := stablecoins != nil && stablecoins.IsStablecoin(chainID, target)

	return Decoded{
		Action:    ActionTokenTransfer,
		Selector:  sel,
		IsKnown:   true,
		Recipient: recipient,
		AmountWei: amountWei,
		IsStable:  isStable,
		Summary:   "Token transfer to " + recipient,
	}
}

// EncodeTransfer builds transfer(address,uint256) calldata — used by tests
// to exercise Decode's round trip, and available to callers constructing
// intents offline.
func EncodeTransfer(to string, amount *big.Int) []byte {
	out := make([]byte, 4+32+32)
	sel := cryptoutil.MustHexDecode(SelectorTransfer)
	copy(out[0:4], sel)
	addr := common.HexToAddress(to)
	copy(out[4+12:4+32], addr.Bytes())
	amount.FillBytes(out[4+32 : 4+64])
	return out
}
