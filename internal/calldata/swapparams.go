package calldata

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"signerd/pkg/cryptoutil"
)

// SwapParams is what the slippage oracle needs out of a Universal
// Router execute() call: enough to identify the pair, call the quoter, and
// compare its answer to the caller's accepted minimum.
type SwapParams struct {
	TokenIn      string
	TokenOut     string
	Fee          uint32
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Recipient    string
	PayerIsUser  bool
	IsMultiHop   bool
	Commands     []byte
}

// universalRouterCmdV3SwapExactIn is the Universal Router command byte for
// a single exact-input V3 swap (the only swap shape this daemon extracts
// structured params for; every other command is reported as a multi-hop
// swap, which the policy engine routes to approval).
const universalRouterCmdV3SwapExactIn = 0x00

var executeArgs = mustExecuteArgs()

func mustExecuteArgs() abi.Arguments {
	bytesT, _ := abi.NewType("bytes", "", nil)
	bytesArrT, _ := abi.NewType("bytes[]", "", nil)
	uint256T, _ := abi.NewType("uint256", "", nil)
	return abi.Arguments{{Type: bytesT}, {Type: bytesArrT}, {Type: uint256T}}
}

// decodeUniversalRouterExecute ABI-decodes execute(bytes commands, bytes[]
// inputs, uint256 deadline) and, for a single V3_SWAP_EXACT_IN command,
// recovers the swap parameters. Any structural violation — wrong argument
// count, a path that isn't 20 bytes plus a whole number of 23-byte hops,
// missing command byte —
// returns isKnown=false rather than a best-effort guess: the extractor
// fails closed.
func decodeUniversalRouterExecute(calldata []byte, sel string) Decoded {
	params, err := extractSwapParams(calldata)
	if err != nil {
		return Decoded{Selector: sel, Action: ActionUnknown, IsKnown: false, Summary: "Undecodable Universal Router calldata: " + err.Error()}
	}
	return Decoded{
		Selector:   sel,
		Action:     ActionSwap,
		IsKnown:    true,
		SwapParams: params,
		Summary:    "Universal Router swap",
	}
}

func extractSwapParams(calldata []byte) (*SwapParams, error) {
	if len(calldata) < 4 {
		return nil, fmt.Errorf("calldata too short")
	}
	unpacked, err := executeArgs.Unpack(calldata[4:])
	if err != nil {
		return nil, fmt.Errorf("abi unpack failed: %w", err)
	}
	if len(unpacked) != 3 {
		return nil, fmt.Errorf("unexpected argument count %d", len(unpacked))
	}

	commands, ok := unpacked[0].([]byte)
	if !ok || len(commands) == 0 {
		return nil, fmt.Errorf("missing or malformed commands byte string")
	}
	inputs, ok := unpacked[1].([][]byte)
	if !ok || len(inputs) == 0 {
		return nil, fmt.Errorf("missing or malformed inputs array")
	}
	if len(commands) != len(inputs) {
		return nil, fmt.Errorf("commands/inputs length mismatch: %d vs %d", len(commands), len(inputs))
	}
	if len(commands) != 1 {
		// Multiple batched commands: treat as multi-hop/complex for the
		// purposes of slippage verification, which requires approval.
		return &SwapParams{IsMultiHop: true, Commands: commands}, nil
	}

	cmd := commands[0] &^ 0x80 // strip the "allow revert" flag bit
	if cmd != universalRouterCmdV3SwapExactIn {
		return &SwapParams{IsMultiHop: true, Commands: commands}, nil
	}

	swap, err := decodeV3SwapExactIn(inputs[0])
	if err != nil {
		return nil, err
	}
	swap.Commands = commands
	return swap, nil
}

// V3_SWAP_EXACT_IN input ABI: (address recipient, uint256 amountIn, uint256
// amountOutMin, bytes path, bool payerIsUser).
var v3SwapExactInArgs = mustV3SwapArgs()

func mustV3SwapArgs() abi.Arguments {
	addrT, _ := abi.NewType("address", "", nil)
	uint256T, _ := abi.NewType("uint256", "", nil)
	bytesT, _ := abi.NewType("bytes", "", nil)
	boolT, _ := abi.NewType("bool", "", nil)
	return abi.Arguments{{Type: addrT}, {Type: uint256T}, {Type: uint256T}, {Type: bytesT}, {Type: boolT}}
}

func decodeV3SwapExactIn(input []byte) (*SwapParams, error) {
	unpacked, err := v3SwapExactInArgs.Unpack(input)
	if err != nil {
		return nil, fmt.Errorf("v3 swap input decode failed: %w", err)
	}
	if len(unpacked) != 5 {
		return nil, fmt.Errorf("unexpected v3 swap field count %d", len(unpacked))
	}

	recipient, _ := unpacked[0].(common.Address)
	amountIn, _ := unpacked[1].(*big.Int)
	amountOutMin, _ := unpacked[2].(*big.Int)
	path, _ := unpacked[3].([]byte)
	payerIsUser, _ := unpacked[4].(bool)

	if amountIn == nil || amountOutMin == nil {
		return nil, fmt.Errorf("missing amount fields")
	}

	// path = tokenIn(20) + fee(3) + tokenOut(20) [+ fee(3) + token(20)]*
	const hopLen = 23
	if len(path) < 20+hopLen {
		return nil, fmt.Errorf("swap path too short: %d bytes", len(path))
	}
	if (len(path)-20)%hopLen != 0 {
		return nil, fmt.Errorf("malformed swap path length %d", len(path))
	}
	isMultiHop := len(path) > 20+hopLen

	tokenIn := common.BytesToAddress(path[0:20]).Hex()
	fee := uint32(path[20])<<16 | uint32(path[21])<<8 | uint32(path[22])
	tokenOut := common.BytesToAddress(path[len(path)-20:]).Hex()

	return &SwapParams{
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		Fee:          fee,
		AmountIn:     amountIn,
		AmountOutMin: amountOutMin,
		Recipient:    recipient.Hex(),
		PayerIsUser:  payerIsUser,
		IsMultiHop:   isMultiHop,
	}, nil
}

// EncodeUniversalRouterExecuteSingleHop builds execute(bytes,bytes[],uint256)
// calldata for a single V3_SWAP_EXACT_IN command. Used by tests exercising
// the extractor's round trip.
func EncodeUniversalRouterExecuteSingleHop(recipient string, amountIn, amountOutMin *big.Int, tokenIn, tokenOut string, fee uint32, payerIsUser bool, deadline *big.Int) ([]byte, error) {
	feeBytes := []byte{byte(fee >> 16), byte(fee >> 8), byte(fee)}
	path := append(append(common.HexToAddress(tokenIn).Bytes(), feeBytes...), common.HexToAddress(tokenOut).Bytes()...)

	swapInput, err := v3SwapExactInArgs.Pack(common.HexToAddress(recipient), amountIn, amountOutMin, path, payerIsUser)
	if err != nil {
		return nil, fmt.Errorf("failed to pack swap input: %w", err)
	}

	commands := []byte{universalRouterCmdV3SwapExactIn}
	inputs := [][]byte{swapInput}
	packed, err := executeArgs.Pack(commands, inputs, deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to pack execute call: %w", err)
	}

	sel := cryptoutil.MustHexDecode(SelectorUniversalRouterExec)
	return append(sel, packed...), nil
}
