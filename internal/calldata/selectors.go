package calldata

// 4-byte function selectors this daemon recognizes. Values are the first
// four bytes of keccak256(signature) for each listed function; selectors
// absent from knownSelectors decode as "unknown calldata".
const (
	SelectorTransfer             = "0xa9059cbb" // transfer(address,uint256)
	SelectorTransferFrom         = "0x23b872dd" // transferFrom(address,address,uint256)
	SelectorApprove              = "0x095ea7b3" // approve(address,uint256)
	SelectorIncreaseAllowance    = "0x39509351" // increaseAllowance(address,uint256)
	SelectorDecreaseAllowance    = "0xa457c2d7" // decreaseAllowance(address,uint256)
	SelectorSetApprovalForAll    = "0xa22cb465" // setApprovalForAll(address,bool)
	SelectorPermitEIP2612        = "0xd505accf" // permit(address,address,uint256,uint256,uint8,bytes32,bytes32)
	SelectorPermitDAI            = "0x8fcbaf0c" // permit(address,address,uint256,uint256,bool,uint8,bytes32,bytes32)
	SelectorPermit2PermitSingle   = "0x2b67b570" // Permit2 permit(PermitSingle,bytes)
	SelectorPermit2PermitBatch    = "0x2a2d80d1" // Permit2 permitBatch(PermitBatch,bytes)
	SelectorPermit2PermitTransfer = "0x30f28b7a" // Permit2 permitTransferFrom(...)
	SelectorUniversalRouterExec   = "0x3593564c" // execute(bytes,bytes[],uint256)
	SelectorAaveDeposit           = "0xe8eda9df" // deposit(address,uint256,address,uint16)
	SelectorAaveWithdraw          = "0x69328dec" // withdraw(address,uint256,address)
	SelectorLidoSubmit            = "0xa1903eab" // submit(address)
	SelectorRocketPoolDeposit     = "0xd0e30db0" // deposit()
)

// Action labels the decoded intent's semantic category.
type Action string

const (
	ActionNativeTransfer Action = "native_transfer"
	ActionTokenTransfer  Action = "token_transfer"
	ActionAllowance      Action = "allowance"
	ActionPermit         Action = "permit"
	ActionSwap           Action = "swap"
	ActionProtocolCall   Action = "protocol_call"
	ActionUnknown        Action = "unknown"
)

// blockedSelectors always route to approval regardless of target, amount,
// or allowlist membership. Detection is prefix-only: any calldata
// whose first 4 bytes match one of these is blocked, no matter what
// follows.
var blockedSelectors = map[string]string{
	SelectorApprove:               "ERC-20 approve",
	SelectorIncreaseAllowance:     "ERC-20 increaseAllowance",
	SelectorDecreaseAllowance:     "ERC-20 decreaseAllowance",
	SelectorSetApprovalForAll:     "ERC-721/1155 setApprovalForAll",
	SelectorPermitEIP2612:         "EIP-2612 permit",
	SelectorPermitDAI:             "DAI-style permit",
	SelectorPermit2PermitSingle:   "Permit2 permit",
	SelectorPermit2PermitBatch:    "Permit2 permitBatch",
	SelectorPermit2PermitTransfer: "Permit2 permitTransferFrom",
}

// IsBlockedSelector reports whether calldata begins with a selector on the
// fixed blocklist, and if so, a human-readable reason.
func IsBlockedSelector(calldata []byte) (blocked bool, reason string) {
	if len(calldata) < 4 {
		return false, ""
	}
	sel := selectorHex(calldata)
	if name, ok := blockedSelectors[sel]; ok {
		return true, "Blocked selector: " + name
	}
	return false, ""
}

func selectorHex(calldata []byte) string {
	b := calldata[:4]
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 10)
	out[0], out[1] = '0', 'x'
	for i, c := range b {
		out[2+i*2] = hexDigits[c>>4]
		out[3+i*2] = hexDigits[c&0x0f]
	}
	return string(out)
}

// knownSelectors is the set decode() recognizes at all; anything else is
// isKnown=false.
var knownSelectors = map[string]Action{
	SelectorTransfer:              ActionTokenTransfer,
	SelectorTransferFrom:          ActionTokenTransfer,
	SelectorApprove:               ActionAllowance,
	SelectorIncreaseAllowance:     ActionAllowance,
	SelectorDecreaseAllowance:     ActionAllowance,
	SelectorSetApprovalForAll:     ActionAllowance,
	SelectorPermitEIP2612:         ActionPermit,
	SelectorPermitDAI:             ActionPermit,
	SelectorPermit2PermitSingle:   ActionPermit,
	SelectorPermit2PermitBatch:    ActionPermit,
	SelectorPermit2PermitTransfer: ActionPermit,
	SelectorUniversalRouterExec:   ActionSwap,
	SelectorAaveDeposit:           ActionProtocolCall,
	SelectorAaveWithdraw:          ActionProtocolCall,
	SelectorLidoSubmit:            ActionProtocolCall,
	SelectorRocketPoolDeposit:     ActionProtocolCall,
}
