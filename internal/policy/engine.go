package policy

import (
	"context"
	"fmt"
	"math/big"

	"signerd/internal/calldata"
	"signerd/internal/config"
	"signerd/internal/registry"
	"signerd/pkg/cryptoutil"
)

// Verdict is the outcome of evaluating one intent.
type Verdict string

const (
	VerdictAllow           Verdict = "allow"
	VerdictRequireApproval Verdict = "require_approval"
	VerdictDeny            Verdict = "deny"
)

// Intent is the proposed on-chain action the agent wants signed.
type Intent struct {
	ChainID  uint64
	Target   string
	Value    *big.Int
	Calldata []byte
}

// Decision is the full result of evaluating an Intent: the verdict, the
// reason a human or log line would read, the decoded calldata that led to
// it, and (for swaps) the slippage bound actually observed.
type Decision struct {
	Verdict     Verdict
	Reason      string
	Decoded     calldata.Decoded
	SlippageBps int
}

// Quoter is the on-chain view the slippage check needs. Satisfied by the
// chain client's QuoteExactInputSingle.
type Quoter interface {
	QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, fee uint32) (*big.Int, error)
}

// Engine is the default-deny evaluator. It owns nothing itself — the
// spending tracker and allowlist live in the config store and
// SpendingTracker it is constructed with — but it is the only place their
// outputs get combined into a verdict.
type Engine struct {
	Stablecoins   *registry.StablecoinRegistry
	Protocols     *registry.ProtocolRegistry
	Spending      *SpendingTracker
	Quoter        Quoter
	IsFrozen      func() bool
	IsAllowlisted func(addr string) bool
}

// Evaluate runs the full decision tree against one intent under the given
// profile. It never mutates spending state; callers invoke
// Spending.Record only once the resulting UserOperation has actually been
// submitted.
func (e *Engine) Evaluate(ctx context.Context, in Intent, profile config.SecurityProfile) Decision {
	if e.IsFrozen() {
		return Decision{Verdict: VerdictDeny, Reason: "wallet frozen"}
	}

	if blocked, reason := calldata.IsBlockedSelector(in.Calldata); blocked {
		return Decision{Verdict: VerdictRequireApproval, Reason: reason}
	}

	d := calldata.Decode(in.Calldata, in.Target, in.Value, in.ChainID, e.Stablecoins)
	if !d.IsKnown {
		return Decision{Verdict: VerdictRequireApproval, Reason: "unknown calldata", Decoded: d}
	}

	if d.Action == calldata.ActionTokenTransfer && !d.IsStable {
		return Decision{Verdict: VerdictRequireApproval, Reason: "unknown token", Decoded: d}
	}

	selector := selectorOf(in.Calldata)
	if action, inRegistry := e.Protocols.Lookup(in.ChainID, in.Target, selector); inRegistry {
		if d.Action == calldata.ActionSwap {
			return e.evaluateSwap(ctx, d, profile)
		}
		ok, reason := e.Spending.Check(0, 0, profile)
		if !ok {
			return Decision{Verdict: VerdictRequireApproval, Reason: reason, Decoded: d}
		}
		return Decision{Verdict: VerdictAllow, Reason: "protocol call allowed: " + action.HumanName, Decoded: d}
	}

	if d.Action == calldata.ActionNativeTransfer || (d.Action == calldata.ActionTokenTransfer && d.IsStable) {
		ethAmount, stableAmount := splitAmount(d, in.Value)
		ok, reason := e.Spending.Check(ethAmount, stableAmount, profile)
		if !ok {
			return Decision{Verdict: VerdictRequireApproval, Reason: reason, Decoded: d}
		}
		recipient := in.Target
		if d.Action == calldata.ActionTokenTransfer {
			recipient = d.Recipient
		}
		if e.IsAllowlisted(recipient) || ethAmount == 0 && stableAmount == 0 {
			return Decision{Verdict: VerdictAllow, Reason: "allowlisted destination within caps", Decoded: d}
		}
		return Decision{Verdict: VerdictRequireApproval, Reason: "destination not allowlisted", Decoded: d}
	}

	return Decision{Verdict: VerdictRequireApproval, Reason: "no policy rule matched this action", Decoded: d}
}

// evaluateSwap implements the slippage verification path: multi-hop and
// quoter-unavailable both require approval; otherwise the quoted output is
// compared against the caller's accepted minimum.
func (e *Engine) evaluateSwap(ctx context.Context, d calldata.Decoded, profile config.SecurityProfile) Decision {
	sp := d.SwapParams
	if sp == nil || sp.IsMultiHop {
		return Decision{Verdict: VerdictRequireApproval, Reason: "multi-hop swap requires approval", Decoded: d}
	}
	if e.Quoter == nil {
		return Decision{Verdict: VerdictRequireApproval, Reason: "no quoter available", Decoded: d}
	}

	quotedOut, err := e.Quoter.QuoteExactInputSingle(ctx, sp.TokenIn, sp.TokenOut, sp.AmountIn, sp.Fee)
	if err != nil {
		return Decision{Verdict: VerdictRequireApproval, Reason: fmt.Sprintf("quoter call failed: %v", err), Decoded: d}
	}
	if sp.AmountOutMin.Cmp(quotedOut) >= 0 {
		return e.afterSlippageOK(d, profile, 0)
	}

	diff := new(big.Int).Sub(quotedOut, sp.AmountOutMin)
	diff.Mul(diff, big.NewInt(10_000))
	actualBps := new(big.Int).Div(diff, quotedOut)
	if actualBps.Cmp(big.NewInt(int64(profile.MaxSlippageBps))) > 0 {
		return Decision{
			Verdict:     VerdictRequireApproval,
			Reason:      fmt.Sprintf("Slippage %.1f%% exceeds limit %.1f%%", float64(actualBps.Int64())/100, float64(profile.MaxSlippageBps)/100),
			Decoded:     d,
			SlippageBps: int(actualBps.Int64()),
		}
	}
	return e.afterSlippageOK(d, profile, int(actualBps.Int64()))
}

func (e *Engine) afterSlippageOK(d calldata.Decoded, profile config.SecurityProfile, bps int) Decision {
	ok, reason := e.Spending.Check(cryptoutil.SaturatingUint64(d.SwapParams.AmountIn), 0, profile)
	if !ok {
		return Decision{Verdict: VerdictRequireApproval, Reason: reason, Decoded: d, SlippageBps: bps}
	}
	return Decision{Verdict: VerdictAllow, Reason: "swap within slippage and spending caps", Decoded: d, SlippageBps: bps}
}

// splitAmount routes the decoded amount into either the eth or stablecoin
// bucket the spending tracker accounts separately.
func splitAmount(d calldata.Decoded, value *big.Int) (ethAmountWei, stableAmount uint64) {
	if d.Action == calldata.ActionNativeTransfer {
		if value == nil {
			return 0, 0
		}
		return cryptoutil.SaturatingUint64(value), 0
	}
	return 0, d.AmountWei
}

// SpendAmounts reports what an allowed intent costs against the spending
// caps, so the caller can Record the same figures Check saw: native value
// for plain transfers, the token amount for stablecoin transfers, the
// input amount for swaps.
func SpendAmounts(d calldata.Decoded, value *big.Int) (ethAmountWei, stableAmount uint64) {
	if d.Action == calldata.ActionSwap && d.SwapParams != nil && !d.SwapParams.IsMultiHop {
		return cryptoutil.SaturatingUint64(d.SwapParams.AmountIn), 0
	}
	return splitAmount(d, value)
}

func selectorOf(calldataBytes []byte) string {
	if len(calldataBytes) < 4 {
		return ""
	}
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 10)
	out[0], out[1] = '0', 'x'
	for i, c := range calldataBytes[:4] {
		out[2+i*2] = hexDigits[c>>4]
		out[3+i*2] = hexDigits[c&0x0f]
	}
	return string(out)
}
