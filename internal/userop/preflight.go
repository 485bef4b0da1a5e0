package userop

import "math/big"

// costBufferWei is added on top of the computed worst-case gas cost so a
// fee spike between preflight and inclusion doesn't strand the op.
var costBufferWei = big.NewInt(1_000_000_000_000_000) // 0.001 ETH

// lowBalanceThresholdWei is the cutoff for the opaque gas status signal.
var lowBalanceThresholdWei = big.NewInt(5_000_000_000_000_000) // 0.005 ETH

// Preflight is the result of the pre-submission balance check.
type Preflight struct {
	EstimatedCostWei *big.Int
	BalanceWei       *big.Int
	ShortfallWei     *big.Int // nil when the balance covers the cost
}

// Sufficient reports whether the wallet can pay for the op.
func (p Preflight) Sufficient() bool {
	return p.ShortfallWei == nil
}

// PreflightGas computes the op's worst-case cost — (preVerificationGas +
// verificationGasLimit + callGasLimit) · maxFeePerGas plus the buffer —
// and compares it to the wallet's balance.
func PreflightGas(op PackedUserOperation, balanceWei *big.Int) Preflight {
	totalGas := new(big.Int).Add(op.PreVerificationGas, op.VerificationGasLimit)
	totalGas.Add(totalGas, op.CallGasLimit)

	cost := new(big.Int).Mul(totalGas, op.MaxFeePerGas)
	cost.Add(cost, costBufferWei)

	p := Preflight{EstimatedCostWei: cost, BalanceWei: balanceWei}
	if balanceWei.Cmp(cost) < 0 {
		p.ShortfallWei = new(big.Int).Sub(cost, balanceWei)
	}
	return p
}

// GasStatus is the opaque balance signal /capabilities exposes: "ok" above
// the 0.005 ETH threshold, "low" at or below it.
func GasStatus(balanceWei *big.Int) string {
	if balanceWei.Cmp(lowBalanceThresholdWei) <= 0 {
		return "low"
	}
	return "ok"
}
