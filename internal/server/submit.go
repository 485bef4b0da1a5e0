package server

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"signerd/internal/config"
	"signerd/internal/policy"
	"signerd/internal/signer"
	"signerd/internal/userop"
	"signerd/pkg/cryptoutil"
)

// ErrInsufficientGas carries the preflight shortfall to the 402 mapping.
type ErrInsufficientGas struct {
	ShortfallWei *big.Int
}

func (e *ErrInsufficientGas) Error() string {
	return fmt.Sprintf("insufficient balance for gas: short %s wei", e.ShortfallWei)
}

// SubmitOutcome is the allow path's result.
type SubmitOutcome struct {
	UserOpHash  string
	ExplorerURL string
}

// executeAllow runs the post-policy pipeline: encode the wallet execute
// call, build the op, preflight the balance, sign the hash with the
// routine key, normalize, attach, and submit. Spending is recorded by the
// caller only after this returns a hash — never before submission.
func (s *Server) executeAllow(ctx context.Context, in policy.Intent, cfg config.DaemonConfig) (*SubmitOutcome, error) {
	svc := s.services.Load()
	if svc == nil {
		return nil, fmt.Errorf("no chain services configured")
	}

	sender := common.HexToAddress(cfg.WalletAddress)
	callData, err := userop.EncodeExecute(common.HexToAddress(in.Target), in.Value, in.Calldata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode wallet call: %w", err)
	}

	req := userop.Request{Sender: sender, CallData: callData}
	deployed, err := svc.Chain.IsDeployed(ctx, cfg.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("deployment check failed: %w", err)
	}
	if !deployed {
		factoryData, err := encodeCreateAccount(s.hw)
		if err != nil {
			return nil, err
		}
		req.Factory = common.HexToAddress(cfg.FactoryAddress)
		req.FactoryData = factoryData
	}

	res, err := svc.Builder.Build(ctx, req, svc.ChainID)
	if err != nil {
		return nil, err
	}

	balance, err := svc.Chain.BalanceWei(ctx, cfg.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("balance check failed: %w", err)
	}
	preflight := userop.PreflightGas(res.Op, new(big.Int).SetUint64(balance))
	if !preflight.Sufficient() {
		return nil, &ErrInsufficientGas{ShortfallWei: preflight.ShortfallWei}
	}

	r, sVal, err := s.hw.Sign(ctx, signer.KeySlotRoutine, res.Hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", signer.ErrHardwareUnavailable, err)
	}
	r, sVal = cryptoutil.NormalizeLowS(r, sVal)
	sig, err := cryptoutil.RawSignature(r, sVal)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signature: %w", err)
	}
	res.Op.Signature = sig

	userOpHash, err := svc.Bundler.SendUserOperation(ctx, userop.ToWire(res.Op), svc.EntryPoint.Hex())
	if err != nil {
		return nil, fmt.Errorf("bundler submission failed: %w", err)
	}

	return &SubmitOutcome{
		UserOpHash:  userOpHash,
		ExplorerURL: svc.ChainConfig.ExplorerURL + "/tx/" + userOpHash,
	}, nil
}

// encodeCreateAccount packs the factory's createAccount(uint256 x, uint256
// y, uint256 salt) call for counterfactual deployment, binding the wallet
// to the routine key's public point with salt 0.
func encodeCreateAccount(hw signer.Signer) ([]byte, error) {
	pub, err := hw.PublicKey(signer.KeySlotRoutine)
	if err != nil {
		return nil, fmt.Errorf("routine public key unavailable: %w", err)
	}
	sel := cryptoutil.MustHexDecode("0x4c1ed7f5") // createAccount(uint256,uint256,uint256)
	out := make([]byte, 4+96)
	copy(out[0:4], sel)
	pub.X.FillBytes(out[4:36])
	pub.Y.FillBytes(out[36:68])
	// salt word stays zero
	return out, nil
}

// isHardwareError reports whether err should surface as 503.
func isHardwareError(err error) bool {
	return errors.Is(err, signer.ErrHardwareUnavailable)
}
