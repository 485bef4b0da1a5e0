package userop

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"signerd/internal/bundler"
	"signerd/pkg/cryptoutil"
)

const (
	gwei = 1_000_000_000

	minVerificationGasLimit = 300_000
	minCallGasLimit         = 50_000
	minPreVerificationGas   = 21_000

	zeroSignatureLen = 64

	getNonceSelector = "0x35567e1a" // getNonce(address,uint192)
)

var executeArgs = mustExecuteArgs()

func mustExecuteArgs() abi.Arguments {
	addrT, _ := abi.NewType("address", "", nil)
	uint256T, _ := abi.NewType("uint256", "", nil)
	bytesT, _ := abi.NewType("bytes", "", nil)
	return abi.Arguments{{Type: addrT}, {Type: uint256T}, {Type: bytesT}}
}

// EncodeExecute builds the wallet's own execute(address target, uint256
// value, bytes calldata) call, the shape every UserOperation's outer
// callData takes regardless of what the wallet ultimately does on-chain.
func EncodeExecute(target common.Address, value *big.Int, calldata []byte) ([]byte, error) {
	sel := cryptoutil.MustHexDecode("0xb61d27f6") // execute(address,uint256,bytes)
	packed, err := executeArgs.Pack(target, value, calldata)
	if err != nil {
		return nil, fmt.Errorf("failed to pack execute call: %w", err)
	}
	return append(sel, packed...), nil
}

// ChainReader is the chain-side view Build needs: gas price and raw
// eth_call (for EntryPoint.getNonce). Satisfied by *chainclient.Client.
type ChainReader interface {
	GasPriceWei(ctx context.Context) (*big.Int, error)
	Call(ctx context.Context, to string, calldata []byte) ([]byte, error)
}

// GasEstimator is the bundler-side view. Satisfied by *bundler.Client.
type GasEstimator interface {
	EstimateUserOperationGas(ctx context.Context, op bundler.PackedUserOperation, entryPoint string) (*bundler.GasEstimate, error)
}

// Builder composes a PackedUserOperation against one chain/bundler pair.
type Builder struct {
	Chain      ChainReader
	Bundler    GasEstimator
	EntryPoint common.Address
}

// Request is what the caller supplies to build an op: the wallet,
// whatever factory data is needed if it isn't deployed yet, and the
// already-encoded outer call.
type Request struct {
	Sender      common.Address
	Factory     common.Address
	FactoryData []byte
	CallData    []byte
}

// Result is the finished op plus the hash the hardware signer signs.
type Result struct {
	Op   PackedUserOperation
	Hash [32]byte
}

// Build runs the full construction sequence: fetch nonce, price gas,
// estimate against the bundler, and compute the userOpHash.
func (b *Builder) Build(ctx context.Context, req Request, chainID uint64) (*Result, error) {
	nonce, err := b.fetchNonce(ctx, req.Sender)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	gasPrice, err := b.Chain.GasPriceWei(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %w", err)
	}
	maxFeePerGas := maxBig(new(big.Int).Mul(gasPrice, big.NewInt(2)), big.NewInt(gwei/10))
	maxPriorityFeePerGas := maxBig(new(big.Int).Div(gasPrice, big.NewInt(10)), big.NewInt(gwei/100))

	// Counterfactual deployment verifies the initCode too, so the coarse
	// draft starts wider when the factory is set; the bundler estimate
	// overrides both cases below.
	draftVerGas, draftPreVer := int64(minVerificationGasLimit), int64(minPreVerificationGas)
	if req.Factory != (common.Address{}) {
		draftVerGas = 1_500_000
		draftPreVer = 60_000
	}

	op := PackedUserOperation{
		Sender:               req.Sender,
		Nonce:                nonce,
		Factory:              req.Factory,
		FactoryData:          req.FactoryData,
		CallData:             req.CallData,
		VerificationGasLimit: big.NewInt(draftVerGas),
		CallGasLimit:         big.NewInt(minCallGasLimit),
		PreVerificationGas:   big.NewInt(draftPreVer),
		MaxFeePerGas:         maxFeePerGas,
		MaxPriorityFeePerGas: maxPriorityFeePerGas,
		PaymasterAndData:     nil,
		Signature:            make([]byte, zeroSignatureLen),
	}

	wireOp := ToWire(op)
	estimate, err := b.Bundler.EstimateUserOperationGas(ctx, wireOp, b.EntryPoint.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to estimate user operation gas: %w", err)
	}

	verGas := hexOrZero(estimate.VerificationGasLimit)
	callGas := hexOrZero(estimate.CallGasLimit)
	preVer := hexOrZero(estimate.PreVerificationGas)

	op.VerificationGasLimit = scaleUp(maxBig(verGas, big.NewInt(minVerificationGasLimit)), 15, 10)
	op.CallGasLimit = scaleUp(maxBig(callGas, big.NewInt(minCallGasLimit)), 12, 10)
	op.PreVerificationGas = scaleUp(maxBig(preVer, big.NewInt(minPreVerificationGas)), 12, 10)

	if len(op.PaymasterAndData) != 0 {
		return nil, fmt.Errorf("invariant violated: paymasterAndData must be empty")
	}

	hash, err := Hash(op, b.EntryPoint, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute userOpHash: %w", err)
	}

	return &Result{Op: op, Hash: hash}, nil
}

// fetchNonce calls EntryPoint.getNonce(sender, key=0).
func (b *Builder) fetchNonce(ctx context.Context, sender common.Address) (*big.Int, error) {
	sel := cryptoutil.MustHexDecode(getNonceSelector)
	addrWord := common.LeftPadBytes(sender.Bytes(), 32)
	keyWord := make([]byte, 32) // key=0
	calldata := append(append(append([]byte{}, sel...), addrWord...), keyWord...)

	result, err := b.Chain.Call(ctx, b.EntryPoint.Hex(), calldata)
	if err != nil {
		// A wallet that isn't deployed yet has no nonce on record: 0.
		return big.NewInt(0), nil
	}
	if len(result) < 32 {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(result[:32]), nil
}

func maxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// scaleUp multiplies v by numerator/denominator; integer division truncates,
// so the result rounds down. Losing under one gas unit is harmless since
// the "·1.5"/"·1.2" margins already pad well above the bundler's estimate.
func scaleUp(v *big.Int, numerator, denominator int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(numerator))
	return out.Div(out, big.NewInt(denominator))
}

func hexOrZero(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	b, err := cryptoutil.HexDecode(s)
	if err != nil {
		return big.NewInt(0)
	}
	return new(big.Int).SetBytes(b)
}

// ToWire converts the Go-native op into the bundler's v0.7 JSON shape:
// factory/factoryData split out of initCode, gas pairs packed into their
// bytes32 forms, every field 0x-hex.
func ToWire(op PackedUserOperation) bundler.PackedUserOperation {
	accountGasLimits := PackAccountGasLimits(op.VerificationGasLimit, op.CallGasLimit)
	gasFees := PackGasFees(op.MaxPriorityFeePerGas, op.MaxFeePerGas)

	wire := bundler.PackedUserOperation{
		Sender:             op.Sender.Hex(),
		Nonce:              cryptoutil.HexEncode(op.Nonce.Bytes()),
		CallData:           cryptoutil.HexEncode(op.CallData),
		AccountGasLimits:   cryptoutil.HexEncode(accountGasLimits[:]),
		PreVerificationGas: cryptoutil.HexEncode(op.PreVerificationGas.Bytes()),
		GasFees:            cryptoutil.HexEncode(gasFees[:]),
		Signature:          cryptoutil.HexEncode(op.Signature),
	}
	if op.Factory != (common.Address{}) {
		wire.Factory = op.Factory.Hex()
		wire.FactoryData = cryptoutil.HexEncode(op.FactoryData)
	}
	if len(op.PaymasterAndData) > 0 {
		wire.PaymasterAndData = cryptoutil.HexEncode(op.PaymasterAndData)
	}
	return wire
}
