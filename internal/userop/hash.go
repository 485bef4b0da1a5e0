package userop

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"signerd/pkg/cryptoutil"
)

var innerArgs = mustInnerArgs()
var outerArgs = mustOuterArgs()

func mustInnerArgs() abi.Arguments {
	addrT, _ := abi.NewType("address", "", nil)
	uint256T, _ := abi.NewType("uint256", "", nil)
	bytes32T, _ := abi.NewType("bytes32", "", nil)
	return abi.Arguments{
		{Type: addrT},    // sender
		{Type: uint256T}, // nonce
		{Type: bytes32T}, // keccak256(initCode)
		{Type: bytes32T}, // keccak256(callData)
		{Type: bytes32T}, // accountGasLimits
		{Type: uint256T}, // preVerificationGas
		{Type: bytes32T}, // gasFees
		{Type: bytes32T}, // keccak256(paymasterAndData)
	}
}

func mustOuterArgs() abi.Arguments {
	bytes32T, _ := abi.NewType("bytes32", "", nil)
	addrT, _ := abi.NewType("address", "", nil)
	uint256T, _ := abi.NewType("uint256", "", nil)
	return abi.Arguments{
		{Type: bytes32T}, // hashOp(userOp)
		{Type: addrT},    // entryPoint
		{Type: uint256T}, // chainId
	}
}

// Hash computes the userOpHash for op against entryPoint on chainID,
// matching the deployed EntryPoint v0.7's own hashing: keccak256 over the
// packed fields (with initCode/callData/paymasterAndData each hashed down
// to a bytes32 first), then keccak256 of that digest concatenated with
// the entry point address and chain id.
func Hash(op PackedUserOperation, entryPoint common.Address, chainID uint64) ([32]byte, error) {
	accountGasLimits := PackAccountGasLimits(op.VerificationGasLimit, op.CallGasLimit)
	gasFees := PackGasFees(op.MaxPriorityFeePerGas, op.MaxFeePerGas)

	initCodeHash := cryptoutil.Keccak256(op.InitCode())
	callDataHash := cryptoutil.Keccak256(op.CallData)
	paymasterHash := cryptoutil.Keccak256(op.PaymasterAndData)

	var initCodeHash32, callDataHash32, paymasterHash32, accountGasLimits32, gasFees32 [32]byte
	copy(initCodeHash32[:], initCodeHash)
	copy(callDataHash32[:], callDataHash)
	copy(paymasterHash32[:], paymasterHash)
	accountGasLimits32 = accountGasLimits
	gasFees32 = gasFees

	packed, err := innerArgs.Pack(
		op.Sender,
		op.Nonce,
		initCodeHash32,
		callDataHash32,
		accountGasLimits32,
		op.PreVerificationGas,
		gasFees32,
		paymasterHash32,
	)
	if err != nil {
		return [32]byte{}, err
	}
	innerHash := cryptoutil.Keccak256(packed)
	var innerHash32 [32]byte
	copy(innerHash32[:], innerHash)

	outerPacked, err := outerArgs.Pack(innerHash32, entryPoint, new(big.Int).SetUint64(chainID))
	if err != nil {
		return [32]byte{}, err
	}

	out := cryptoutil.Keccak256(outerPacked)
	var result [32]byte
	copy(result[:], out)
	return result, nil
}
