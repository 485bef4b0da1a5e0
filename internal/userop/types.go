// Package userop builds ERC-4337 v0.7 PackedUserOperations and computes
// the userOpHash a hardware key signs over. This daemon implements the
// concat-and-hash variant: a keccak256 over the packed operation fields,
// then a second keccak256 binding that digest to the entry point and
// chain id. The alternative EIP-712 typed-data path is not wired here —
// it would only be needed against an EntryPoint deployment that verifies
// signatures against the typed-data hash instead.
package userop

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PackedUserOperation is the unpacked, Go-native form of the v0.7 wire
// struct. Factory is the zero address when the wallet is already
// deployed, in which case FactoryData must also be empty.
type PackedUserOperation struct {
	Sender               common.Address
	Nonce                *big.Int
	Factory              common.Address
	FactoryData          []byte
	CallData             []byte
	VerificationGasLimit *big.Int
	CallGasLimit         *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	PaymasterAndData     []byte
	Signature            []byte
}

// PackAccountGasLimits packs (verificationGasLimit, callGasLimit) into the
// single bytes32 the wire format carries: verificationGasLimit in the
// high 128 bits, callGasLimit in the low 128 bits.
func PackAccountGasLimits(verificationGasLimit, callGasLimit *big.Int) [32]byte {
	return packPair(verificationGasLimit, callGasLimit)
}

// PackGasFees packs (maxPriorityFeePerGas, maxFeePerGas) the same way:
// priority fee high, max fee low.
func PackGasFees(maxPriorityFeePerGas, maxFeePerGas *big.Int) [32]byte {
	return packPair(maxPriorityFeePerGas, maxFeePerGas)
}

func packPair(high, low *big.Int) [32]byte {
	var out [32]byte
	high.FillBytes(out[:16])
	low.FillBytes(out[16:])
	return out
}

// InitCode reconstructs the legacy initCode field (factory ++
// factoryData) the v0.7 hash formula still hashes over, even though the
// wire format carries factory and factoryData split. Empty when the
// wallet is already deployed.
func (op PackedUserOperation) InitCode() []byte {
	if op.Factory == (common.Address{}) {
		return []byte{}
	}
	return append(append([]byte{}, op.Factory.Bytes()...), op.FactoryData...)
}
