package userop

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"signerd/pkg/cryptoutil"
)

// The vector below locks the concat-and-hash formula: keccak256 over the
// packed op fields (initCode/callData/paymasterAndData each hashed to a
// bytes32 first, gas pairs packed high‖low), then keccak256 of that digest
// with the entry point and chain id. Any change to the packing order or
// widths shows up as a mismatch here before it ever reaches a signer.
func TestHashVector(t *testing.T) {
	op := PackedUserOperation{
		Sender:               common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Nonce:                big.NewInt(7),
		CallData:             cryptoutil.MustHexDecode("0xdeadbeef"),
		VerificationGasLimit: big.NewInt(300_000),
		CallGasLimit:         big.NewInt(50_000),
		PreVerificationGas:   big.NewInt(21_000),
		MaxFeePerGas:         big.NewInt(2_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(100_000_000),
	}
	entryPoint := common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")

	hash, err := Hash(op, entryPoint, 8453)
	if err != nil {
		t.Fatal(err)
	}
	want := "0xd2d1702ea773a97f1b6f4f32373a9d72d97c940f27352ea37a8bd4bd0cfe02e4"
	if got := cryptoutil.HexEncode(hash[:]); got != want {
		t.Fatalf("userOpHash = %s, want %s", got, want)
	}
}

func TestHashIgnoresSignature(t *testing.T) {
	op := PackedUserOperation{
		Sender:               common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Nonce:                big.NewInt(1),
		CallData:             []byte{0x01},
		VerificationGasLimit: big.NewInt(300_000),
		CallGasLimit:         big.NewInt(50_000),
		PreVerificationGas:   big.NewInt(21_000),
		MaxFeePerGas:         big.NewInt(1),
		MaxPriorityFeePerGas: big.NewInt(1),
	}
	entryPoint := common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")

	h1, err := Hash(op, entryPoint, 1)
	if err != nil {
		t.Fatal(err)
	}
	op.Signature = make([]byte, 64)
	h2, err := Hash(op, entryPoint, 1)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("signature must not influence the userOpHash")
	}
}

func TestHashBindsChainID(t *testing.T) {
	op := PackedUserOperation{
		Sender:               common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Nonce:                big.NewInt(1),
		CallData:             []byte{0x01},
		VerificationGasLimit: big.NewInt(300_000),
		CallGasLimit:         big.NewInt(50_000),
		PreVerificationGas:   big.NewInt(21_000),
		MaxFeePerGas:         big.NewInt(1),
		MaxPriorityFeePerGas: big.NewInt(1),
	}
	entryPoint := common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")

	h1, _ := Hash(op, entryPoint, 1)
	h2, _ := Hash(op, entryPoint, 8453)
	if h1 == h2 {
		t.Fatalf("userOpHash must differ across chains")
	}
}

func TestPackAccountGasLimits(t *testing.T) {
	packed := PackAccountGasLimits(big.NewInt(0x01), big.NewInt(0x02))
	if packed[15] != 0x01 || packed[31] != 0x02 {
		t.Fatalf("unexpected packing: %x", packed)
	}
}

func TestInitCodeEmptyWhenDeployed(t *testing.T) {
	op := PackedUserOperation{}
	if len(op.InitCode()) != 0 {
		t.Fatalf("expected empty initCode for a deployed wallet")
	}
}
