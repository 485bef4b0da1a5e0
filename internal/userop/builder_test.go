package userop

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"signerd/internal/bundler"
)

type fakeChain struct {
	gasPrice *big.Int
	nonce    *big.Int
}

func (f *fakeChain) GasPriceWei(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeChain) Call(ctx context.Context, to string, calldata []byte) ([]byte, error) {
	out := make([]byte, 32)
	f.nonce.FillBytes(out)
	return out, nil
}

type fakeEstimator struct {
	est bundler.GasEstimate
}

func (f *fakeEstimator) EstimateUserOperationGas(ctx context.Context, op bundler.PackedUserOperation, entryPoint string) (*bundler.GasEstimate, error) {
	return &f.est, nil
}

func testBuilder() *Builder {
	return &Builder{
		Chain: &fakeChain{gasPrice: big.NewInt(1_000_000_000), nonce: big.NewInt(5)},
		Bundler: &fakeEstimator{est: bundler.GasEstimate{
			PreVerificationGas:   "0xc350",  // 50_000
			VerificationGasLimit: "0x61a80", // 400_000
			CallGasLimit:         "0x186a0", // 100_000
		}},
		EntryPoint: common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032"),
	}
}

func TestBuildAppliesGasMargins(t *testing.T) {
	b := testBuilder()
	callData, err := EncodeExecute(common.HexToAddress("0xCAFE000000000000000000000000000000000000"), big.NewInt(1), nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := b.Build(context.Background(), Request{
		Sender:   common.HexToAddress("0x2222222222222222222222222222222222222222"),
		CallData: callData,
	}, 1)
	if err != nil {
		t.Fatal(err)
	}

	if res.Op.VerificationGasLimit.Int64() != 600_000 { // 400_000 * 1.5
		t.Errorf("verificationGasLimit = %v, want 600000", res.Op.VerificationGasLimit)
	}
	if res.Op.CallGasLimit.Int64() != 120_000 { // 100_000 * 1.2
		t.Errorf("callGasLimit = %v, want 120000", res.Op.CallGasLimit)
	}
	if res.Op.PreVerificationGas.Int64() != 60_000 { // 50_000 * 1.2
		t.Errorf("preVerificationGas = %v, want 60000", res.Op.PreVerificationGas)
	}
}

func TestBuildFeeFloors(t *testing.T) {
	b := testBuilder()
	b.Chain = &fakeChain{gasPrice: big.NewInt(1), nonce: big.NewInt(0)} // near-zero network price

	res, err := b.Build(context.Background(), Request{
		Sender:   common.HexToAddress("0x2222222222222222222222222222222222222222"),
		CallData: []byte{0x01},
	}, 1)
	if err != nil {
		t.Fatal(err)
	}

	if res.Op.MaxFeePerGas.Int64() != gwei/10 {
		t.Errorf("maxFeePerGas = %v, want the 0.1 gwei floor", res.Op.MaxFeePerGas)
	}
	if res.Op.MaxPriorityFeePerGas.Int64() != gwei/100 {
		t.Errorf("maxPriorityFeePerGas = %v, want the 0.01 gwei floor", res.Op.MaxPriorityFeePerGas)
	}
}

func TestBuildNeverSetsPaymaster(t *testing.T) {
	b := testBuilder()
	res, err := b.Build(context.Background(), Request{
		Sender:   common.HexToAddress("0x2222222222222222222222222222222222222222"),
		CallData: []byte{0x01},
	}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Op.PaymasterAndData) != 0 {
		t.Fatalf("paymasterAndData must be empty, got %x", res.Op.PaymasterAndData)
	}
	if len(res.Op.Signature) != 64 {
		t.Fatalf("draft signature must be the 64-byte placeholder, got %d bytes", len(res.Op.Signature))
	}
}

func TestBuildFetchesNonce(t *testing.T) {
	b := testBuilder()
	res, err := b.Build(context.Background(), Request{
		Sender:   common.HexToAddress("0x2222222222222222222222222222222222222222"),
		CallData: []byte{0x01},
	}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Op.Nonce.Int64() != 5 {
		t.Fatalf("nonce = %v, want 5", res.Op.Nonce)
	}
}
