package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"math/big"
	"testing"

	"signerd/internal/signer"
)

// precompileSim answers eth_call the way a real RIP-7212 verifier would:
// 32-byte word 1 for a valid 160-byte input, empty otherwise.
type precompileSim struct {
	hw signer.Signer
}

func (p *precompileSim) GasPriceWei(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (p *precompileSim) Call(ctx context.Context, to string, calldata []byte) ([]byte, error) {
	if len(calldata) != 160 {
		return nil, nil
	}
	var digest [32]byte
	copy(digest[:], calldata[0:32])
	r := new(big.Int).SetBytes(calldata[32:64])
	s := new(big.Int).SetBytes(calldata[64:96])
	x := new(big.Int).SetBytes(calldata[96:128])
	y := new(big.Int).SetBytes(calldata[128:160])

	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	if ecdsa.Verify(pub, digest[:], r, s) {
		out := make([]byte, 32)
		out[31] = 1
		return out, nil
	}
	return nil, nil
}

// brokenPrecompile claims everything verifies, the way a buggy or
// squatting contract at 0x100 might.
type brokenPrecompile struct{}

func (brokenPrecompile) GasPriceWei(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (brokenPrecompile) Call(ctx context.Context, to string, calldata []byte) ([]byte, error) {
	out := make([]byte, 32)
	out[31] = 1
	return out, nil
}

// absentPrecompile is a chain without the verifier: eth_call to an empty
// account returns no data.
type absentPrecompile struct{}

func (absentPrecompile) GasPriceWei(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (absentPrecompile) Call(ctx context.Context, to string, calldata []byte) ([]byte, error) {
	return nil, nil
}

func TestProbePrecompileDetectsRealVerifier(t *testing.T) {
	hw, err := signer.NewSoftEnclave()
	if err != nil {
		t.Fatal(err)
	}
	ok, err := ProbePrecompile(context.Background(), &precompileSim{hw: hw}, hw)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("expected a behaving verifier to probe true")
	}
}

func TestProbePrecompileRejectsAlwaysTrue(t *testing.T) {
	hw, err := signer.NewSoftEnclave()
	if err != nil {
		t.Fatal(err)
	}
	ok, err := ProbePrecompile(context.Background(), brokenPrecompile{}, hw)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("a verifier that accepts invalid signatures must probe false")
	}
}

func TestProbePrecompileRejectsAbsent(t *testing.T) {
	hw, err := signer.NewSoftEnclave()
	if err != nil {
		t.Fatal(err)
	}
	ok, err := ProbePrecompile(context.Background(), absentPrecompile{}, hw)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("an empty account must probe false")
	}
}

func TestSwapServicesClosesOldGraph(t *testing.T) {
	env := newTestEnv(t)

	closed := false
	old := &Services{closers: []func(){func() { closed = true }}}
	env.server.SwapServices(old)
	env.server.SwapServices(&Services{Chain: env.chain})
	if !closed {
		t.Fatalf("expected the replaced graph to be closed")
	}
}
