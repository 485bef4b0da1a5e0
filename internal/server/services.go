// Package server is the daemon's request surface: HTTP served over the
// unix socket, the peer-UID gate, the endpoint handlers, and the
// chain-dependent service graph they dispatch into. The graph is rebuilt
// atomically on reconfiguration — handlers load a snapshot pointer per
// request and never observe a half-built graph.
package server

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"signerd/internal/bundler"
	"signerd/internal/chainclient"
	"signerd/internal/chains"
	"signerd/internal/config"
	"signerd/internal/signer"
	"signerd/internal/userop"
	"signerd/pkg/cryptoutil"
)

// ChainView is everything the handlers need from the chain RPC.
// Satisfied by *chainclient.Client.
type ChainView interface {
	userop.ChainReader
	BalanceWei(ctx context.Context, address string) (uint64, error)
	IsDeployed(ctx context.Context, address string) (bool, error)
	IsFrozen(ctx context.Context, walletAddress string) (bool, error)
	QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, fee uint32) (*big.Int, error)
}

// BundlerView is everything the handlers need from the bundler.
// Satisfied by *bundler.Client.
type BundlerView interface {
	userop.GasEstimator
	SendUserOperation(ctx context.Context, op bundler.PackedUserOperation, entryPoint string) (string, error)
	SupportedEntryPoints(ctx context.Context) ([]string, error)
}

// Services is one immutable chain-dependent graph. A reconfiguration
// builds a fresh Services and publishes it with a single pointer swap;
// in-flight requests finish against the graph they started with.
type Services struct {
	ChainID     uint64
	ChainConfig chains.ChainConfig
	Chain       ChainView
	Bundler     BundlerView
	Builder     *userop.Builder
	EntryPoint  common.Address

	closers []func()
}

// Close tears down the graph's network clients. Called on the *old* graph
// after a swap, and on shutdown.
func (s *Services) Close() {
	for _, fn := range s.closers {
		fn()
	}
}

// BuildServices dials the chain and bundler for cfg's home chain and wires
// the builder against them.
func BuildServices(ctx context.Context, cfg config.DaemonConfig) (*Services, error) {
	chainCfg, ok := chains.Lookup(cfg.HomeChainID)
	if !ok {
		return nil, fmt.Errorf("unsupported chain id %d", cfg.HomeChainID)
	}

	chain, err := chainclient.Dial(ctx, chainCfg.RpcURL, cfg.HomeChainID)
	if err != nil {
		return nil, err
	}

	bundlerURL := chainCfg.BundlerURL
	if cfg.CustomBundlerURL != "" {
		bundlerURL = cfg.CustomBundlerURL
	}
	bun, err := bundler.Dial(ctx, bundlerURL)
	if err != nil {
		chain.Close()
		return nil, err
	}

	entryPoint := common.HexToAddress(chains.EntryPointV07)
	if cfg.EntryPointAddress != "" {
		entryPoint = common.HexToAddress(cfg.EntryPointAddress)
	}

	return &Services{
		ChainID:     cfg.HomeChainID,
		ChainConfig: chainCfg,
		Chain:       chain,
		Bundler:     bun,
		Builder:     &userop.Builder{Chain: chain, Bundler: bun, EntryPoint: entryPoint},
		EntryPoint:  entryPoint,
		closers:     []func(){chain.Close, bun.Close},
	}, nil
}

// p256PrecompileAddress is the RIP-7212 secp256r1 verifier.
const p256PrecompileAddress = "0x0000000000000000000000000000000000000100"

// ProbePrecompile checks whether the chain ships the P-256 precompile by
// calling it with three inputs: a genuinely valid signature produced by
// the routine key, the same input with a corrupted r, and a truncated
// blob. A real precompile answers 1, 0/empty, and empty respectively;
// anything else means the address is empty or occupied by something that
// isn't the verifier.
func ProbePrecompile(ctx context.Context, chain userop.ChainReader, hw signer.Signer) (bool, error) {
	var digest [32]byte
	copy(digest[:], cryptoutil.Keccak256([]byte("p256 precompile probe")))

	r, s, err := hw.Sign(ctx, signer.KeySlotRoutine, digest)
	if err != nil {
		return false, fmt.Errorf("probe signing failed: %w", err)
	}
	r, s = cryptoutil.NormalizeLowS(r, s)
	pub, err := hw.PublicKey(signer.KeySlotRoutine)
	if err != nil {
		return false, fmt.Errorf("probe public key unavailable: %w", err)
	}

	valid := make([]byte, 160)
	copy(valid[0:32], digest[:])
	r.FillBytes(valid[32:64])
	s.FillBytes(valid[64:96])
	pub.X.FillBytes(valid[96:128])
	pub.Y.FillBytes(valid[128:160])

	out, err := chain.Call(ctx, p256PrecompileAddress, valid)
	if err != nil || !isOne(out) {
		return false, err
	}

	invalid := append([]byte(nil), valid...)
	invalid[40] ^= 0xFF
	out, err = chain.Call(ctx, p256PrecompileAddress, invalid)
	if err != nil || isOne(out) {
		return false, err
	}

	malformed := valid[:159]
	out, err = chain.Call(ctx, p256PrecompileAddress, malformed)
	if err != nil || isOne(out) {
		return false, err
	}

	return true, nil
}

var oneWord = append(make([]byte, 31), 0x01)

func isOne(out []byte) bool {
	return len(out) == 32 && bytes.Equal(out, oneWord)
}
