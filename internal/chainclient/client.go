// Package chainclient wraps go-ethereum's ethclient for the read-only RPC
// calls the daemon needs: balance, nonce, code, gas price, chain id, and
// the Uniswap QuoterV2 call the policy engine's slippage check depends on.
// Nothing here signs or submits a transaction — submission goes through
// the bundler client instead.
package chainclient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"signerd/pkg/cryptoutil"
)

// QuoterV2 deployments by chain, used for single-hop exact-input quotes.
var QuoterV2Address = map[uint64]string{
	1:    "0x61ffe014ba17989e743c5f6cb21bf9697530b21e",
	8453: "0x3d4e44eb1374240ce5f1b871ab261cd16335b76a",
}

// Client is a thin, read-only view of one chain's JSON-RPC endpoint.
type Client struct {
	eth     *ethclient.Client
	chainID uint64
}

// Dial connects to rpcURL and confirms it answers for chainID.
func Dial(ctx context.Context, rpcURL string, chainID uint64) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain RPC: %w", err)
	}
	reported, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("eth_chainId failed: %w", err)
	}
	if reported.Uint64() != chainID {
		eth.Close()
		return nil, fmt.Errorf("RPC endpoint answers for chain %s, expected %d", reported, chainID)
	}
	return &Client{eth: eth, chainID: chainID}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// ChainID returns the chain id the client was constructed for.
func (c *Client) ChainID() uint64 { return c.chainID }

// BalanceWei returns the native balance of address, saturating a
// unrepresentable value to math.MaxUint64 rather than wrapping.
func (c *Client) BalanceWei(ctx context.Context, address string) (uint64, error) {
	balance, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return 0, fmt.Errorf("eth_getBalance failed: %w", err)
	}
	return cryptoutil.SaturatingUint64(balance), nil
}

// Nonce returns the next transaction count for address.
func (c *Client) Nonce(ctx context.Context, address string) (uint64, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, common.HexToAddress(address))
	if err != nil {
		return 0, fmt.Errorf("eth_getTransactionCount failed: %w", err)
	}
	return nonce, nil
}

// GasPriceWei returns the network's suggested gas price, increased by 20%
// for faster confirmation.
func (c *Client) GasPriceWei(ctx context.Context) (*big.Int, error) {
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_gasPrice failed: %w", err)
	}
	price = new(big.Int).Mul(price, big.NewInt(120))
	price = new(big.Int).Div(price, big.NewInt(100))
	return price, nil
}

// IsDeployed reports whether address carries contract code.
func (c *Client) IsDeployed(ctx context.Context, address string) (bool, error) {
	code, err := c.eth.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return false, fmt.Errorf("eth_getCode failed: %w", err)
	}
	return len(code) > 0, nil
}

// Call performs a raw eth_call against to with the given calldata.
func (c *Client) Call(ctx context.Context, to string, calldata []byte) ([]byte, error) {
	addr := common.HexToAddress(to)
	return c.eth.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: calldata}, nil)
}

// IsFrozen calls the wallet's frozen() view function and parses the boolean
// result. Used by the freeze syncer to mirror on-chain state.
func (c *Client) IsFrozen(ctx context.Context, walletAddress string) (bool, error) {
	sel := cryptoutil.MustHexDecode("0x054f7d9c") // frozen()
	result, err := c.Call(ctx, walletAddress, sel)
	if err != nil {
		return false, fmt.Errorf("frozen() call failed: %w", err)
	}
	if len(result) < 32 {
		return false, fmt.Errorf("unexpected frozen() response length %d", len(result))
	}
	return new(big.Int).SetBytes(result[:32]).Sign() != 0, nil
}

var quoteArgs = mustQuoteArgs()
var quoteReturns = mustQuoteReturns()

func mustQuoteArgs() abi.Arguments {
	addrT, _ := abi.NewType("address", "", nil)
	uint256T, _ := abi.NewType("uint256", "", nil)
	uint24T, _ := abi.NewType("uint24", "", nil)
	uint160T, _ := abi.NewType("uint160", "", nil)
	return abi.Arguments{{Type: addrT}, {Type: addrT}, {Type: uint256T}, {Type: uint24T}, {Type: uint160T}}
}

func mustQuoteReturns() abi.Arguments {
	uint256T, _ := abi.NewType("uint256", "", nil)
	return abi.Arguments{{Type: uint256T}}
}

// QuoteExactInputSingle calls QuoterV2.quoteExactInputSingle(tokenIn,
// tokenOut, amountIn, fee, 0) and returns the quoted output amount. This is
// a state-changing function on-chain (it reverts with the answer encoded
// in the revert data), but go-ethereum's eth_call surfaces the return data
// the same way for a plain view call against a fork or a quoter variant
// that doesn't revert; callers needing the revert-decode form would wrap
// this at the RPC layer. Fails closed: any error here is a policy
// "require approval", never a silent zero-slippage assumption.
func (c *Client) QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, fee uint32) (*big.Int, error) {
	quoter, ok := QuoterV2Address[c.chainID]
	if !ok {
		return nil, fmt.Errorf("no quoter configured for chain %d", c.chainID)
	}

	sel := cryptoutil.MustHexDecode("0xc6a5026a") // quoteExactInputSingle((address,address,uint256,uint24,uint160))
	packed, err := quoteArgs.Pack(common.HexToAddress(tokenIn), common.HexToAddress(tokenOut), amountIn, big.NewInt(int64(fee)), big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("failed to pack quoter call: %w", err)
	}
	calldata := append(sel, packed...)

	result, err := c.Call(ctx, quoter, calldata)
	if err != nil {
		return nil, fmt.Errorf("quoteExactInputSingle call failed: %w", err)
	}
	if len(result) < 32 {
		return nil, fmt.Errorf("unexpected quoter response length %d", len(result))
	}
	unpacked, err := quoteReturns.Unpack(result[:32])
	if err != nil {
		return nil, fmt.Errorf("failed to unpack quoter response: %w", err)
	}
	out, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("quoter response was not a uint256")
	}
	return out, nil
}
