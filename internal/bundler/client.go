// Package bundler talks ERC-4337 v0.7 JSON-RPC to a third-party bundler:
// eth_sendUserOperation, eth_estimateUserOperationGas, and
// eth_supportedEntryPoints. Submission is the one outbound call in the
// pipeline that leaves the daemon's control once it returns, so every
// error that isn't a rate limit propagates untouched to the caller.
package bundler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

const (
	maxAttempts = 5
	baseDelay   = time.Second
	backoffBase = 2
)

// PackedUserOperation is the wire shape of an ERC-4337 v0.7 UserOperation:
// every numeric/byte field is a "0x"-prefixed hex string, and the gas
// limits/fees are pre-packed into their bytes32 pairs.
type PackedUserOperation struct {
	Sender             string `json:"sender"`
	Nonce              string `json:"nonce"`
	Factory            string `json:"factory,omitempty"`
	FactoryData        string `json:"factoryData,omitempty"`
	CallData           string `json:"callData"`
	AccountGasLimits   string `json:"accountGasLimits"`
	PreVerificationGas string `json:"preVerificationGas"`
	GasFees            string `json:"gasFees"`
	PaymasterAndData   string `json:"paymasterAndData,omitempty"`
	Signature          string `json:"signature"`
}

// GasEstimate is the bundler's response to eth_estimateUserOperationGas.
type GasEstimate struct {
	PreVerificationGas            string `json:"preVerificationGas"`
	VerificationGasLimit          string `json:"verificationGasLimit"`
	CallGasLimit                  string `json:"callGasLimit"`
	PaymasterVerificationGasLimit string `json:"paymasterVerificationGasLimit,omitempty"`
}

// Client is a JSON-RPC client pinned to one bundler endpoint.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the bundler's JSON-RPC endpoint, which is reached over
// plain HTTPS (no websocket upgrade, no long-lived subscriptions).
func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bundler: %w", err)
	}
	return &Client{rpc: c}, nil
}

// Close releases the underlying HTTP client.
func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

// SendUserOperation submits op for entryPoint and returns the userOpHash
// the bundler assigned.
func (c *Client) SendUserOperation(ctx context.Context, op PackedUserOperation, entryPoint string) (string, error) {
	var userOpHash string
	err := c.callWithBackoff(ctx, &userOpHash, "eth_sendUserOperation", op, entryPoint)
	if err != nil {
		return "", err
	}
	return userOpHash, nil
}

// EstimateUserOperationGas asks the bundler to estimate gas fields for op.
func (c *Client) EstimateUserOperationGas(ctx context.Context, op PackedUserOperation, entryPoint string) (*GasEstimate, error) {
	var est GasEstimate
	if err := c.callWithBackoff(ctx, &est, "eth_estimateUserOperationGas", op, entryPoint); err != nil {
		return nil, err
	}
	return &est, nil
}

// SupportedEntryPoints returns the EntryPoint addresses this bundler will
// accept operations for.
func (c *Client) SupportedEntryPoints(ctx context.Context) ([]string, error) {
	var entryPoints []string
	if err := c.callWithBackoff(ctx, &entryPoints, "eth_supportedEntryPoints"); err != nil {
		return nil, err
	}
	return entryPoints, nil
}

// callWithBackoff retries only on HTTP 429, with exponential backoff: base
// delay 1s, factor 2, up to 5 attempts total. Every other error — RPC
// error objects, network failures, non-429 HTTP errors — propagates on
// the first occurrence.
func (c *Client) callWithBackoff(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := c.rpc.CallContext(ctx, result, method, args...)
		if err == nil {
			return nil
		}
		lastErr = err

		var httpErr rpc.HTTPError
		if !errors.As(err, &httpErr) || httpErr.StatusCode != 429 {
			return fmt.Errorf("%s failed: %w", method, err)
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= backoffBase
	}
	return fmt.Errorf("%s failed after %d attempts, last error: %w", method, maxAttempts, lastErr)
}
