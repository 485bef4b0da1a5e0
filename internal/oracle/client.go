// Package oracle is the daemon's client to the human-presence oracle: a
// separate trusted UI process that shows OS-native confirmation dialogs
// and gates them behind biometrics. The daemon cannot forge either half —
// it only asks, and it fails closed when the oracle is unreachable,
// denies, or times out.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

// callTimeout bounds every oracle round trip. A human is on the other end
// of RequestAdminApproval, so this is generous by RPC standards but still
// finite: an unattended dialog is a denial, not a hang.
const callTimeout = 30 * time.Second

// PendingApprovalSummary is what the oracle displays for one outstanding
// approval code. Informational only — it carries the hash prefix, never
// the code or the full hash.
type PendingApprovalSummary struct {
	Summary    string `json:"summary"`
	HashPrefix string `json:"hashPrefix"`
	ExpiresIn  int    `json:"expiresIn"`
}

// Oracle is the trusted-confirmation capability admin operations require.
type Oracle interface {
	// RequestAdminApproval shows a dialog describing the exact change and
	// waits for biometric confirmation. The summary text comes from the
	// daemon, never from the agent.
	RequestAdminApproval(ctx context.Context, summary string) (bool, error)

	// PostApprovalNotification surfaces a pending approval code to the
	// user. The code travels to the trusted UI only — it never appears in
	// any daemon response or log.
	PostApprovalNotification(ctx context.Context, code, summary, hashPrefix string, expiresIn int) (bool, error)

	// ListPending returns the outstanding approvals the UI is showing.
	ListPending(ctx context.Context) ([]PendingApprovalSummary, error)
}

// Client talks JSON-RPC to the companion UI over its own unix socket.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the oracle's socket (an ipc:// path or any endpoint
// go-ethereum's rpc.Dial accepts).
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	c, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to presence oracle: %w", err)
	}
	return &Client{rpc: c}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

// RequestAdminApproval implements Oracle.
func (c *Client) RequestAdminApproval(ctx context.Context, summary string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var approved bool
	if err := c.rpc.CallContext(ctx, &approved, "presence_requestAdminApproval", summary); err != nil {
		return false, fmt.Errorf("presence oracle approval failed: %w", err)
	}
	return approved, nil
}

// PostApprovalNotification implements Oracle.
func (c *Client) PostApprovalNotification(ctx context.Context, code, summary, hashPrefix string, expiresIn int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var posted bool
	if err := c.rpc.CallContext(ctx, &posted, "presence_postApprovalNotification", code, summary, hashPrefix, expiresIn); err != nil {
		return false, fmt.Errorf("presence oracle notification failed: %w", err)
	}
	return posted, nil
}

// ListPending implements Oracle.
func (c *Client) ListPending(ctx context.Context) ([]PendingApprovalSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var pending []PendingApprovalSummary
	if err := c.rpc.CallContext(ctx, &pending, "presence_listPending"); err != nil {
		return nil, fmt.Errorf("presence oracle list failed: %w", err)
	}
	return pending, nil
}
