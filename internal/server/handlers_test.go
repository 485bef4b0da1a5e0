package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"signerd/internal/audit"
	"signerd/internal/chains"
	"signerd/internal/config"
	"signerd/internal/oracle"
	"signerd/internal/policy"
	"signerd/internal/signer"
)

type fakeChainView struct {
	balance  uint64
	deployed bool
	frozen   bool
	quoteOut *big.Int
	quoteErr error
}

func (f *fakeChainView) GasPriceWei(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChainView) Call(ctx context.Context, to string, calldata []byte) ([]byte, error) {
	return make([]byte, 32), nil
}

func (f *fakeChainView) BalanceWei(ctx context.Context, address string) (uint64, error) {
	return f.balance, nil
}

func (f *fakeChainView) IsDeployed(ctx context.Context, address string) (bool, error) {
	return f.deployed, nil
}

func (f *fakeChainView) IsFrozen(ctx context.Context, walletAddress string) (bool, error) {
	return f.frozen, nil
}

func (f *fakeChainView) QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, fee uint32) (*big.Int, error) {
	return f.quoteOut, f.quoteErr
}

type fakeOracle struct {
	approve       bool
	err           error
	notifications int
	lastCode      string
}

func (f *fakeOracle) RequestAdminApproval(ctx context.Context, summary string) (bool, error) {
	return f.approve, f.err
}

func (f *fakeOracle) PostApprovalNotification(ctx context.Context, code, summary, hashPrefix string, expiresIn int) (bool, error) {
	f.notifications++
	f.lastCode = code
	return true, nil
}

func (f *fakeOracle) ListPending(ctx context.Context) ([]oracle.PendingApprovalSummary, error) {
	return nil, nil
}

type testEnv struct {
	server    *Server
	chain     *fakeChainView
	oracle    *fakeOracle
	submitted []policy.Intent
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hw, err := signer.NewSoftEnclave()
	if err != nil {
		t.Fatal(err)
	}
	store, err := config.Open(t.TempDir(), hw, config.DaemonConfig{
		ActiveProfile: config.ProfileBalanced,
		HomeChainID:   8453,
		WalletAddress: "0x9999999999999999999999999999999999999999",
	})
	if err != nil {
		t.Fatal(err)
	}
	auditLog, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		chain:  &fakeChainView{balance: 1_000_000_000_000_000_000, deployed: true},
		oracle: &fakeOracle{approve: true},
	}
	srv := New("test", store, hw, auditLog, env.oracle)
	srv.SwapServices(&Services{
		ChainID:     8453,
		ChainConfig: chains.SupportedChains[8453],
		Chain:       env.chain,
	})
	srv.submit = func(ctx context.Context, in policy.Intent, cfg config.DaemonConfig) (*SubmitOutcome, error) {
		env.submitted = append(env.submitted, in)
		return &SubmitOutcome{UserOpHash: "0xfeedbead", ExplorerURL: "https://basescan.org/tx/0xfeedbead"}, nil
	}
	env.server = srv
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(context.WithValue(req.Context(), peerUIDKey{}, e.server.uid))
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, w.Body.String())
	}
	return out
}

func TestHealthNeedsNoAuth(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest("GET", "/health", nil) // no peer UID in context
	w := httptest.NewRecorder()
	env.server.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestPeerUIDGateRejectsMissingCredentials(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest("GET", "/address", nil)
	w := httptest.NewRecorder()
	env.server.Router().ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without peer credentials, got %d", w.Code)
	}
}

func TestPeerUIDGateRejectsForeignUID(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest("GET", "/address", nil)
	req = req.WithContext(context.WithValue(req.Context(), peerUIDKey{}, env.server.uid+1))
	w := httptest.NewRecorder()
	env.server.Router().ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a foreign UID, got %d", w.Code)
	}
}

func TestAddressReturnsSignerKey(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "GET", "/address", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	pub, ok := body["signerPublicKey"].(map[string]interface{})
	if !ok || pub["x"] == "" || pub["y"] == "" {
		t.Fatalf("expected signer public key coordinates, got %v", body)
	}
}

func TestSignAllowlistedTransfer(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.server.store.Update(func(c *config.DaemonConfig) {
		c.Allowlist = []config.AllowlistEntry{{Address: "0xCAFE000000000000000000000000000000000000"}}
	}); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, "POST", "/sign", `{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"10000000000000000"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["userOpHash"] != "0xfeedbead" {
		t.Fatalf("unexpected response: %v", body)
	}
	if len(env.submitted) != 1 {
		t.Fatalf("expected exactly one submission, got %d", len(env.submitted))
	}

	budgets := env.server.spending.RemainingBudgets(mustProfile(t, config.ProfileBalanced))
	if budgets.RemainingDailyEthWei >= 250_000000000000000 {
		t.Fatalf("expected the spend to be recorded, remaining=%d", budgets.RemainingDailyEthWei)
	}
}

func mustProfile(t *testing.T, name string) config.SecurityProfile {
	t.Helper()
	p, ok := config.LookupProfile(name)
	if !ok {
		t.Fatalf("unknown profile %s", name)
	}
	return p
}

func TestSignOverCapReturnsApprovalThenRoundTrips(t *testing.T) {
	env := newTestEnv(t)
	intent := `{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"60000000000000000"}`

	w := env.do(t, "POST", "/sign", intent)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	summary, _ := body["summary"].(string)
	if !strings.Contains(summary, "0.0600 ETH") {
		t.Fatalf("expected formatted amount in summary, got %q", summary)
	}
	hashPrefix, _ := body["hashPrefix"].(string)
	if len(hashPrefix) != 18 {
		t.Fatalf("expected an 18-character hash prefix, got %q", hashPrefix)
	}
	if env.oracle.notifications != 1 {
		t.Fatalf("expected one oracle notification, got %d", env.oracle.notifications)
	}

	// The code only ever travels to the trusted UI; the fake captured it
	// the way a user would read it off the notification.
	code := env.oracle.lastCode
	if len(code) != 8 {
		t.Fatalf("expected an 8-digit code at the oracle, got %q", code)
	}

	w = env.do(t, "POST", "/sign", fmt.Sprintf(`{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"60000000000000000","approvalCode":"%s"}`, code))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after approval, got %d: %s", w.Code, w.Body.String())
	}

	// Single use: the same code is gone now.
	w = env.do(t, "POST", "/sign", fmt.Sprintf(`{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"60000000000000000","approvalCode":"%s"}`, code))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for replayed code, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSignBlockedSelectorRequiresApproval(t *testing.T) {
	env := newTestEnv(t)
	// approve(spender, amount) to an allowlisted target, value 0
	if _, err := env.server.store.Update(func(c *config.DaemonConfig) {
		c.Allowlist = []config.AllowlistEntry{{Address: "0xCAFE000000000000000000000000000000000000"}}
	}); err != nil {
		t.Fatal(err)
	}
	calldata := "0x095ea7b3" + strings.Repeat("00", 64)
	w := env.do(t, "POST", "/sign", `{"target":"0xCAFE000000000000000000000000000000000000","calldata":"`+calldata+`","value":"0"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for blocked selector, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if reason, _ := body["reason"].(string); !strings.Contains(reason, "Blocked selector") {
		t.Fatalf("expected blocked-selector reason, got %v", body)
	}
}

func TestSignFrozenReturns409(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.server.store.Update(func(c *config.DaemonConfig) { c.Frozen = true }); err != nil {
		t.Fatal(err)
	}
	w := env.do(t, "POST", "/sign", `{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 when frozen, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSignDiscardsExtraFieldsSilently(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.server.store.Update(func(c *config.DaemonConfig) {
		c.Allowlist = []config.AllowlistEntry{{Address: "0xCAFE000000000000000000000000000000000000"}}
	}); err != nil {
		t.Fatal(err)
	}
	// nonce/gas fields in an intent are discarded, never an error.
	w := env.do(t, "POST", "/sign", `{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"1","nonce":"999","maxFeePerGas":"1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected extra fields to be discarded, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSignValueOverflowRejected(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "POST", "/sign", `{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"99999999999999999999999999"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an oversized value, got %d", w.Code)
	}
}

func TestPanicFreezesAndSignReturns409(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "POST", "/panic", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from panic, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "frozen" {
		t.Fatalf("expected frozen status, got %v", body)
	}

	w = env.do(t, "POST", "/sign", `{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 after panic, got %d", w.Code)
	}
}

func TestUnfreezeRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.server.store.Update(func(c *config.DaemonConfig) { c.Frozen = true }); err != nil {
		t.Fatal(err)
	}
	env.chain.frozen = false // simulates the on-chain unfreeze having landed

	w := env.do(t, "POST", "/unfreeze", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from unfreeze, got %d: %s", w.Code, w.Body.String())
	}

	if _, err := env.server.store.Update(func(c *config.DaemonConfig) {
		c.Allowlist = []config.AllowlistEntry{{Address: "0xCAFE000000000000000000000000000000000000"}}
	}); err != nil {
		t.Fatal(err)
	}
	w = env.do(t, "POST", "/sign", `{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected signing to flow after unfreeze, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUnfreezeStillFrozenOnChainConflicts(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.server.store.Update(func(c *config.DaemonConfig) { c.Frozen = true }); err != nil {
		t.Fatal(err)
	}
	env.chain.frozen = true

	w := env.do(t, "POST", "/unfreeze", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while frozen on-chain, got %d", w.Code)
	}
}

func TestUnfreezeOracleDenialIs403(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.server.store.Update(func(c *config.DaemonConfig) { c.Frozen = true }); err != nil {
		t.Fatal(err)
	}
	env.oracle.approve = false

	w := env.do(t, "POST", "/unfreeze", "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on oracle denial, got %d", w.Code)
	}
}

func TestAllowlistOracleGate(t *testing.T) {
	env := newTestEnv(t)
	env.oracle.approve = false
	w := env.do(t, "POST", "/allowlist", `{"action":"add","address":"0xCAFE000000000000000000000000000000000000"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on oracle denial, got %d", w.Code)
	}

	env.oracle.approve = true
	w = env.do(t, "POST", "/allowlist", `{"action":"add","address":"0xCAFE000000000000000000000000000000000000"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with oracle approval, got %d: %s", w.Code, w.Body.String())
	}
	if !env.server.store.Snapshot().IsAllowlisted("0xCAFE000000000000000000000000000000000000") {
		t.Fatalf("expected address on allowlist")
	}
}

func TestPolicyUpdateSwitchesProfile(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "POST", "/policy/update", `{"profile":"autonomous"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if env.server.store.Snapshot().ActiveProfile != config.ProfileAutonomous {
		t.Fatalf("profile did not switch")
	}
}

func TestDecodeTransferEndpoint(t *testing.T) {
	env := newTestEnv(t)
	// transfer(recipient, amount) to Base USDC
	calldata := "0xa9059cbb" +
		"000000000000000000000000cafe000000000000000000000000000000000000" +
		"0000000000000000000000000000000000000000000000000000000005f5e100"
	w := env.do(t, "POST", "/decode", `{"target":"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913","calldata":"`+calldata+`","value":"0"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["action"] != "token_transfer" || body["isStablecoin"] != true {
		t.Fatalf("unexpected decode: %v", body)
	}
}

func TestAuditLogNeverLeaksCodes(t *testing.T) {
	env := newTestEnv(t)
	// Trigger an approval so a code exists somewhere in the system.
	w := env.do(t, "POST", "/sign", `{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"60000000000000000"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}

	w = env.do(t, "GET", "/audit-log", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	for _, e := range env.server.audit.Recent() {
		for _, field := range []string{e.Action, e.Target, e.Value, e.Decision, e.Reason, e.TxHash} {
			if eightDigitRun(field) {
				t.Fatalf("audit field contains an 8-digit run: %q", field)
			}
		}
	}
}

func eightDigitRun(s string) bool {
	run := 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] >= '0' && s[i] <= '9' {
			run++
			continue
		}
		if run == 8 {
			return true
		}
		run = 0
	}
	return false
}

func TestSignRateLimiter(t *testing.T) {
	env := newTestEnv(t)
	var last int
	for i := 0; i < 35; i++ {
		w := env.do(t, "POST", "/sign", `{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"1"}`)
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected the 31st+ request to hit the rate limit, got %d", last)
	}
}

func TestSafeModeRejectsWrites(t *testing.T) {
	hw, err := signer.NewSoftEnclave()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	store, err := config.Open(dir, hw, config.DaemonConfig{ActiveProfile: config.ProfileBalanced, HomeChainID: 8453})
	if err != nil {
		t.Fatal(err)
	}
	_ = store

	// Reopen with a different enclave: the persisted signature no longer
	// verifies, so the store enters safe mode.
	otherHW, err := signer.NewSoftEnclave()
	if err != nil {
		t.Fatal(err)
	}
	store2, err := config.Open(dir, otherHW, config.DaemonConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if !store2.SafeMode() {
		t.Fatalf("expected safe mode after key mismatch")
	}

	auditLog, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	srv := New("test", store2, otherHW, auditLog, &fakeOracle{approve: true})

	req := httptest.NewRequest("POST", "/sign", bytes.NewReader([]byte(`{"target":"0xCAFE000000000000000000000000000000000000","calldata":"0x","value":"1"}`)))
	req = req.WithContext(context.WithValue(req.Context(), peerUIDKey{}, srv.uid))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 in safe mode, got %d", w.Code)
	}

	// Read-only endpoints stay up.
	req = httptest.NewRequest("GET", "/policy", nil)
	req = req.WithContext(context.WithValue(req.Context(), peerUIDKey{}, srv.uid))
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected read-only endpoint to serve in safe mode, got %d", w.Code)
	}
}
