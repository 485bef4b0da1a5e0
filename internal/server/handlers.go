package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"signerd/internal/approval"
	"signerd/internal/calldata"
	"signerd/internal/chains"
	"signerd/internal/config"
	"signerd/internal/policy"
	"signerd/internal/registry"
	"signerd/internal/signer"
	"signerd/internal/userop"
	"signerd/pkg/cryptoutil"
)

const approvalTTLSeconds = 180

// safeModeGuard rejects a mutating request while the config store is in
// safe mode. Read-only endpoints stay up.
func (s *Server) safeModeGuard(c *gin.Context) bool {
	if s.store.SafeMode() {
		c.JSON(http.StatusForbidden, gin.H{"reason": "daemon is in safe mode: config integrity verification failed"})
		return true
	}
	return false
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   s.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAddress(c *gin.Context) {
	cfg := s.store.Snapshot()
	pub, err := s.hw.PublicKey(signer.KeySlotRoutine)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": "signer public key unavailable"})
		return
	}
	x, y := pub.HexXY()
	c.JSON(http.StatusOK, gin.H{
		"walletAddress":   cfg.WalletAddress,
		"signerPublicKey": gin.H{"x": x, "y": y},
		"homeChainId":     cfg.HomeChainID,
	})
}

func (s *Server) handleCapabilities(c *gin.Context) {
	cfg := s.store.Snapshot()
	svc := s.services.Load()
	if svc == nil || cfg.WalletAddress == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"reason": "wallet not configured"})
		return
	}

	deployed, err := svc.Chain.IsDeployed(c.Request.Context(), cfg.WalletAddress)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		return
	}
	if !deployed {
		c.JSON(http.StatusServiceUnavailable, gin.H{"reason": "wallet not deployed"})
		return
	}

	profile, err := cfg.ResolveProfile()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		return
	}

	balance, err := svc.Chain.BalanceWei(c.Request.Context(), cfg.WalletAddress)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		return
	}

	budgets := s.spending.RemainingBudgets(profile)
	allowlist := make([]string, 0, len(cfg.Allowlist))
	for _, e := range cfg.Allowlist {
		allowlist = append(allowlist, e.Address)
	}

	var protocolNames []string
	for _, a := range protocolActions(cfg.ActiveProfile) {
		protocolNames = append(protocolNames, fmt.Sprintf("%s (chain %d)", a.HumanName, a.ChainID))
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":   cfg.ActiveProfile,
		"limits":    profile,
		"remaining": budgets,
		"gasStatus": userop.GasStatus(weiToBig(balance)),
		"allowlist": allowlist,
		"protocols": protocolNames,
		"frozen":    cfg.Frozen,
	})
}

func protocolActions(profileName string) []registry.AllowedAction {
	switch profileName {
	case config.ProfileAutonomous:
		return registry.AutonomousProtocolPack()
	default:
		return registry.BalancedProtocolPack()
	}
}

func (s *Server) handlePolicy(c *gin.Context) {
	cfg := s.store.Snapshot()
	profile, err := cfg.ResolveProfile()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"activeProfile": cfg.ActiveProfile,
		"limits":        profile,
		"frozen":        cfg.Frozen,
	})
}

type policyUpdateRequest struct {
	Profile          string            `json:"profile,omitempty"`
	Overrides        *config.Overrides `json:"overrides,omitempty"`
	CustomBundlerURL *string           `json:"customBundlerUrl,omitempty"`
	AddStablecoin    *struct {
		ChainID  uint64 `json:"chainId"`
		Address  string `json:"address"`
		Decimals int    `json:"decimals"`
	} `json:"addStablecoin,omitempty"`
}

func (s *Server) handlePolicyUpdate(c *gin.Context) {
	if s.safeModeGuard(c) {
		return
	}

	var req policyUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "malformed policy update"})
		return
	}

	var changes []string
	if req.Profile != "" {
		if _, ok := config.LookupProfile(req.Profile); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"reason": fmt.Sprintf("unknown profile %q", req.Profile)})
			return
		}
		changes = append(changes, "switch profile to "+req.Profile)
	}
	if req.Overrides != nil {
		changes = append(changes, "change limit overrides")
	}
	if req.CustomBundlerURL != nil {
		if *req.CustomBundlerURL == "" {
			changes = append(changes, "reset bundler to default")
		} else {
			changes = append(changes, "set custom bundler URL")
		}
	}
	if req.AddStablecoin != nil {
		if !common.IsHexAddress(req.AddStablecoin.Address) {
			c.JSON(http.StatusBadRequest, gin.H{"reason": "stablecoin address is not a valid address"})
			return
		}
		changes = append(changes, fmt.Sprintf("register stablecoin %s on chain %d", req.AddStablecoin.Address, req.AddStablecoin.ChainID))
	}
	if len(changes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "no changes requested"})
		return
	}
	summary := "Policy update: " + strings.Join(changes, "; ")

	if !s.confirmWithOracle(c, summary) {
		return
	}

	cfg, err := s.store.Update(func(cfg *config.DaemonConfig) {
		if req.Profile != "" {
			cfg.ActiveProfile = req.Profile
		}
		if req.Overrides != nil {
			cfg.Overrides = *req.Overrides
		}
		if req.CustomBundlerURL != nil {
			cfg.CustomBundlerURL = *req.CustomBundlerURL
		}
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		return
	}

	if req.AddStablecoin != nil {
		s.stablecoins.Add(registry.StablecoinEntry{
			ChainID:  req.AddStablecoin.ChainID,
			Address:  req.AddStablecoin.Address,
			Decimals: req.AddStablecoin.Decimals,
		})
	}

	// A bundler change is chain-dependent state: rebuild the graph so the
	// next request already talks to the new endpoint.
	if req.CustomBundlerURL != nil && s.services.Load() != nil {
		next, err := BuildServices(c.Request.Context(), cfg)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"reason": fmt.Sprintf("config saved but service rebuild failed: %v", err)})
			return
		}
		s.SwapServices(next)
	}

	_ = s.audit.Record("policy_update", "", "", "allow", summary, "")
	c.JSON(http.StatusOK, gin.H{"status": "updated", "summary": summary})
}

type allowlistRequest struct {
	Action  string `json:"action"`
	Address string `json:"address"`
}

func (s *Server) handleAllowlist(c *gin.Context) {
	if s.safeModeGuard(c) {
		return
	}

	var req allowlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "malformed allowlist request"})
		return
	}
	if req.Action != "add" && req.Action != "remove" {
		c.JSON(http.StatusBadRequest, gin.H{"reason": `action must be "add" or "remove"`})
		return
	}
	if !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "address is not a valid address"})
		return
	}
	addr := common.HexToAddress(req.Address).Hex()

	summary := fmt.Sprintf("Allowlist: %s %s", req.Action, addr)
	if !s.confirmWithOracle(c, summary) {
		return
	}

	_, err := s.store.Update(func(cfg *config.DaemonConfig) {
		filtered := cfg.Allowlist[:0]
		for _, e := range cfg.Allowlist {
			if !strings.EqualFold(e.Address, addr) {
				filtered = append(filtered, e)
			}
		}
		cfg.Allowlist = filtered
		if req.Action == "add" {
			cfg.Allowlist = append(cfg.Allowlist, config.AllowlistEntry{Address: addr})
		}
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		return
	}

	_ = s.audit.Record("allowlist_"+req.Action, addr, "", "allow", summary, "")
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// confirmWithOracle runs the human-presence gate for an admin change.
// Writes the failure response itself and returns false when the gate does
// not produce a positive confirmation.
func (s *Server) confirmWithOracle(c *gin.Context, summary string) bool {
	if s.oracle == nil {
		c.JSON(http.StatusForbidden, gin.H{"reason": "presence oracle unavailable"})
		return false
	}
	approved, err := s.oracle.RequestAdminApproval(c.Request.Context(), summary)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"reason": "presence oracle unreachable"})
		return false
	}
	if !approved {
		c.JSON(http.StatusForbidden, gin.H{"reason": "change rejected by user"})
		return false
	}
	return true
}

func (s *Server) handleDecode(c *gin.Context) {
	cfg := s.store.Snapshot()
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "unreadable body"})
		return
	}
	in, _, err := parseIntent(body, cfg.HomeChainID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": err.Error()})
		return
	}

	d := calldata.Decode(in.Calldata, in.Target, in.Value, in.ChainID, s.stablecoins)
	resp := gin.H{
		"action":   d.Action,
		"selector": d.Selector,
		"isKnown":  d.IsKnown,
		"summary":  d.Summary,
	}
	if d.Action == calldata.ActionTokenTransfer {
		resp["recipient"] = d.Recipient
		resp["amount"] = d.AmountWei
		resp["isStablecoin"] = d.IsStable
	}
	if d.SwapParams != nil {
		resp["swap"] = d.SwapParams
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSign(c *gin.Context) {
	if s.safeModeGuard(c) {
		return
	}

	cfg := s.store.Snapshot()
	if cfg.WalletAddress == "" || s.services.Load() == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"reason": "wallet not configured"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "unreadable body"})
		return
	}
	in, approvalCode, err := parseIntent(body, cfg.HomeChainID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": err.Error()})
		return
	}

	profile, err := cfg.ResolveProfile()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		return
	}

	decision := s.engineFor(cfg).Evaluate(c.Request.Context(), in, profile)
	switch decision.Verdict {
	case policy.VerdictDeny:
		status := http.StatusForbidden
		if cfg.Frozen {
			status = http.StatusConflict
		}
		_ = s.audit.Record("sign", in.Target, in.Value.String(), "denied", decision.Reason, "")
		c.JSON(status, gin.H{"reason": decision.Reason})

	case policy.VerdictAllow:
		s.completeAllowedSign(c, in, cfg, decision)

	case policy.VerdictRequireApproval:
		if approvalCode != "" {
			s.verifyAndComplete(c, in, cfg, decision, approvalCode)
			return
		}
		s.issueApproval(c, in, cfg, decision)
	}
}

func approvalFields(in policy.Intent, cfg config.DaemonConfig) approval.IntentFields {
	return approval.IntentFields{
		ChainID:       in.ChainID,
		WalletAddress: cfg.WalletAddress,
		Target:        in.Target,
		Value:         in.Value,
		Calldata:      in.Calldata,
	}
}

func (s *Server) issueApproval(c *gin.Context, in policy.Intent, cfg config.DaemonConfig, decision policy.Decision) {
	summary := intentSummary(in)
	code, hashPrefix, err := s.approvals.Create(approvalFields(in, cfg), summary)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": "failed to create approval"})
		return
	}

	if s.oracle != nil {
		if _, err := s.oracle.PostApprovalNotification(c.Request.Context(), code, summary, hashPrefix, approvalTTLSeconds); err != nil {
			log.Printf("⚠️  Approval notification failed: %v", err)
		}
	}

	_ = s.audit.Record("sign", in.Target, in.Value.String(), "approval_required", decision.Reason, "")
	c.JSON(http.StatusAccepted, gin.H{
		"summary":    summary,
		"hashPrefix": hashPrefix,
		"expiresIn":  approvalTTLSeconds,
		"reason":     decision.Reason,
	})
}

func (s *Server) verifyAndComplete(c *gin.Context, in policy.Intent, cfg config.DaemonConfig, decision policy.Decision, code string) {
	result := s.approvals.Verify(code, approvalFields(in, cfg))
	switch result {
	case approval.ResultApproved:
		s.completeAllowedSign(c, in, cfg, decision)
	case approval.ResultRateLimited:
		_ = s.audit.Record("sign", in.Target, in.Value.String(), "denied", "approval verification rate limited", "")
		c.JSON(http.StatusTooManyRequests, gin.H{"reason": "too many failed approval attempts"})
	default:
		_ = s.audit.Record("sign", in.Target, in.Value.String(), "denied", "approval "+string(result), "")
		c.JSON(http.StatusForbidden, gin.H{"reason": string(result)})
	}
}

// completeAllowedSign runs the allow path and maps its failures onto the
// wire: 402 for a gas shortfall, 503 for hardware loss, 500 otherwise.
func (s *Server) completeAllowedSign(c *gin.Context, in policy.Intent, cfg config.DaemonConfig, decision policy.Decision) {
	outcome, err := s.submit(c.Request.Context(), in, cfg)
	if err != nil {
		var gasErr *ErrInsufficientGas
		switch {
		case errors.As(err, &gasErr):
			_ = s.audit.Record("sign", in.Target, in.Value.String(), "denied", "insufficient gas balance", "")
			c.JSON(http.StatusPaymentRequired, gin.H{
				"reason":       "insufficient balance for gas",
				"shortfallWei": gasErr.ShortfallWei.String(),
			})
		case isHardwareError(err):
			_ = s.audit.Record("sign", in.Target, in.Value.String(), "denied", "hardware signer unavailable", "")
			c.JSON(http.StatusServiceUnavailable, gin.H{"reason": "hardware signer unavailable"})
		default:
			_ = s.audit.Record("sign", in.Target, in.Value.String(), "denied", err.Error(), "")
			c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		}
		return
	}

	ethAmount, stableAmount := policy.SpendAmounts(decision.Decoded, in.Value)
	s.spending.Record(ethAmount, stableAmount)

	_ = s.audit.Record("sign", in.Target, in.Value.String(), "allow", decision.Reason, outcome.UserOpHash)
	c.JSON(http.StatusOK, gin.H{
		"userOpHash":  outcome.UserOpHash,
		"chainId":     in.ChainID,
		"explorerUrl": outcome.ExplorerURL,
	})
}

func (s *Server) handlePanic(c *gin.Context) {
	if s.safeModeGuard(c) {
		return
	}

	cfg, err := s.store.Update(func(cfg *config.DaemonConfig) { cfg.Frozen = true })
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		return
	}
	_ = s.audit.Record("panic", "", "", "frozen", "panic requested", "")

	// Best-effort on-chain freeze in the background; local state is
	// already frozen either way.
	go s.submitOnChainFreeze(cfg)

	c.JSON(http.StatusOK, gin.H{"status": "frozen"})
}

func (s *Server) submitOnChainFreeze(cfg config.DaemonConfig) {
	if cfg.WalletAddress == "" || s.services.Load() == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	in := policy.Intent{
		ChainID:  cfg.HomeChainID,
		Target:   cfg.WalletAddress,
		Value:    weiToBig(0),
		Calldata: cryptoutil.MustHexDecode("0x62a5af3b"), // freeze()
	}
	outcome, err := s.submit(ctx, in, cfg)
	if err != nil {
		log.Printf("⚠️  On-chain freeze submission failed: %v", err)
		_ = s.audit.Record("freeze_onchain", cfg.WalletAddress, "", "denied", err.Error(), "")
		return
	}
	log.Printf("🧊 On-chain freeze submitted: %s", outcome.UserOpHash)
	_ = s.audit.Record("freeze_onchain", cfg.WalletAddress, "", "allow", "on-chain freeze submitted", outcome.UserOpHash)
}

func (s *Server) handleUnfreeze(c *gin.Context) {
	if s.safeModeGuard(c) {
		return
	}

	cfg := s.store.Snapshot()
	if !cfg.Frozen {
		c.JSON(http.StatusConflict, gin.H{"reason": "wallet is not frozen"})
		return
	}

	svc := s.services.Load()
	if svc == nil || cfg.WalletAddress == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"reason": "wallet not configured"})
		return
	}

	deployed, err := svc.Chain.IsDeployed(c.Request.Context(), cfg.WalletAddress)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		return
	}
	if deployed {
		frozen, err := svc.Chain.IsFrozen(c.Request.Context(), cfg.WalletAddress)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
			return
		}
		if frozen {
			c.JSON(http.StatusConflict, gin.H{"reason": "wallet is still frozen on-chain"})
			return
		}
	}

	if !s.confirmWithOracle(c, "Unfreeze wallet and resume signing") {
		return
	}

	if _, err := s.store.Update(func(cfg *config.DaemonConfig) { cfg.Frozen = false }); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		return
	}
	_ = s.audit.Record("unfreeze", "", "", "allow", "unfrozen with user confirmation", "")
	c.JSON(http.StatusOK, gin.H{"status": "active"})
}

type setupRequest struct {
	ChainID         uint64 `json:"chainId"`
	Profile         string `json:"profile"`
	RecoveryAddress string `json:"recoveryAddress,omitempty"`
}

func (s *Server) handleSetup(c *gin.Context) {
	if s.safeModeGuard(c) {
		return
	}

	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "malformed setup request"})
		return
	}
	if _, ok := chains.Lookup(req.ChainID); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"reason": fmt.Sprintf("unsupported chain id %d", req.ChainID)})
		return
	}
	if _, ok := config.LookupProfile(req.Profile); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"reason": fmt.Sprintf("unknown profile %q", req.Profile)})
		return
	}
	if req.RecoveryAddress != "" && !common.IsHexAddress(req.RecoveryAddress) {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "recovery address is not a valid address"})
		return
	}

	cfg, err := s.store.Update(func(cfg *config.DaemonConfig) {
		cfg.HomeChainID = req.ChainID
		cfg.ActiveProfile = req.Profile
		if req.RecoveryAddress != "" {
			cfg.RecoveryAddress = common.HexToAddress(req.RecoveryAddress).Hex()
		}
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		return
	}

	next, err := BuildServices(c.Request.Context(), cfg)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"reason": fmt.Sprintf("failed to reach chain %d: %v", req.ChainID, err)})
		return
	}
	s.SwapServices(next)

	precompile, err := ProbePrecompile(c.Request.Context(), next.Chain, s.hw)
	if err != nil {
		log.Printf("⚠️  Precompile probe errored, assuming unavailable: %v", err)
		precompile = false
	}

	walletAddress := cfg.WalletAddress
	if cfg.FactoryAddress != "" {
		walletAddress, err = s.computeWalletAddress(c.Request.Context(), next, cfg.FactoryAddress)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
			return
		}
	}

	cfg, err = s.store.Update(func(cfg *config.DaemonConfig) {
		cfg.PrecompileAvailable = precompile
		cfg.WalletAddress = walletAddress
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		return
	}

	_ = s.audit.Record("setup", walletAddress, "", "allow", fmt.Sprintf("chain %d, profile %s", req.ChainID, req.Profile), "")
	c.JSON(http.StatusOK, gin.H{
		"walletAddress":       cfg.WalletAddress,
		"chainId":             cfg.HomeChainID,
		"profile":             cfg.ActiveProfile,
		"precompileAvailable": cfg.PrecompileAvailable,
	})
}

// computeWalletAddress calls the factory's getAddress(uint256 x, uint256
// y, uint256 salt) view with the routine public key and salt 0.
func (s *Server) computeWalletAddress(ctx context.Context, svc *Services, factory string) (string, error) {
	pub, err := s.hw.PublicKey(signer.KeySlotRoutine)
	if err != nil {
		return "", fmt.Errorf("routine public key unavailable: %w", err)
	}
	sel := cryptoutil.MustHexDecode("0xe81b22ea") // getAddress(uint256,uint256,uint256)
	calldata := make([]byte, 4+96)
	copy(calldata[0:4], sel)
	pub.X.FillBytes(calldata[4:36])
	pub.Y.FillBytes(calldata[36:68])

	result, err := svc.Chain.Call(ctx, factory, calldata)
	if err != nil {
		return "", fmt.Errorf("factory getAddress failed: %w", err)
	}
	if len(result) < 32 {
		return "", fmt.Errorf("unexpected factory response length %d", len(result))
	}
	return common.BytesToAddress(result[12:32]).Hex(), nil
}

func (s *Server) handleSetupDeploy(c *gin.Context) {
	if s.safeModeGuard(c) {
		return
	}

	cfg := s.store.Snapshot()
	svc := s.services.Load()
	if svc == nil || cfg.WalletAddress == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"reason": "wallet not configured"})
		return
	}

	deployed, err := svc.Chain.IsDeployed(c.Request.Context(), cfg.WalletAddress)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		return
	}
	if deployed {
		c.JSON(http.StatusOK, gin.H{"status": "already_deployed"})
		return
	}

	// A no-op self-call: the op exists only to carry the initCode.
	in := policy.Intent{
		ChainID:  cfg.HomeChainID,
		Target:   cfg.WalletAddress,
		Value:    weiToBig(0),
		Calldata: nil,
	}
	outcome, err := s.submit(c.Request.Context(), in, cfg)
	if err != nil {
		var gasErr *ErrInsufficientGas
		if errors.As(err, &gasErr) {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"reason":       "insufficient balance to deploy",
				"shortfallWei": gasErr.ShortfallWei.String(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"reason": err.Error()})
		return
	}

	_ = s.audit.Record("deploy", cfg.WalletAddress, "", "allow", "deployment submitted", outcome.UserOpHash)
	c.JSON(http.StatusOK, gin.H{"status": "deploying", "userOpHash": outcome.UserOpHash})
}

func (s *Server) handleAuditLog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": s.audit.Recent()})
}
