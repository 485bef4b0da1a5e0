package server

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"signerd/internal/approval"
	"signerd/internal/audit"
	"signerd/internal/config"
	"signerd/internal/oracle"
	"signerd/internal/policy"
	"signerd/internal/registry"
	"signerd/internal/signer"
)

const (
	socketFileMode = 0o600
	socketDirMode  = 0o700
)

// Server wires every component behind the daemon socket. The chain-
// dependent graph lives behind an atomic pointer; everything else —
// config store, signer, approvals, audit, spending state — survives
// reconfiguration untouched.
type Server struct {
	Version string

	store       *config.Store
	hw          signer.Signer
	approvals   *approval.Manager
	oracle      oracle.Oracle
	audit       *audit.Log
	spending    *policy.SpendingTracker
	stablecoins *registry.StablecoinRegistry
	protocols   map[string]*registry.ProtocolRegistry

	services atomic.Pointer[Services]

	signLimiter *rate.Limiter
	uid         uint32

	// submit is the allow-path pipeline; swapped for a fake in handler
	// tests so no test ever talks to a bundler.
	submit func(ctx context.Context, in policy.Intent, cfg config.DaemonConfig) (*SubmitOutcome, error)
}

// New assembles a Server around the process-wide singletons.
func New(version string, store *config.Store, hw signer.Signer, auditLog *audit.Log, presenceOracle oracle.Oracle) *Server {
	s := &Server{
		Version:     version,
		store:       store,
		hw:          hw,
		approvals:   approval.NewManager(),
		oracle:      presenceOracle,
		audit:       auditLog,
		spending:    policy.NewSpendingTracker(),
		stablecoins: registry.NewStablecoinRegistry(),
		protocols: map[string]*registry.ProtocolRegistry{
			config.ProfileBalanced:   registry.NewProtocolRegistry(registry.BalancedProtocolPack()),
			config.ProfileAutonomous: registry.NewProtocolRegistry(registry.AutonomousProtocolPack()),
		},
		signLimiter: rate.NewLimiter(rate.Every(time.Minute/30), 30),
		uid:         uint32(os.Getuid()),
	}
	s.submit = s.executeAllow
	return s
}

// SwapServices publishes a freshly-built graph and tears down the old one.
func (s *Server) SwapServices(next *Services) {
	old := s.services.Swap(next)
	if old != nil {
		old.Close()
	}
}

// CurrentServices returns the active graph, or nil before first setup.
func (s *Server) CurrentServices() *Services {
	return s.services.Load()
}

// WalletAddress implements freeze.LocalState.
func (s *Server) WalletAddress() string {
	return s.store.Snapshot().WalletAddress
}

// LocalFrozen implements freeze.LocalState.
func (s *Server) LocalFrozen() bool {
	return s.store.Snapshot().Frozen
}

// ForceFreeze implements freeze.LocalState: sets and persists the local
// frozen flag.
func (s *Server) ForceFreeze(reason string) error {
	_, err := s.store.Update(func(c *config.DaemonConfig) { c.Frozen = true })
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record("freeze", "", "", "frozen", reason, "")
	}
	return nil
}

// SweepApprovals drops expired approval codes; the daemon's background
// loop calls this once a minute.
func (s *Server) SweepApprovals() int {
	return s.approvals.Sweep()
}

// engineFor builds the policy engine view for one request against a
// config snapshot and the current service graph.
func (s *Server) engineFor(cfg config.DaemonConfig) *policy.Engine {
	var quoter policy.Quoter
	if svc := s.services.Load(); svc != nil {
		quoter = svc.Chain
	}
	protocols := s.protocols[cfg.ActiveProfile]
	if protocols == nil {
		protocols = registry.NewProtocolRegistry(nil)
	}
	return &policy.Engine{
		Stablecoins:   s.stablecoins,
		Protocols:     protocols,
		Spending:      s.spending,
		Quoter:        quoter,
		IsFrozen:      func() bool { return cfg.Frozen },
		IsAllowlisted: cfg.IsAllowlisted,
	}
}

type peerUIDKey struct{}

// connContext stashes the unix peer credentials into every connection's
// context so the auth middleware can compare UIDs without re-deriving the
// socket fd.
func connContext(ctx context.Context, c net.Conn) context.Context {
	uc, ok := c.(*net.UnixConn)
	if !ok {
		return ctx
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return ctx
	}
	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil || credErr != nil || cred == nil {
		return ctx
	}
	return context.WithValue(ctx, peerUIDKey{}, cred.Uid)
}

// requirePeerUID rejects any request whose peer UID is absent or differs
// from the daemon's own. Every path except GET /health sits behind it.
func (s *Server) requirePeerUID() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := c.Request.Context().Value(peerUIDKey{}).(uint32)
		if !ok || uid != s.uid {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"reason": "peer credentials rejected"})
			return
		}
		c.Next()
	}
}

// signRateLimit enforces the process-wide 30 requests/minute sign budget.
func (s *Server) signRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.signLimiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"reason": "sign rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)

	// The sign path rate-limits before authenticating, so a flood from
	// the wrong UID still burns the limiter instead of probing peers.
	router.POST("/sign", s.signRateLimit(), s.requirePeerUID(), s.handleSign)

	authed := router.Group("/", s.requirePeerUID())
	{
		authed.GET("/address", s.handleAddress)
		authed.GET("/capabilities", s.handleCapabilities)
		authed.GET("/policy", s.handlePolicy)
		authed.POST("/policy/update", s.handlePolicyUpdate)
		authed.POST("/allowlist", s.handleAllowlist)
		authed.POST("/decode", s.handleDecode)
		authed.POST("/panic", s.handlePanic)
		authed.POST("/unfreeze", s.handleUnfreeze)
		authed.POST("/setup", s.handleSetup)
		authed.POST("/setup/deploy", s.handleSetupDeploy)
		authed.GET("/audit-log", s.handleAuditLog)
	}

	return router
}

// Listen prepares the unix socket: directory 0700, no symlinked socket
// path, stale socket files removed, fresh socket chmod 0600.
func Listen(socketPath string) (net.Listener, error) {
	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, socketDirMode); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	if info, err := os.Lstat(socketPath); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return nil, fmt.Errorf("refusing to replace symlink at socket path %s", socketPath)
		}
		if err := os.Remove(socketPath); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, socketFileMode); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to chmod socket: %w", err)
	}
	return listener, nil
}

// Serve runs the HTTP server over the unix listener until ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:     s.Router(),
		ConnContext: connContext,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️  Socket server shutdown: %v", err)
		}
	}()

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// weiToBig is a tiny readability helper for handlers.
func weiToBig(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
