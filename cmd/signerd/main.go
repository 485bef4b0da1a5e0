package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"signerd/internal/audit"
	"signerd/internal/chains"
	"signerd/internal/config"
	"signerd/internal/freeze"
	"signerd/internal/oracle"
	"signerd/internal/server"
	"signerd/internal/signer"
)

const version = "1.0.0"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	dir := os.Getenv("SIGNERD_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("❌ Cannot resolve home directory: %v", err)
		}
		dir = filepath.Join(home, ".signerd")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Fatalf("❌ Failed to create daemon directory: %v", err)
	}

	// Initialize the signer
	log.Println("🔐 Initializing hardware signer...")
	hw, err := openSigner(dir)
	if err != nil {
		log.Fatalf("❌ Failed to initialize signer: %v", err)
	}
	log.Println("✓ Signer ready")

	// Load (or create) the signed configuration
	log.Println("📄 Loading configuration...")
	store, err := config.Open(dir, hw, defaultConfig())
	if err != nil {
		log.Fatalf("❌ Failed to open config store: %v", err)
	}
	if store.SafeMode() {
		log.Println("🚨 Config signature verification FAILED — entering safe mode (read-only)")
	} else {
		log.Println("✓ Configuration loaded and verified")
	}

	// Open the audit log
	auditLog, err := audit.Open(filepath.Join(dir, "audit.db"))
	if err != nil {
		log.Fatalf("❌ Failed to open audit log: %v", err)
	}
	log.Println("✓ Audit log ready")

	// Connect to the human-presence oracle if one is configured
	var presence oracle.Oracle
	if sock := os.Getenv("ORACLE_SOCKET"); sock != "" {
		client, err := oracle.Dial(context.Background(), sock)
		if err != nil {
			log.Printf("⚠️  Presence oracle unreachable (%v); admin operations will fail closed", err)
		} else {
			presence = client
			defer client.Close()
			log.Println("✓ Presence oracle connected")
		}
	} else {
		log.Println("⚠️  No ORACLE_SOCKET configured; admin operations will fail closed")
	}

	srv := server.New(version, store, hw, auditLog, presence)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Build the chain-dependent graph if a chain is already configured;
	// otherwise the daemon serves setup endpoints until /setup runs.
	cfg := store.Snapshot()
	if cfg.HomeChainID != 0 {
		chainCfg, ok := chains.Lookup(cfg.HomeChainID)
		if !ok {
			log.Fatalf("❌ Configured chain %d is not supported", cfg.HomeChainID)
		}
		log.Printf("🔌 Connecting to %s...", chainCfg.Name)
		svc, err := server.BuildServices(ctx, cfg)
		if err != nil {
			log.Fatalf("❌ Failed to build chain services: %v", err)
		}
		srv.SwapServices(svc)
		log.Printf("✓ Connected to %s (entry point %s)", chainCfg.Name, svc.EntryPoint.Hex())

		available, err := server.ProbePrecompile(ctx, svc.Chain, hw)
		if err != nil {
			log.Printf("⚠️  P-256 precompile probe failed: %v", err)
		}
		if !store.SafeMode() {
			if _, err := store.Update(func(c *config.DaemonConfig) { c.PrecompileAvailable = available }); err != nil {
				log.Printf("⚠️  Failed to persist precompile flag: %v", err)
			}
		}
		log.Printf("✓ P-256 precompile available: %v", available)

		syncer := &freeze.Syncer{Chain: currentChain{srv}, Local: srv}
		go syncer.Run(ctx)
	} else {
		log.Println("⚠️  No home chain configured yet; run /setup to pick one")
	}

	// Sweep expired approval codes once a minute.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.SweepApprovals()
			}
		}
	}()

	socketPath := filepath.Join(dir, "daemon.sock")
	listener, err := server.Listen(socketPath)
	if err != nil {
		log.Fatalf("❌ Failed to open daemon socket: %v", err)
	}

	fmt.Printf(`
╔═══════════════════════════════════════╗
║   SIGNERD v%-7s                    ║
║   Hardware-backed signing daemon      ║
║                                       ║
║   🔌 Socket: %-24s ║
║   🔐 Signer: P-256 (two-slot)         ║
║   🛡️  Policy: default-deny             ║
╚═══════════════════════════════════════╝
`, version, shorten(socketPath, 24))

	log.Printf("🚀 Daemon listening on %s", socketPath)
	if err := srv.Serve(ctx, listener); err != nil {
		log.Fatalf("❌ Daemon socket server failed: %v", err)
	}
	log.Println("👋 Daemon stopped")
}

// openSigner loads the persisted soft-enclave keystore, creating one on
// first boot. On platforms with real enclave hardware this is where the
// hardware-backed Signer would be constructed instead.
func openSigner(dir string) (signer.Signer, error) {
	secret := []byte(os.Getenv("KEYSTORE_SECRET"))
	if len(secret) == 0 {
		return nil, fmt.Errorf("KEYSTORE_SECRET is required to unlock the keystore")
	}

	path := filepath.Join(dir, "keys.enc")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		enclave, err := signer.NewSoftEnclave()
		if err != nil {
			return nil, err
		}
		if err := enclave.Save(path, secret); err != nil {
			return nil, err
		}
		log.Println("🔑 Generated new routine and admin keys")
		return enclave, nil
	}
	return signer.LoadSoftEnclave(path, secret)
}

func defaultConfig() config.DaemonConfig {
	cfg := config.DaemonConfig{
		ActiveProfile: config.ProfileBalanced,
	}
	if v := os.Getenv("HOME_CHAIN_ID"); v != "" {
		var chainID uint64
		if _, err := fmt.Sscanf(v, "%d", &chainID); err == nil {
			cfg.HomeChainID = chainID
		}
	}
	cfg.FactoryAddress = os.Getenv("FACTORY_ADDRESS")
	cfg.EntryPointAddress = os.Getenv("ENTRY_POINT_ADDRESS")
	cfg.RecoveryAddress = os.Getenv("RECOVERY_ADDRESS")
	cfg.CustomBundlerURL = os.Getenv("BUNDLER_URL")
	return cfg
}

// currentChain resolves the live service graph on every syncer tick, so a
// chain switch mid-run is picked up without restarting the syncer.
type currentChain struct {
	srv *server.Server
}

func (c currentChain) IsDeployed(ctx context.Context, address string) (bool, error) {
	svc := c.srv.CurrentServices()
	if svc == nil {
		return false, fmt.Errorf("no chain services configured")
	}
	return svc.Chain.IsDeployed(ctx, address)
}

func (c currentChain) IsFrozen(ctx context.Context, walletAddress string) (bool, error) {
	svc := c.srv.CurrentServices()
	if svc == nil {
		return false, fmt.Errorf("no chain services configured")
	}
	return svc.Chain.IsFrozen(ctx, walletAddress)
}

func shorten(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return "…" + s[len(s)-width+1:]
}
