// Package freeze mirrors the wallet's on-chain frozen() state into the
// local configuration, one-way: on-chain frozen forces the local flag on,
// and nothing here ever clears it. Unfreezing is an explicit, oracle-gated
// admin operation handled by the router.
package freeze

import (
	"context"
	"log"
	"time"
)

const syncInterval = 60 * time.Second

// ChainState is the on-chain view the syncer reads. Satisfied by
// *chainclient.Client.
type ChainState interface {
	IsDeployed(ctx context.Context, address string) (bool, error)
	IsFrozen(ctx context.Context, walletAddress string) (bool, error)
}

// LocalState is the syncer's handle on the persisted frozen flag.
// Satisfied by the server's config wrapper.
type LocalState interface {
	WalletAddress() string
	LocalFrozen() bool
	ForceFreeze(reason string) error
}

// Syncer polls the chain and forces the local flag when they disagree.
type Syncer struct {
	Chain ChainState
	Local LocalState
}

// SyncOnce performs one comparison. RPC errors log and skip — an
// unreachable chain never flips local state in either direction. A wallet
// that isn't deployed yet has no frozen() to read.
func (s *Syncer) SyncOnce(ctx context.Context) {
	wallet := s.Local.WalletAddress()
	if wallet == "" {
		return
	}

	deployed, err := s.Chain.IsDeployed(ctx, wallet)
	if err != nil {
		log.Printf("⚠️  Freeze sync: eth_getCode failed: %v", err)
		return
	}
	if !deployed {
		return
	}

	onChain, err := s.Chain.IsFrozen(ctx, wallet)
	if err != nil {
		log.Printf("⚠️  Freeze sync: frozen() read failed: %v", err)
		return
	}

	if onChain && !s.Local.LocalFrozen() {
		log.Printf("🧊 Wallet is frozen on-chain; forcing local freeze")
		if err := s.Local.ForceFreeze("on-chain frozen() is true"); err != nil {
			log.Printf("❌ Failed to persist forced freeze: %v", err)
		}
	}
}

// Run syncs immediately, then every 60 seconds until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	s.SyncOnce(ctx)

	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncOnce(ctx)
		}
	}
}
