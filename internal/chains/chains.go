// Package chains is the static registry of networks this daemon can run
// against: RPC endpoint, block explorer, bundler endpoint, and the
// EntryPoint v0.7 deployment per chain id. The active chain is chosen by
// configuration; switching chains rebuilds the chain-dependent service
// graph against a different entry of this table.
package chains

import "fmt"

// EntryPointV07 is the canonical ERC-4337 v0.7 EntryPoint singleton,
// deployed at the same address on every supported chain.
const EntryPointV07 = "0x0000000071727De22E5E9d8BAf0edAc6f37da032"

// ChainConfig represents a blockchain network configuration.
type ChainConfig struct {
	ChainID     uint64 `json:"chainId"`
	Name        string `json:"name"`
	ShortName   string `json:"shortName"`
	Symbol      string `json:"symbol"`
	RpcURL      string `json:"rpcUrl"`
	ExplorerURL string `json:"explorerUrl"`
	BundlerURL  string `json:"bundlerUrl"`
	IsTestnet   bool   `json:"isTestnet"`
}

// SupportedChains contains the networks with an EntryPoint v0.7 deployment
// this daemon targets. Bundler endpoints default to Pimlico's public v2
// API; a custom bundler URL in the daemon config shadows the table entry.
var SupportedChains = map[uint64]ChainConfig{
	1: {
		ChainID:     1,
		Name:        "Ethereum Mainnet",
		ShortName:   "Ethereum",
		Symbol:      "ETH",
		RpcURL:      "https://eth.llamarpc.com",
		ExplorerURL: "https://etherscan.io",
		BundlerURL:  "https://api.pimlico.io/v2/1/rpc",
		IsTestnet:   false,
	},
	8453: {
		ChainID:     8453,
		Name:        "Base",
		ShortName:   "Base",
		Symbol:      "ETH",
		RpcURL:      "https://mainnet.base.org",
		ExplorerURL: "https://basescan.org",
		BundlerURL:  "https://api.pimlico.io/v2/8453/rpc",
		IsTestnet:   false,
	},
	11155111: {
		ChainID:     11155111,
		Name:        "Sepolia Testnet",
		ShortName:   "Sepolia",
		Symbol:      "ETH",
		RpcURL:      "https://ethereum-sepolia-rpc.publicnode.com",
		ExplorerURL: "https://sepolia.etherscan.io",
		BundlerURL:  "https://api.pimlico.io/v2/11155111/rpc",
		IsTestnet:   true,
	},
}

// Lookup returns the configuration for chainID.
func Lookup(chainID uint64) (ChainConfig, bool) {
	c, ok := SupportedChains[chainID]
	return c, ok
}

// ExplorerTxURL builds the block-explorer link for a transaction or
// userOp hash on chainID. Empty string when the chain is unknown.
func ExplorerTxURL(chainID uint64, hash string) string {
	c, ok := SupportedChains[chainID]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", c.ExplorerURL, hash)
}
