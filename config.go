package nftexchange

import (
	"github.com/rs/zerolog"
)

// ChainID represents a blockchain chain ID
type ChainID int64

const (
	ChainIDEthereum ChainID = 1   // Ethereum mainnet
	ChainIDPolygon  ChainID = 137 // Polygon PoS mainnet
	ChainIDGoerli   ChainID = 5   // Goerli testnet
)

// SupportedChainIDs lists all supported chain IDs
var SupportedChainIDs = []ChainID{ChainIDEthereum, ChainIDPolygon, ChainIDGoerli}

// ContractAddresses holds the exchange module addresses for one chain. The
// complication is the contract defining the matching rules; orders that
// reference any other complication are rejected.
type ContractAddresses struct {
	Exchange      string
	Complication  string
	WrappedNative string
}

// DefaultContractAddresses maps chain IDs to their deployed contract addresses
var DefaultContractAddresses = map[ChainID]ContractAddresses{
	ChainIDEthereum: {
		Exchange:      "0xbADa5555fe632acE2C90Fee8C060703369c25f1c",
		Complication:  "0x3A23F943181408EAC424116Af7b7790c94Cb97a5",
		WrappedNative: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
	},
	ChainIDPolygon: {
		Exchange:      "0x5c8fE2a2305E06E4f3E2b06c2a9bE8C0B2Ed1a02",
		Complication:  "0xd7C8349d8A5C61a96a1e3d54c1FDe1a57bE4b6a9",
		WrappedNative: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270",
	},
	ChainIDGoerli: {
		Exchange:      "0xF1000142679A6a57abd2859d18f8002216B0Ac2b",
		Complication:  "0x31C2b14E68d1F552b6bD37E4d945B53a9f9eB2D3",
		WrappedNative: "0xB4FBF271143F4FBf7B91A5ded31805e42b2208d6",
	},
}

// Config holds configuration for creating an Exchange
type Config struct {
	// RPCURLs maps each supported chain to its read-only RPC endpoint.
	RPCURLs map[ChainID]string

	// DataDir is the order-store directory. Empty means in-memory, which is
	// only useful for tests and examples.
	DataDir string

	// Contracts overrides DefaultContractAddresses per chain; chains present
	// in RPCURLs but absent here use the defaults.
	Contracts map[ChainID]ContractAddresses

	// Logger receives structured service logs. The zero value discards them.
	Logger zerolog.Logger
}

// contractsFor resolves the effective contract addresses for a chain.
func (c Config) contractsFor(chainID ChainID) (ContractAddresses, bool) {
	if contracts, ok := c.Contracts[chainID]; ok {
		return contracts, true
	}
	contracts, ok := DefaultContractAddresses[chainID]
	return contracts, ok
}
