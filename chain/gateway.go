package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	// ErrUnsupportedChain is returned for chain ids with no configured provider
	ErrUnsupportedChain = errors.New("unsupported chain")
)

// Provider is a read-only blockchain connection.
type Provider interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Erc20 exposes the read and approval-building surface of an ERC-20 token.
type Erc20 interface {
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	ApproveTransaction(owner, spender common.Address, amount *big.Int) (*TxRequest, error)
}

// Erc721 exposes the read and approval-building surface of an ERC-721 collection.
type Erc721 interface {
	IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
	SetApprovalForAllTransaction(owner, operator common.Address) (*TxRequest, error)
}

// Gateway is the read-only view of every chain the exchange operates on:
// per-chain providers, token contract wrappers and the exchange/complication
// contract registry.
type Gateway interface {
	Erc20(chainID int64, token common.Address) (Erc20, error)
	Erc721(chainID int64, collection common.Address) (Erc721, error)
	ExchangeAddress(chainID int64) (common.Address, error)
	ComplicationAddress(chainID int64) (common.Address, error)
}

// Contracts holds the exchange module addresses for one chain.
type Contracts struct {
	Exchange     common.Address
	Complication common.Address
}

// EthGateway is the ethclient-backed Gateway implementation.
type EthGateway struct {
	providers map[int64]Provider
	contracts map[int64]Contracts
	clients   []*ethclient.Client
}

// NewEthGateway dials one RPC endpoint per chain id and wires it to that
// chain's contract registry. Chains present in one map but not the other are
// rejected up front rather than at first use.
func NewEthGateway(rpcURLs map[int64]string, contracts map[int64]Contracts) (*EthGateway, error) {
	gw := &EthGateway{
		providers: make(map[int64]Provider, len(rpcURLs)),
		contracts: make(map[int64]Contracts, len(rpcURLs)),
	}
	for chainID, url := range rpcURLs {
		if _, ok := contracts[chainID]; !ok {
			return nil, fmt.Errorf("no contract addresses for chain %d: %w", chainID, ErrUnsupportedChain)
		}
		client, err := ethclient.Dial(url)
		if err != nil {
			gw.Close()
			return nil, fmt.Errorf("failed to connect to RPC for chain %d: %w", chainID, err)
		}
		gw.clients = append(gw.clients, client)
		gw.providers[chainID] = client
		gw.contracts[chainID] = contracts[chainID]
	}
	return gw, nil
}

// NewGatewayWithProviders builds a gateway over caller-supplied providers.
func NewGatewayWithProviders(providers map[int64]Provider, contracts map[int64]Contracts) *EthGateway {
	return &EthGateway{providers: providers, contracts: contracts}
}

// Erc20 returns a token wrapper bound to the chain's provider.
func (g *EthGateway) Erc20(chainID int64, token common.Address) (Erc20, error) {
	provider, ok := g.providers[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %d: %w", chainID, ErrUnsupportedChain)
	}
	return NewERC20Contract(provider, token), nil
}

// Erc721 returns a collection wrapper bound to the chain's provider.
func (g *EthGateway) Erc721(chainID int64, collection common.Address) (Erc721, error) {
	provider, ok := g.providers[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %d: %w", chainID, ErrUnsupportedChain)
	}
	return NewERC721Contract(provider, collection), nil
}

// ExchangeAddress returns the exchange contract address for a chain.
func (g *EthGateway) ExchangeAddress(chainID int64) (common.Address, error) {
	contracts, ok := g.contracts[chainID]
	if !ok {
		return common.Address{}, fmt.Errorf("chain %d: %w", chainID, ErrUnsupportedChain)
	}
	return contracts.Exchange, nil
}

// ComplicationAddress returns the order-matching module address for a chain.
func (g *EthGateway) ComplicationAddress(chainID int64) (common.Address, error) {
	contracts, ok := g.contracts[chainID]
	if !ok {
		return common.Address{}, fmt.Errorf("chain %d: %w", chainID, ErrUnsupportedChain)
	}
	return contracts.Complication, nil
}

// Close closes every dialed RPC connection.
func (g *EthGateway) Close() {
	for _, client := range g.clients {
		client.Close()
	}
	g.clients = nil
}
