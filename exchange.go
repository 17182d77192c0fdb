// Package nftexchange is the order-construction and matching core of a
// peer-to-peer NFT exchange: it builds cryptographically signable orders,
// validates that they can be filled on-chain, assigns replay-protected
// nonces, and records immutable order-created events.
package nftexchange

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintora/nft-exchange-go/chain"
	"github.com/mintora/nft-exchange-go/store"
)

// Exchange wires the order store, the chain gateway and the services
// together. It is the embedding application's entry point; the services
// remain usable individually.
type Exchange struct {
	db      *store.DB
	gateway *chain.EthGateway

	Nonces    *NonceService
	Generator *GenerateOrderService
	Protocol  *ProtocolOrdersService
	Orders    *BaseOrdersService
}

// NewExchange creates a new Exchange from config.
func NewExchange(config Config) (*Exchange, error) {
	if len(config.RPCURLs) == 0 {
		return nil, fmt.Errorf("at least one chain RPC endpoint is required: %w", ErrInvalidOrder)
	}

	rpcURLs := make(map[int64]string, len(config.RPCURLs))
	contracts := make(map[int64]chain.Contracts, len(config.RPCURLs))
	for chainID, url := range config.RPCURLs {
		addresses, ok := config.contractsFor(chainID)
		if !ok {
			return nil, fmt.Errorf("chain_id must be one of %v, got %d: %w", SupportedChainIDs, chainID, chain.ErrUnsupportedChain)
		}
		rpcURLs[int64(chainID)] = url
		contracts[int64(chainID)] = chain.Contracts{
			Exchange:     common.HexToAddress(addresses.Exchange),
			Complication: common.HexToAddress(addresses.Complication),
		}
	}

	gateway, err := chain.NewEthGateway(rpcURLs, contracts)
	if err != nil {
		return nil, fmt.Errorf("failed to create chain gateway: %w", err)
	}

	var db *store.DB
	if config.DataDir == "" {
		db, err = store.OpenMem()
	} else {
		db, err = store.Open(config.DataDir)
	}
	if err != nil {
		gateway.Close()
		return nil, err
	}

	log := config.Logger
	nonces := NewNonceService(db, gateway, log)
	protocol := NewProtocolOrdersService(db, log)

	return &Exchange{
		db:        db,
		gateway:   gateway,
		Nonces:    nonces,
		Protocol:  protocol,
		Generator: NewGenerateOrderService(gateway, nonces, protocol, log),
		Orders:    NewBaseOrdersService(db, gateway, nonces, log),
	}, nil
}

// Close closes the store and every RPC connection.
func (e *Exchange) Close() error {
	e.gateway.Close()
	return e.db.Close()
}

// GenerateOrder builds a signable order plus its side-effect checklist.
func (e *Exchange) GenerateOrder(ctx context.Context, req *GenerateOrderRequest) (*GenerateOrderResult, error) {
	return e.Generator.GenerateOrder(ctx, req)
}

// CreateOrders validates and persists a batch of signed orders.
func (e *Exchange) CreateOrders(ctx context.Context, chainID ChainID, orders []*RawOrder) ([]*OrderCreatedEvent, error) {
	return e.Orders.CreateOrders(ctx, chainID, orders)
}

// GetOrderByID returns a stored raw order, or nil when not found.
func (e *Exchange) GetOrderByID(ctx context.Context, orderID string) (*RawOrder, error) {
	return e.Protocol.GetOrderByID(ctx, orderID)
}

// GetBulkOrders pages through the order-event log.
func (e *Exchange) GetBulkOrders(ctx context.Context, query BulkOrderQuery) (*BulkOrdersResult, error) {
	return e.Protocol.GetBulkOrders(ctx, query)
}

// NextNonce suggests the next claimable nonce for a user.
func (e *Exchange) NextNonce(ctx context.Context, chainID ChainID, user string) (*big.Int, error) {
	return e.Nonces.Next(ctx, chainID, user)
}
