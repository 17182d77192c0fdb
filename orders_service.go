package nftexchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mintora/nft-exchange-go/chain"
	"github.com/mintora/nft-exchange-go/store"
)

// BaseOrdersService validates fully-signed order bundles end-to-end and
// persists them: one nonce claim plus one order-created event per accepted
// order.
type BaseOrdersService struct {
	db      *store.DB
	gateway chain.Gateway
	nonces  *NonceService
	log     zerolog.Logger
	now     func() time.Time
}

// NewBaseOrdersService creates a new BaseOrdersService instance
func NewBaseOrdersService(db *store.DB, gateway chain.Gateway, nonces *NonceService, log zerolog.Logger) *BaseOrdersService {
	return &BaseOrdersService{
		db:      db,
		gateway: gateway,
		nonces:  nonces,
		log:     log,
		now:     time.Now,
	}
}

// CreateOrders validates a batch of signed orders sharing one maker and, only
// after every order passes, claims each order's nonce and appends its
// order-created event. Claim and event are committed in one store transaction
// per order, so a replayed nonce never leaves a half-persisted order. Orders
// already committed earlier in the batch stay committed if a later one fails.
func (s *BaseOrdersService) CreateOrders(ctx context.Context, chainID ChainID, rawOrders []*RawOrder) ([]*OrderCreatedEvent, error) {
	if len(rawOrders) == 0 {
		return nil, fmt.Errorf("empty order batch: %w", ErrInvalidOrder)
	}

	maker := strings.ToLower(rawOrders[0].Signer)
	for _, raw := range rawOrders[1:] {
		if strings.ToLower(raw.Signer) != maker {
			return nil, fmt.Errorf("batch mixes makers %s and %s: %w", maker, strings.ToLower(raw.Signer), ErrMixedMakers)
		}
	}

	exchange, err := s.gateway.ExchangeAddress(int64(chainID))
	if err != nil {
		return nil, err
	}
	complication, err := s.gateway.ComplicationAddress(int64(chainID))
	if err != nil {
		return nil, err
	}

	// Validate the whole batch before touching the store, so a rejection is
	// free of side effects.
	orders := make([]*Order, len(rawOrders))
	for i, raw := range rawOrders {
		order, err := s.validateOrder(ctx, chainID, raw, exchange, complication)
		if err != nil {
			return nil, err
		}
		orders[i] = order
	}

	events := make([]*OrderCreatedEvent, 0, len(orders))
	for i, order := range orders {
		event, err := s.persistOrder(chainID, order, rawOrders[i])
		if err != nil {
			s.log.Warn().
				Int64("chainId", int64(chainID)).
				Str("orderId", order.ID()).
				Int("committed", len(events)).
				Err(err).
				Msg("order batch persisted partially")
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

// validateOrder runs the per-order checks in rejection-cost order: structure
// first, then the signature, then the on-chain fillability reads.
func (s *BaseOrdersService) validateOrder(ctx context.Context, chainID ChainID, raw *RawOrder, exchange, complication common.Address) (*Order, error) {
	order, err := DecodeRawOrder(chainID, raw, complication)
	if err != nil {
		return nil, err
	}

	if !order.IsFlatPrice() {
		return nil, fmt.Errorf("order %s has a dynamic price curve: %w", order.ID(), ErrDynamicPricingUnsupported)
	}
	if order.NumItems != 1 {
		return nil, fmt.Errorf("order %s covers %d items: %w", order.ID(), order.NumItems, ErrBundlesUnsupported)
	}
	if order.Kind() == OrderKindComplex {
		return nil, fmt.Errorf("order %s: %w", order.ID(), ErrComplexOrdersUnsupported)
	}

	if raw.Sig == "" {
		return nil, fmt.Errorf("order %s is unsigned: %w", order.ID(), ErrInvalidSignature)
	}
	if err := order.VerifySignature(exchange, raw.Sig); err != nil {
		return nil, err
	}

	if err := s.checkFillability(ctx, order, exchange); err != nil {
		return nil, err
	}
	return order, nil
}

// checkFillability verifies the order can execute on-chain right now. The
// reads are not transactional against the chain; final correctness is
// enforced by the contract at settlement.
func (s *BaseOrdersService) checkFillability(ctx context.Context, order *Order, exchange common.Address) error {
	err := s.readFillability(ctx, order, exchange)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFillable) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrMissingApproval) ||
		errors.Is(err, ErrNotOwner) {
		return err
	}

	// A chain read failed for some other reason; the order still cannot be
	// accepted.
	s.log.Warn().
		Int64("chainId", int64(order.ChainID)).
		Str("orderId", order.ID()).
		Err(err).
		Msg("fillability check failed")
	return fmt.Errorf("fillability check failed for order %s: %w", order.ID(), ErrNotFillable)
}

func (s *BaseOrdersService) readFillability(ctx context.Context, order *Order, exchange common.Address) error {
	if order.IsSellOrder {
		for _, item := range order.Nfts {
			erc721, err := s.gateway.Erc721(int64(order.ChainID), item.Collection)
			if err != nil {
				return err
			}
			approved, err := erc721.IsApprovedForAll(ctx, order.Signer, exchange)
			if err != nil {
				return err
			}
			if !approved {
				return fmt.Errorf("exchange is not approved for %s: %w", item.Collection.Hex(), ErrMissingApproval)
			}
			for _, token := range item.Tokens {
				owner, err := erc721.OwnerOf(ctx, token.TokenID)
				if err != nil {
					return err
				}
				if owner != order.Signer {
					return &NotOwnerError{
						Collection: item.Collection,
						TokenID:    token.TokenID,
						Owner:      owner,
						Signer:     order.Signer,
					}
				}
			}
		}
		return nil
	}

	if order.Currency == (common.Address{}) {
		return fmt.Errorf("buy order uses the zero-address currency: %w", ErrNotFillable)
	}
	erc20, err := s.gateway.Erc20(int64(order.ChainID), order.Currency)
	if err != nil {
		return err
	}
	price := order.MatchingPrice(s.now().Unix())

	allowance, err := erc20.Allowance(ctx, order.Signer, exchange)
	if err != nil {
		return err
	}
	if allowance.Cmp(price) < 0 {
		return fmt.Errorf("allowance %s is below price %s: %w", allowance, price, ErrMissingApproval)
	}

	balance, err := erc20.BalanceOf(ctx, order.Signer)
	if err != nil {
		return err
	}
	if balance.Cmp(price) < 0 {
		return fmt.Errorf("balance %s is below price %s: %w", balance, price, ErrInsufficientBalance)
	}
	return nil
}

// persistOrder claims the order's nonce and writes the order document plus
// its created event in one transaction.
func (s *BaseOrdersService) persistOrder(chainID ChainID, order *Order, raw *RawOrder) (*OrderCreatedEvent, error) {
	orderID := order.ID()
	nowMs := s.now().UnixMilli()

	record := OrderRecord{
		ID:          orderID,
		ChainID:     chainID,
		IsSellOrder: order.IsSellOrder,
		Source:      OrderSourceNative,
		RawOrder:    raw,
		GasUsage:    "0",
		IsDynamic:   false,
	}
	event := &OrderCreatedEvent{
		Metadata: EventMetadata{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			ChainID:     chainID,
			IsSellOrder: order.IsSellOrder,
			Processed:   false,
			EventKind:   EventKindCreated,
			Timestamp:   nowMs,
			UpdatedAt:   nowMs,
		},
		Data: OrderCreatedData{
			Status: OrderStatusActive,
			Order:  record,
		},
	}

	recordDoc, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	eventDoc, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	user := strings.ToLower(order.Signer.Hex())
	err = s.db.Update(func(tx *store.Tx) error {
		if _, err := s.nonces.claimInTx(tx, chainID, user, order.Nonce); err != nil {
			return err
		}
		if err := tx.Set(store.OrderKey(orderID), recordDoc); err != nil {
			return err
		}
		return tx.Set(store.EventKey(int64(chainID), nowMs, orderID), eventDoc)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("chainId", int64(chainID)).
		Str("orderId", orderID).
		Bool("isSellOrder", order.IsSellOrder).
		Str("nonce", order.Nonce.String()).
		Msg("order created")
	return event, nil
}
