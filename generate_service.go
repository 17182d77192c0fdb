package nftexchange

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/mintora/nft-exchange-go/chain"
)

// MatchWindow is how long an instant-fill order stays valid. The opposing
// order's own window is deliberately not reused: the taker signs for the
// current price, not for a window in which the book can move.
const MatchWindow = 5 * time.Minute

// DefaultBidMaxGasPrice is the default gas-price ceiling on buy-side orders.
// The buyer pays execution gas; listings default to zero.
var DefaultBidMaxGasPrice = big.NewInt(50_000_000_000) // 50 gwei

// GenerateOrderService builds signable orders for the four request kinds and
// computes the checklist of side effects the wallet has to complete. It
// persists nothing; the only store access is the read-only nonce suggestion
// and the opposing-order fetch.
type GenerateOrderService struct {
	gateway chain.Gateway
	nonces  *NonceService
	orders  *ProtocolOrdersService
	log     zerolog.Logger
	now     func() time.Time
}

// NewGenerateOrderService creates a new GenerateOrderService instance
func NewGenerateOrderService(gateway chain.Gateway, nonces *NonceService, orders *ProtocolOrdersService, log zerolog.Logger) *GenerateOrderService {
	return &GenerateOrderService{
		gateway: gateway,
		nonces:  nonces,
		orders:  orders,
		log:     log,
		now:     time.Now,
	}
}

// GenerateOrder dispatches on the request kind.
func (s *GenerateOrderService) GenerateOrder(ctx context.Context, req *GenerateOrderRequest) (*GenerateOrderResult, error) {
	switch req.Kind {
	case GenerateOrderKindList:
		return s.generateMakerOrder(ctx, req, true)
	case GenerateOrderKindBid:
		return s.generateMakerOrder(ctx, req, false)
	case GenerateOrderKindBuy:
		return s.generateMatchOrder(ctx, req, false)
	case GenerateOrderKindSell:
		return s.generateMatchOrder(ctx, req, true)
	default:
		return nil, fmt.Errorf("unknown request kind %q: %w", req.Kind, ErrInvalidOrderKind)
	}
}

// generateMakerOrder builds a List (sell-side) or Bid (buy-side) order
// directly from the caller's parameters.
func (s *GenerateOrderService) generateMakerOrder(ctx context.Context, req *GenerateOrderRequest, isSellOrder bool) (*GenerateOrderResult, error) {
	complication, err := s.gateway.ComplicationAddress(int64(req.ChainID))
	if err != nil {
		return nil, err
	}

	startPrice, err := ParseWei("startPriceWei", req.StartPriceWei)
	if err != nil {
		return nil, err
	}
	endPrice := startPrice
	if req.EndPriceWei != "" {
		endPrice, err = ParseWei("endPriceWei", req.EndPriceWei)
		if err != nil {
			return nil, err
		}
	}

	nonce, err := s.resolveNonce(ctx, req)
	if err != nil {
		return nil, err
	}
	maxGasPrice, err := s.resolveMaxGasPrice(req, isSellOrder)
	if err != nil {
		return nil, err
	}
	nfts, err := parseOrderItems(req.Nfts)
	if err != nil {
		return nil, err
	}

	order, err := NewOrder(OrderInput{
		ChainID:      req.ChainID,
		Signer:       common.HexToAddress(req.Maker),
		IsSellOrder:  isSellOrder,
		NumItems:     req.NumItems,
		StartPrice:   startPrice,
		EndPrice:     endPrice,
		StartTime:    req.StartTimeMs / 1000,
		EndTime:      req.EndTimeMs / 1000,
		Nonce:        nonce,
		MaxGasPrice:  maxGasPrice,
		Nfts:         nfts,
		Currency:     common.HexToAddress(req.Currency),
		Complication: complication,
	})
	if err != nil {
		return nil, err
	}

	return s.buildChecklist(ctx, order)
}

// generateMatchOrder builds the order that instantly fills a stored opposing
// order: Buy accepts a stored ask, Sell accepts a stored bid. The new order
// takes the opposite side, the caller as signer, and a short expiry at the
// opposing order's current matching price.
func (s *GenerateOrderService) generateMatchOrder(ctx context.Context, req *GenerateOrderRequest, takerSells bool) (*GenerateOrderResult, error) {
	complication, err := s.gateway.ComplicationAddress(int64(req.ChainID))
	if err != nil {
		return nil, err
	}

	raw, err := s.orders.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("opposing order %s: %w", req.OrderID, ErrOrderNotFound)
	}

	opposing, err := DecodeRawOrder(req.ChainID, raw, complication)
	if err != nil {
		return nil, err
	}
	if opposing.IsSellOrder == takerSells {
		return nil, fmt.Errorf("opposing order %s is on the same side as the request: %w", req.OrderID, ErrInvalidOrder)
	}
	if !opposing.IsFlatPrice() {
		return nil, fmt.Errorf("opposing order %s has a dynamic price curve: %w", req.OrderID, ErrDynamicPricingUnsupported)
	}

	now := s.now().Unix()
	price := opposing.MatchingPrice(now)

	if takerSells && req.MinPriceWei != "" {
		minPrice, err := ParseWei("minPriceWei", req.MinPriceWei)
		if err != nil {
			return nil, err
		}
		if price.Cmp(minPrice) < 0 {
			return nil, &PriceOutOfRangeError{OrderID: req.OrderID, Price: price, Bound: minPrice, IsUpper: false}
		}
	}
	if !takerSells && req.MaxPriceWei != "" {
		maxPrice, err := ParseWei("maxPriceWei", req.MaxPriceWei)
		if err != nil {
			return nil, err
		}
		if price.Cmp(maxPrice) > 0 {
			return nil, &PriceOutOfRangeError{OrderID: req.OrderID, Price: price, Bound: maxPrice, IsUpper: true}
		}
	}

	var nfts []OrderItem
	switch opposing.Kind() {
	case OrderKindSingleToken:
		nfts = opposing.Nfts
	case OrderKindContractWide:
		if len(req.Nfts) == 0 {
			return nil, fmt.Errorf("opposing order %s is contract-wide: %w", req.OrderID, ErrNftsRequired)
		}
		nfts, err = parseOrderItems(req.Nfts)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("opposing order %s has kind %s: %w", req.OrderID, opposing.Kind(), ErrInvalidOrderKind)
	}

	nonce, err := s.resolveNonce(ctx, req)
	if err != nil {
		return nil, err
	}
	maxGasPrice, err := s.resolveMaxGasPrice(req, takerSells)
	if err != nil {
		return nil, err
	}

	order, err := NewOrder(OrderInput{
		ChainID:      req.ChainID,
		Signer:       common.HexToAddress(req.Maker),
		IsSellOrder:  takerSells,
		NumItems:     opposing.NumItems,
		StartPrice:   price,
		EndPrice:     price,
		StartTime:    now,
		EndTime:      now + int64(MatchWindow/time.Second),
		Nonce:        nonce,
		MaxGasPrice:  maxGasPrice,
		Nfts:         nfts,
		Currency:     opposing.Currency,
		Complication: complication,
	})
	if err != nil {
		return nil, err
	}

	return s.buildChecklist(ctx, order)
}

// resolveNonce uses the caller-supplied nonce when present, otherwise asks the
// ledger for the next assignable one.
func (s *GenerateOrderService) resolveNonce(ctx context.Context, req *GenerateOrderRequest) (*big.Int, error) {
	if req.Nonce != "" {
		return ParseWei("nonce", req.Nonce)
	}
	return s.nonces.Next(ctx, req.ChainID, req.Maker)
}

func (s *GenerateOrderService) resolveMaxGasPrice(req *GenerateOrderRequest, isSellOrder bool) (*big.Int, error) {
	if req.MaxGasPriceWei != "" {
		return ParseWei("maxGasPriceWei", req.MaxGasPriceWei)
	}
	if isSellOrder {
		return big.NewInt(0), nil
	}
	return DefaultBidMaxGasPrice, nil
}

// parseOrderItems converts caller-supplied wire items into model items.
func parseOrderItems(raw []RawOrderItem) ([]OrderItem, error) {
	items := make([]OrderItem, len(raw))
	for i, item := range raw {
		tokens := make([]TokenInfo, len(item.Tokens))
		for j, token := range item.Tokens {
			tokenID, ok := new(big.Int).SetString(token.TokenID, 10)
			if !ok {
				return nil, fmt.Errorf("tokenId %q is not an integer: %w", token.TokenID, ErrInvalidOrder)
			}
			numTokens := token.NumTokens
			if numTokens == 0 {
				numTokens = 1
			}
			tokens[j] = TokenInfo{TokenID: tokenID, NumTokens: numTokens}
		}
		items[i] = OrderItem{
			Collection: common.HexToAddress(item.Collection),
			Tokens:     tokens,
		}
	}
	return items, nil
}

// buildChecklist computes what the signer still has to do before the order is
// executable. Chain reads only; nothing is persisted.
func (s *GenerateOrderService) buildChecklist(ctx context.Context, order *Order) (*GenerateOrderResult, error) {
	exchange, err := s.gateway.ExchangeAddress(int64(order.ChainID))
	if err != nil {
		return nil, err
	}

	result := &GenerateOrderResult{
		Order:             order,
		NftApprovals:      []ChecklistItem{},
		CurrencyApprovals: []ChecklistItem{},
		CurrencyDeposits:  []ChecklistItem{},
	}

	if order.IsSellOrder {
		if err := s.buildNftChecklist(ctx, order, exchange, result); err != nil {
			return nil, err
		}
	} else {
		if err := s.buildCurrencyChecklist(ctx, order, exchange, result); err != nil {
			return nil, err
		}
	}

	// Generation never has a signature yet.
	result.SignatureRequests = append(result.SignatureRequests, SignatureRequest{
		Status:    ChecklistStatusIncomplete,
		TypedData: order.SignatureData(exchange),
	})
	return result, nil
}

// buildNftChecklist checks per-collection exchange approval and per-token
// ownership for a sell-side order. A missing approval is a waitable checklist
// item; an unowned token is a hard failure, since waiting cannot fix it.
func (s *GenerateOrderService) buildNftChecklist(ctx context.Context, order *Order, exchange common.Address, result *GenerateOrderResult) error {
	for _, item := range order.Nfts {
		erc721, err := s.gateway.Erc721(int64(order.ChainID), item.Collection)
		if err != nil {
			return err
		}

		approved, err := erc721.IsApprovedForAll(ctx, order.Signer, exchange)
		if err != nil {
			return fmt.Errorf("failed to check approval for %s: %w", item.Collection.Hex(), err)
		}
		if approved {
			result.NftApprovals = append(result.NftApprovals, ChecklistItem{
				Kind:    ChecklistKindTokenApproval,
				Status:  ChecklistStatusComplete,
				Message: fmt.Sprintf("exchange is approved for %s", item.Collection.Hex()),
			})
		} else {
			tx, err := erc721.SetApprovalForAllTransaction(order.Signer, exchange)
			if err != nil {
				return err
			}
			result.NftApprovals = append(result.NftApprovals, ChecklistItem{
				Kind:    ChecklistKindTokenApproval,
				Status:  ChecklistStatusIncomplete,
				Message: fmt.Sprintf("approve the exchange for %s", item.Collection.Hex()),
				Tx:      tx,
			})
		}

		for _, token := range item.Tokens {
			owner, err := erc721.OwnerOf(ctx, token.TokenID)
			if err != nil {
				return fmt.Errorf("failed to read owner of token %s: %w", token.TokenID, err)
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

// buildCurrencyChecklist checks the currency allowance and balance for a
// buy-side order against the highest price the curve can reach.
func (s *GenerateOrderService) buildCurrencyChecklist(ctx context.Context, order *Order, exchange common.Address, result *GenerateOrderResult) error {
	erc20, err := s.gateway.Erc20(int64(order.ChainID), order.Currency)
	if err != nil {
		return err
	}
	required := bigMax(order.StartPrice, order.EndPrice)

	allowance, err := erc20.Allowance(ctx, order.Signer, exchange)
	if err != nil {
		return fmt.Errorf("failed to read allowance: %w", err)
	}
	if allowance.Cmp(required) >= 0 {
		result.CurrencyApprovals = append(result.CurrencyApprovals, ChecklistItem{
			Kind:    ChecklistKindCurrencyAllowance,
			Status:  ChecklistStatusComplete,
			Message: "currency allowance covers the order price",
		})
	} else {
		tx, err := erc20.ApproveTransaction(order.Signer, exchange, required)
		if err != nil {
			return err
		}
		result.CurrencyApprovals = append(result.CurrencyApprovals, ChecklistItem{
			Kind:    ChecklistKindCurrencyAllowance,
			Status:  ChecklistStatusIncomplete,
			Message: fmt.Sprintf("approve the exchange to spend %s", required),
			Tx:      tx,
		})
	}

	balance, err := erc20.BalanceOf(ctx, order.Signer)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	if balance.Cmp(required) < 0 {
		shortfall := new(big.Int).Sub(required, balance)
		// No transaction builder here: how funds arrive is the wallet's business.
		result.CurrencyDeposits = append(result.CurrencyDeposits, ChecklistItem{
			Kind:    ChecklistKindCurrencyDeposit,
			Status:  ChecklistStatusIncomplete,
			Message: fmt.Sprintf("deposit %s more of %s", shortfall, order.Currency.Hex()),
		})
	}
	return nil
}
