package nftexchange

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// OrderKind classifies what an order's item list targets.
type OrderKind int

const (
	// OrderKindSingleToken orders name exactly one token of one collection.
	OrderKindSingleToken OrderKind = iota
	// OrderKindContractWide orders float over any token of one collection.
	OrderKindContractWide
	// OrderKindComplex orders span multiple collections or tokens. They are
	// rejected by the matching and submission paths.
	OrderKindComplex
)

func (k OrderKind) String() string {
	switch k {
	case OrderKindSingleToken:
		return "single-token"
	case OrderKindContractWide:
		return "contract-wide"
	default:
		return "complex"
	}
}

// TokenInfo names one token id and how many editions of it the order covers.
// NumTokens is 1 for ERC-721; larger values only occur for semi-fungible
// collections.
type TokenInfo struct {
	TokenID   *big.Int
	NumTokens int64
}

// OrderItem names one collection and the tokens of it the order covers. An
// empty token list makes the entry contract-wide.
type OrderItem struct {
	Collection common.Address
	Tokens     []TokenInfo
}

// OrderInput carries the explicit fields an Order is constructed from.
type OrderInput struct {
	ChainID      ChainID
	Signer       common.Address
	IsSellOrder  bool
	NumItems     int64
	StartPrice   *big.Int
	EndPrice     *big.Int
	StartTime    int64
	EndTime      int64
	Nonce        *big.Int
	MaxGasPrice  *big.Int
	Nfts         []OrderItem
	Currency     common.Address
	Complication common.Address
	ExtraParams  []byte
}

// Order is a price/time-bounded, signable exchange order. It is a value: no
// method mutates it after NewOrder returns.
type Order struct {
	ChainID      ChainID
	Signer       common.Address
	IsSellOrder  bool
	NumItems     int64
	StartPrice   *big.Int
	EndPrice     *big.Int
	StartTime    int64
	EndTime      int64
	Nonce        *big.Int
	MaxGasPrice  *big.Int
	Nfts         []OrderItem
	Currency     common.Address
	Complication common.Address
	ExtraParams  []byte
}

// NewOrder validates the input and constructs an Order.
func NewOrder(in OrderInput) (*Order, error) {
	if in.NumItems < 1 {
		return nil, fmt.Errorf("numItems must be at least 1: %w", ErrInvalidOrder)
	}
	if in.StartPrice == nil || in.StartPrice.Sign() < 0 {
		return nil, fmt.Errorf("startPrice must be a non-negative integer: %w", ErrInvalidOrder)
	}
	if in.EndPrice == nil || in.EndPrice.Sign() < 0 {
		return nil, fmt.Errorf("endPrice must be a non-negative integer: %w", ErrInvalidOrder)
	}
	if in.StartTime >= in.EndTime {
		return nil, fmt.Errorf("startTime %d must precede endTime %d: %w", in.StartTime, in.EndTime, ErrInvalidOrder)
	}
	if in.Nonce == nil || in.Nonce.Sign() < 0 {
		return nil, fmt.Errorf("nonce must be a non-negative integer: %w", ErrInvalidOrder)
	}
	if !in.IsSellOrder && in.Currency == (common.Address{}) {
		return nil, fmt.Errorf("buy orders cannot use the zero-address currency: %w", ErrInvalidOrder)
	}
	for _, item := range in.Nfts {
		for _, token := range item.Tokens {
			if token.TokenID == nil || token.TokenID.Sign() < 0 {
				return nil, fmt.Errorf("tokenId must be a non-negative integer: %w", ErrInvalidOrder)
			}
			if token.NumTokens < 1 {
				return nil, fmt.Errorf("numTokens must be at least 1: %w", ErrInvalidOrder)
			}
		}
	}

	maxGasPrice := in.MaxGasPrice
	if maxGasPrice == nil {
		maxGasPrice = big.NewInt(0)
	}

	return &Order{
		ChainID:      in.ChainID,
		Signer:       in.Signer,
		IsSellOrder:  in.IsSellOrder,
		NumItems:     in.NumItems,
		StartPrice:   new(big.Int).Set(in.StartPrice),
		EndPrice:     new(big.Int).Set(in.EndPrice),
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		Nonce:        new(big.Int).Set(in.Nonce),
		MaxGasPrice:  new(big.Int).Set(maxGasPrice),
		Nfts:         in.Nfts,
		Currency:     in.Currency,
		Complication: in.Complication,
		ExtraParams:  in.ExtraParams,
	}, nil
}

// Kind classifies the order's item list.
func (o *Order) Kind() OrderKind {
	if len(o.Nfts) != 1 {
		return OrderKindComplex
	}
	switch len(o.Nfts[0].Tokens) {
	case 0:
		return OrderKindContractWide
	case 1:
		if o.Nfts[0].Tokens[0].NumTokens == 1 {
			return OrderKindSingleToken
		}
		return OrderKindComplex
	default:
		return OrderKindComplex
	}
}

// IsFlatPrice reports whether the order has no price decay.
func (o *Order) IsFlatPrice() bool {
	return o.StartPrice.Cmp(o.EndPrice) == 0
}

// MatchingPrice returns the order's price at nowSeconds: the linear
// interpolation between (startTime, startPrice) and (endTime, endPrice),
// clamped to the order's time window. The instant-fill matching path only
// accepts flat orders; this interpolation serves read and display paths.
func (o *Order) MatchingPrice(nowSeconds int64) *big.Int {
	if o.IsFlatPrice() || nowSeconds <= o.StartTime {
		return new(big.Int).Set(o.StartPrice)
	}
	if nowSeconds >= o.EndTime {
		return new(big.Int).Set(o.EndPrice)
	}

	elapsed := big.NewInt(nowSeconds - o.StartTime)
	duration := big.NewInt(o.EndTime - o.StartTime)
	delta := new(big.Int).Sub(o.EndPrice, o.StartPrice)
	delta.Mul(delta, elapsed)
	delta.Quo(delta, duration)
	return delta.Add(delta, o.StartPrice)
}

// constraints returns the canonical constraint vector of the on-chain order
// struct: [numItems, startPrice, endPrice, startTime, endTime, nonce,
// maxGasPrice].
func (o *Order) constraints() []*big.Int {
	return []*big.Int{
		big.NewInt(o.NumItems),
		o.StartPrice,
		o.EndPrice,
		big.NewInt(o.StartTime),
		big.NewInt(o.EndTime),
		o.Nonce,
		o.MaxGasPrice,
	}
}

// execParams returns the canonical execution-parameter vector:
// [complication, currency].
func (o *Order) execParams() []common.Address {
	return []common.Address{o.Complication, o.Currency}
}

// ID returns the order's external id: the lower-cased hex of its content hash.
func (o *Order) ID() string {
	return strings.ToLower(o.Hash().Hex())
}

// EncodeRaw converts the order to its wire/storage form, with addresses
// lower-cased and integers as decimal strings.
func (o *Order) EncodeRaw(sig string) *RawOrder {
	constraints := o.constraints()
	rawConstraints := make([]string, len(constraints))
	for i, c := range constraints {
		rawConstraints[i] = c.String()
	}

	rawNfts := make([]RawOrderItem, len(o.Nfts))
	for i, item := range o.Nfts {
		tokens := make([]RawTokenInfo, len(item.Tokens))
		for j, token := range item.Tokens {
			tokens[j] = RawTokenInfo{
				TokenID:   token.TokenID.String(),
				NumTokens: token.NumTokens,
			}
		}
		rawNfts[i] = RawOrderItem{
			Collection: strings.ToLower(item.Collection.Hex()),
			Tokens:     tokens,
		}
	}

	extraParams := "0x"
	if len(o.ExtraParams) > 0 {
		extraParams = hexutil.Encode(o.ExtraParams)
	}

	return &RawOrder{
		IsSellOrder: o.IsSellOrder,
		Signer:      strings.ToLower(o.Signer.Hex()),
		Constraints: rawConstraints,
		Nfts:        rawNfts,
		ExecParams: []string{
			strings.ToLower(o.Complication.Hex()),
			strings.ToLower(o.Currency.Hex()),
		},
		ExtraParams: extraParams,
		Sig:         sig,
	}
}

// DecodeRawOrder validates a counterparty's stored raw order and reconstructs
// the Order. Orders referencing any complication other than the chain's
// canonical one are rejected.
func DecodeRawOrder(chainID ChainID, raw *RawOrder, complication common.Address) (*Order, error) {
	if raw == nil {
		return nil, fmt.Errorf("raw order is nil: %w", ErrInvalidOrder)
	}
	if len(raw.Constraints) != 7 {
		return nil, fmt.Errorf("expected 7 constraints, got %d: %w", len(raw.Constraints), ErrInvalidOrder)
	}
	if len(raw.ExecParams) != 2 {
		return nil, fmt.Errorf("expected 2 execParams, got %d: %w", len(raw.ExecParams), ErrInvalidOrder)
	}

	constraints := make([]*big.Int, 7)
	for i, c := range raw.Constraints {
		value, ok := new(big.Int).SetString(c, 10)
		if !ok {
			return nil, fmt.Errorf("constraint %d is not an integer: %w", i, ErrInvalidOrder)
		}
		constraints[i] = value
	}
	if !constraints[0].IsInt64() || !constraints[3].IsInt64() || !constraints[4].IsInt64() {
		return nil, fmt.Errorf("constraint out of range: %w", ErrInvalidOrder)
	}

	orderComplication := common.HexToAddress(raw.ExecParams[0])
	if orderComplication != complication {
		return nil, &ComplicationMismatchError{
			ChainID: chainID,
			Want:    complication,
			Got:     orderComplication,
		}
	}

	nfts := make([]OrderItem, len(raw.Nfts))
	for i, item := range raw.Nfts {
		tokens := make([]TokenInfo, len(item.Tokens))
		for j, token := range item.Tokens {
			tokenID, ok := new(big.Int).SetString(token.TokenID, 10)
			if !ok {
				return nil, fmt.Errorf("tokenId %q is not an integer: %w", token.TokenID, ErrInvalidOrder)
			}
			tokens[j] = TokenInfo{TokenID: tokenID, NumTokens: token.NumTokens}
		}
		nfts[i] = OrderItem{
			Collection: common.HexToAddress(item.Collection),
			Tokens:     tokens,
		}
	}

	var extraParams []byte
	if raw.ExtraParams != "" && raw.ExtraParams != "0x" {
		decoded, err := hexutil.Decode(raw.ExtraParams)
		if err != nil {
			return nil, fmt.Errorf("invalid extraParams: %w", ErrInvalidOrder)
		}
		extraParams = decoded
	}

	return NewOrder(OrderInput{
		ChainID:      chainID,
		Signer:       common.HexToAddress(raw.Signer),
		IsSellOrder:  raw.IsSellOrder,
		NumItems:     constraints[0].Int64(),
		StartPrice:   constraints[1],
		EndPrice:     constraints[2],
		StartTime:    constraints[3].Int64(),
		EndTime:      constraints[4].Int64(),
		Nonce:        constraints[5],
		MaxGasPrice:  constraints[6],
		Nfts:         nfts,
		Currency:     common.HexToAddress(raw.ExecParams[1]),
		Complication: complication,
		ExtraParams:  extraParams,
	})
}
