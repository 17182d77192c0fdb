package nftexchange

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// The error taxonomy is closed: every failure surfaced by the services wraps
// exactly one of these sentinels, so callers can branch with errors.Is.
var (
	// ErrInvalidOrderKind represents an unknown or unsupported request/order kind
	ErrInvalidOrderKind = errors.New("invalid order kind")

	// ErrBundlesUnsupported represents an order with more than one item
	ErrBundlesUnsupported = errors.New("bundle orders are not supported")

	// ErrComplexOrdersUnsupported represents an order spanning multiple collections or tokens
	ErrComplexOrdersUnsupported = errors.New("complex orders are not supported")

	// ErrDynamicPricingUnsupported represents a non-flat price curve in a path that requires flat pricing
	ErrDynamicPricingUnsupported = errors.New("dynamic pricing is not supported")

	// ErrMixedMakers represents a batch whose orders do not share one maker
	ErrMixedMakers = errors.New("orders in a batch must share one maker")

	// ErrNftsRequired represents a contract-wide match request that omitted the tokens to trade
	ErrNftsRequired = errors.New("nfts are required to match a contract-wide order")

	// ErrComplicationMismatch represents an order referencing a foreign matching module
	ErrComplicationMismatch = errors.New("complication address mismatch")

	// ErrOrderNotFound represents a missing or unnormalizable opposing order
	ErrOrderNotFound = errors.New("order not found")

	// ErrNonceAlreadyClaimed represents a replayed nonce
	ErrNonceAlreadyClaimed = errors.New("nonce already claimed")

	// ErrPriceOutOfRange represents a matched price violating the caller's bound
	ErrPriceOutOfRange = errors.New("matching price out of range")

	// ErrInvalidSignature represents a signature that does not recover to the signer
	ErrInvalidSignature = errors.New("invalid order signature")

	// ErrInvalidOrder represents a structurally invalid order
	ErrInvalidOrder = errors.New("invalid order")

	// ErrNotFillable represents an order that cannot execute on-chain (bad currency or nonce)
	ErrNotFillable = errors.New("order is not fillable")

	// ErrInsufficientBalance represents a maker balance below the order price
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrMissingApproval represents a missing token or currency approval for the exchange
	ErrMissingApproval = errors.New("missing approval")

	// ErrNotOwner represents an order offering a token the signer does not own
	ErrNotOwner = errors.New("signer does not own token")
)

// ComplicationMismatchError reports the expected and found matching modules.
type ComplicationMismatchError struct {
	ChainID ChainID
	Want    common.Address
	Got     common.Address
}

func (e *ComplicationMismatchError) Error() string {
	return fmt.Sprintf("complication address mismatch on chain %d: want %s, got %s",
		e.ChainID, e.Want.Hex(), e.Got.Hex())
}

func (e *ComplicationMismatchError) Unwrap() error { return ErrComplicationMismatch }

// NonceClaimedError reports which nonce of which user was replayed.
type NonceClaimedError struct {
	ChainID ChainID
	User    string
	Nonce   *big.Int
}

func (e *NonceClaimedError) Error() string {
	return fmt.Sprintf("nonce %s already claimed for %s on chain %d", e.Nonce, e.User, e.ChainID)
}

func (e *NonceClaimedError) Unwrap() error { return ErrNonceAlreadyClaimed }

// PriceOutOfRangeError reports the matching price and the violated bound.
type PriceOutOfRangeError struct {
	OrderID string
	Price   *big.Int
	Bound   *big.Int
	IsUpper bool
}

func (e *PriceOutOfRangeError) Error() string {
	direction := "below minimum"
	if e.IsUpper {
		direction = "above maximum"
	}
	return fmt.Sprintf("matching price %s for order %s is %s %s", e.Price, e.OrderID, direction, e.Bound)
}

func (e *PriceOutOfRangeError) Unwrap() error { return ErrPriceOutOfRange }

// NotOwnerError reports the token whose on-chain owner is not the signer.
type NotOwnerError struct {
	Collection common.Address
	TokenID    *big.Int
	Owner      common.Address
	Signer     common.Address
}

func (e *NotOwnerError) Error() string {
	return fmt.Sprintf("token %s of %s is owned by %s, not signer %s",
		e.TokenID, e.Collection.Hex(), e.Owner.Hex(), e.Signer.Hex())
}

func (e *NotOwnerError) Unwrap() error { return ErrNotOwner }
