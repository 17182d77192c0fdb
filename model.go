package nftexchange

import (
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/mintora/nft-exchange-go/chain"
)

// Fillability is the lifecycle state of a claimed nonce.
type Fillability string

const (
	FillabilityFillable  Fillability = "fillable"
	FillabilityCancelled Fillability = "cancelled"
	FillabilityFilled    Fillability = "filled"
)

// UserNonce is the persisted claim of one nonce. The document's existence is
// the claim; Fillability is mutated later by settlement watchers.
type UserNonce struct {
	Nonce           string      `json:"nonce"`
	UserAddress     string      `json:"userAddress"`
	ChainID         ChainID     `json:"chainId"`
	ContractAddress string      `json:"contractAddress"`
	Fillability     Fillability `json:"fillability"`
}

// OrderSource identifies which protocol an indexed order originates from.
type OrderSource string

// OrderSourceNative marks orders created through this exchange; bulk queries
// return only these.
const OrderSourceNative OrderSource = "mintora"

// RawOrder is the wire/storage form of an order, matching the on-chain struct:
// constraints = [numItems, startPrice, endPrice, startTime, endTime, nonce,
// maxGasPrice] and execParams = [complication, currency].
type RawOrder struct {
	IsSellOrder bool           `json:"isSellOrder"`
	Signer      string         `json:"signer"`
	Constraints []string       `json:"constraints"`
	Nfts        []RawOrderItem `json:"nfts"`
	ExecParams  []string       `json:"execParams"`
	ExtraParams string         `json:"extraParams"`
	Sig         string         `json:"sig"`
}

// RawOrderItem is the wire form of one collection entry in an order.
type RawOrderItem struct {
	Collection string         `json:"collection"`
	Tokens     []RawTokenInfo `json:"tokens"`
}

// RawTokenInfo is the wire form of one token entry.
type RawTokenInfo struct {
	TokenID   string `json:"tokenId"`
	NumTokens int64  `json:"numTokens"`
}

// OrderRecord is the persisted order document read back by the matching path.
// Records with a non-empty Error failed normalization and are treated as
// absent by readers.
type OrderRecord struct {
	ID          string      `json:"id"`
	ChainID     ChainID     `json:"chainId"`
	IsSellOrder bool        `json:"isSellOrder"`
	Source      OrderSource `json:"source"`
	RawOrder    *RawOrder   `json:"rawOrder,omitempty"`
	GasUsage    string      `json:"gasUsage"`
	IsDynamic   bool        `json:"isDynamic"`
	Error       string      `json:"error,omitempty"`
}

// OrderStatus is the lifecycle status recorded on an order event.
type OrderStatus string

const (
	OrderStatusActive OrderStatus = "active"
)

// EventKind discriminates order events. This core only appends created events.
type EventKind string

const (
	EventKindCreated EventKind = "orderCreated"
)

// EventMetadata describes an order event for downstream indexers.
type EventMetadata struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId"`
	ChainID     ChainID   `json:"chainId"`
	IsSellOrder bool      `json:"isSellOrder"`
	Processed   bool      `json:"processed"`
	EventKind   EventKind `json:"eventKind"`
	Timestamp   int64     `json:"timestamp"`
	UpdatedAt   int64     `json:"updatedAt"`
}

// OrderCreatedData is the payload of an order-created event.
type OrderCreatedData struct {
	Status OrderStatus `json:"status"`
	Order  OrderRecord `json:"order"`
}

// OrderCreatedEvent is appended once per accepted order and never updated in
// place by this core.
type OrderCreatedEvent struct {
	Metadata EventMetadata    `json:"metadata"`
	Data     OrderCreatedData `json:"data"`
}

// GenerateOrderKind selects which of the four order-construction flows runs.
type GenerateOrderKind string

const (
	GenerateOrderKindList GenerateOrderKind = "list"
	GenerateOrderKindBid  GenerateOrderKind = "bid"
	GenerateOrderKindBuy  GenerateOrderKind = "buy"
	GenerateOrderKindSell GenerateOrderKind = "sell"
)

// GenerateOrderRequest is the caller's intent to list, bid, or instantly fill
// a stored order. Buy/Sell requests reference the opposing order by OrderID
// and may bound the matched price.
type GenerateOrderRequest struct {
	Kind    GenerateOrderKind `json:"kind"`
	Maker   string            `json:"maker"`
	ChainID ChainID           `json:"chainId"`

	NumItems      int64          `json:"numItems,omitempty"`
	StartPriceWei string         `json:"startPriceWei,omitempty"`
	EndPriceWei   string         `json:"endPriceWei,omitempty"`
	StartTimeMs   int64          `json:"startTimeMs,omitempty"`
	EndTimeMs     int64          `json:"endTimeMs,omitempty"`
	Currency      string         `json:"currency,omitempty"`
	Nfts          []RawOrderItem `json:"nfts,omitempty"`

	// Nonce overrides the suggested next nonce when set.
	Nonce          string `json:"nonce,omitempty"`
	MaxGasPriceWei string `json:"maxGasPriceWei,omitempty"`

	// Buy/Sell only.
	OrderID     string `json:"orderId,omitempty"`
	MaxPriceWei string `json:"maxPriceWei,omitempty"`
	MinPriceWei string `json:"minPriceWei,omitempty"`
}

// ChecklistStatus marks whether a prerequisite is already satisfied.
type ChecklistStatus string

const (
	ChecklistStatusComplete   ChecklistStatus = "complete"
	ChecklistStatusIncomplete ChecklistStatus = "incomplete"
)

// ChecklistKind identifies a prerequisite category.
type ChecklistKind string

const (
	ChecklistKindTokenApproval     ChecklistKind = "tokenApproval"
	ChecklistKindCurrencyAllowance ChecklistKind = "currencyAllowance"
	ChecklistKindCurrencyDeposit   ChecklistKind = "currencyDeposit"
)

// ChecklistItem is one prerequisite the wallet has to complete before the
// order becomes executable. Tx is set when the prerequisite has a pre-built
// transaction the wallet can sign directly.
type ChecklistItem struct {
	Kind    ChecklistKind   `json:"kind"`
	Status  ChecklistStatus `json:"status"`
	Message string          `json:"message"`
	Tx      *chain.TxRequest `json:"txData,omitempty"`
}

// SignatureRequest carries the EIP-712 payload the wallet has to sign. It is
// always incomplete at generation time.
type SignatureRequest struct {
	Status    ChecklistStatus   `json:"status"`
	TypedData apitypes.TypedData `json:"typedData"`
}

// GenerateOrderResult is the signable order plus the side-effect checklist.
type GenerateOrderResult struct {
	Order             *Order             `json:"order"`
	NftApprovals      []ChecklistItem    `json:"nftApprovals"`
	CurrencyApprovals []ChecklistItem    `json:"currencyApprovals"`
	CurrencyDeposits  []ChecklistItem    `json:"currencyDeposits"`
	SignatureRequests []SignatureRequest `json:"signatureRequests"`
}

// SortDirection orders bulk query results.
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// BulkOrderQuery selects a page of the order-event log.
type BulkOrderQuery struct {
	ChainID       ChainID       `json:"chainId"`
	IsSellOrder   *bool         `json:"isSellOrder,omitempty"`
	CreatedAfter  int64         `json:"createdAfter,omitempty"`
	CreatedBefore int64         `json:"createdBefore,omitempty"`
	Direction     SortDirection `json:"direction,omitempty"`
	Limit         int           `json:"limit,omitempty"`
	Cursor        string        `json:"cursor,omitempty"`
}

// BulkOrdersResult is one page of events plus the cursor to resume from.
type BulkOrdersResult struct {
	Data    []*OrderCreatedEvent `json:"data"`
	Cursor  string               `json:"cursor"`
	HasMore bool                 `json:"hasMore"`
}
