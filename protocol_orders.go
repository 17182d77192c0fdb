package nftexchange

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"

	"github.com/mintora/nft-exchange-go/store"
)

const (
	defaultBulkLimit = 50
	maxBulkLimit     = 250
)

// ProtocolOrdersService reads persisted orders and order events back out of
// the store, mainly to serve as opposing orders during matching.
type ProtocolOrdersService struct {
	db  *store.DB
	log zerolog.Logger
}

// NewProtocolOrdersService creates a new ProtocolOrdersService instance
func NewProtocolOrdersService(db *store.DB, log zerolog.Logger) *ProtocolOrdersService {
	return &ProtocolOrdersService{db: db, log: log}
}

// GetOrderByID returns the raw stored order for an id, or nil when the order
// is absent, has no raw payload, or is an error record from a failed
// normalization. Callers treat all three the same way.
func (s *ProtocolOrdersService) GetOrderByID(ctx context.Context, orderID string) (*RawOrder, error) {
	value, exists, err := s.db.Get(store.OrderKey(orderID))
	if err != nil {
		return nil, fmt.Errorf("failed to read order %s: %w", orderID, err)
	}
	if !exists {
		return nil, nil
	}

	var record OrderRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, fmt.Errorf("corrupt order document %s: %w", orderID, err)
	}
	if record.Error != "" || record.RawOrder == nil {
		return nil, nil
	}
	return record.RawOrder, nil
}

// bulkCursor is the opaque resume point of a bulk query: the composite sort
// key (timestamp, orderId) of the last returned row.
type bulkCursor struct {
	Timestamp int64  `json:"timestamp"`
	ID        string `json:"id"`
}

func encodeCursor(c bulkCursor) string {
	raw, _ := json.Marshal(c)
	return base64.StdEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (bulkCursor, error) {
	var c bulkCursor
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid cursor: %w", ErrInvalidOrder)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("invalid cursor: %w", ErrInvalidOrder)
	}
	return c, nil
}

// GetBulkOrders pages through the order-event log for one chain, filtered by
// side and creation-time window, ordered by (timestamp, orderId). Only
// native-source orders are returned.
func (s *ProtocolOrdersService) GetBulkOrders(ctx context.Context, query BulkOrderQuery) (*BulkOrdersResult, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultBulkLimit
	}
	if limit > maxBulkLimit {
		limit = maxBulkLimit
	}

	chainPrefix := store.EventChainPrefix(int64(query.ChainID))
	lower := chainPrefix
	if query.CreatedAfter > 0 {
		lower = store.EventTimePrefix(int64(query.ChainID), query.CreatedAfter)
	}
	upper := store.PrefixEnd(chainPrefix)
	if query.CreatedBefore > 0 {
		upper = store.EventTimePrefix(int64(query.ChainID), query.CreatedBefore+1)
	}

	descending := query.Direction == SortDescending

	// A cursor tightens the bound on the side iteration starts from, giving
	// startAfter semantics for the composite (timestamp, orderId) key.
	if query.Cursor != "" {
		cursor, err := decodeCursor(query.Cursor)
		if err != nil {
			return nil, err
		}
		cursorKey := store.EventKey(int64(query.ChainID), cursor.Timestamp, cursor.ID)
		if descending {
			upper = cursorKey
		} else {
			lower = append(cursorKey, 0x00)
		}
	}

	iter, err := s.db.NewIter(lower, upper)
	if err != nil {
		return nil, fmt.Errorf("failed to scan order events: %w", err)
	}
	defer iter.Close()

	advance := func(it *pebble.Iterator) bool { return it.Next() }
	valid := iter.First()
	if descending {
		advance = func(it *pebble.Iterator) bool { return it.Prev() }
		valid = iter.Last()
	}

	result := &BulkOrdersResult{Data: make([]*OrderCreatedEvent, 0, limit)}
	for ; valid; valid = advance(iter) {
		var event OrderCreatedEvent
		if err := json.Unmarshal(iter.Value(), &event); err != nil {
			s.log.Warn().Str("key", string(iter.Key())).Err(err).Msg("skipping corrupt order event")
			continue
		}
		if event.Data.Order.Source != OrderSourceNative {
			continue
		}
		if query.IsSellOrder != nil && event.Metadata.IsSellOrder != *query.IsSellOrder {
			continue
		}

		if len(result.Data) == limit {
			result.HasMore = true
			break
		}
		result.Data = append(result.Data, &event)
	}

	if n := len(result.Data); n > 0 {
		last := result.Data[n-1]
		result.Cursor = encodeCursor(bulkCursor{
			Timestamp: last.Metadata.Timestamp,
			ID:        last.Metadata.OrderID,
		})
	}
	return result, nil
}
