package nftexchange

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintora/nft-exchange-go/store"
)

// putEvent appends an order-created event directly, bypassing validation.
func putEvent(t *testing.T, f *fixture, chainID ChainID, ts int64, orderID string, isSell bool, source OrderSource) {
	t.Helper()

	event := OrderCreatedEvent{
		Metadata: EventMetadata{
			ID:          fmt.Sprintf("evt-%s", orderID),
			OrderID:     orderID,
			ChainID:     chainID,
			IsSellOrder: isSell,
			EventKind:   EventKindCreated,
			Timestamp:   ts,
			UpdatedAt:   ts,
		},
		Data: OrderCreatedData{
			Status: OrderStatusActive,
			Order: OrderRecord{
				ID:          orderID,
				ChainID:     chainID,
				IsSellOrder: isSell,
				Source:      source,
				GasUsage:    "0",
			},
		},
	}
	doc, err := json.Marshal(event)
	require.NoError(t, err)
	require.NoError(t, f.db.Set(store.EventKey(int64(chainID), ts, orderID), doc))
}

func eventOrderIDs(result *BulkOrdersResult) []string {
	ids := make([]string, 0, len(result.Data))
	for _, event := range result.Data {
		ids = append(ids, event.Metadata.OrderID)
	}
	return ids
}

func TestGetOrderByIDAbsent(t *testing.T) {
	f := newFixture(t)

	raw, err := f.protocol.GetOrderByID(context.Background(), "0xmissing")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestGetOrderByIDStored(t *testing.T) {
	f := newFixture(t)
	order := singleTokenOrder(t, common.HexToAddress("0xA0"), true, 1)
	orderID := putOrderRecord(t, f, order, "0xsig")

	raw, err := f.protocol.GetOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, "0xsig", raw.Sig)
	assert.True(t, raw.IsSellOrder)
}

func TestGetOrderByIDSkipsErrorRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// An error record from a failed normalization reads as absent.
	doc, err := json.Marshal(OrderRecord{
		ID:      "0xbad",
		ChainID: ChainIDEthereum,
		Source:  OrderSourceNative,
		Error:   "normalization failed",
	})
	require.NoError(t, err)
	require.NoError(t, f.db.Set(store.OrderKey("0xbad"), doc))

	raw, err := f.protocol.GetOrderByID(ctx, "0xbad")
	require.NoError(t, err)
	assert.Nil(t, raw)

	// So does a record with no raw payload.
	doc, err = json.Marshal(OrderRecord{
		ID:      "0xempty",
		ChainID: ChainIDEthereum,
		Source:  OrderSourceNative,
	})
	require.NoError(t, err)
	require.NoError(t, f.db.Set(store.OrderKey("0xempty"), doc))

	raw, err = f.protocol.GetOrderByID(ctx, "0xempty")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func seedEventLog(t *testing.T, f *fixture) {
	t.Helper()
	putEvent(t, f, ChainIDEthereum, 1000, "0xaa", true, OrderSourceNative)
	putEvent(t, f, ChainIDEthereum, 2000, "0xbb", false, OrderSourceNative)
	putEvent(t, f, ChainIDEthereum, 3000, "0xcc", true, OrderSourceNative)
	putEvent(t, f, ChainIDEthereum, 4000, "0xdd", true, "othermarket")
	putEvent(t, f, ChainIDEthereum, 5000, "0xee", false, OrderSourceNative)
	putEvent(t, f, ChainIDPolygon, 1500, "0xff", true, OrderSourceNative)
}

func TestGetBulkOrdersAscending(t *testing.T) {
	f := newFixture(t)
	seedEventLog(t, f)

	result, err := f.protocol.GetBulkOrders(context.Background(), BulkOrderQuery{
		ChainID:   ChainIDEthereum,
		Direction: SortAscending,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa", "0xbb", "0xcc", "0xee"}, eventOrderIDs(result),
		"foreign-source and foreign-chain events are excluded")
	assert.False(t, result.HasMore)
}

func TestGetBulkOrdersDescending(t *testing.T) {
	f := newFixture(t)
	seedEventLog(t, f)

	result, err := f.protocol.GetBulkOrders(context.Background(), BulkOrderQuery{
		ChainID:   ChainIDEthereum,
		Direction: SortDescending,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0xee", "0xcc", "0xbb", "0xaa"}, eventOrderIDs(result))
}

func TestGetBulkOrdersSideFilter(t *testing.T) {
	f := newFixture(t)
	seedEventLog(t, f)
	sell := true

	result, err := f.protocol.GetBulkOrders(context.Background(), BulkOrderQuery{
		ChainID:     ChainIDEthereum,
		IsSellOrder: &sell,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa", "0xcc"}, eventOrderIDs(result))

	buy := false
	result, err = f.protocol.GetBulkOrders(context.Background(), BulkOrderQuery{
		ChainID:     ChainIDEthereum,
		IsSellOrder: &buy,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0xbb", "0xee"}, eventOrderIDs(result))
}

func TestGetBulkOrdersTimeWindow(t *testing.T) {
	f := newFixture(t)
	seedEventLog(t, f)

	result, err := f.protocol.GetBulkOrders(context.Background(), BulkOrderQuery{
		ChainID:      ChainIDEthereum,
		CreatedAfter: 2000,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0xbb", "0xcc", "0xee"}, eventOrderIDs(result),
		"CreatedAfter is inclusive")

	result, err = f.protocol.GetBulkOrders(context.Background(), BulkOrderQuery{
		ChainID:       ChainIDEthereum,
		CreatedBefore: 3000,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa", "0xbb", "0xcc"}, eventOrderIDs(result),
		"CreatedBefore is inclusive")

	result, err = f.protocol.GetBulkOrders(context.Background(), BulkOrderQuery{
		ChainID:       ChainIDEthereum,
		CreatedAfter:  2000,
		CreatedBefore: 2000,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0xbb"}, eventOrderIDs(result))
}

func TestGetBulkOrdersPagination(t *testing.T) {
	f := newFixture(t)
	seedEventLog(t, f)
	ctx := context.Background()

	page1, err := f.protocol.GetBulkOrders(ctx, BulkOrderQuery{
		ChainID: ChainIDEthereum,
		Limit:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa", "0xbb"}, eventOrderIDs(page1))
	assert.True(t, page1.HasMore)
	require.NotEmpty(t, page1.Cursor)

	page2, err := f.protocol.GetBulkOrders(ctx, BulkOrderQuery{
		ChainID: ChainIDEthereum,
		Limit:   2,
		Cursor:  page1.Cursor,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0xcc", "0xee"}, eventOrderIDs(page2))
	assert.False(t, page2.HasMore)

	page3, err := f.protocol.GetBulkOrders(ctx, BulkOrderQuery{
		ChainID: ChainIDEthereum,
		Limit:   2,
		Cursor:  page2.Cursor,
	})
	require.NoError(t, err)
	assert.Empty(t, page3.Data)
	assert.False(t, page3.HasMore)
}

func TestGetBulkOrdersPaginationDescending(t *testing.T) {
	f := newFixture(t)
	seedEventLog(t, f)
	ctx := context.Background()

	page1, err := f.protocol.GetBulkOrders(ctx, BulkOrderQuery{
		ChainID:   ChainIDEthereum,
		Direction: SortDescending,
		Limit:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0xee", "0xcc", "0xbb"}, eventOrderIDs(page1))
	assert.True(t, page1.HasMore)

	page2, err := f.protocol.GetBulkOrders(ctx, BulkOrderQuery{
		ChainID:   ChainIDEthereum,
		Direction: SortDescending,
		Limit:     3,
		Cursor:    page1.Cursor,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa"}, eventOrderIDs(page2))
	assert.False(t, page2.HasMore)
}

func TestGetBulkOrdersRejectsBadCursor(t *testing.T) {
	f := newFixture(t)

	_, err := f.protocol.GetBulkOrders(context.Background(), BulkOrderQuery{
		ChainID: ChainIDEthereum,
		Cursor:  "not base64!",
	})
	require.ErrorIs(t, err, ErrInvalidOrder)
}

func TestGetBulkOrdersLimitClamped(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 30; i++ {
		putEvent(t, f, ChainIDEthereum, int64(1000+i), fmt.Sprintf("0x%04x", i), true, OrderSourceNative)
	}

	// A non-positive limit falls back to the default page size.
	result, err := f.protocol.GetBulkOrders(context.Background(), BulkOrderQuery{
		ChainID: ChainIDEthereum,
		Limit:   -5,
	})
	require.NoError(t, err)
	assert.Len(t, result.Data, 30)
	assert.False(t, result.HasMore)
}
