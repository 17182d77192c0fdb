package nftexchange

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mintora/nft-exchange-go/chain"
	"github.com/mintora/nft-exchange-go/store"
)

var (
	testExchangeAddr     = common.HexToAddress("0x00000000000000000000000000000000000e4c4e")
	testComplicationAddr = common.HexToAddress("0x0000000000000000000000000000000000c0421c")
	testCurrencyAddr     = common.HexToAddress("0x00000000000000000000000000000000000c4444")
	testCollectionAddr   = common.HexToAddress("0x000000000000000000000000000000000c011ec7")
)

type fakeErc20 struct {
	allowances map[common.Address]*big.Int
	balances   map[common.Address]*big.Int
	callErr    error
}

func (f *fakeErc20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	if v, ok := f.allowances[owner]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeErc20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	if v, ok := f.balances[owner]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeErc20) ApproveTransaction(owner, spender common.Address, amount *big.Int) (*chain.TxRequest, error) {
	return &chain.TxRequest{
		From:  owner,
		To:    testCurrencyAddr,
		Data:  []byte{0x09, 0x5e, 0xa7, 0xb3},
		Value: big.NewInt(0),
	}, nil
}

type fakeErc721 struct {
	approved map[common.Address]bool
	owners   map[string]common.Address
	callErr  error
}

func (f *fakeErc721) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	if f.callErr != nil {
		return false, f.callErr
	}
	return f.approved[owner], nil
}

func (f *fakeErc721) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	if f.callErr != nil {
		return common.Address{}, f.callErr
	}
	owner, ok := f.owners[tokenID.String()]
	if !ok {
		return common.Address{}, nil
	}
	return owner, nil
}

func (f *fakeErc721) SetApprovalForAllTransaction(owner, operator common.Address) (*chain.TxRequest, error) {
	return &chain.TxRequest{
		From:  owner,
		To:    testCollectionAddr,
		Data:  []byte{0xa2, 0x2c, 0xb4, 0x65},
		Value: big.NewInt(0),
	}, nil
}

type fakeGateway struct {
	erc20  *fakeErc20
	erc721 *fakeErc721
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		erc20: &fakeErc20{
			allowances: make(map[common.Address]*big.Int),
			balances:   make(map[common.Address]*big.Int),
		},
		erc721: &fakeErc721{
			approved: make(map[common.Address]bool),
			owners:   make(map[string]common.Address),
		},
	}
}

func (g *fakeGateway) Erc20(chainID int64, token common.Address) (chain.Erc20, error) {
	return g.erc20, nil
}

func (g *fakeGateway) Erc721(chainID int64, collection common.Address) (chain.Erc721, error) {
	return g.erc721, nil
}

func (g *fakeGateway) ExchangeAddress(chainID int64) (common.Address, error) {
	return testExchangeAddr, nil
}

func (g *fakeGateway) ComplicationAddress(chainID int64) (common.Address, error) {
	return testComplicationAddr, nil
}

type fixture struct {
	db        *store.DB
	gateway   *fakeGateway
	nonces    *NonceService
	protocol  *ProtocolOrdersService
	generator *GenerateOrderService
	orders    *BaseOrdersService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := store.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gateway := newFakeGateway()
	log := zerolog.Nop()
	nonces := NewNonceService(db, gateway, log)
	protocol := NewProtocolOrdersService(db, log)

	return &fixture{
		db:        db,
		gateway:   gateway,
		nonces:    nonces,
		protocol:  protocol,
		generator: NewGenerateOrderService(gateway, nonces, protocol, log),
		orders:    NewBaseOrdersService(db, gateway, nonces, log),
	}
}

// singleTokenOrder builds a valid flat-price order over one token.
func singleTokenOrder(t *testing.T, signer common.Address, isSell bool, nonce int64) *Order {
	t.Helper()

	order, err := NewOrder(OrderInput{
		ChainID:     ChainIDEthereum,
		Signer:      signer,
		IsSellOrder: isSell,
		NumItems:    1,
		StartPrice:  big.NewInt(1_000_000),
		EndPrice:    big.NewInt(1_000_000),
		StartTime:   1_700_000_000,
		EndTime:     1_700_003_600,
		Nonce:       big.NewInt(nonce),
		Nfts: []OrderItem{{
			Collection: testCollectionAddr,
			Tokens:     []TokenInfo{{TokenID: big.NewInt(7), NumTokens: 1}},
		}},
		Currency:     testCurrencyAddr,
		Complication: testComplicationAddr,
	})
	require.NoError(t, err)
	return order
}

// putOrderRecord stores an order document the way Base Orders would, so the
// matching path can read it back.
func putOrderRecord(t *testing.T, f *fixture, order *Order, sig string) string {
	t.Helper()

	record := OrderRecord{
		ID:          order.ID(),
		ChainID:     order.ChainID,
		IsSellOrder: order.IsSellOrder,
		Source:      OrderSourceNative,
		RawOrder:    order.EncodeRaw(sig),
		GasUsage:    "0",
	}
	doc, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, f.db.Set(store.OrderKey(record.ID), doc))
	return record.ID
}
