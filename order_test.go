package nftexchange

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dynamicOrder(t *testing.T, startPrice, endPrice int64) *Order {
	t.Helper()

	order, err := NewOrder(OrderInput{
		ChainID:     ChainIDEthereum,
		Signer:      common.HexToAddress("0xA0"),
		IsSellOrder: true,
		NumItems:    1,
		StartPrice:  big.NewInt(startPrice),
		EndPrice:    big.NewInt(endPrice),
		StartTime:   1000,
		EndTime:     2000,
		Nonce:       big.NewInt(1),
		Nfts: []OrderItem{{
			Collection: testCollectionAddr,
			Tokens:     []TokenInfo{{TokenID: big.NewInt(1), NumTokens: 1}},
		}},
		Currency:     testCurrencyAddr,
		Complication: testComplicationAddr,
	})
	require.NoError(t, err)
	return order
}

func TestMatchingPrice(t *testing.T) {
	order := dynamicOrder(t, 100, 200)

	tests := []struct {
		name string
		now  int64
		want int64
	}{
		{"at start", 1000, 100},
		{"at end", 2000, 200},
		{"midpoint", 1500, 150},
		{"before start clamps", 500, 100},
		{"after end clamps", 3000, 200},
		{"quarter", 1250, 125},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, order.MatchingPrice(tc.now).Int64())
		})
	}
}

func TestMatchingPriceDecaying(t *testing.T) {
	order := dynamicOrder(t, 200, 100)
	assert.Equal(t, int64(200), order.MatchingPrice(1000).Int64())
	assert.Equal(t, int64(150), order.MatchingPrice(1500).Int64())
	assert.Equal(t, int64(100), order.MatchingPrice(2000).Int64())
}

func TestMatchingPriceFlat(t *testing.T) {
	order := dynamicOrder(t, 100, 100)
	assert.True(t, order.IsFlatPrice())
	assert.Equal(t, int64(100), order.MatchingPrice(0).Int64())
	assert.Equal(t, int64(100), order.MatchingPrice(1500).Int64())
}

func TestOrderKind(t *testing.T) {
	token := func(id int64) TokenInfo { return TokenInfo{TokenID: big.NewInt(id), NumTokens: 1} }

	tests := []struct {
		name string
		nfts []OrderItem
		want OrderKind
	}{
		{
			"single token",
			[]OrderItem{{Collection: testCollectionAddr, Tokens: []TokenInfo{token(1)}}},
			OrderKindSingleToken,
		},
		{
			"contract wide",
			[]OrderItem{{Collection: testCollectionAddr}},
			OrderKindContractWide,
		},
		{
			"two tokens",
			[]OrderItem{{Collection: testCollectionAddr, Tokens: []TokenInfo{token(1), token(2)}}},
			OrderKindComplex,
		},
		{
			"two collections",
			[]OrderItem{
				{Collection: testCollectionAddr, Tokens: []TokenInfo{token(1)}},
				{Collection: testCurrencyAddr, Tokens: []TokenInfo{token(2)}},
			},
			OrderKindComplex,
		},
		{
			"multi edition",
			[]OrderItem{{Collection: testCollectionAddr, Tokens: []TokenInfo{{TokenID: big.NewInt(1), NumTokens: 3}}}},
			OrderKindComplex,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			order := Order{Nfts: tc.nfts}
			assert.Equal(t, tc.want, order.Kind())
		})
	}
}

func TestNewOrderValidation(t *testing.T) {
	valid := OrderInput{
		ChainID:      ChainIDEthereum,
		Signer:       common.HexToAddress("0xA0"),
		IsSellOrder:  true,
		NumItems:     1,
		StartPrice:   big.NewInt(100),
		EndPrice:     big.NewInt(100),
		StartTime:    1000,
		EndTime:      2000,
		Nonce:        big.NewInt(1),
		Currency:     testCurrencyAddr,
		Complication: testComplicationAddr,
	}

	tests := []struct {
		name   string
		mutate func(in *OrderInput)
	}{
		{"zero items", func(in *OrderInput) { in.NumItems = 0 }},
		{"nil start price", func(in *OrderInput) { in.StartPrice = nil }},
		{"negative end price", func(in *OrderInput) { in.EndPrice = big.NewInt(-1) }},
		{"inverted window", func(in *OrderInput) { in.StartTime, in.EndTime = 2000, 1000 }},
		{"nil nonce", func(in *OrderInput) { in.Nonce = nil }},
		{"buy with zero currency", func(in *OrderInput) {
			in.IsSellOrder = false
			in.Currency = common.Address{}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			_, err := NewOrder(in)
			require.ErrorIs(t, err, ErrInvalidOrder)
		})
	}

	_, err := NewOrder(valid)
	require.NoError(t, err)
}

func TestRawOrderRoundTrip(t *testing.T) {
	order := singleTokenOrder(t, common.HexToAddress("0xA0"), true, 42)

	raw := order.EncodeRaw("0x")
	decoded, err := DecodeRawOrder(ChainIDEthereum, raw, testComplicationAddr)
	require.NoError(t, err)

	assert.Equal(t, order.Hash(), decoded.Hash())
	assert.Equal(t, order.ID(), decoded.ID())
	assert.Equal(t, order.Signer, decoded.Signer)
	assert.Equal(t, order.Nonce, decoded.Nonce)
}

func TestDecodeRejectsForeignComplication(t *testing.T) {
	order := singleTokenOrder(t, common.HexToAddress("0xA0"), true, 1)
	raw := order.EncodeRaw("0x")
	raw.ExecParams[0] = "0x00000000000000000000000000000000deadbeef"

	_, err := DecodeRawOrder(ChainIDEthereum, raw, testComplicationAddr)
	require.ErrorIs(t, err, ErrComplicationMismatch)

	var mismatch *ComplicationMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, testComplicationAddr, mismatch.Want)
}

func TestDecodeRejectsMalformedConstraints(t *testing.T) {
	order := singleTokenOrder(t, common.HexToAddress("0xA0"), true, 1)

	raw := order.EncodeRaw("0x")
	raw.Constraints = raw.Constraints[:5]
	_, err := DecodeRawOrder(ChainIDEthereum, raw, testComplicationAddr)
	require.ErrorIs(t, err, ErrInvalidOrder)

	raw = order.EncodeRaw("0x")
	raw.Constraints[1] = "not-a-number"
	_, err = DecodeRawOrder(ChainIDEthereum, raw, testComplicationAddr)
	require.ErrorIs(t, err, ErrInvalidOrder)
}

func TestHashIsContentHash(t *testing.T) {
	signer := common.HexToAddress("0xA0")
	a := singleTokenOrder(t, signer, true, 1)
	b := singleTokenOrder(t, signer, true, 1)
	c := singleTokenOrder(t, signer, true, 2)

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash(), "nonce must change the hash")
}

func TestSignAndVerify(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	order := singleTokenOrder(t, signer, true, 1)

	sig, err := order.Sign(testExchangeAddr, key)
	require.NoError(t, err)
	require.NoError(t, order.VerifySignature(testExchangeAddr, sig))

	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	badSig, err := order.Sign(testExchangeAddr, otherKey)
	require.NoError(t, err)
	require.ErrorIs(t, order.VerifySignature(testExchangeAddr, badSig), ErrInvalidSignature)

	require.ErrorIs(t, order.VerifySignature(testExchangeAddr, "0x1234"), ErrInvalidSignature)
}

func TestSignatureDataMatchesDigest(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)
	order := singleTokenOrder(t, signer, false, 9)

	typedData := order.SignatureData(testExchangeAddr)
	assert.Equal(t, "Order", typedData.PrimaryType)
	assert.Equal(t, EIP712DomainName, typedData.Domain.Name)
	assert.Equal(t, testExchangeAddr.Hex(), typedData.Domain.VerifyingContract)

	// The typed-data encoding and the hand-rolled digest must agree, or
	// wallet signatures would never verify.
	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	require.NoError(t, err)
	assert.Equal(t, order.Hash().Bytes(), []byte(structHash))

	domainHash, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	require.NoError(t, err)
	digest := crypto.Keccak256(append(append([]byte{0x19, 0x01}, domainHash...), structHash...))
	assert.Equal(t, order.Digest(testExchangeAddr).Bytes(), digest)
}
