// Example usage of the NFT exchange order core
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rs/zerolog"

	nftexchange "github.com/mintora/nft-exchange-go"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	config := nftexchange.Config{
		RPCURLs: map[nftexchange.ChainID]string{
			nftexchange.ChainIDEthereum: "https://eth.llamarpc.com", // Replace with your RPC URL
		},
		DataDir: "", // In-memory store; set a directory for persistence
		Logger:  logger,
	}

	exchange, err := nftexchange.NewExchange(config)
	if err != nil {
		log.Fatalf("Failed to create exchange: %v", err)
	}
	defer exchange.Close()

	ctx := context.Background()
	maker := "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

	// Suggest the maker's next nonce
	nonce, err := exchange.NextNonce(ctx, nftexchange.ChainIDEthereum, maker)
	if err != nil {
		log.Fatalf("Failed to suggest nonce: %v", err)
	}
	fmt.Printf("Next nonce for %s: %s\n", maker, nonce)

	// Build a one-hour listing of token 7 at a flat price of 1 WETH
	price, err := nftexchange.SafeAmountToWei(1.0, 18)
	if err != nil {
		log.Fatalf("Failed to convert price: %v", err)
	}

	now := time.Now()
	result, err := exchange.GenerateOrder(ctx, &nftexchange.GenerateOrderRequest{
		Kind:          nftexchange.GenerateOrderKindList,
		Maker:         maker,
		ChainID:       nftexchange.ChainIDEthereum,
		NumItems:      1,
		StartPriceWei: price.String(),
		StartTimeMs:   now.UnixMilli(),
		EndTimeMs:     now.Add(time.Hour).UnixMilli(),
		Currency:      nftexchange.DefaultContractAddresses[nftexchange.ChainIDEthereum].WrappedNative,
		Nfts: []nftexchange.RawOrderItem{
			{
				Collection: "0xBC4CA0EdA7647A8aB7C2061c2E118A18a936f13D",
				Tokens:     []nftexchange.RawTokenInfo{{TokenID: "7", NumTokens: 1}},
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to generate listing: %v", err)
	}

	fmt.Printf("Order id: %s\n", result.Order.ID())
	for _, approval := range result.NftApprovals {
		fmt.Printf("Token approval: %s (%s)\n", approval.Message, approval.Status)
	}
	for _, sig := range result.SignatureRequests {
		fmt.Printf("Sign typed data with primary type %s\n", sig.TypedData.PrimaryType)
	}

	// Once the wallet signs the typed data, submit the signed order:
	//
	//   raw := result.Order.EncodeRaw(signatureHex)
	//   events, err := exchange.CreateOrders(ctx, nftexchange.ChainIDEthereum, []*nftexchange.RawOrder{raw})
	//
	// which claims the nonce and appends the order-created event.
}
