package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ERC721Contract wraps an ERC-721 collection on one chain.
type ERC721Contract struct {
	provider   Provider
	collection common.Address
}

// NewERC721Contract creates a new ERC721Contract instance
func NewERC721Contract(provider Provider, collection common.Address) *ERC721Contract {
	return &ERC721Contract{provider: provider, collection: collection}
}

// IsApprovedForAll reports whether the operator may move any of the owner's
// tokens in this collection.
func (c *ERC721Contract) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	erc721ABI := GetERC721ABI()
	data, err := erc721ABI.Pack("isApprovedForAll", owner, operator)
	if err != nil {
		return false, err
	}

	result, err := c.provider.CallContract(ctx, ethereum.CallMsg{
		To:   &c.collection,
		Data: data,
	}, nil)
	if err != nil {
		return false, fmt.Errorf("failed to check isApprovedForAll: %w", err)
	}

	var approved bool
	err = erc721ABI.UnpackIntoInterface(&approved, "isApprovedForAll", result)
	if err != nil {
		return false, err
	}

	return approved, nil
}

// OwnerOf returns the current owner of a token id.
func (c *ERC721Contract) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	erc721ABI := GetERC721ABI()
	data, err := erc721ABI.Pack("ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}

	result, err := c.provider.CallContract(ctx, ethereum.CallMsg{
		To:   &c.collection,
		Data: data,
	}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read ownerOf: %w", err)
	}

	var owner common.Address
	err = erc721ABI.UnpackIntoInterface(&owner, "ownerOf", result)
	if err != nil {
		return common.Address{}, err
	}

	return owner, nil
}

// SetApprovalForAllTransaction builds the unsigned setApprovalForAll(operator,
// true) transaction the owner has to sign and broadcast.
func (c *ERC721Contract) SetApprovalForAllTransaction(owner, operator common.Address) (*TxRequest, error) {
	erc721ABI := GetERC721ABI()
	data, err := erc721ABI.Pack("setApprovalForAll", operator, true)
	if err != nil {
		return nil, fmt.Errorf("failed to pack setApprovalForAll: %w", err)
	}

	return &TxRequest{
		From:  owner,
		To:    c.collection,
		Data:  data,
		Value: big.NewInt(0),
	}, nil
}
