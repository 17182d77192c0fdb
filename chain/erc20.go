package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ERC20Contract wraps an ERC-20 token on one chain.
type ERC20Contract struct {
	provider Provider
	token    common.Address
}

// NewERC20Contract creates a new ERC20Contract instance
func NewERC20Contract(provider Provider, token common.Address) *ERC20Contract {
	return &ERC20Contract{provider: provider, token: token}
}

// Allowance returns the amount the owner has approved the spender to move.
func (c *ERC20Contract) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	erc20ABI := GetERC20ABI()
	data, err := erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, err
	}

	result, err := c.provider.CallContract(ctx, ethereum.CallMsg{
		To:   &c.token,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance: %w", err)
	}

	var allowance *big.Int
	err = erc20ABI.UnpackIntoInterface(&allowance, "allowance", result)
	if err != nil {
		return nil, err
	}

	return allowance, nil
}

// BalanceOf returns the owner's token balance.
func (c *ERC20Contract) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	erc20ABI := GetERC20ABI()
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}

	result, err := c.provider.CallContract(ctx, ethereum.CallMsg{
		To:   &c.token,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}

	var balance *big.Int
	err = erc20ABI.UnpackIntoInterface(&balance, "balanceOf", result)
	if err != nil {
		return nil, err
	}

	return balance, nil
}

// ApproveTransaction builds the unsigned approve(spender, amount) transaction
// the owner has to sign and broadcast.
func (c *ERC20Contract) ApproveTransaction(owner, spender common.Address, amount *big.Int) (*TxRequest, error) {
	erc20ABI := GetERC20ABI()
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack approve: %w", err)
	}

	return &TxRequest{
		From:  owner,
		To:    c.token,
		Data:  data,
		Value: big.NewInt(0),
	}, nil
}
