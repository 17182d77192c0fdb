package nftexchange

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

const (
	MaxDecimals = 18
	ZeroAddress = "0x0000000000000000000000000000000000000000"
)

// ParseWei parses a base-10 wei amount.
func ParseWei(name, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer, got %q: %w", name, value, ErrInvalidOrder)
	}
	return amount, nil
}

// SafeAmountToWei safely converts a human-readable amount to wei units
func SafeAmountToWei(amount float64, decimals int) (*big.Int, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %f: %w", amount, ErrInvalidOrder)
	}

	if decimals < 0 || decimals > MaxDecimals {
		return nil, fmt.Errorf("decimals must be between 0 and %d, got %d: %w", MaxDecimals, decimals, ErrInvalidOrder)
	}

	// Convert through a string for precision
	amountStr := strconv.FormatFloat(amount, 'f', -1, 64)

	parts := strings.Split(amountStr, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount format %q: %w", amountStr, ErrInvalidOrder)
	}

	integerPart := parts[0]
	decimalPart := ""
	if len(parts) == 2 {
		decimalPart = parts[1]
	}

	// Pad or truncate the decimal part to match decimals
	if len(decimalPart) > decimals {
		decimalPart = decimalPart[:decimals]
	} else {
		decimalPart = decimalPart + strings.Repeat("0", decimals-len(decimalPart))
	}

	result, ok := new(big.Int).SetString(integerPart+decimalPart, 10)
	if !ok {
		return nil, fmt.Errorf("failed to convert amount to integer: %w", ErrInvalidOrder)
	}

	maxUint256 := new(big.Int).Exp(big.NewInt(2), big.NewInt(256), nil)
	if result.Cmp(maxUint256) >= 0 {
		return nil, fmt.Errorf("amount too large for uint256: %s: %w", result, ErrInvalidOrder)
	}

	return result, nil
}

// bigMax returns the larger of a and b.
func bigMax(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
