package util

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

var maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// ToBaseUnits converts a human-readable amount to base units, truncating
// any precision beyond decimals (never rounds up).
// e.g., 10.5 USDC (6 decimals) -> 10500000
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount cannot be negative: %s", amount.String())
	}

	scaled := amount.Shift(int32(decimals)).Truncate(0)
	if scaled.GreaterThan(maxUint64) {
		return 0, fmt.Errorf("amount %s overflows base units with %d decimals", amount.String(), decimals)
	}

	return scaled.BigInt().Uint64(), nil
}

// FromBaseUnits converts base units to a human-readable amount
// e.g., 10000000 with 6 decimals -> 10
func FromBaseUnits(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

// ParseAmount parses a human amount string. Exponent notation is refused so
// a short string cannot expand into an enormous value.
func ParseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("amount cannot be empty")
	}
	for _, r := range s {
		if r == 'e' || r == 'E' {
			return decimal.Decimal{}, fmt.Errorf("invalid amount format: %s", s)
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
