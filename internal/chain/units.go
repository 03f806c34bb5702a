package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the precision of the donation token.
const TokenDecimals int32 = 18

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount parses a human-readable token amount such as "0.01".
// The result is exact; no binary floating point is involved.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// ParsePositiveAmount parses s and rejects zero, negative values and values
// with more fractional digits than decimals allows.
func ParsePositiveAmount(s string, decimals int32) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, s)
	}
	if !d.Equal(d.Truncate(decimals)) {
		return decimal.Zero, fmt.Errorf("%w: %s has more than %d fractional digits", ErrInvalidAmount, s, decimals)
	}
	return d, nil
}

// ToMinorUnits scales a positive decimal amount to the token's smallest
// integer unit, e.g. "0.01" with 18 decimals is 10000000000000000.
func ToMinorUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := ParsePositiveAmount(amount, decimals)
	if err != nil {
		return nil, err
	}
	return d.Shift(decimals).BigInt(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(v *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(v, -decimals).String()
}
