// Package units converts between human amounts and on-chain base units.
package units

import (
	"math"
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Decimals is the scale of both TRX (sun) and USDT TRC20.
const Decimals int32 = 6

var ErrOutOfRange = errors.New("amount out of base-unit range")

var maxBase = decimal.NewFromInt(math.MaxInt64)

// ToBase rounds amount to the nearest base unit. Negative amounts and amounts
// past int64 are rejected.
func ToBase(amount decimal.Decimal, decimals int32) (int64, error) {
	base := amount.Shift(decimals).Round(0)
	if base.IsNegative() || base.GreaterThan(maxBase) || !base.IsInteger() {
		return 0, errors.Wrapf(ErrOutOfRange, "%s", amount.String())
	}
	return base.IntPart(), nil
}

func FromBase(base int64, decimals int32) decimal.Decimal {
	return decimal.New(base, -decimals)
}

func FromBaseBig(base *big.Int, decimals int32) decimal.Decimal {
	if base == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(base, -decimals)
}

// FromBaseString parses a decimal base-unit string such as an event value.
func FromBaseString(base string, decimals int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(base)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(-decimals), nil
}
