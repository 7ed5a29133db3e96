// Package precision converts between human decimal prices/quantities and the
// fixed-point integers the order book works in.
//
// A price is scaled by 10^QuotePrecision and a quantity by 10^BasePrecision.
// Digits beyond the market precision are truncated toward zero, so the
// conversion never rounds a value up. FromOrderbook is the exact inverse for
// any value produced by ToOrderbook under the same market.
package precision

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/matchbook/pkg/app/core/market"
)

var ErrOverflow = errors.New("value does not fit orderbook precision")

// ToOrderbook converts a decimal price and quantity to orderbook precision.
func ToOrderbook(m market.Market, price, qty decimal.Decimal) (int64, int64, error) {
	p, err := scale(price, m.QuotePrecision)
	if err != nil {
		return 0, 0, fmt.Errorf("price %s: %w", price, err)
	}
	q, err := scale(qty, m.BasePrecision)
	if err != nil {
		return 0, 0, fmt.Errorf("quantity %s: %w", qty, err)
	}
	return p, q, nil
}

// FromOrderbook converts orderbook precision integers back to decimals.
func FromOrderbook(m market.Market, price, qty int64) (decimal.Decimal, decimal.Decimal) {
	return Price(m, price), Quantity(m, qty)
}

// Price converts a single orderbook price back to a decimal.
func Price(m market.Market, price int64) decimal.Decimal {
	return decimal.New(price, -m.QuotePrecision)
}

// Quantity converts a single orderbook quantity back to a decimal.
func Quantity(m market.Market, qty int64) decimal.Decimal {
	return decimal.New(qty, -m.BasePrecision)
}

func scale(d decimal.Decimal, places int32) (int64, error) {
	s := d.Shift(places).Truncate(0)
	if !s.BigInt().IsInt64() {
		return 0, ErrOverflow
	}
	return s.IntPart(), nil
}

// Decimals returns the number of significant decimal places of d.
// Trailing zeros do not count: "1.50" has one, "100.00" has none.
func Decimals(d decimal.Decimal) int32 {
	s := d.Abs().String()
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return int32(len(s) - i - 1)
}
