package market

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MaxPrecision caps decimal places so scaled values stay well inside int64.
const MaxPrecision = 12

// DepthHeadroom is how many maximum-size orders one side of a book must be
// able to hold before its aggregate quantity leaves int64.
const DepthHeadroom = 1_000_000

var ErrMarketNotFound = errors.New("market not found")

// Status defines the trading status of a market
type Status int8

const (
	Active Status = iota // Trading enabled
	Paused               // New orders rejected, cancels still allowed
)

func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// ParseStatus accepts the names produced by String, case-sensitive.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "", "Active":
		return Active, nil
	case "Paused":
		return Paused, nil
	default:
		return Active, fmt.Errorf("unknown market status %q", s)
	}
}

// Market is the read-only metadata of a tradable symbol.
//
// Prices are carried in the book as integers scaled by 10^QuotePrecision and
// quantities scaled by 10^BasePrecision ("orderbook precision").
type Market struct {
	Symbol string // "BTC-USD"
	Base   string // "BTC"
	Quote  string // "USD"

	// Order size bounds, inclusive, in base asset units
	MinTradeAmount decimal.Decimal
	MaxTradeAmount decimal.Decimal

	BasePrecision  int32 // decimal places allowed in quantities
	QuotePrecision int32 // decimal places allowed in prices

	Status Status
}

// Validate checks market parameter sanity
func (m *Market) Validate() error {
	if m.Symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if m.Base == "" || m.Quote == "" {
		return fmt.Errorf("market %s: base and quote assets must be specified", m.Symbol)
	}
	if m.BasePrecision < 0 || m.BasePrecision > MaxPrecision {
		return fmt.Errorf("market %s: base precision must be in [0, %d]", m.Symbol, MaxPrecision)
	}
	if m.QuotePrecision < 0 || m.QuotePrecision > MaxPrecision {
		return fmt.Errorf("market %s: quote precision must be in [0, %d]", m.Symbol, MaxPrecision)
	}
	if !m.MinTradeAmount.IsPositive() {
		return fmt.Errorf("market %s: min trade amount must be positive", m.Symbol)
	}
	if m.MaxTradeAmount.LessThan(m.MinTradeAmount) {
		return fmt.Errorf("market %s: max trade amount cannot be below min trade amount", m.Symbol)
	}
	limit := decimal.New(math.MaxInt64/DepthHeadroom, -m.BasePrecision)
	if m.MaxTradeAmount.GreaterThan(limit) {
		return fmt.Errorf("market %s: max trade amount must be at most %s at base precision %d",
			m.Symbol, limit, m.BasePrecision)
	}
	return nil
}

// Defaults returns the markets served when no markets file is configured.
func Defaults() []*Market {
	return []*Market{
		{
			Symbol:         "BTC-USD",
			Base:           "BTC",
			Quote:          "USD",
			MinTradeAmount: decimal.RequireFromString("0.0001"),
			MaxTradeAmount: decimal.RequireFromString("1000"),
			BasePrecision:  4,
			QuotePrecision: 2,
		},
		{
			Symbol:         "ETH-USD",
			Base:           "ETH",
			Quote:          "USD",
			MinTradeAmount: decimal.RequireFromString("0.001"),
			MaxTradeAmount: decimal.RequireFromString("10000"),
			BasePrecision:  3,
			QuotePrecision: 2,
		},
		{
			Symbol:         "ETH-BTC",
			Base:           "ETH",
			Quote:          "BTC",
			MinTradeAmount: decimal.RequireFromString("0.001"),
			MaxTradeAmount: decimal.RequireFromString("10000"),
			BasePrecision:  3,
			QuotePrecision: 6,
		},
	}
}
