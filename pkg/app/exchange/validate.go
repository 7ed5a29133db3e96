package exchange

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/matchbook/pkg/app/core/market"
	"github.com/uhyunpark/matchbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/matchbook/pkg/app/core/precision"
)

const (
	OrderTypeLimit  = "LIMIT"
	OrderTypeMarket = "MARKET"
)

func checkOrderType(orderType string) error {
	switch strings.ToUpper(orderType) {
	case "", OrderTypeLimit:
		return nil
	case OrderTypeMarket:
		return fmt.Errorf("%w: market orders are not supported", ErrUnsupportedOrderType)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedOrderType, orderType)
	}
}

func parseSide(s string) (orderbook.Side, error) {
	switch strings.ToUpper(s) {
	case "BUY":
		return orderbook.Buy, nil
	case "SELL":
		return orderbook.Sell, nil
	default:
		return 0, fmt.Errorf("%w: side must be BUY or SELL, got %q", ErrInvalidOrder, s)
	}
}

// limitOrder is a request that passed validation, still in display units.
type limitOrder struct {
	side     orderbook.Side
	price    decimal.Decimal
	quantity decimal.Decimal
}

// validate checks a request against its market before anything reaches the
// book. Decimal places are checked before size bounds, so an amount that is
// both too small and too precise reports the precision problem.
func validate(m market.Market, req PlaceOrderRequest) (limitOrder, error) {
	if m.Status != market.Active {
		return limitOrder{}, fmt.Errorf("%w: market %s is %s", ErrInvalidOrder, m.Symbol, m.Status)
	}

	side, err := parseSide(req.Side)
	if err != nil {
		return limitOrder{}, err
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil {
		return limitOrder{}, fmt.Errorf("%w: price %q is not a number", ErrInvalidOrder, req.Price)
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(req.Quantity))
	if err != nil {
		return limitOrder{}, fmt.Errorf("%w: quantity %q is not a number", ErrInvalidOrder, req.Quantity)
	}

	if precision.Decimals(qty) > m.BasePrecision {
		return limitOrder{}, fmt.Errorf("%w: quantity has more decimals than basePrecision (%d)", ErrInvalidOrder, m.BasePrecision)
	}
	if precision.Decimals(price) > m.QuotePrecision {
		return limitOrder{}, fmt.Errorf("%w: price has more decimals than quotePrecision (%d)", ErrInvalidOrder, m.QuotePrecision)
	}
	if !price.IsPositive() {
		return limitOrder{}, fmt.Errorf("%w: price should be greater than 0", ErrInvalidOrder)
	}
	if qty.LessThan(m.MinTradeAmount) {
		return limitOrder{}, fmt.Errorf("%w: quantity is less than minTradeAmount (%s)", ErrInvalidOrder, m.MinTradeAmount)
	}
	if qty.GreaterThan(m.MaxTradeAmount) {
		return limitOrder{}, fmt.Errorf("%w: quantity is more than maxTradeAmount (%s)", ErrInvalidOrder, m.MaxTradeAmount)
	}

	return limitOrder{side: side, price: price, quantity: qty}, nil
}
