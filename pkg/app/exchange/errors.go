package exchange

import "errors"

var (
	// ErrUnknownSymbol is returned for a symbol with no configured market.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrInvalidOrder covers every request-level validation failure.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrUnsupportedOrderType is returned for anything but a limit order.
	ErrUnsupportedOrderType = errors.New("unsupported order type")
)
