package orderbook

import (
	"errors"
	"time"
)

var (
	ErrInvalidQuantity = errors.New("order quantity must be positive")
	ErrInvalidPrice    = errors.New("order price must be positive")
	ErrInvalidSide     = errors.New("order side must be buy or sell")
	ErrSymbolMismatch  = errors.New("order symbol does not match book")
	ErrDuplicateOrder  = errors.New("order id already resting in book")
	ErrCrossedBook     = errors.New("restored order would cross the book")
	ErrDepthOverflow   = errors.New("order quantity would overflow resting depth")
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the side an order of this side matches against.
func (s Side) Opposite() Side { return -s }

// Order is a good-til-cancel limit order. Price and Qty are in orderbook
// precision. Once resting, only Qty changes and it only ever decreases.
type Order struct {
	ID        uint64
	Symbol    string
	Side      Side
	Price     int64 // integer quote units
	Qty       int64 // remaining, integer base units
	Seq       uint64
	Timestamp time.Time
}

// Trade is one fill between a resting maker and an incoming taker. It always
// executes at the maker's price.
type Trade struct {
	Symbol    string
	Price     int64
	Qty       int64
	MakerID   uint64
	TakerID   uint64
	TakerSide Side
	Timestamp time.Time
}

// TradeSink receives trades as they are produced. It is called while the book
// holds its write lock, so it must not block or call back into the book.
type TradeSink interface {
	OnTrade(Trade)
}

type TradeSinkFunc func(Trade)

func (f TradeSinkFunc) OnTrade(t Trade) { f(t) }

// PriceLevel is one row of an L2 view: a price and the quantity resting at it.
type PriceLevel struct {
	Price int64
	Qty   int64 // total qty at this price level
}
