// Package events defines the market data published by the exchange and the
// sinks that carry it to subscribers. Every event names its symbol so sinks
// can route without inspecting the payload.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindTrade     Kind = "trade"
	KindTicker    Kind = "ticker"
	KindOrderbook Kind = "orderbook"
)

// Channel returns the subscription channel of an event kind for one symbol,
// e.g. "trades:BTC-USD".
func Channel(kind Kind, symbol string) string {
	switch kind {
	case KindTrade:
		return "trades:" + symbol
	default:
		return string(kind) + ":" + symbol
	}
}

// ParseChannel splits a subscription channel into its kind and symbol.
func ParseChannel(channel string) (Kind, string, error) {
	for _, k := range []Kind{KindTrade, KindTicker, KindOrderbook} {
		prefix := Channel(k, "")
		if len(channel) > len(prefix) && channel[:len(prefix)] == prefix {
			return k, channel[len(prefix):], nil
		}
	}
	return "", "", fmt.Errorf("unknown channel %q", channel)
}

type Event interface {
	EventKind() Kind
	EventSymbol() string
}

// TradeEvent is one fill. Ts is unix milliseconds and Side is the taker side.
type TradeEvent struct {
	Ts       int64
	Symbol   string
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Side     string
}

func (TradeEvent) EventKind() Kind       { return KindTrade }
func (e TradeEvent) EventSymbol() string { return e.Symbol }

// TickerEvent is a top-of-book sample. Missing sides are reported as zero.
type TickerEvent struct {
	Ts           int64
	Symbol       string
	BestBidPrice decimal.Decimal
	BestAskPrice decimal.Decimal
	BestBidQty   decimal.Decimal
	BestAskQty   decimal.Decimal
	BidVolume    decimal.Decimal
	AskVolume    decimal.Decimal
}

func (TickerEvent) EventKind() Kind       { return KindTicker }
func (e TickerEvent) EventSymbol() string { return e.Symbol }

// Level is one L2 row. It is encoded as a [price, quantity] pair.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]decimal.Decimal{l.Price, l.Quantity})
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var pair [2]decimal.Decimal
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	l.Price, l.Quantity = pair[0], pair[1]
	return nil
}

// OrderbookEvent is an L2 sample of both sides, best level first. Checksum is
// the hex SHA3-256 of the integer book and lets consumers detect divergence.
type OrderbookEvent struct {
	Ts       int64
	Symbol   string
	Bids     []Level
	Asks     []Level
	Checksum string
}

func (OrderbookEvent) EventKind() Kind       { return KindOrderbook }
func (e OrderbookEvent) EventSymbol() string { return e.Symbol }
