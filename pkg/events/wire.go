package events

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Message is the envelope pushed to subscribers:
//
//	{"event":"trade","data":[{...}]}
type Message struct {
	Event Kind `json:"event"`
	Data  any  `json:"data"`
}

type tradeUpdate struct {
	Symbol      string          `json:"symbol"`
	Ts          int64           `json:"ts"`
	Type        string          `json:"type"`
	TradePrice  decimal.Decimal `json:"tradePrice"`
	TradeVolume decimal.Decimal `json:"tradeVolume"`
	TradeSide   string          `json:"tradeSide"`
}

type tickerUpdate struct {
	Symbol       string          `json:"symbol"`
	Ts           int64           `json:"ts"`
	Type         string          `json:"type"`
	BestBidPrice decimal.Decimal `json:"bestBidPrice"`
	BestAskPrice decimal.Decimal `json:"bestAskPrice"`
	BestBidQty   decimal.Decimal `json:"bestBidQty"`
	BestAskQty   decimal.Decimal `json:"bestAskQty"`
	BidVolume    decimal.Decimal `json:"bidVolume"`
	AskVolume    decimal.Decimal `json:"askVolume"`
}

type orderbookUpdate struct {
	Symbol   string  `json:"symbol"`
	Ts       int64   `json:"ts"`
	Type     string  `json:"type"`
	Bids     []Level `json:"bids"`
	Asks     []Level `json:"asks"`
	Checksum string  `json:"checksum,omitempty"`
}

const updateType = "update"

// NewMessage wraps an event in its subscriber envelope.
func NewMessage(e Event) (Message, error) {
	switch ev := e.(type) {
	case TradeEvent:
		return Message{Event: KindTrade, Data: []tradeUpdate{{
			Symbol:      ev.Symbol,
			Ts:          ev.Ts,
			Type:        updateType,
			TradePrice:  ev.Price,
			TradeVolume: ev.Quantity,
			TradeSide:   ev.Side,
		}}}, nil
	case TickerEvent:
		return Message{Event: KindTicker, Data: []tickerUpdate{{
			Symbol:       ev.Symbol,
			Ts:           ev.Ts,
			Type:         updateType,
			BestBidPrice: ev.BestBidPrice,
			BestAskPrice: ev.BestAskPrice,
			BestBidQty:   ev.BestBidQty,
			BestAskQty:   ev.BestAskQty,
			BidVolume:    ev.BidVolume,
			AskVolume:    ev.AskVolume,
		}}}, nil
	case OrderbookEvent:
		bids, asks := ev.Bids, ev.Asks
		if bids == nil {
			bids = []Level{}
		}
		if asks == nil {
			asks = []Level{}
		}
		return Message{Event: KindOrderbook, Data: []orderbookUpdate{{
			Symbol:   ev.Symbol,
			Ts:       ev.Ts,
			Type:     updateType,
			Bids:     bids,
			Asks:     asks,
			Checksum: ev.Checksum,
		}}}, nil
	default:
		return Message{}, fmt.Errorf("unsupported event %T", e)
	}
}

// Marshal encodes an event as its subscriber envelope.
func Marshal(e Event) ([]byte, error) {
	msg, err := NewMessage(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}
