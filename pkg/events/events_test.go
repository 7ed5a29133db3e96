package events

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestChannel(t *testing.T) {
	assert.Equal(t, "trades:BTC-USD", Channel(KindTrade, "BTC-USD"))
	assert.Equal(t, "ticker:BTC-USD", Channel(KindTicker, "BTC-USD"))
	assert.Equal(t, "orderbook:ETH-USD", Channel(KindOrderbook, "ETH-USD"))

	kind, symbol, err := ParseChannel("trades:ETH-BTC")
	require.NoError(t, err)
	assert.Equal(t, KindTrade, kind)
	assert.Equal(t, "ETH-BTC", symbol)

	for _, bad := range []string{"", "trades:", "trade:BTC-USD", "account:0xabc"} {
		_, _, err := ParseChannel(bad)
		assert.Error(t, err, bad)
	}
}

func TestMarshalTrade(t *testing.T) {
	raw, err := Marshal(TradeEvent{
		Ts:       1700000000123,
		Symbol:   "BTC-USD",
		Price:    d("100"),
		Quantity: d("0.4"),
		Side:     "SELL",
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"event":"trade","data":[{
		"symbol":"BTC-USD","ts":1700000000123,"type":"update",
		"tradePrice":"100","tradeVolume":"0.4","tradeSide":"SELL"}]}`, string(raw))
}

func TestMarshalTicker(t *testing.T) {
	raw, err := Marshal(TickerEvent{Ts: 1, Symbol: "BTC-USD", BestBidPrice: d("100"), BestBidQty: d("0.6"), BidVolume: d("0.6")})
	require.NoError(t, err)

	assert.JSONEq(t, `{"event":"ticker","data":[{
		"symbol":"BTC-USD","ts":1,"type":"update",
		"bestBidPrice":"100","bestAskPrice":"0","bestBidQty":"0.6","bestAskQty":"0",
		"bidVolume":"0.6","askVolume":"0"}]}`, string(raw))
}

func TestMarshalOrderbook(t *testing.T) {
	raw, err := Marshal(OrderbookEvent{
		Ts:     2,
		Symbol: "BTC-USD",
		Bids:   []Level{{Price: d("100"), Quantity: d("0.6")}, {Price: d("99.5"), Quantity: d("1")}},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"event":"orderbook","data":[{
		"symbol":"BTC-USD","ts":2,"type":"update",
		"bids":[["100","0.6"],["99.5","1"]],"asks":[]}]}`, string(raw))
}

func TestLevelUnmarshal(t *testing.T) {
	var levels []Level
	require.NoError(t, json.Unmarshal([]byte(`[["100.25","0.5"]]`), &levels))
	require.Len(t, levels, 1)
	assert.True(t, levels[0].Price.Equal(d("100.25")))
	assert.True(t, levels[0].Quantity.Equal(d("0.5")))

	var l Level
	assert.Error(t, json.Unmarshal([]byte(`{"price":"1"}`), &l))
}

type otherEvent struct{}

func (otherEvent) EventKind() Kind     { return "other" }
func (otherEvent) EventSymbol() string { return "" }

func TestMarshalUnknownEvent(t *testing.T) {
	_, err := Marshal(otherEvent{})
	assert.Error(t, err)
}

func TestMultiSinkAndRecorder(t *testing.T) {
	var a, b Recorder
	var calls int
	sink := MultiSink{&a, &b, SinkFunc(func(Event) { calls++ }), Discard}

	sink.Publish(TradeEvent{Symbol: "BTC-USD"})
	sink.Publish(TickerEvent{Symbol: "ETH-USD"})

	assert.Len(t, a.Events(), 2)
	assert.Len(t, b.Events(), 2)
	assert.Equal(t, 2, calls)
	assert.Len(t, a.OfKind(KindTicker), 1)
	assert.Equal(t, "ETH-USD", a.OfKind(KindTicker)[0].EventSymbol())

	a.Reset()
	assert.Empty(t, a.Events())
}
