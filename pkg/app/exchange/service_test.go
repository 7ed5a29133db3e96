package exchange

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/uhyunpark/matchbook/pkg/app/core/market"
	"github.com/uhyunpark/matchbook/pkg/app/core/orderid"
	"github.com/uhyunpark/matchbook/pkg/events"
	"github.com/uhyunpark/matchbook/pkg/metrics"
	"github.com/uhyunpark/matchbook/pkg/util"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type harness struct {
	svc   *Service
	rec   *events.Recorder
	clock *util.ManualClock
	ids   *orderid.Generator
	m     *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	markets, err := market.NewMarketRegistryFrom(market.Defaults())
	require.NoError(t, err)

	h := &harness{
		rec:   &events.Recorder{},
		clock: util.NewManualClock(time.UnixMilli(1700000000000)),
		ids:   orderid.New(0),
		m:     metrics.New(),
	}
	h.svc, err = New(Config{
		Markets: markets,
		Sink:    h.rec,
		IDs:     h.ids,
		Clock:   h.clock,
		Logger:  zaptest.NewLogger(t).Sugar(),
		Metrics: h.m,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) place(t *testing.T, side, price, qty string) string {
	t.Helper()
	resp, err := h.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		Symbol: "BTC-USD", Side: side, Price: price, Quantity: qty, OrderType: "LIMIT",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.OrderID)
	return resp.OrderID
}

func (h *harness) trades() []events.TradeEvent {
	var out []events.TradeEvent
	for _, e := range h.rec.OfKind(events.KindTrade) {
		out = append(out, e.(events.TradeEvent))
	}
	return out
}

func (h *harness) cancel(t *testing.T, id string) bool {
	t.Helper()
	resp, err := h.svc.CancelOrder(context.Background(), CancelOrderRequest{OrderID: id, Symbol: "BTC-USD"})
	require.NoError(t, err)
	return resp.Success
}

func TestNewRequiresMarkets(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	_, err = New(Config{Markets: market.NewMarketRegistry()})
	assert.Error(t, err)
}

func TestScenarios(t *testing.T) {
	h := newHarness(t)

	// 1. BUY 1.0000 @ 100.00 rests on an empty book
	h.place(t, "BUY", "100.00", "1.0000")
	ticker, err := h.svc.Ticker("BTC-USD")
	require.NoError(t, err)
	assert.True(t, ticker.BestBidPrice.Equal(d("100")))
	assert.True(t, ticker.BestBidQty.Equal(d("1")))
	assert.True(t, ticker.BestAskPrice.IsZero(), "no ask liquidity reports zero")
	assert.True(t, ticker.BestAskQty.IsZero())

	// 2. SELL 0.4000 @ 100.00 fills against it
	h.place(t, "SELL", "100.00", "0.4000")
	trades := h.trades()
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(d("100")))
	assert.True(t, trades[0].Quantity.Equal(d("0.4")))
	assert.Equal(t, "SELL", trades[0].Side)
	assert.Equal(t, "BTC-USD", trades[0].Symbol)
	assert.Equal(t, int64(1700000000000), trades[0].Ts)

	ticker, err = h.svc.Ticker("BTC-USD")
	require.NoError(t, err)
	assert.True(t, ticker.BidVolume.Equal(d("0.6")))
}

func TestScenarioMakerPriceAndCancelFilled(t *testing.T) {
	h := newHarness(t)

	// 3. SELL 1 @ 99.00 rests, BUY 1 @ 99.50 fills at the maker price
	maker := h.place(t, "SELL", "99.00", "1.0000")
	taker := h.place(t, "BUY", "99.50", "1.0000")

	trades := h.trades()
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(d("99")))
	assert.True(t, trades[0].Quantity.Equal(d("1")))

	ob, err := h.svc.Orderbook("BTC-USD", 0)
	require.NoError(t, err)
	assert.Empty(t, ob.Bids)
	assert.Empty(t, ob.Asks)

	// 4. cancel on a fully filled id
	assert.False(t, h.cancel(t, taker))
	assert.False(t, h.cancel(t, maker))
}

func TestScenarioQuantityPrecision(t *testing.T) {
	h := newHarness(t)

	// 5. 0.00001 is both below the minimum and too precise; precision wins
	_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		Symbol: "BTC-USD", Side: "BUY", Price: "100.00", Quantity: "0.00001",
	})
	require.ErrorIs(t, err, ErrInvalidOrder)
	assert.Contains(t, err.Error(), "quantity has more decimals than basePrecision")
}

func TestPlaceOrderValidation(t *testing.T) {
	tests := []struct {
		name string
		req  PlaceOrderRequest
		err  error
		msg  string
	}{
		{"market order", PlaceOrderRequest{Symbol: "BTC-USD", Side: "BUY", Price: "100", Quantity: "1", OrderType: "MARKET"}, ErrUnsupportedOrderType, "not supported"},
		{"stop order", PlaceOrderRequest{Symbol: "BTC-USD", Side: "BUY", Price: "100", Quantity: "1", OrderType: "STOP"}, ErrUnsupportedOrderType, "STOP"},
		{"unknown symbol", PlaceOrderRequest{Symbol: "DOGE-USD", Side: "BUY", Price: "100", Quantity: "1"}, ErrUnknownSymbol, "DOGE-USD"},
		{"bad side", PlaceOrderRequest{Symbol: "BTC-USD", Side: "HOLD", Price: "100", Quantity: "1"}, ErrInvalidOrder, "side"},
		{"price not a number", PlaceOrderRequest{Symbol: "BTC-USD", Side: "BUY", Price: "abc", Quantity: "1"}, ErrInvalidOrder, "price"},
		{"quantity not a number", PlaceOrderRequest{Symbol: "BTC-USD", Side: "BUY", Price: "100", Quantity: ""}, ErrInvalidOrder, "quantity"},
		{"price too precise", PlaceOrderRequest{Symbol: "BTC-USD", Side: "BUY", Price: "100.001", Quantity: "1"}, ErrInvalidOrder, "quotePrecision"},
		{"zero price", PlaceOrderRequest{Symbol: "BTC-USD", Side: "BUY", Price: "0", Quantity: "1"}, ErrInvalidOrder, "greater than 0"},
		{"negative price", PlaceOrderRequest{Symbol: "BTC-USD", Side: "SELL", Price: "-5", Quantity: "1"}, ErrInvalidOrder, "greater than 0"},
		{"too precise and below min", PlaceOrderRequest{Symbol: "ETH-USD", Side: "BUY", Price: "100", Quantity: "0.0005"}, ErrInvalidOrder, "quantity has more decimals"},
		{"zero quantity", PlaceOrderRequest{Symbol: "BTC-USD", Side: "BUY", Price: "100", Quantity: "0"}, ErrInvalidOrder, "minTradeAmount"},
		{"above max", PlaceOrderRequest{Symbol: "BTC-USD", Side: "BUY", Price: "100", Quantity: "1000.0001"}, ErrInvalidOrder, "maxTradeAmount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.svc.PlaceOrder(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), tt.msg)

			for _, symbol := range h.svc.Symbols() {
				ob, err := h.svc.Orderbook(symbol, 0)
				require.NoError(t, err)
				assert.Empty(t, ob.Bids, "nothing rests after a rejection")
				assert.Empty(t, ob.Asks)
			}
			assert.Zero(t, h.ids.Current(), "no id is consumed by a rejection")
		})
	}
}

func TestPlaceOrderBounds(t *testing.T) {
	h := newHarness(t)
	// min and max are inclusive
	h.place(t, "BUY", "1", "0.0001")
	h.place(t, "BUY", "1", "1000")
	// lower case side and default order type
	_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderRequest{Symbol: "BTC-USD", Side: "sell", Price: "2", Quantity: "1"})
	require.NoError(t, err)
}

func TestPlaceOrderTrailingZerosWithinPrecision(t *testing.T) {
	h := newHarness(t)
	h.place(t, "BUY", "100.000000", "1.50000000")

	ob, err := h.svc.Orderbook("BTC-USD", 0)
	require.NoError(t, err)
	require.Len(t, ob.Bids, 1)
	assert.True(t, ob.Bids[0].Price.Equal(d("100")))
	assert.True(t, ob.Bids[0].Quantity.Equal(d("1.5")))
}

func TestPausedMarketRejectsPlacementButAllowsCancel(t *testing.T) {
	h := newHarness(t)
	id := h.place(t, "BUY", "100", "1")

	require.NoError(t, h.svc.SetMarketStatus("BTC-USD", market.Paused))
	_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderRequest{Symbol: "BTC-USD", Side: "BUY", Price: "100", Quantity: "1"})
	require.ErrorIs(t, err, ErrInvalidOrder)
	assert.Contains(t, err.Error(), "Paused")

	assert.True(t, h.cancel(t, id))

	require.NoError(t, h.svc.SetMarketStatus("BTC-USD", market.Active))
	h.place(t, "BUY", "100", "1")

	assert.ErrorIs(t, h.svc.SetMarketStatus("NOPE", market.Paused), ErrUnknownSymbol)
}

func TestCancelOrder(t *testing.T) {
	h := newHarness(t)
	id := h.place(t, "BUY", "100", "1")

	assert.True(t, h.cancel(t, id))
	assert.False(t, h.cancel(t, id), "repeat cancel")
	assert.False(t, h.cancel(t, "999"), "unknown id")
	assert.False(t, h.cancel(t, "not-an-id"))

	_, err := h.svc.CancelOrder(context.Background(), CancelOrderRequest{OrderID: id, Symbol: "DOGE-USD"})
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	// ids are per book; the BTC id does not exist in ETH-USD
	other := h.place(t, "BUY", "100", "1")
	resp, err := h.svc.CancelOrder(context.Background(), CancelOrderRequest{OrderID: other, Symbol: "ETH-USD"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

func TestCanceledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.PlaceOrder(ctx, PlaceOrderRequest{Symbol: "BTC-USD", Side: "BUY", Price: "100", Quantity: "1"})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = h.svc.CancelOrder(ctx, CancelOrderRequest{OrderID: "1", Symbol: "BTC-USD"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrderIDsAreUniqueAcrossMarkets(t *testing.T) {
	h := newHarness(t)
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		for _, symbol := range []string{"BTC-USD", "ETH-USD"} {
			resp, err := h.svc.PlaceOrder(context.Background(), PlaceOrderRequest{Symbol: symbol, Side: "BUY", Price: "10", Quantity: "1"})
			require.NoError(t, err)
			assert.False(t, seen[resp.OrderID])
			seen[resp.OrderID] = true
		}
	}
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t)
	h.place(t, "BUY", "99.50", "0.5")
	h.place(t, "BUY", "99.00", "2")
	h.place(t, "SELL", "101.25", "0.25")

	ticker, ob, err := h.svc.Snapshot("BTC-USD", 1)
	require.NoError(t, err)

	assert.Equal(t, "BTC-USD", ticker.Symbol)
	assert.True(t, ticker.BestBidPrice.Equal(d("99.5")))
	assert.True(t, ticker.BestAskPrice.Equal(d("101.25")))
	assert.True(t, ticker.BidVolume.Equal(d("2.5")))
	assert.True(t, ticker.AskVolume.Equal(d("0.25")))

	require.Len(t, ob.Bids, 1, "depth limit applies to levels")
	assert.True(t, ob.Bids[0].Quantity.Equal(d("0.5")))
	require.Len(t, ob.Asks, 1)
	assert.Len(t, ob.Checksum, 64)
	assert.Equal(t, ticker.Ts, ob.Ts)

	_, ob2, err := h.svc.Snapshot("BTC-USD", 1)
	require.NoError(t, err)
	assert.Equal(t, ob.Checksum, ob2.Checksum)

	_, _, err = h.svc.Snapshot("DOGE-USD", 1)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestMarketsListing(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, []string{"BTC-USD", "ETH-BTC", "ETH-USD"}, h.svc.Symbols())
	assert.Len(t, h.svc.Markets(), 3)
}

func TestRejectedOrderLabelsStayBounded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		_, err := h.svc.PlaceOrder(ctx, PlaceOrderRequest{
			Symbol: fmt.Sprintf("junk-%d", i), Side: "BUY", Price: "1", Quantity: "1",
		})
		require.ErrorIs(t, err, ErrUnknownSymbol)

		_, err = h.svc.PlaceOrder(ctx, PlaceOrderRequest{
			Symbol: fmt.Sprintf("junk-%d", i), Side: "BUY", Price: "1", Quantity: "1", OrderType: "STOP",
		})
		require.ErrorIs(t, err, ErrUnsupportedOrderType)
	}
	_, err := h.svc.PlaceOrder(ctx, PlaceOrderRequest{Symbol: "BTC-USD", Side: "BUY", Price: "0", Quantity: "1"})
	require.ErrorIs(t, err, ErrInvalidOrder)

	n, err := testutil.GatherAndCount(h.m.Registry(), "matchbook_orders_rejected_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "unknown/unknown_symbol, unknown/unsupported_order_type, BTC-USD/invalid_order")
}
