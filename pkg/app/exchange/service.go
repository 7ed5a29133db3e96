// Package exchange is the application layer in front of the order books. It
// validates requests in display units, converts them to orderbook precision,
// and turns fills and book samples into market data events.
package exchange

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/uhyunpark/matchbook/pkg/app/core/market"
	"github.com/uhyunpark/matchbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/matchbook/pkg/app/core/orderid"
	"github.com/uhyunpark/matchbook/pkg/app/core/precision"
	"github.com/uhyunpark/matchbook/pkg/events"
	"github.com/uhyunpark/matchbook/pkg/metrics"
	"github.com/uhyunpark/matchbook/pkg/util"
)

type PlaceOrderRequest struct {
	Symbol    string
	Side      string // BUY or SELL
	Price     string // decimal, quote units
	Quantity  string // decimal, base units
	OrderType string // LIMIT (default) or MARKET
}

type PlaceOrderResponse struct {
	OrderID string
}

type CancelOrderRequest struct {
	OrderID string
	Symbol  string
}

type CancelOrderResponse struct {
	Success bool
}

type Config struct {
	Markets *market.MarketRegistry
	Sink    events.Sink        // receives trade events; nil discards them
	IDs     *orderid.Generator // nil starts a fresh generator at 0
	Clock   util.Clock
	Logger  *zap.SugaredLogger
	Metrics *metrics.Metrics
}

type Service struct {
	reg     *Registry
	sink    events.Sink
	ids     *orderid.Generator
	clock   util.Clock
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

func New(cfg Config) (*Service, error) {
	if cfg.Markets == nil || cfg.Markets.Count() == 0 {
		return nil, errors.New("exchange: at least one market is required")
	}
	s := &Service{
		sink:    cfg.Sink,
		ids:     cfg.IDs,
		clock:   cfg.Clock,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
	}
	if s.sink == nil {
		s.sink = events.Discard
	}
	if s.ids == nil {
		s.ids = orderid.New(0)
	}
	if s.clock == nil {
		s.clock = util.RealClock{}
	}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}
	s.reg = NewRegistry(cfg.Markets, s.tradeSink, s.clock)
	return s, nil
}

// tradeSink converts fills of one book into trade events. It runs under the
// book's write lock, so it only formats and hands off.
func (s *Service) tradeSink(symbol string) orderbook.TradeSink {
	return orderbook.TradeSinkFunc(func(t orderbook.Trade) {
		m, err := s.reg.Markets().GetMarket(symbol)
		if err != nil {
			return
		}
		price, qty := precision.FromOrderbook(m, t.Price, t.Qty)
		s.metrics.Trade(symbol)
		s.sink.Publish(events.TradeEvent{
			Ts:       t.Timestamp.UnixMilli(),
			Symbol:   symbol,
			Price:    price,
			Quantity: qty,
			Side:     t.TakerSide.String(),
		})
	})
}

func (s *Service) Registry() *Registry { return s.reg }

// Symbols lists the tradable symbols in sorted order.
func (s *Service) Symbols() []string { return s.reg.Symbols() }

// Markets returns the metadata of every market sorted by symbol.
func (s *Service) Markets() []market.Market { return s.reg.Markets().ListMarkets() }

// SetMarketStatus pauses or resumes new placements on a market.
func (s *Service) SetMarketStatus(symbol string, status market.Status) error {
	if !s.reg.Has(symbol) {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if err := s.reg.Markets().UpdateMarketStatus(symbol, status); err != nil {
		return err
	}
	s.log.Infow("market_status_changed", "symbol", symbol, "status", status.String())
	return nil
}

// PlaceOrder validates a limit order, assigns it an id and matches it.
// Fills are published as trade events before PlaceOrder returns. Nothing is
// mutated when an error is returned.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResponse, error) {
	if err := ctx.Err(); err != nil {
		return PlaceOrderResponse{}, err
	}
	if err := checkOrderType(req.OrderType); err != nil {
		s.reject(req, "unsupported_order_type", err)
		return PlaceOrderResponse{}, err
	}
	m, book, err := s.reg.Lookup(req.Symbol)
	if err != nil {
		s.reject(req, "unknown_symbol", err)
		return PlaceOrderResponse{}, err
	}
	lo, err := validate(m, req)
	if err != nil {
		s.reject(req, "invalid_order", err)
		return PlaceOrderResponse{}, err
	}
	price, qty, err := precision.ToOrderbook(m, lo.price, lo.quantity)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidOrder, err)
		s.reject(req, "invalid_order", err)
		return PlaceOrderResponse{}, err
	}

	id := s.ids.Next()
	if _, err := book.PlaceOrder(orderbook.Order{
		ID:     id,
		Symbol: m.Symbol,
		Side:   lo.side,
		Price:  price,
		Qty:    qty,
	}); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidOrder, err)
		s.reject(req, "engine", err)
		return PlaceOrderResponse{}, err
	}

	s.metrics.OrderPlaced(m.Symbol, lo.side.String())
	s.log.Debugw("order_placed",
		"order_id", id,
		"symbol", m.Symbol,
		"side", lo.side.String(),
		"price", lo.price.String(),
		"quantity", lo.quantity.String(),
	)
	return PlaceOrderResponse{OrderID: orderid.Format(id)}, nil
}

// unknownSymbolLabel stands in for symbols that are not configured, so client
// input never becomes a metric label.
const unknownSymbolLabel = "unknown"

func (s *Service) reject(req PlaceOrderRequest, reason string, err error) {
	label := unknownSymbolLabel
	if s.reg.Has(req.Symbol) {
		label = req.Symbol
	}
	s.metrics.OrderRejected(label, reason)
	s.log.Debugw("order_rejected", "symbol", req.Symbol, "side", req.Side, "reason", reason, "err", err)
}

// CancelOrder removes a resting order. An id that is unknown, already filled,
// already canceled or not a valid id at all yields Success=false, not an error.
func (s *Service) CancelOrder(ctx context.Context, req CancelOrderRequest) (CancelOrderResponse, error) {
	if err := ctx.Err(); err != nil {
		return CancelOrderResponse{}, err
	}
	book, err := s.reg.Book(req.Symbol)
	if err != nil {
		return CancelOrderResponse{}, err
	}

	id, err := orderid.Parse(req.OrderID)
	if err != nil {
		s.metrics.Cancel(req.Symbol, false)
		return CancelOrderResponse{Success: false}, nil
	}

	ok := book.CancelOrder(id)
	s.metrics.Cancel(req.Symbol, ok)
	s.log.Debugw("order_cancel", "order_id", id, "symbol", req.Symbol, "found", ok)
	return CancelOrderResponse{Success: ok}, nil
}

// Ticker samples the top of one book.
func (s *Service) Ticker(symbol string) (events.TickerEvent, error) {
	ticker, _, err := s.Snapshot(symbol, 1)
	return ticker, err
}

// Orderbook samples up to depth levels per side of one book; depth <= 0
// returns every level.
func (s *Service) Orderbook(symbol string, depth int) (events.OrderbookEvent, error) {
	_, ob, err := s.Snapshot(symbol, depth)
	return ob, err
}

// Snapshot samples the ticker and L2 view of one book from a single
// consistent read.
func (s *Service) Snapshot(symbol string, depth int) (events.TickerEvent, events.OrderbookEvent, error) {
	m, book, err := s.reg.Lookup(symbol)
	if err != nil {
		return events.TickerEvent{}, events.OrderbookEvent{}, err
	}
	d := book.Depth(depth)
	ts := s.clock.Now().UnixMilli()
	return tickerOf(m, d, ts), orderbookOf(m, d, ts), nil
}

func tickerOf(m market.Market, d orderbook.Depth, ts int64) events.TickerEvent {
	t := events.TickerEvent{
		Ts:        ts,
		Symbol:    m.Symbol,
		BidVolume: precision.Quantity(m, d.BidVolume),
		AskVolume: precision.Quantity(m, d.AskVolume),
	}
	t.BestBidPrice, t.BestBidQty = precision.FromOrderbook(m, d.BestBid.Price, d.BestBid.Qty)
	t.BestAskPrice, t.BestAskQty = precision.FromOrderbook(m, d.BestAsk.Price, d.BestAsk.Qty)
	return t
}

func orderbookOf(m market.Market, d orderbook.Depth, ts int64) events.OrderbookEvent {
	sum := orderbook.Checksum(d.Bids, d.Asks)
	return events.OrderbookEvent{
		Ts:       ts,
		Symbol:   m.Symbol,
		Bids:     levelsOf(m, d.Bids),
		Asks:     levelsOf(m, d.Asks),
		Checksum: fmt.Sprintf("%x", sum[:]),
	}
}

func levelsOf(m market.Market, in []orderbook.PriceLevel) []events.Level {
	out := make([]events.Level, len(in))
	for i, l := range in {
		out[i].Price, out[i].Quantity = precision.FromOrderbook(m, l.Price, l.Qty)
	}
	return out
}
