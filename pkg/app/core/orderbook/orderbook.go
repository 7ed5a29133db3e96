package orderbook

import (
	"container/list"
	"sync"

	"github.com/uhyunpark/matchbook/pkg/util"
)

// resting locates an order inside its side for O(1) cancellation.
type resting struct {
	side  *side
	level *level
	elem  *list.Element
}

// Depth is a consistent read of one book: every field comes from the same
// read-locked pass.
type Depth struct {
	Bids      []PriceLevel // best (highest) first
	Asks      []PriceLevel // best (lowest) first
	BestBid   PriceLevel
	BestAsk   PriceLevel
	HasBid    bool
	HasAsk    bool
	BidVolume int64
	AskVolume int64
}

// OrderBook is the price-time priority book of a single symbol.
//
// Placement and cancellation take the write lock for the whole operation, so
// a match with all of its fills and the resting insert is one atomic unit.
// Queries take the read lock and return copies.
type OrderBook struct {
	mu sync.RWMutex

	symbol string
	bids   *side
	asks   *side

	// Order index for O(1) cancellation
	orders map[uint64]*resting

	seq       uint64 // arrival sequence of resting orders
	lastPrice int64  // most recent fill price

	sink  TradeSink
	clock util.Clock
}

// NewOrderBook creates an empty book. sink may be nil; clock defaults to the
// wall clock.
func NewOrderBook(symbol string, sink TradeSink, clock util.Clock) *OrderBook {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &OrderBook{
		symbol: symbol,
		bids:   newSide(true),
		asks:   newSide(false),
		orders: make(map[uint64]*resting),
		sink:   sink,
		clock:  clock,
	}
}

func (ob *OrderBook) Symbol() string { return ob.symbol }

func (ob *OrderBook) sideOf(s Side) *side {
	if s == Buy {
		return ob.bids
	}
	return ob.asks
}

func crosses(taker Side, limit, makerPrice int64) bool {
	if taker == Buy {
		return makerPrice <= limit
	}
	return makerPrice >= limit
}

func (ob *OrderBook) check(o *Order) error {
	if o.Qty <= 0 {
		return ErrInvalidQuantity
	}
	if o.Price <= 0 {
		return ErrInvalidPrice
	}
	if o.Side != Buy && o.Side != Sell {
		return ErrInvalidSide
	}
	if o.Symbol != "" && o.Symbol != ob.symbol {
		return ErrSymbolMismatch
	}
	if _, exists := ob.orders[o.ID]; exists {
		return ErrDuplicateOrder
	}
	// matching never adds to the taker's own side, so checking the full
	// quantity up front covers whatever remainder rests
	if !ob.sideOf(o.Side).fits(o.Qty) {
		return ErrDepthOverflow
	}
	return nil
}

// PlaceOrder matches o against the opposite side by price-time priority and
// rests any remainder at the tail of its price level. Every fill executes at
// the maker's price and is handed to the trade sink. It returns o.ID; an id
// that was fully filled here is never resting and can not be canceled later.
//
// Invalid orders are rejected before the book is touched.
func (ob *OrderBook) PlaceOrder(o Order) (uint64, error) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if err := ob.check(&o); err != nil {
		return 0, err
	}

	now := ob.clock.Now()
	if o.Timestamp.IsZero() {
		o.Timestamp = now
	}
	o.Symbol = ob.symbol

	opposite := ob.sideOf(o.Side.Opposite())
	for o.Qty > 0 {
		lvl, ok := opposite.best()
		if !ok || !crosses(o.Side, o.Price, lvl.price) {
			break
		}

		// time priority: oldest order at the best price
		front := lvl.orders.Front()
		maker := front.Value.(*Order)
		fill := min(o.Qty, maker.Qty)

		o.Qty -= fill
		opposite.reduce(lvl, maker, fill)
		ob.lastPrice = lvl.price

		if maker.Qty == 0 {
			opposite.remove(lvl, front)
			delete(ob.orders, maker.ID)
		}

		if ob.sink != nil {
			ob.sink.OnTrade(Trade{
				Symbol:    ob.symbol,
				Price:     lvl.price,
				Qty:       fill,
				MakerID:   maker.ID,
				TakerID:   o.ID,
				TakerSide: o.Side,
				Timestamp: now,
			})
		}
	}

	if o.Qty > 0 {
		ob.rest(o)
	}
	return o.ID, nil
}

func (ob *OrderBook) rest(o Order) {
	ob.seq++
	o.Seq = ob.seq
	s := ob.sideOf(o.Side)
	lvl, e := s.push(&o)
	ob.orders[o.ID] = &resting{side: s, level: lvl, elem: e}
}

// CancelOrder removes a resting order and reports whether it was found.
// Canceling an unknown, filled or already canceled id returns false and
// changes nothing, so callers may retry freely.
func (ob *OrderBook) CancelOrder(id uint64) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	r, ok := ob.orders[id]
	if !ok {
		return false
	}
	r.side.remove(r.level, r.elem)
	delete(ob.orders, id)
	return true
}

// Restore inserts previously resting orders without matching them. Orders are
// queued in the given sequence, so passing them best level first and FIFO
// within a level reproduces the saved time priority. Restore stops at the
// first invalid order; the caller is expected to discard the book then.
func (ob *OrderBook) Restore(orders []Order) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	for _, o := range orders {
		if err := ob.check(&o); err != nil {
			return err
		}
		if best, ok := ob.sideOf(o.Side.Opposite()).best(); ok && crosses(o.Side, o.Price, best.price) {
			return ErrCrossedBook
		}
		o.Symbol = ob.symbol
		if o.Timestamp.IsZero() {
			o.Timestamp = ob.clock.Now()
		}
		ob.rest(o)
	}
	return nil
}

// RestingOrders copies every resting order, bids then asks, best level first
// and FIFO within a level.
func (ob *OrderBook) RestingOrders() []Order {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	out := make([]Order, 0, len(ob.orders))
	collect := func(o *Order) { out = append(out, *o) }
	ob.bids.each(collect)
	ob.asks.each(collect)
	return out
}

// Level2Bids returns bid levels sorted high to low (best bid first).
func (ob *OrderBook) Level2Bids() []PriceLevel {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.depth(0)
}

// Level2Asks returns ask levels sorted low to high (best ask first).
func (ob *OrderBook) Level2Asks() []PriceLevel {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.asks.depth(0)
}

// BestBid returns the highest bid level; false means no bid liquidity.
func (ob *OrderBook) BestBid() (PriceLevel, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return bestOf(ob.bids)
}

// BestAsk returns the lowest ask level; false means no ask liquidity.
func (ob *OrderBook) BestAsk() (PriceLevel, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return bestOf(ob.asks)
}

func bestOf(s *side) (PriceLevel, bool) {
	lvl, ok := s.best()
	if !ok {
		return PriceLevel{}, false
	}
	return PriceLevel{Price: lvl.price, Qty: lvl.total}, true
}

// BidVolume is the total resting bid quantity.
func (ob *OrderBook) BidVolume() int64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.volume
}

// AskVolume is the total resting ask quantity.
func (ob *OrderBook) AskVolume() int64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.asks.volume
}

// Depth reads both sides at once. limit caps the number of levels per side;
// limit <= 0 returns every level. Best prices and volumes ignore the limit.
func (ob *OrderBook) Depth(limit int) Depth {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	d := Depth{
		Bids:      ob.bids.depth(limit),
		Asks:      ob.asks.depth(limit),
		BidVolume: ob.bids.volume,
		AskVolume: ob.asks.volume,
	}
	d.BestBid, d.HasBid = bestOf(ob.bids)
	d.BestAsk, d.HasAsk = bestOf(ob.asks)
	return d
}

// Len returns the number of resting orders.
func (ob *OrderBook) Len() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return len(ob.orders)
}

// LastPrice returns the price of the most recent fill, 0 before any trade.
func (ob *OrderBook) LastPrice() int64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.lastPrice
}
