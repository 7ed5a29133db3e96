package orderbook

import (
	"container/list"
	"math"

	"github.com/tidwall/btree"
)

// level is a FIFO queue of resting orders at a single price.
// total always equals the sum of the queued orders' remaining Qty.
type level struct {
	price  int64
	total  int64
	orders list.List // *Order, oldest at the front
}

// side is the price-ordered index of one half of the book. Bids are walked
// high to low, asks low to high. Empty levels are never kept.
type side struct {
	bid    bool
	levels *btree.Map[int64, *level]
	volume int64
}

func newSide(bid bool) *side {
	return &side{
		bid:    bid,
		levels: btree.NewMap[int64, *level](32),
	}
}

// best returns the level that trades first, if any.
func (s *side) best() (*level, bool) {
	var lvl *level
	var ok bool
	if s.bid {
		_, lvl, ok = s.levels.Max()
	} else {
		_, lvl, ok = s.levels.Min()
	}
	return lvl, ok
}

// fits reports whether qty more can rest on this side. Every level total is
// bounded by the side volume, so this also bounds the level push adds to.
func (s *side) fits(qty int64) bool {
	return s.volume <= math.MaxInt64-qty
}

// push appends o to the tail of its price level, creating the level if needed.
// The caller checks fits first.
func (s *side) push(o *Order) (*level, *list.Element) {
	lvl, ok := s.levels.Get(o.Price)
	if !ok {
		lvl = &level{price: o.Price}
		s.levels.Set(o.Price, lvl)
	}
	lvl.total += o.Qty
	s.volume += o.Qty
	return lvl, lvl.orders.PushBack(o)
}

// reduce takes qty off an order still queued in lvl.
func (s *side) reduce(lvl *level, o *Order, qty int64) {
	o.Qty -= qty
	lvl.total -= qty
	s.volume -= qty
}

// remove unlinks an order and drops its level once empty.
func (s *side) remove(lvl *level, e *list.Element) {
	o := lvl.orders.Remove(e).(*Order)
	lvl.total -= o.Qty
	s.volume -= o.Qty
	if lvl.orders.Len() == 0 {
		s.levels.Delete(lvl.price)
	}
}

// depth copies up to limit levels best-first; limit <= 0 means all.
func (s *side) depth(limit int) []PriceLevel {
	n := s.levels.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]PriceLevel, 0, n)
	iter := func(_ int64, lvl *level) bool {
		out = append(out, PriceLevel{Price: lvl.price, Qty: lvl.total})
		return len(out) < n
	}
	if n == 0 {
		return out
	}
	if s.bid {
		s.levels.Reverse(iter)
	} else {
		s.levels.Scan(iter)
	}
	return out
}

// each visits every resting order best level first, FIFO within a level.
func (s *side) each(fn func(*Order)) {
	iter := func(_ int64, lvl *level) bool {
		for e := lvl.orders.Front(); e != nil; e = e.Next() {
			fn(e.Value.(*Order))
		}
		return true
	}
	if s.bid {
		s.levels.Reverse(iter)
	} else {
		s.levels.Scan(iter)
	}
}
