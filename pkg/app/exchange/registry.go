package exchange

import (
	"fmt"

	"github.com/uhyunpark/matchbook/pkg/app/core/market"
	"github.com/uhyunpark/matchbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/matchbook/pkg/util"
)

// Registry maps each configured symbol to its book. The set of symbols is
// fixed at construction; market metadata such as status is read through the
// market registry on every lookup.
type Registry struct {
	markets *market.MarketRegistry
	books   map[string]*orderbook.OrderBook
	symbols []string
}

// NewRegistry creates one empty book per registered market. sinkFor supplies
// the trade sink of each book and may return nil.
func NewRegistry(markets *market.MarketRegistry, sinkFor func(symbol string) orderbook.TradeSink, clock util.Clock) *Registry {
	r := &Registry{
		markets: markets,
		books:   make(map[string]*orderbook.OrderBook),
	}
	for _, m := range markets.ListMarkets() {
		var sink orderbook.TradeSink
		if sinkFor != nil {
			sink = sinkFor(m.Symbol)
		}
		r.books[m.Symbol] = orderbook.NewOrderBook(m.Symbol, sink, clock)
		r.symbols = append(r.symbols, m.Symbol)
	}
	return r
}

// Lookup returns the market and book of a symbol.
func (r *Registry) Lookup(symbol string) (market.Market, *orderbook.OrderBook, error) {
	book, ok := r.books[symbol]
	if !ok {
		return market.Market{}, nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	m, err := r.markets.GetMarket(symbol)
	if err != nil {
		return market.Market{}, nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return m, book, nil
}

// Book returns the book of a symbol.
func (r *Registry) Book(symbol string) (*orderbook.OrderBook, error) {
	book, ok := r.books[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return book, nil
}

func (r *Registry) Has(symbol string) bool {
	_, ok := r.books[symbol]
	return ok
}

// Symbols lists every symbol in sorted order.
func (r *Registry) Symbols() []string {
	return append([]string(nil), r.symbols...)
}

func (r *Registry) Markets() *market.MarketRegistry { return r.markets }
