package market

import (
	"fmt"
	"sort"
	"sync"
)

// MarketRegistry manages multiple markets in a thread-safe manner
// Supports registration, lookup, and status updates for all trading markets
type MarketRegistry struct {
	mu      sync.RWMutex
	markets map[string]*Market // symbol -> market
}

// NewMarketRegistry creates an empty market registry
func NewMarketRegistry() *MarketRegistry {
	return &MarketRegistry{
		markets: make(map[string]*Market),
	}
}

// NewMarketRegistryFrom registers every market, failing on the first invalid or duplicate one.
func NewMarketRegistryFrom(markets []*Market) (*MarketRegistry, error) {
	mr := NewMarketRegistry()
	for _, m := range markets {
		if err := mr.RegisterMarket(m); err != nil {
			return nil, err
		}
	}
	return mr, nil
}

// RegisterMarket adds a new market to the registry
// Returns error if market with same symbol already exists
func (mr *MarketRegistry) RegisterMarket(m *Market) error {
	if m == nil {
		return fmt.Errorf("cannot register nil market")
	}
	if err := m.Validate(); err != nil {
		return err
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	if _, exists := mr.markets[m.Symbol]; exists {
		return fmt.Errorf("market %s already registered", m.Symbol)
	}

	cp := *m
	mr.markets[m.Symbol] = &cp
	return nil
}

// GetMarket retrieves a copy of a market by symbol
func (mr *MarketRegistry) GetMarket(symbol string) (Market, error) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	m, exists := mr.markets[symbol]
	if !exists {
		return Market{}, fmt.Errorf("%w: %s", ErrMarketNotFound, symbol)
	}

	return *m, nil
}

// ListMarkets returns copies of all registered markets sorted by symbol
func (mr *MarketRegistry) ListMarkets() []Market {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	markets := make([]Market, 0, len(mr.markets))
	for _, m := range mr.markets {
		markets = append(markets, *m)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].Symbol < markets[j].Symbol })

	return markets
}

// UpdateMarketStatus changes the trading status of a market
// Used for emergency pausing
func (mr *MarketRegistry) UpdateMarketStatus(symbol string, status Status) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	m, exists := mr.markets[symbol]
	if !exists {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, symbol)
	}

	m.Status = status
	return nil
}

// Count returns the total number of registered markets
func (mr *MarketRegistry) Count() int {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return len(mr.markets)
}

// Exists checks if a market is registered
func (mr *MarketRegistry) Exists(symbol string) bool {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	_, exists := mr.markets[symbol]
	return exists
}
