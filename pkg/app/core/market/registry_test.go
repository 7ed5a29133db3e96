package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func btcUSD() *Market {
	return &Market{
		Symbol:         "BTC-USD",
		Base:           "BTC",
		Quote:          "USD",
		MinTradeAmount: decimal.RequireFromString("0.0001"),
		MaxTradeAmount: decimal.RequireFromString("1000"),
		BasePrecision:  4,
		QuotePrecision: 2,
	}
}

func TestRegisterAndGet(t *testing.T) {
	mr := NewMarketRegistry()
	require.NoError(t, mr.RegisterMarket(btcUSD()))

	m, err := mr.GetMarket("BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, int32(4), m.BasePrecision)
	assert.Equal(t, Active, m.Status)
	assert.True(t, mr.Exists("BTC-USD"))
	assert.Equal(t, 1, mr.Count())

	_, err = mr.GetMarket("DOGE-USD")
	assert.ErrorIs(t, err, ErrMarketNotFound)
}

func TestRegisterRejectsDuplicateAndInvalid(t *testing.T) {
	mr := NewMarketRegistry()
	require.NoError(t, mr.RegisterMarket(btcUSD()))
	assert.Error(t, mr.RegisterMarket(btcUSD()))
	assert.Error(t, mr.RegisterMarket(nil))

	tests := []struct {
		name   string
		mutate func(*Market)
	}{
		{"empty symbol", func(m *Market) { m.Symbol = "" }},
		{"missing quote", func(m *Market) { m.Quote = "" }},
		{"negative base precision", func(m *Market) { m.BasePrecision = -1 }},
		{"quote precision too large", func(m *Market) { m.QuotePrecision = MaxPrecision + 1 }},
		{"zero min amount", func(m *Market) { m.MinTradeAmount = decimal.Zero }},
		{"max below min", func(m *Market) { m.MaxTradeAmount = decimal.RequireFromString("0.00001") }},
		{"max leaves no depth headroom", func(m *Market) {
			m.BasePrecision = 12
			m.MinTradeAmount = decimal.RequireFromString("1")
			m.MaxTradeAmount = decimal.RequireFromString("5000000")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := btcUSD()
			m.Symbol = "X-" + tt.name
			tt.mutate(m)
			assert.Error(t, NewMarketRegistry().RegisterMarket(m))
		})
	}
}

func TestValidateDepthHeadroomBoundary(t *testing.T) {
	m := btcUSD()
	m.BasePrecision = 12
	m.MinTradeAmount = decimal.RequireFromString("1")
	m.MaxTradeAmount = decimal.RequireFromString("9.223372036854")
	require.NoError(t, m.Validate())

	m.MaxTradeAmount = decimal.RequireFromString("9.223372036855")
	assert.Error(t, m.Validate())

	// at base precision 4 the same bound is large
	assert.NoError(t, btcUSD().Validate())
}

func TestRegistryStoresCopies(t *testing.T) {
	mr := NewMarketRegistry()
	m := btcUSD()
	require.NoError(t, mr.RegisterMarket(m))

	m.BasePrecision = 8
	got, err := mr.GetMarket("BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, int32(4), got.BasePrecision)

	got.QuotePrecision = 9
	again, _ := mr.GetMarket("BTC-USD")
	assert.Equal(t, int32(2), again.QuotePrecision)
}

func TestUpdateMarketStatus(t *testing.T) {
	mr := NewMarketRegistry()
	require.NoError(t, mr.RegisterMarket(btcUSD()))

	require.NoError(t, mr.UpdateMarketStatus("BTC-USD", Paused))
	m, _ := mr.GetMarket("BTC-USD")
	assert.Equal(t, Paused, m.Status)

	assert.ErrorIs(t, mr.UpdateMarketStatus("NOPE", Paused), ErrMarketNotFound)
}

func TestListMarketsSorted(t *testing.T) {
	mr, err := NewMarketRegistryFrom(Defaults())
	require.NoError(t, err)

	var symbols []string
	for _, m := range mr.ListMarkets() {
		symbols = append(symbols, m.Symbol)
	}
	assert.Equal(t, []string{"BTC-USD", "ETH-BTC", "ETH-USD"}, symbols)
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{Active, Paused} {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := ParseStatus("")
	require.NoError(t, err)
	assert.Equal(t, Active, got)

	_, err = ParseStatus("halted")
	assert.Error(t, err)
}
