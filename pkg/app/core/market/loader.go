package market

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// marketConfig mirrors one entry of the markets file. Amounts are strings so
// they are parsed as exact decimals rather than through float64.
type marketConfig struct {
	Symbol         string `mapstructure:"symbol"`
	Base           string `mapstructure:"base"`
	Quote          string `mapstructure:"quote"`
	MinTradeAmount string `mapstructure:"min_trade_amount"`
	MaxTradeAmount string `mapstructure:"max_trade_amount"`
	BasePrecision  int32  `mapstructure:"base_precision"`
	QuotePrecision int32  `mapstructure:"quote_precision"`
	Status         string `mapstructure:"status"`
}

// LoadMarkets reads market definitions from a YAML, JSON or TOML file.
// An empty path yields Defaults().
//
//	markets:
//	  - symbol: BTC-USD
//	    base: BTC
//	    quote: USD
//	    min_trade_amount: "0.0001"
//	    max_trade_amount: "1000"
//	    base_precision: 4
//	    quote_precision: 2
func LoadMarkets(path string) ([]*Market, error) {
	if path == "" {
		return Defaults(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read markets file %s: %w", path, err)
	}

	var cfgs []marketConfig
	if err := v.UnmarshalKey("markets", &cfgs); err != nil {
		return nil, fmt.Errorf("decode markets file %s: %w", path, err)
	}
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("markets file %s defines no markets", path)
	}

	markets := make([]*Market, 0, len(cfgs))
	for i, c := range cfgs {
		m, err := c.toMarket()
		if err != nil {
			return nil, fmt.Errorf("markets[%d]: %w", i, err)
		}
		markets = append(markets, m)
	}
	return markets, nil
}

func (c marketConfig) toMarket() (*Market, error) {
	minAmt, err := decimal.NewFromString(c.MinTradeAmount)
	if err != nil {
		return nil, fmt.Errorf("%s: min_trade_amount: %w", c.Symbol, err)
	}
	maxAmt, err := decimal.NewFromString(c.MaxTradeAmount)
	if err != nil {
		return nil, fmt.Errorf("%s: max_trade_amount: %w", c.Symbol, err)
	}
	status, err := ParseStatus(c.Status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Symbol, err)
	}
	m := &Market{
		Symbol:         c.Symbol,
		Base:           c.Base,
		Quote:          c.Quote,
		MinTradeAmount: minAmt,
		MaxTradeAmount: maxAmt,
		BasePrecision:  c.BasePrecision,
		QuotePrecision: c.QuotePrecision,
		Status:         status,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
