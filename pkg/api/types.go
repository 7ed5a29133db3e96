package api

import "github.com/uhyunpark/matchbook/pkg/events"

// API request and response types for REST endpoints and WebSocket messages.
// Prices and quantities travel as decimal strings.

// ==============================
// REST Types
// ==============================

// MarketInfo represents a market's static configuration
type MarketInfo struct {
	Symbol         string `json:"symbol"`         // e.g., "BTC-USD"
	BaseAsset      string `json:"baseAsset"`      // e.g., "BTC"
	QuoteAsset     string `json:"quoteAsset"`     // e.g., "USD"
	Status         string `json:"status"`         // "Active", "Paused"
	MinTradeAmount string `json:"minTradeAmount"` // inclusive, base units
	MaxTradeAmount string `json:"maxTradeAmount"` // inclusive, base units
	BasePrecision  int32  `json:"basePrecision"`  // decimals allowed in quantities
	QuotePrecision int32  `json:"quotePrecision"` // decimals allowed in prices
}

// OrderbookSnapshot represents current orderbook state
type OrderbookSnapshot struct {
	Symbol    string         `json:"symbol"`
	Bids      []events.Level `json:"bids"` // [price, quantity], high to low
	Asks      []events.Level `json:"asks"` // [price, quantity], low to high
	Checksum  string         `json:"checksum"`
	Timestamp int64          `json:"timestamp"` // Unix milliseconds
}

// TickerSnapshot is the top of book; absent sides read as "0"
type TickerSnapshot struct {
	Symbol       string `json:"symbol"`
	BestBidPrice string `json:"bestBidPrice"`
	BestAskPrice string `json:"bestAskPrice"`
	BestBidQty   string `json:"bestBidQty"`
	BestAskQty   string `json:"bestAskQty"`
	BidVolume    string `json:"bidVolume"`
	AskVolume    string `json:"askVolume"`
	Timestamp    int64  `json:"timestamp"`
}

// SubmitOrderRequest is the payload for POST /api/v1/orders
type SubmitOrderRequest struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`                // "BUY" or "SELL"
	Price     string `json:"price"`               // decimal string
	Quantity  string `json:"quantity"`            // decimal string
	OrderType string `json:"orderType,omitempty"` // "LIMIT" (default); "MARKET" is rejected
}

// SubmitOrderResponse is the response from order submission
type SubmitOrderResponse struct {
	OrderID string `json:"orderId"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel
type CancelOrderRequest struct {
	OrderID string `json:"orderId"`
	Symbol  string `json:"symbol"`
}

type CancelOrderResponse struct {
	Success bool `json:"success"`
}

// MarketStatusRequest is the payload for POST /api/v1/markets/{symbol}/status
type MarketStatusRequest struct {
	Status string `json:"status"` // "Active" or "Paused"
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["orderbook:BTC-USD", "trades:BTC-USD", "ticker:ETH-USD"]
}

// WSControlMessage acknowledges or rejects a client request. Market data
// itself is sent as events.Message.
type WSControlMessage struct {
	Event   string `json:"event"` // "subscribed", "unsubscribed", "error"
	Channel string `json:"channel,omitempty"`
	Message string `json:"message,omitempty"`
}
