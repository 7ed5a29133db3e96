// Package api serves the exchange over HTTP: a REST surface for orders and
// book queries, a WebSocket feed of market data, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/matchbook/pkg/app/core/market"
	"github.com/uhyunpark/matchbook/pkg/app/exchange"
	"github.com/uhyunpark/matchbook/pkg/metrics"
)

const (
	defaultDepth    = 50
	shutdownTimeout = 5 * time.Second
)

type Config struct {
	AllowedOrigins []string // empty allows any origin
	Logger         *zap.SugaredLogger
	Metrics        *metrics.Metrics
}

// Server handles REST API and WebSocket connections
type Server struct {
	svc     *exchange.Service
	router  *mux.Router
	hub     *Hub // WebSocket hub
	cors    *cors.Cors
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// NewServer creates a new API server. The hub is owned by the caller, which
// also runs it and wires it as an event sink.
func NewServer(svc *exchange.Service, hub *Hub, cfg Config) *Server {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{
		svc:    svc,
		router: mux.NewRouter(),
		hub:    hub,
		cors: cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		}),
		log:     cfg.Logger,
		metrics: cfg.Metrics,
	}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market endpoints
	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{symbol}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{symbol}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{symbol}/ticker", s.handleGetTicker).Methods("GET")
	api.HandleFunc("/markets/{symbol}/status", s.handleSetMarketStatus).Methods("POST")

	// Order submission
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	// WebSocket endpoint
	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.ServeWS)
	}

	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routed handler wrapped in CORS.
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(s.router)
}

// Start serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("api_listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.log.Infow("api_stopped")
		return nil
	}
}

// ==============================
// REST Handlers
// ==============================

func marketInfo(m market.Market) MarketInfo {
	return MarketInfo{
		Symbol:         m.Symbol,
		BaseAsset:      m.Base,
		QuoteAsset:     m.Quote,
		Status:         m.Status.String(),
		MinTradeAmount: m.MinTradeAmount.String(),
		MaxTradeAmount: m.MaxTradeAmount.String(),
		BasePrecision:  m.BasePrecision,
		QuotePrecision: m.QuotePrecision,
	}
}

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	markets := s.svc.Markets()

	response := make([]MarketInfo, len(markets))
	for i, m := range markets {
		response[i] = marketInfo(m)
	}

	respondJSON(w, response)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	m, err := s.svc.Registry().Markets().GetMarket(symbol)
	if err != nil {
		respondError(w, http.StatusNotFound, "market not found", err.Error())
		return
	}

	respondJSON(w, marketInfo(m))
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	depth := defaultDepth
	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid depth", "depth must be a non-negative integer")
			return
		}
		depth = n
	}

	ob, err := s.svc.Orderbook(symbol, depth)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, OrderbookSnapshot{
		Symbol:    ob.Symbol,
		Bids:      ob.Bids,
		Asks:      ob.Asks,
		Checksum:  ob.Checksum,
		Timestamp: ob.Ts,
	})
}

func (s *Server) handleGetTicker(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	t, err := s.svc.Ticker(symbol)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, TickerSnapshot{
		Symbol:       t.Symbol,
		BestBidPrice: t.BestBidPrice.String(),
		BestAskPrice: t.BestAskPrice.String(),
		BestBidQty:   t.BestBidQty.String(),
		BestAskQty:   t.BestAskQty.String(),
		BidVolume:    t.BidVolume.String(),
		AskVolume:    t.AskVolume.String(),
		Timestamp:    t.Ts,
	})
}

func (s *Server) handleSetMarketStatus(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	var req MarketStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	status, err := market.ParseStatus(req.Status)
	if err != nil || req.Status == "" {
		respondError(w, http.StatusBadRequest, "invalid status", "status must be Active or Paused")
		return
	}
	if err := s.svc.SetMarketStatus(symbol, status); err != nil {
		respondServiceError(w, err)
		return
	}

	m, _ := s.svc.Registry().Markets().GetMarket(symbol)
	respondJSON(w, marketInfo(m))
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	resp, err := s.svc.PlaceOrder(r.Context(), exchange.PlaceOrderRequest{
		Symbol:    req.Symbol,
		Side:      req.Side,
		Price:     req.Price,
		Quantity:  req.Quantity,
		OrderType: req.OrderType,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, SubmitOrderResponse{OrderID: resp.OrderID})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	// Validate request
	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "missing orderId", "")
		return
	}

	resp, err := s.svc.CancelOrder(r.Context(), exchange.CancelOrderRequest{
		OrderID: req.OrderID,
		Symbol:  req.Symbol,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, CancelOrderResponse{Success: resp.Success})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{"status": "ok", "markets": len(s.svc.Symbols())})
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// respondServiceError maps exchange errors to status codes
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exchange.ErrUnknownSymbol):
		respondError(w, http.StatusNotFound, "unknown symbol", err.Error())
	case errors.Is(err, exchange.ErrUnsupportedOrderType):
		respondError(w, http.StatusBadRequest, "unsupported order type", err.Error())
	case errors.Is(err, exchange.ErrInvalidOrder):
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "request canceled", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}
