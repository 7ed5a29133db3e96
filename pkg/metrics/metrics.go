// Package metrics exposes the exchange's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "matchbook"

type Metrics struct {
	registry *prometheus.Registry

	ordersPlaced   *prometheus.CounterVec
	ordersRejected *prometheus.CounterVec
	cancels        *prometheus.CounterVec
	trades         *prometheus.CounterVec
	bookLevels     *prometheus.GaugeVec
	bookVolume     *prometheus.GaugeVec
	eventsDropped  *prometheus.CounterVec
	wsClients      prometheus.Gauge
}

// New builds a private registry with the exchange collectors plus the Go
// runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders accepted by the matching engine",
		}, []string{"symbol", "side"}),

		ordersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_rejected_total",
			Help:      "Orders rejected before reaching the book",
		}, []string{"symbol", "reason"}),

		cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancels_total",
			Help:      "Cancel requests by outcome",
		}, []string{"symbol", "result"}),

		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Fills produced by the matching engine",
		}, []string{"symbol"}),

		bookLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orderbook_levels",
			Help:      "Price levels in the last sampled book view by side",
		}, []string{"symbol", "side"}),

		bookVolume: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orderbook_volume",
			Help:      "Resting quantity in base units by side",
		}, []string{"symbol", "side"}),

		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Market data events dropped because a sink queue was full",
		}, []string{"sink"}),

		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket subscribers",
		}),
	}

	registry.MustRegister(
		m.ordersPlaced,
		m.ordersRejected,
		m.cancels,
		m.trades,
		m.bookLevels,
		m.bookVolume,
		m.eventsDropped,
		m.wsClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OrderPlaced(symbol, side string) {
	if m == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(symbol, side).Inc()
}

func (m *Metrics) OrderRejected(symbol, reason string) {
	if m == nil {
		return
	}
	m.ordersRejected.WithLabelValues(symbol, reason).Inc()
}

func (m *Metrics) Cancel(symbol string, found bool) {
	if m == nil {
		return
	}
	result := "not_found"
	if found {
		result = "canceled"
	}
	m.cancels.WithLabelValues(symbol, result).Inc()
}

func (m *Metrics) Trade(symbol string) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(symbol).Inc()
}

// Book records one sampled view of a book.
func (m *Metrics) Book(symbol string, bidLevels, askLevels int, bidVolume, askVolume float64) {
	if m == nil {
		return
	}
	m.bookLevels.WithLabelValues(symbol, "bid").Set(float64(bidLevels))
	m.bookLevels.WithLabelValues(symbol, "ask").Set(float64(askLevels))
	m.bookVolume.WithLabelValues(symbol, "bid").Set(bidVolume)
	m.bookVolume.WithLabelValues(symbol, "ask").Set(askVolume)
}

func (m *Metrics) EventDropped(sink string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(sink).Inc()
}

func (m *Metrics) WSClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}
