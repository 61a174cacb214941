// Package metrics provides Prometheus instrumentation for the trading
// ledger service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts executed trades by journal entry type.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_trader_trades_total",
		Help: "Total number of trades executed",
	}, []string{"type"})

	// AutoTradeActions counts auto-trader action draws.
	AutoTradeActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_trader_autotrade_actions_total",
		Help: "Auto-trader actions drawn, by action",
	}, []string{"action"})

	// SettlementsTotal counts settlement price-input outcomes.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_trader_settlements_total",
		Help: "Settlement resolutions, by outcome",
	}, []string{"outcome"})

	// PendingTrades tracks trade proposals awaiting confirmation.
	PendingTrades = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paper_trader_pending_trades",
		Help: "Trade proposals currently awaiting confirmation",
	})

	// PendingSettlements tracks sells awaiting a price input.
	PendingSettlements = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paper_trader_pending_settlements",
		Help: "Auto-trade sells currently awaiting a settlement price",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_trader_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paper_trader_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request metrics around an HTTP handler.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
