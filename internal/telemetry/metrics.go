// Package telemetry exposes Prometheus metrics for a simulation run:
//   - backtest_orders_total{exchange,side,type}: orders submitted
//   - backtest_fills_total{exchange,symbol}: orders filled
//   - backtest_trades_total{exchange,result}: closed trades by win/loss/flat
//   - backtest_equity_usd: latest daily-balance snapshot (gauge)
//   - backtest_candles_processed_total{exchange,symbol}: 1m candles ingested
//   - backtest_run_duration_seconds: wall-clock time for the last run
//   - backtest_strategy_errors_total{route}: strategy callback failures
//
// Metrics are package-level collectors registered once at init and served
// over /metrics by promhttp; batch runs can leave the server disabled.
package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

var (
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_orders_total",
			Help: "Orders submitted during the run",
		},
		[]string{"exchange", "side", "type"},
	)

	fillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_fills_total",
			Help: "Orders filled by the matching engine or the market-order sweep",
		},
		[]string{"exchange", "symbol"},
	)

	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_trades_total",
			Help: "Closed trades by result",
		},
		[]string{"exchange", "result"}, // result: win|loss|flat
	)

	equityUSD = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backtest_equity_usd",
			Help: "Latest daily-balance equity snapshot",
		},
	)

	candlesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_candles_processed_total",
			Help: "1m candles ingested by the matching engine",
		},
		[]string{"exchange", "symbol"},
	)

	runDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backtest_run_duration_seconds",
			Help: "Wall-clock duration of the most recent run",
		},
	)

	strategyErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_strategy_errors_total",
			Help: "Strategy callback failures by route",
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		ordersTotal, fillsTotal, tradesTotal, equityUSD,
		candlesProcessed, runDuration, strategyErrors,
	)
}

// RecordOrder increments the order-submitted counter.
func RecordOrder(exchange, side, orderType string) {
	ordersTotal.WithLabelValues(exchange, side, orderType).Inc()
}

// RecordFill increments the filled-order counter.
func RecordFill(exchange, symbol string) {
	fillsTotal.WithLabelValues(exchange, symbol).Inc()
}

// RecordTrade increments the closed-trade counter, classifying pnl as
// win/loss/flat.
func RecordTrade(exchange string, pnl decimal.Decimal) {
	result := "flat"
	switch {
	case pnl.IsPositive():
		result = "win"
	case pnl.IsNegative():
		result = "loss"
	}
	tradesTotal.WithLabelValues(exchange, result).Inc()
}

// SetEquity updates the latest equity gauge.
func SetEquity(balance decimal.Decimal) {
	f, _ := balance.Float64()
	equityUSD.Set(f)
}

// RecordCandle increments the processed-candle counter.
func RecordCandle(exchange, symbol string) {
	candlesProcessed.WithLabelValues(exchange, symbol).Inc()
}

// SetRunDuration records the wall-clock duration of the most recent run, in
// seconds.
func SetRunDuration(seconds float64) {
	runDuration.Set(seconds)
}

// RecordStrategyError increments the strategy-failure counter for a route.
func RecordStrategyError(route string) {
	strategyErrors.WithLabelValues(route).Inc()
}

// Server exposes /metrics and /healthz over HTTP.
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server bound to addr. A blank addr disables
// the server.
func NewServer(addr string) *Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{srv: &http.Server{Addr: addr, Handler: mux}}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	if s == nil || s.srv == nil {
		return nil
	}
	go func() {
		_ = s.srv.ListenAndServe()
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
