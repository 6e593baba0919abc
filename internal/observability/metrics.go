// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scan loop metrics
	ScanCyclesTotal     *prometheus.CounterVec
	ScanDuration        *prometheus.HistogramVec
	CandidatesEvaluated prometheus.Counter
	DecisionsGenerated  *prometheus.CounterVec

	// Trading metrics
	TradesExecuted    *prometheus.CounterVec
	PositionsOpen     prometheus.Gauge
	PortfolioValueUSD prometheus.Gauge
	AvailableCapital  prometheus.Gauge
	TotalProfitUSD    prometheus.Gauge
	WatchlistSize     prometheus.Gauge

	// Market data metrics
	APIRequestLatency    *prometheus.HistogramVec
	APIRequestErrors     *prometheus.CounterVec
	StreamReconnects     prometheus.Counter
	StreamUpdatesDropped prometheus.Counter

	// Price tracker metrics
	TokensTracked prometheus.Gauge
	AlertsRaised  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulScan prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dexagent"
	}

	return &Metrics{
		// Scan loop metrics
		ScanCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "cycles_total",
			Help:      "Total number of loop cycles by loop and status",
		}, []string{"loop", "status"}),
		ScanDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "cycle_duration_seconds",
			Help:      "Loop cycle duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"loop"}),
		CandidatesEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "candidates_evaluated_total",
			Help:      "Total number of candidate tokens evaluated",
		}),
		DecisionsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "decisions_total",
			Help:      "Total number of trading decisions generated by action",
		}, []string{"action"}),

		// Trading metrics
		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_executed_total",
			Help:      "Total number of executed paper trades by action and status",
		}, []string{"action", "status"}),
		PositionsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "positions_open",
			Help:      "Current number of open positions",
		}),
		PortfolioValueUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "portfolio_value_usd",
			Help:      "Current total portfolio value in USD",
		}),
		AvailableCapital: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "available_capital_usd",
			Help:      "Capital available for new positions in USD",
		}),
		TotalProfitUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "total_profit_usd",
			Help:      "Cumulative realized profit in USD",
		}),
		WatchlistSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "watchlist_size",
			Help:      "Current number of watchlisted tokens",
		}),

		// Market data metrics
		APIRequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "api_request_latency_seconds",
			Help:      "Market data API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		APIRequestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "api_request_errors_total",
			Help:      "Total number of failed market data API requests",
		}, []string{"endpoint"}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "stream_reconnects_total",
			Help:      "Total number of pair stream reconnects",
		}),
		StreamUpdatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "stream_updates_dropped_total",
			Help:      "Total number of stream updates dropped on a full buffer",
		}),

		// Price tracker metrics
		TokensTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "tokens_tracked",
			Help:      "Current number of tokens with retained price history",
		}),
		AlertsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "alerts_total",
			Help:      "Total number of price alerts raised by type",
		}, []string{"type"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulScan: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of the last successful market scan",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCycle records a completed loop cycle.
func RecordCycle(loop, status string, durationSeconds float64) {
	DefaultMetrics.ScanCyclesTotal.WithLabelValues(loop, status).Inc()
	DefaultMetrics.ScanDuration.WithLabelValues(loop).Observe(durationSeconds)
}

// RecordCandidateEvaluated increments the evaluated candidates counter.
func RecordCandidateEvaluated() {
	DefaultMetrics.CandidatesEvaluated.Inc()
}

// RecordDecision records a generated trading decision.
func RecordDecision(action string) {
	DefaultMetrics.DecisionsGenerated.WithLabelValues(action).Inc()
}

// RecordTrade records an executed or rejected paper trade.
func RecordTrade(action string, executed bool) {
	status := "executed"
	if !executed {
		status = "rejected"
	}
	DefaultMetrics.TradesExecuted.WithLabelValues(action, status).Inc()
}

// UpdatePortfolioGauges refreshes the portfolio-level gauges.
func UpdatePortfolioGauges(totalValue, availableCapital, totalProfit float64, positionsOpen, watchlistSize int) {
	DefaultMetrics.PortfolioValueUSD.Set(totalValue)
	DefaultMetrics.AvailableCapital.Set(availableCapital)
	DefaultMetrics.TotalProfitUSD.Set(totalProfit)
	DefaultMetrics.PositionsOpen.Set(float64(positionsOpen))
	DefaultMetrics.WatchlistSize.Set(float64(watchlistSize))
}

// RecordAPIRequest records market data API request metrics.
func RecordAPIRequest(endpoint string, seconds float64, err error) {
	DefaultMetrics.APIRequestLatency.WithLabelValues(endpoint).Observe(seconds)
	if err != nil {
		DefaultMetrics.APIRequestErrors.WithLabelValues(endpoint).Inc()
	}
}

// RecordStreamReconnect increments the stream reconnect counter.
func RecordStreamReconnect() {
	DefaultMetrics.StreamReconnects.Inc()
}

// RecordStreamDrop increments the dropped stream update counter.
func RecordStreamDrop() {
	DefaultMetrics.StreamUpdatesDropped.Inc()
}

// UpdateTokensTracked refreshes the tracked token gauge.
func UpdateTokensTracked(count int) {
	DefaultMetrics.TokensTracked.Set(float64(count))
}

// RecordAlert records a raised price alert.
func RecordAlert(alertType string) {
	DefaultMetrics.AlertsRaised.WithLabelValues(alertType).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordSuccessfulScan stamps the last successful market scan.
func RecordSuccessfulScan(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulScan.Set(float64(unixSeconds))
}
