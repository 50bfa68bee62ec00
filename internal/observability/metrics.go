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
	// Discovery metrics
	PoolsDiscovered   prometheus.Counter
	PoolsBySource     *prometheus.CounterVec
	AdapterFailures   *prometheus.CounterVec
	DiscoveryCacheHit prometheus.Counter

	// Tradability metrics
	TokensTradeable prometheus.Counter
	TokensPending   *prometheus.CounterVec
	TokensRejected  *prometheus.CounterVec
	ProbeLatency    prometheus.Histogram

	// Pipeline metrics
	CycleRunsTotal *prometheus.CounterVec
	CycleDuration  *prometheus.HistogramVec
	CycleSkipped   *prometheus.CounterVec

	// Trade metrics
	TradesExecuted  *prometheus.CounterVec
	TradeRetries    prometheus.Counter
	SlippageApplied prometheus.Histogram

	// Payment metrics
	PaymentsConfirmed prometheus.Counter
	PaymentsFailed    *prometheus.CounterVec

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
	OpenPositions       prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_sniper"
	}

	return &Metrics{
		// Discovery metrics
		PoolsDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "pools_discovered_total",
			Help:      "Total number of unique pools discovered",
		}),
		PoolsBySource: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "pools_by_source_total",
			Help:      "Total number of pool records contributed by source adapter",
		}, []string{"source"}),
		AdapterFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "adapter_failures_total",
			Help:      "Total number of source adapter failures",
		}, []string{"source"}),
		DiscoveryCacheHit: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "cache_hits_total",
			Help:      "Total number of discovery race cache hits",
		}),

		// Tradability metrics
		TokensTradeable: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tradability",
			Name:      "tokens_tradeable_total",
			Help:      "Total number of tokens that passed the tradability stage",
		}),
		TokensPending: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tradability",
			Name:      "tokens_pending_total",
			Help:      "Total number of tokens deferred as pending by reason",
		}, []string{"reason"}),
		TokensRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tradability",
			Name:      "tokens_rejected_total",
			Help:      "Total number of tokens rejected by hard-block reason",
		}, []string{"reason"}),
		ProbeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tradability",
			Name:      "probe_latency_seconds",
			Help:      "Quote probe latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Pipeline metrics
		CycleRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycle_runs_total",
			Help:      "Total number of pipeline cycles by stage and status",
		}, []string{"stage", "status"}),
		CycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycle_duration_seconds",
			Help:      "Pipeline cycle duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),
		CycleSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycle_skipped_total",
			Help:      "Total number of cycles skipped because one was in flight",
		}, []string{"stage"}),

		// Trade metrics
		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "executed_total",
			Help:      "Total number of trade executions by side and outcome",
		}, []string{"side", "outcome"}),
		TradeRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "retries_total",
			Help:      "Total number of slippage-triggered sell retries",
		}),
		SlippageApplied: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "slippage_bps",
			Help:      "Slippage tolerance applied to executed trades",
			Buckets:   []float64{100, 250, 500, 1000, 1500, 2500},
		}),

		// Payment metrics
		PaymentsConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "confirmed_total",
			Help:      "Total number of payments confirmed and credited",
		}),
		PaymentsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "failed_total",
			Help:      "Total number of payment verification failures by reason",
		}, []string{"reason"}),

		// Health metrics
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of last successful pipeline cycle",
		}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "open_positions",
			Help:      "Number of currently open positions",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
