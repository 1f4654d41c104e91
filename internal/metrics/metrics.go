package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trend engine and wallet monitor.
type Metrics struct {
	// Refresh cycle
	RefreshTotal *prometheus.CounterVec // labels: result=ok|fetch_error|compute_error
	FetchDur     prometheus.Histogram
	ComputeDur   prometheus.Histogram
	CacheReads   *prometheus.CounterVec // labels: result=hit|miss

	// Verdict
	Verdict         prometheus.Gauge // 1=bullish, 0=bearish
	BullishScore    prometheus.Gauge
	BearishScore    prometheus.Gauge
	CategoryBullish *prometheus.GaugeVec // labels: category
	VerdictChanges  prometheus.Counter

	// Notifications
	NotificationsTotal *prometheus.CounterVec // labels: result=sent|failed

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisVerdictsFlushed     prometheus.Counter

	// Dashboard
	WSClients         prometheus.Gauge
	AssistantRequests *prometheus.CounterVec // labels: result=ok|error

	// Wallet monitor
	WalletTransactions prometheus.Counter
	WalletPollErrors   prometheus.Counter
	WalletLogSize      prometheus.Gauge
	WalletReconnects   prometheus.Counter
}

// NewMetrics registers and returns all metrics on reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trend_refresh_total",
			Help: "Refresh cycles by result",
		}, []string{"result"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trend_fetch_duration_seconds",
			Help:    "Candle fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trend_compute_duration_seconds",
			Help:    "Indicator compute and classification latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		CacheReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trend_candle_cache_reads_total",
			Help: "Candle cache reads by result",
		}, []string{"result"}),

		Verdict: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trend_verdict",
			Help: "Latest verdict (1=bullish, 0=bearish)",
		}),
		BullishScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trend_bullish_score",
			Help: "Bullish rule count of the latest classification",
		}),
		BearishScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trend_bearish_score",
			Help: "Bearish rule count of the latest classification",
		}),
		CategoryBullish: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trend_category_bullish",
			Help: "Bullish rule count per category",
		}, []string{"category"}),
		VerdictChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_verdict_changes_total",
			Help: "Verdict flips observed against the stored verdict",
		}),

		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trend_notifications_total",
			Help: "Trend change notifications by result",
		}, []string{"result"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trend_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisVerdictsFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trend_redis_verdicts_flushed_total",
			Help: "Held verdicts written back after the circuit closed",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trend_ws_clients",
			Help: "Connected websocket clients",
		}),
		AssistantRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trend_assistant_requests_total",
			Help: "Assistant relay requests by result",
		}, []string{"result"}),

		WalletTransactions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_transactions_total",
			Help: "New wallet transactions appended to the log",
		}),
		WalletPollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_poll_errors_total",
			Help: "Failed wallet polls",
		}),
		WalletLogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wallet_log_size",
			Help: "Transactions currently held in the wallet log",
		}),
		WalletReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_stream_reconnects_total",
			Help: "Wallet stream reconnection attempts",
		}),
	}

	reg.MustRegister(
		m.RefreshTotal,
		m.FetchDur,
		m.ComputeDur,
		m.CacheReads,
		m.Verdict,
		m.BullishScore,
		m.BearishScore,
		m.CategoryBullish,
		m.VerdictChanges,
		m.NotificationsTotal,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisVerdictsFlushed,
		m.WSClients,
		m.AssistantRequests,
		m.WalletTransactions,
		m.WalletPollErrors,
		m.WalletLogSize,
		m.WalletReconnects,
	)

	return m
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
