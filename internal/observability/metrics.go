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
	DiscoveryRuns    *prometheus.CounterVec
	HoldersCollected prometheus.Gauge

	// Execution metrics
	TransfersTotal  *prometheus.CounterVec
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	AmountConfirmed prometheus.Counter

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RetryExhausted *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "spl_distributor"
	}

	return &Metrics{
		DiscoveryRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "runs_total",
			Help:      "Total number of holder discovery runs by resolved tier",
		}, []string{"tier"}),
		HoldersCollected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "holders_collected",
			Help:      "Holder count of the most recent snapshot",
		}),

		TransfersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "transfers_total",
			Help:      "Total number of transfer records by terminal status",
		}, []string{"status"}),
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "runs_total",
			Help:      "Total number of distribution runs by terminal status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "run_duration_seconds",
			Help:      "Distribution run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		AmountConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "amount_confirmed_total",
			Help:      "Total confirmed amount in token base units",
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RetryExhausted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "retry_exhausted_total",
			Help:      "Total number of operations that exhausted all retries",
		}, []string{"operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordDiscovery records a completed discovery run.
func RecordDiscovery(tier string, holders int) {
	DefaultMetrics.DiscoveryRuns.WithLabelValues(tier).Inc()
	DefaultMetrics.HoldersCollected.Set(float64(holders))
}

// RecordTransfer records a terminal transfer record.
func RecordTransfer(status string) {
	DefaultMetrics.TransfersTotal.WithLabelValues(status).Inc()
}

// RecordRun records a finished distribution run.
func RecordRun(status string, durationSeconds float64, amountConfirmed uint64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
	DefaultMetrics.AmountConfirmed.Add(float64(amountConfirmed))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRetryExhausted records an operation that exhausted all retries.
func RecordRetryExhausted(operation string) {
	DefaultMetrics.RetryExhausted.WithLabelValues(operation).Inc()
}
