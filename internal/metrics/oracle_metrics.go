// Package metrics defines oracle-specific metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Oracle counter vectors
var (
	OracleRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oracle_requests_total",
		Help:      "Total number of oracle requests by operation and result",
	}, []string{"operation", "result"})

	OracleRejectedRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oracle_rejected_records_total",
		Help:      "Candidate records dropped by boundary parsing",
	}, []string{"operation"})
)

// Oracle histogram vectors
var (
	OracleRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "oracle_request_latency_seconds",
		Help:      "Oracle request latency in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"operation"})
)

// Oracle gauges
var (
	FrameCacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "frame_cache_hit_ratio",
		Help:      "Extraction cache hit ratio",
	})
)

// RecordOracleRequest records an oracle request and its latency.
func RecordOracleRequest(operation string, err error, durationSeconds float64) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	OracleRequestsTotal.WithLabelValues(operation, result).Inc()
	OracleRequestLatency.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordRejectedRecords records candidates dropped at the oracle boundary.
func RecordRejectedRecords(operation string, count int) {
	if count > 0 {
		OracleRejectedRecordsTotal.WithLabelValues(operation).Add(float64(count))
	}
}

// UpdateFrameCacheHitRatio sets the extraction cache hit ratio gauge.
func UpdateFrameCacheHitRatio(ratio float64) {
	FrameCacheHitRatio.Set(ratio)
}
