// Package metrics provides centralized Prometheus metrics registry for Quant Ninja.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourusername/quant-ninja/internal/ledger"
)

const namespace = "quant_ninja"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	CandidatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_total",
		Help:      "Candidates offered to the ledger by admission outcome",
	}, []string{"source", "outcome"})
	PositionsSettledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "positions_settled_total",
		Help:      "Total number of positions settled by status",
	}, []string{"status", "settled_by"})
	PositionsRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "positions_removed_total",
		Help:      "Total number of positions removed by hand",
	})
	AgentScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "agent_scans_total",
		Help:      "Total number of agent scan cycles by result",
	}, []string{"result"})
	CircuitBreakerTripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_trips_total",
		Help:      "Total number of circuit breaker trips",
	})
	SnapshotSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_saves_total",
		Help:      "Total number of snapshot writes by driver and result",
	}, []string{"driver", "result"})
)

// Gauge metrics
var (
	AvailableCash = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "available_cash",
		Help:      "Cash not committed to pending positions",
	})
	InPlay = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "in_play",
		Help:      "Sum of stakes on pending positions",
	})
	CurrentEquity = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "current_equity",
		Help:      "Available cash plus in-play stakes",
	})
	ROIPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "roi_percent",
		Help:      "Return on the initial bankroll in percent",
	})
	WinRatePercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "win_rate_percent",
		Help:      "Wins over settled positions in percent",
	})
	PositionsByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "positions",
		Help:      "Number of positions in the ledger by status",
	}, []string{"status"})
	AgentArmed = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "agent_armed",
		Help:      "1 when the live agent is armed",
	})
)

// Histogram metrics
var (
	ScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scan_duration_seconds",
		Help:      "Duration of a full agent scan cycle in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})
	SettlementDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "settlement_duration_seconds",
		Help:      "Duration of a settlement pass in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 120},
	})
	SnapshotSaveLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "snapshot_save_latency_seconds",
		Help:      "Latency of snapshot writes in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// Register counter metrics
		registry.MustRegister(CandidatesTotal)
		registry.MustRegister(PositionsSettledTotal)
		registry.MustRegister(PositionsRemovedTotal)
		registry.MustRegister(AgentScansTotal)
		registry.MustRegister(CircuitBreakerTripsTotal)
		registry.MustRegister(SnapshotSavesTotal)

		// Register gauge metrics
		registry.MustRegister(AvailableCash)
		registry.MustRegister(InPlay)
		registry.MustRegister(CurrentEquity)
		registry.MustRegister(ROIPercent)
		registry.MustRegister(WinRatePercent)
		registry.MustRegister(PositionsByStatus)
		registry.MustRegister(AgentArmed)

		// Register histogram metrics
		registry.MustRegister(ScanDuration)
		registry.MustRegister(SettlementDuration)
		registry.MustRegister(SnapshotSaveLatency)

		// Register oracle metrics
		registry.MustRegister(OracleRequestsTotal)
		registry.MustRegister(OracleRequestLatency)
		registry.MustRegister(OracleRejectedRecordsTotal)
		registry.MustRegister(FrameCacheHitRatio)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordAdmission records the outcome of one admission batch.
func RecordAdmission(source string, result ledger.AdmitResult) {
	CandidatesTotal.WithLabelValues(source, "accepted").Add(float64(result.AcceptedCount()))
	CandidatesTotal.WithLabelValues(source, "duplicate").Add(float64(result.Duplicates))
	CandidatesTotal.WithLabelValues(source, "non_positive_edge").Add(float64(result.NonPositiveEdge))
	CandidatesTotal.WithLabelValues(source, "zero_stake").Add(float64(result.ZeroStake))
}

// RecordSettlement records a position settlement.
func RecordSettlement(status, settledBy string) {
	PositionsSettledTotal.WithLabelValues(status, settledBy).Inc()
}

// RecordRemoval records a manual position removal.
func RecordRemoval() {
	PositionsRemovedTotal.Inc()
}

// RecordScan records an agent scan cycle.
func RecordScan(result string, durationSeconds float64) {
	AgentScansTotal.WithLabelValues(result).Inc()
	ScanDuration.Observe(durationSeconds)
}

// RecordSettlementPass records the duration of a settlement pass.
func RecordSettlementPass(durationSeconds float64) {
	SettlementDuration.Observe(durationSeconds)
}

// RecordCircuitBreakerTrip records a circuit breaker trip event.
func RecordCircuitBreakerTrip() {
	CircuitBreakerTripsTotal.Inc()
}

// RecordSnapshotSave records a snapshot write.
func RecordSnapshotSave(driver string, err error, durationSeconds float64) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	SnapshotSavesTotal.WithLabelValues(driver, result).Inc()
	SnapshotSaveLatency.Observe(durationSeconds)
}

// UpdateFinancials refreshes the bankroll gauges from a financial snapshot.
func UpdateFinancials(f ledger.Financials) {
	AvailableCash.Set(f.AvailableCash.InexactFloat64())
	InPlay.Set(f.InPlay.InexactFloat64())
	CurrentEquity.Set(f.CurrentEquity.InexactFloat64())
	ROIPercent.Set(f.ROI)
	WinRatePercent.Set(f.WinRate)

	PositionsByStatus.WithLabelValues("PENDING").Set(float64(f.Pending))
	PositionsByStatus.WithLabelValues("WON").Set(float64(f.TotalWins))
	PositionsByStatus.WithLabelValues("LOST").Set(float64(f.TotalLosses))
	PositionsByStatus.WithLabelValues("VOID").Set(float64(f.TotalVoids))
}

// UpdateAgentArmed sets the agent armed gauge.
func UpdateAgentArmed(armed bool) {
	if armed {
		AgentArmed.Set(1)
		return
	}
	AgentArmed.Set(0)
}
