package bot

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/quant-ninja/internal/ledger"
	"github.com/yourusername/quant-ninja/internal/metrics"
	"github.com/yourusername/quant-ninja/internal/models"
)

const recentPositionsLimit = 10

// MonitorMetrics tracks monitoring statistics
type MonitorMetrics struct {
	UpdatesPerformed int64     `json:"updates_performed"`
	LastUpdateTime   time.Time `json:"last_update_time"`
}

// LivePerformance is realised performance over a set of positions
type LivePerformance struct {
	Key           string    `json:"key,omitempty"`
	TotalBets     int       `json:"total_bets"`
	WinningBets   int       `json:"winning_bets"`
	LosingBets    int       `json:"losing_bets"`
	VoidBets      int       `json:"void_bets"`
	PendingBets   int       `json:"pending_bets"`
	TotalStaked   float64   `json:"total_staked"`
	TotalPL       float64   `json:"total_pl"`
	YieldPercent  float64   `json:"yield_percent"`
	AverageStake  float64   `json:"average_stake"`
	AverageOdds   float64   `json:"average_odds"`
	AverageEdge   float64   `json:"average_edge"`
	LargestWin    float64   `json:"largest_win"`
	LargestLoss   float64   `json:"largest_loss"`
	CurrentStreak int       `json:"current_streak"` // Positive for wins, negative for losses
	UpdatedAt     time.Time `json:"updated_at"`
}

// DashboardData aggregates monitoring information
type DashboardData struct {
	Financials      ledger.Financials  `json:"financials"`
	Performance     *LivePerformance   `json:"performance"`
	ByBookie        []*LivePerformance `json:"by_bookie"`
	RecentPositions []models.Position  `json:"recent_positions"`
	Monitor         MonitorMetrics     `json:"monitor"`
}

// Monitor derives performance statistics from the session ledger
type Monitor struct {
	session *Session
	logger  *logrus.Entry
	metrics *MonitorMetrics
	mu      sync.RWMutex
}

// NewMonitor creates a new performance monitor
func NewMonitor(session *Session, logger *logrus.Logger) *Monitor {
	return &Monitor{
		session: session,
		logger:  logger.WithField("component", "monitor"),
		metrics: &MonitorMetrics{
			LastUpdateTime: time.Now(),
		},
	}
}

// UpdatePerformance refreshes the bankroll gauges and logs a summary. It runs as a scheduled job.
func (m *Monitor) UpdatePerformance(ctx context.Context) error {
	l := m.session.Ledger()
	fin := l.Financials(m.session.InitialBankroll())
	perf := ComputePerformance(l.Positions(), "")

	metrics.UpdateFinancials(fin)

	m.mu.Lock()
	m.metrics.UpdatesPerformed++
	m.metrics.LastUpdateTime = time.Now()
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"equity":         fin.CurrentEquity.StringFixed(2),
		"available_cash": fin.AvailableCash.StringFixed(2),
		"in_play":        fin.InPlay.StringFixed(2),
		"roi":            fin.ROI,
		"win_rate":       fin.WinRate,
		"total_pl":       perf.TotalPL,
		"streak":         perf.CurrentStreak,
	}).Info("Performance update completed")

	return nil
}

// GetDashboardData aggregates data for the monitoring dashboard
func (m *Monitor) GetDashboardData() *DashboardData {
	l := m.session.Ledger()
	positions := l.Positions()

	byBookie := make(map[string][]models.Position)
	for _, p := range positions {
		key := p.Bookie
		if key == "" {
			key = "unknown"
		}
		byBookie[key] = append(byBookie[key], p)
	}

	bookies := make([]*LivePerformance, 0, len(byBookie))
	for key, group := range byBookie {
		bookies = append(bookies, ComputePerformance(group, key))
	}
	sort.Slice(bookies, func(i, j int) bool {
		if bookies[i].TotalPL != bookies[j].TotalPL {
			return bookies[i].TotalPL > bookies[j].TotalPL
		}
		return bookies[i].Key < bookies[j].Key
	})

	recent := positions
	if len(recent) > recentPositionsLimit {
		recent = recent[:recentPositionsLimit]
	}

	m.mu.RLock()
	monitorMetrics := *m.metrics
	m.mu.RUnlock()

	return &DashboardData{
		Financials:      l.Financials(m.session.InitialBankroll()),
		Performance:     ComputePerformance(positions, ""),
		ByBookie:        bookies,
		RecentPositions: recent,
		Monitor:         monitorMetrics,
	}
}

// ComputePerformance summarises positions given newest first. The streak
// counts consecutive WON or LOST results from the most recent settled position.
func ComputePerformance(positions []models.Position, key string) *LivePerformance {
	perf := &LivePerformance{
		Key:       key,
		TotalBets: len(positions),
		UpdatedAt: time.Now(),
	}

	var (
		totalOdds    float64
		totalEdge    float64
		settledStake float64
		streakOpen   = true
	)

	for _, p := range positions {
		perf.TotalStaked += p.Stake
		totalOdds += p.Odds
		totalEdge += p.EdgePercent

		pl := p.ProfitLoss()
		switch p.Status {
		case models.StatusPending:
			perf.PendingBets++
			continue
		case models.StatusWon:
			perf.WinningBets++
			if pl > perf.LargestWin {
				perf.LargestWin = pl
			}
		case models.StatusLost:
			perf.LosingBets++
			if pl < perf.LargestLoss {
				perf.LargestLoss = pl
			}
		case models.StatusVoid:
			perf.VoidBets++
		}

		perf.TotalPL += pl
		settledStake += p.Stake

		if streakOpen {
			streakOpen = extendStreak(&perf.CurrentStreak, p.Status)
		}
	}

	if perf.TotalBets > 0 {
		perf.AverageStake = perf.TotalStaked / float64(perf.TotalBets)
		perf.AverageOdds = totalOdds / float64(perf.TotalBets)
		perf.AverageEdge = totalEdge / float64(perf.TotalBets)
	}
	if settledStake > 0 {
		perf.YieldPercent = perf.TotalPL / settledStake * 100
	}

	return perf
}

// extendStreak adds status to the running streak and reports whether the streak continues
func extendStreak(streak *int, status models.Status) bool {
	switch status {
	case models.StatusWon:
		if *streak < 0 {
			return false
		}
		*streak++
	case models.StatusLost:
		if *streak > 0 {
			return false
		}
		*streak--
	}
	return true
}
