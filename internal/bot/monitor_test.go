package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quant-ninja/internal/logger"
	"github.com/yourusername/quant-ninja/internal/models"
)

func settled(id string, status models.Status, stake, odds float64) models.Position {
	p := pendingPosition(id, time.Now())
	p.Status = status
	p.Stake = stake
	p.Odds = odds
	return p
}

func TestComputePerformance(t *testing.T) {
	// newest first
	positions := []models.Position{
		pendingPosition("p", time.Now()),
		settled("w2", models.StatusWon, 10, 3.0),
		settled("v", models.StatusVoid, 5, 2.0),
		settled("w1", models.StatusWon, 20, 2.0),
		settled("l", models.StatusLost, 15, 2.5),
	}

	perf := ComputePerformance(positions, "")

	assert.Equal(t, 5, perf.TotalBets)
	assert.Equal(t, 2, perf.WinningBets)
	assert.Equal(t, 1, perf.LosingBets)
	assert.Equal(t, 1, perf.VoidBets)
	assert.Equal(t, 1, perf.PendingBets)
	assert.InDelta(t, 75.0, perf.TotalStaked, 1e-9)
	// 20 + 20 - 5 - 15
	assert.InDelta(t, 20.0, perf.TotalPL, 1e-9)
	assert.InDelta(t, 40.0, perf.YieldPercent, 1e-9)
	assert.InDelta(t, 20.0, perf.LargestWin, 1e-9)
	assert.InDelta(t, -15.0, perf.LargestLoss, 1e-9)
	assert.Equal(t, 2, perf.CurrentStreak)
}

func TestComputePerformanceLosingStreak(t *testing.T) {
	positions := []models.Position{
		settled("l2", models.StatusLost, 10, 2.0),
		settled("l1", models.StatusLost, 10, 2.0),
		settled("w", models.StatusWon, 10, 2.0),
	}

	assert.Equal(t, -2, ComputePerformance(positions, "").CurrentStreak)
}

func TestComputePerformanceEmpty(t *testing.T) {
	perf := ComputePerformance(nil, "")
	assert.Equal(t, 0, perf.TotalBets)
	assert.Zero(t, perf.YieldPercent)
	assert.Zero(t, perf.AverageStake)
}

func TestMonitorDashboardData(t *testing.T) {
	a := settled("a", models.StatusWon, 10, 2.0)
	b := settled("b", models.StatusLost, 10, 2.0)
	b.Bookie = "Bet365"
	c := pendingPosition("c", time.Now())
	c.Bookie = ""

	session := newTestSession(t, &memStore{positions: []models.Position{c, b, a}})
	monitor := NewMonitor(session, logger.Discard())

	require.NoError(t, monitor.UpdatePerformance(t.Context()))

	data := monitor.GetDashboardData()
	assert.Equal(t, 3, data.Performance.TotalBets)
	assert.Len(t, data.RecentPositions, 3)
	assert.Equal(t, int64(1), data.Monitor.UpdatesPerformed)

	require.Len(t, data.ByBookie, 3)
	assert.Equal(t, "Pinnacle", data.ByBookie[0].Key)
	assert.Equal(t, "Bet365", data.ByBookie[2].Key)
}
