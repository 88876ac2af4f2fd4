package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quant-ninja/internal/config"
	"github.com/yourusername/quant-ninja/internal/logger"
	"github.com/yourusername/quant-ninja/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Bankroll:   config.BankrollConfig{Initial: 1000},
		Agent:      *testAgentConfig(),
		Settlement: config.SettlementConfig{IntervalSeconds: 300, BatchSize: 5, RequestTimeoutSeconds: 45},
		Features:   config.FeaturesConfig{AgentEnabled: true, AutoSettleEnabled: true},
	}
}

func TestOrchestratorStartSchedulesJobsAndLoadsLedger(t *testing.T) {
	st := &memStore{positions: []models.Position{pendingPosition("a", time.Now())}}
	orch := NewOrchestrator(testConfig(), st, new(MockOracle), &stubSource{}, logger.Discard())

	require.NoError(t, orch.Start(t.Context()))
	defer orch.Stop()

	assert.Error(t, orch.Start(t.Context()))

	status := orch.GetStatus()
	assert.True(t, status.Running)
	assert.True(t, status.Agent.Armed)
	assert.Equal(t, 1, status.Financials.Pending)

	names := make([]string, 0, len(status.Jobs))
	for _, j := range status.Jobs {
		names = append(names, j.Name)
	}
	assert.ElementsMatch(t, []string{"scan", "settle", "performance"}, names)
	assert.False(t, status.NextRun.IsZero())

	require.NoError(t, orch.Stop())
	assert.False(t, orch.GetStatus().Running)
	assert.False(t, orch.Agent().IsArmed())
}

func TestOrchestratorWithFeaturesDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Features = config.FeaturesConfig{}

	orch := NewOrchestrator(cfg, &memStore{}, new(MockOracle), nil, logger.Discard())
	require.NoError(t, orch.Start(t.Context()))
	defer orch.Stop()

	status := orch.GetStatus()
	require.Len(t, status.Jobs, 1)
	assert.Equal(t, "performance", status.Jobs[0].Name)
	assert.False(t, status.Agent.Armed)
}

func TestOrchestratorStartFailsWhenLedgerCannotLoad(t *testing.T) {
	st := &memStore{loadErr: errSaveFailed}
	orch := NewOrchestrator(testConfig(), st, new(MockOracle), nil, logger.Discard())

	assert.Error(t, orch.Start(t.Context()))
	assert.False(t, orch.GetStatus().Running)
}
