package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quant-ninja/internal/config"
	"github.com/yourusername/quant-ninja/internal/logger"
	"github.com/yourusername/quant-ninja/internal/models"
	"github.com/yourusername/quant-ninja/internal/oracle"
)

func byID(id string) interface{} {
	return mock.MatchedBy(func(p models.Position) bool { return p.ID == id })
}

func newTestSettler(t *testing.T, o Oracle, positions []models.Position, timeoutSeconds int) (*Settler, *Session) {
	t.Helper()
	session := newTestSession(t, &memStore{positions: positions})
	cfg := &config.SettlementConfig{IntervalSeconds: 300, BatchSize: 5, RequestTimeoutSeconds: timeoutSeconds}
	return NewSettler(session, o, cfg, logger.Discard()), session
}

func TestSettleOnceAppliesConclusiveVerdicts(t *testing.T) {
	base := time.Now().Add(-24 * time.Hour)
	positions := []models.Position{
		pendingPosition("c", base.Add(2*time.Hour)),
		pendingPosition("b", base.Add(time.Hour)),
		pendingPosition("a", base),
	}

	o := new(MockOracle)
	o.On("VerifyOutcome", mock.Anything, byID("a")).Return(&models.Outcome{
		PositionID: "a",
		Verdict:    models.StatusWon,
		Note:       "Final score 3-1",
		Sources:    []models.Source{{Title: "BBC", URI: "https://bbc.example/a"}},
	}, nil)
	o.On("VerifyOutcome", mock.Anything, byID("b")).Return(&models.Outcome{PositionID: "b", Verdict: models.StatusPending}, nil)
	o.On("VerifyOutcome", mock.Anything, byID("c")).Return(nil, oracle.ErrUnavailable)

	settler, session := newTestSettler(t, o, positions, 5)

	report, err := settler.SettleOnce(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Checked)
	require.Len(t, report.Settled, 1)
	assert.Equal(t, "a", report.Settled[0].ID)
	assert.Equal(t, 2, report.Pending)
	assert.Equal(t, 1, report.Failed)

	a, _ := session.Ledger().Get("a")
	assert.Equal(t, models.StatusWon, a.Status)
	assert.Equal(t, "Final score 3-1", a.SettlementNote)
	assert.Len(t, a.Sources, 1)

	for _, id := range []string{"b", "c"} {
		p, _ := session.Ledger().Get(id)
		assert.True(t, p.IsPending(), id)
	}
	o.AssertExpectations(t)
}

func TestSettleOnceVerifiesOnlyOldestBatch(t *testing.T) {
	base := time.Now().Add(-24 * time.Hour)
	positions := make([]models.Position, 0, 7)
	for i := 6; i >= 0; i-- {
		positions = append(positions, pendingPosition(string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute)))
	}

	o := new(MockOracle)
	o.On("VerifyOutcome", mock.Anything, mock.Anything).Return(&models.Outcome{Verdict: models.StatusPending}, nil)

	settler, _ := newTestSettler(t, o, positions, 5)

	report, err := settler.SettleOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Checked)

	o.AssertNumberOfCalls(t, "VerifyOutcome", 5)
	o.AssertNotCalled(t, "VerifyOutcome", mock.Anything, byID("f"))
	o.AssertNotCalled(t, "VerifyOutcome", mock.Anything, byID("g"))
}

func TestSettleOnceTimeoutLeavesPositionPending(t *testing.T) {
	o := new(MockOracle)
	o.On("VerifyOutcome", mock.Anything, byID("slow")).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)
	o.On("VerifyOutcome", mock.Anything, byID("fast")).
		Return(&models.Outcome{PositionID: "fast", Verdict: models.StatusLost}, nil)

	base := time.Now().Add(-time.Hour)
	settler, session := newTestSettler(t, o, []models.Position{
		pendingPosition("fast", base.Add(time.Minute)),
		pendingPosition("slow", base),
	}, 1)

	report, err := settler.SettleOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Settled, 1)
	assert.Equal(t, "fast", report.Settled[0].ID)

	slow, _ := session.Ledger().Get("slow")
	assert.True(t, slow.IsPending())
}

func TestSettleOnceWithNothingPending(t *testing.T) {
	o := new(MockOracle)
	settler, _ := newTestSettler(t, o, nil, 5)

	report, err := settler.SettleOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Checked)
	o.AssertNotCalled(t, "VerifyOutcome", mock.Anything, mock.Anything)
}

func TestSyncAdmitsDiscoveredLines(t *testing.T) {
	o := new(MockOracle)
	o.On("SearchCandidates", mock.Anything).Return(&oracle.Extraction{
		Valid: true,
		Candidates: []models.Observation{
			candidate("Lakers vs Celtics", "Lakers -4.5", 2.0, 10),
			candidate("Lakers vs Celtics", "Lakers -4.5", 2.0, 10),
		},
		Rejected: 2,
	}, nil)

	session := newTestSession(t, &memStore{})
	syncer := NewSyncer(session, o, logger.Discard())

	report, err := syncer.Sync(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 2, report.Malformed)
	// same-batch repeats are both admitted
	assert.Equal(t, 2, report.Admission.AcceptedCount())

	report, err = syncer.Sync(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Admission.Duplicates)
	assert.Equal(t, 2, session.Ledger().Len())
}

func TestSyncPropagatesOracleErrors(t *testing.T) {
	o := new(MockOracle)
	o.On("SearchCandidates", mock.Anything).Return(nil, oracle.ErrInvalidResponse)

	syncer := NewSyncer(newTestSession(t, &memStore{}), o, logger.Discard())

	_, err := syncer.Sync(t.Context())
	assert.ErrorIs(t, err, oracle.ErrInvalidResponse)
}
