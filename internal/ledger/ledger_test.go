package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quant-ninja/internal/models"
)

var (
	initialBankroll = decimal.NewFromInt(1000)
	baseTime        = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
)

func observation(event, market string, odds, edge float64, at time.Time) models.Observation {
	return models.Observation{
		Event:       event,
		Market:      market,
		Bookie:      "A",
		Odds:        odds,
		EdgePercent: edge,
		ObservedAt:  at,
	}
}

func admitOne(t *testing.T, l Ledger, obs models.Observation) (Ledger, AdmitResult) {
	t.Helper()
	cash := l.Financials(initialBankroll).AvailableCash.InexactFloat64()
	return l.Admit([]models.Observation{obs}, cash, obs.ObservedAt)
}

func TestAdmitSizesQuarterKellyStake(t *testing.T) {
	l, result := admitOne(t, Empty(), observation("X", "spread", 2.0, 10, baseTime))

	require.Equal(t, 1, result.AcceptedCount())
	require.Equal(t, 1, l.Len())

	p := l.Positions()[0]
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "X", p.Event)
	assert.Equal(t, "spread", p.Market)
	assert.Equal(t, 25.00, p.Stake)
	assert.Equal(t, models.StatusPending, p.Status)
	assert.True(t, p.CreatedAt.Equal(baseTime))
}

func TestAdmitDeduplicatesWithinWindow(t *testing.T) {
	l, _ := admitOne(t, Empty(), observation("X", "spread", 2.0, 10, baseTime))

	again, result := admitOne(t, l, observation("X", "spread", 2.0, 10, baseTime.Add(300000*time.Millisecond)))
	assert.Equal(t, 0, result.AcceptedCount())
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, again.Len())
	assert.Equal(t, l.Positions(), again.Positions())

	later, result := admitOne(t, l, observation("X", "spread", 2.0, 10, baseTime.Add(700000*time.Millisecond)))
	assert.Equal(t, 1, result.AcceptedCount())
	assert.Equal(t, 2, later.Len())
}

func TestAdmitDedupWindowIsSymmetricAndExclusive(t *testing.T) {
	l, _ := admitOne(t, Empty(), observation("X", "spread", 2.0, 10, baseTime))

	_, earlier := admitOne(t, l, observation("X", "spread", 2.0, 10, baseTime.Add(-5*time.Minute)))
	assert.Equal(t, 1, earlier.Duplicates)

	_, boundary := admitOne(t, l, observation("X", "spread", 2.0, 10, baseTime.Add(DedupWindow)))
	assert.Equal(t, 0, boundary.Duplicates)
	assert.Equal(t, 1, boundary.AcceptedCount())
}

func TestAdmitDedupRequiresEventAndMarket(t *testing.T) {
	l, _ := admitOne(t, Empty(), observation("X", "spread", 2.0, 10, baseTime))

	_, otherMarket := admitOne(t, l, observation("X", "total", 2.0, 10, baseTime))
	assert.Equal(t, 1, otherMarket.AcceptedCount())

	_, otherEvent := admitOne(t, l, observation("Y", "spread", 2.0, 10, baseTime))
	assert.Equal(t, 1, otherEvent.AcceptedCount())
}

func TestAdmitDoesNotDedupWithinBatch(t *testing.T) {
	batch := []models.Observation{
		observation("X", "spread", 2.0, 10, baseTime),
		observation("X", "spread", 2.0, 10, baseTime),
	}
	l, result := Empty().Admit(batch, 1000, baseTime)

	assert.Equal(t, 2, result.AcceptedCount())
	assert.Equal(t, 2, l.Len())
}

func TestAdmitFiltersNonPositiveEdgeAndZeroStake(t *testing.T) {
	batch := []models.Observation{
		observation("A", "ml", 1.8, -5, baseTime),
		observation("B", "ml", 1.8, 0, baseTime),
		observation("C", "ml", 1.0, 5, baseTime),
		observation("D", "ml", 2.0, 0.001, baseTime),
	}
	l, result := Empty().Admit(batch, 1000, baseTime)

	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 2, result.NonPositiveEdge)
	assert.Equal(t, 2, result.ZeroStake)
	assert.Equal(t, 4, result.Rejected())
}

func TestAdmitNoSurvivorsReturnsSameLedger(t *testing.T) {
	l, _ := admitOne(t, Empty(), observation("X", "spread", 2.0, 10, baseTime))
	next, result := l.Admit([]models.Observation{observation("Y", "ml", 2.0, -1, baseTime)}, 1000, baseTime)

	assert.Zero(t, result.AcceptedCount())
	assert.Equal(t, l, next)
}

func TestAdmitUsesSameCashForWholeBatch(t *testing.T) {
	batch := []models.Observation{
		observation("A", "ml", 2.0, 10, baseTime),
		observation("B", "ml", 2.0, 10, baseTime),
		observation("C", "ml", 2.0, 10, baseTime),
	}
	l, result := Empty().Admit(batch, 1000, baseTime)

	require.Equal(t, 3, result.AcceptedCount())
	for _, p := range l.Positions() {
		assert.Equal(t, 25.00, p.Stake)
	}
}

func TestAdmitPrependsNewestFirst(t *testing.T) {
	l, _ := admitOne(t, Empty(), observation("old", "ml", 2.0, 10, baseTime))
	l, _ = admitOne(t, l, observation("new", "ml", 2.0, 10, baseTime.Add(time.Hour)))

	positions := l.Positions()
	require.Len(t, positions, 2)
	assert.Equal(t, "new", positions[0].Event)
	assert.Equal(t, "old", positions[1].Event)

	chrono := l.Chronological()
	assert.Equal(t, "old", chrono[0].Event)
}

func TestAdmitStampsNowWhenObservationHasNoTimestamp(t *testing.T) {
	obs := observation("X", "spread", 2.0, 10, time.Time{})
	l, _ := Empty().Admit([]models.Observation{obs}, 1000, baseTime)

	assert.True(t, l.Positions()[0].CreatedAt.Equal(baseTime))
}

func TestAdmitDoesNotMutateReceiver(t *testing.T) {
	l, _ := admitOne(t, Empty(), observation("X", "spread", 2.0, 10, baseTime))
	before := l.Positions()

	_, _ = l.Admit([]models.Observation{observation("Y", "ml", 2.0, 10, baseTime)}, 1000, baseTime)
	_, _ = l.ApplySettlement([]models.Outcome{{PositionID: before[0].ID, Verdict: models.StatusWon}})

	assert.Equal(t, before, l.Positions())
}

func TestFinancialsAfterWin(t *testing.T) {
	l, _ := admitOne(t, Empty(), observation("X", "spread", 2.0, 10, baseTime))
	id := l.Positions()[0].ID

	settled, applied := l.ApplySettlement([]models.Outcome{{PositionID: id, Verdict: models.StatusWon}})
	require.Equal(t, 1, applied)

	f := settled.Financials(initialBankroll)
	assert.True(t, f.AvailableCash.Equal(decimal.NewFromInt(1025)), f.AvailableCash.String())
	assert.True(t, f.InPlay.IsZero())
	assert.InDelta(t, 2.5, f.ROI, 1e-9)
	assert.InDelta(t, 100.0, f.WinRate, 1e-9)
	assert.Equal(t, 1, f.TotalWins)
}

func TestFinancialsCreditsWinsInDecimal(t *testing.T) {
	l := New([]models.Position{{
		ID:        "w",
		Event:     "X",
		Market:    "spread",
		Odds:      1.91,
		Stake:     33.33,
		Status:    models.StatusWon,
		CreatedAt: baseTime,
	}})

	f := l.Financials(initialBankroll)
	assert.True(t, f.AvailableCash.Equal(decimal.RequireFromString("1030.3303")), f.AvailableCash.String())
	assert.True(t, f.CurrentEquity.Equal(f.AvailableCash))
}

func TestFinancialsAfterLoss(t *testing.T) {
	l, _ := admitOne(t, Empty(), observation("X", "spread", 2.0, 10, baseTime))
	id := l.Positions()[0].ID

	settled, _ := l.ApplySettlement([]models.Outcome{{PositionID: id, Verdict: models.StatusLost}})

	f := settled.Financials(initialBankroll)
	assert.True(t, f.AvailableCash.Equal(decimal.NewFromInt(975)), f.AvailableCash.String())
	assert.InDelta(t, -2.5, f.ROI, 1e-9)
	assert.InDelta(t, 0.0, f.WinRate, 1e-9)
	assert.Equal(t, 1, f.TotalLosses)
}

func TestFinancialsPending(t *testing.T) {
	l, _ := admitOne(t, Empty(), observation("X", "spread", 2.0, 10, baseTime))

	f := l.Financials(initialBankroll)
	assert.True(t, f.AvailableCash.Equal(decimal.NewFromInt(975)))
	assert.True(t, f.InPlay.Equal(decimal.NewFromInt(25)))
	assert.True(t, f.CurrentEquity.Equal(initialBankroll))
	assert.InDelta(t, 0.0, f.ROI, 1e-9)
	assert.InDelta(t, 0.0, f.WinRate, 1e-9)
	assert.Equal(t, 1, f.Pending)
}

func TestFinancialsEmptyLedger(t *testing.T) {
	f := Empty().Financials(initialBankroll)

	assert.True(t, f.AvailableCash.Equal(initialBankroll))
	assert.True(t, f.CurrentEquity.Equal(initialBankroll))
	assert.Zero(t, f.TotalBets)
	assert.Zero(t, f.WinRate)
	assert.Zero(t, f.ROI)
}

func TestFinancialsClampsAvailableCash(t *testing.T) {
	positions := []models.Position{
		{ID: "a", Event: "A", Market: "ml", Odds: 2, Stake: 800, Status: models.StatusLost, CreatedAt: baseTime},
		{ID: "b", Event: "B", Market: "ml", Odds: 2, Stake: 700, Status: models.StatusPending, CreatedAt: baseTime},
	}

	f := New(positions).Financials(initialBankroll)
	assert.False(t, f.AvailableCash.IsNegative())
	assert.True(t, f.AvailableCash.IsZero())
	assert.True(t, f.CurrentEquity.Equal(f.AvailableCash.Add(f.InPlay)))
}

func TestFinancialIdentityHoldsAfterEveryMutation(t *testing.T) {
	check := func(l Ledger) {
		f := l.Financials(initialBankroll)
		assert.True(t, f.CurrentEquity.Equal(f.AvailableCash.Add(f.InPlay)))
	}

	l := Empty()
	check(l)

	var accepted AdmitResult
	l, accepted = l.Admit([]models.Observation{
		observation("A", "ml", 2.1, 7.5, baseTime),
		observation("B", "total", 1.87, 3.2, baseTime),
		observation("C", "spread", 4.5, 12, baseTime),
	}, 1000, baseTime)
	check(l)
	require.Equal(t, 3, accepted.AcceptedCount())

	ids := []string{accepted.Accepted[0].ID, accepted.Accepted[1].ID, accepted.Accepted[2].ID}
	l, _ = l.ApplySettlement([]models.Outcome{{PositionID: ids[0], Verdict: models.StatusWon}})
	check(l)
	l, _ = l.ApplySettlement([]models.Outcome{{PositionID: ids[1], Verdict: models.StatusLost}})
	check(l)
	l, _ = l.Remove(ids[2])
	check(l)
}

func TestApplySettlementIsOrderIndependent(t *testing.T) {
	l, result := Empty().Admit([]models.Observation{
		observation("A", "ml", 2.0, 10, baseTime),
		observation("B", "ml", 2.0, 10, baseTime),
	}, 1000, baseTime)
	a, b := result.Accepted[0].ID, result.Accepted[1].ID

	outA := models.Outcome{PositionID: a, Verdict: models.StatusWon, Note: "2-1"}
	outB := models.Outcome{PositionID: b, Verdict: models.StatusLost, Note: "0-3"}

	ab, _ := l.ApplySettlement([]models.Outcome{outA, outB})
	ba, _ := l.ApplySettlement([]models.Outcome{outB, outA})
	stepwise, _ := l.ApplySettlement([]models.Outcome{outB})
	stepwise, _ = stepwise.ApplySettlement([]models.Outcome{outA})

	assert.Equal(t, ab.Positions(), ba.Positions())
	assert.Equal(t, ab.Positions(), stepwise.Positions())
}

func TestApplySettlementIgnoresInconclusiveAndUnknown(t *testing.T) {
	l, _ := admitOne(t, Empty(), observation("X", "spread", 2.0, 10, baseTime))
	id := l.Positions()[0].ID

	next, applied := l.ApplySettlement([]models.Outcome{
		{PositionID: id, Verdict: models.StatusPending},
		{PositionID: id, Verdict: models.Status("won")},
		{PositionID: id, Verdict: models.StatusVoid},
		{PositionID: "missing", Verdict: models.StatusWon},
	})

	assert.Zero(t, applied)
	assert.Equal(t, models.StatusPending, next.Positions()[0].Status)
}

func TestApplySettlementIsOneWay(t *testing.T) {
	l, _ := admitOne(t, Empty(), observation("X", "spread", 2.0, 10, baseTime))
	id := l.Positions()[0].ID

	l, _ = l.ApplySettlement([]models.Outcome{{PositionID: id, Verdict: models.StatusLost, Note: "lost"}})
	l, applied := l.ApplySettlement([]models.Outcome{{PositionID: id, Verdict: models.StatusWon, Note: "won"}})

	assert.Zero(t, applied)
	p, ok := l.Get(id)
	require.True(t, ok)
	assert.Equal(t, models.StatusLost, p.Status)
	assert.Equal(t, "lost", p.SettlementNote)
}

func TestApplySettlementDefaultsNoteAndAttachesSources(t *testing.T) {
	l, _ := admitOne(t, Empty(), observation("X", "spread", 2.0, 10, baseTime))
	id := l.Positions()[0].ID

	sources := []models.Source{{Title: "Box score", URI: "https://example.com/box"}}
	l, _ = l.ApplySettlement([]models.Outcome{{PositionID: id, Verdict: models.StatusWon, Sources: sources}})

	p, _ := l.Get(id)
	assert.Equal(t, DefaultSettlementNote, p.SettlementNote)
	assert.Equal(t, sources, p.Sources)
	assert.Equal(t, 25.00, p.Stake)
	assert.Equal(t, 2.0, p.Odds)
}

func TestSelectForSettlementPicksOldestPending(t *testing.T) {
	var positions []models.Position
	for i := 0; i < 8; i++ {
		status := models.StatusPending
		if i == 1 {
			status = models.StatusWon
		}
		// newest first
		positions = append([]models.Position{{
			ID:        string(rune('a' + i)),
			Event:     "E",
			Market:    "M",
			Odds:      2,
			Stake:     10,
			Status:    status,
			CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		}}, positions...)
	}

	selected := New(positions).SelectForSettlement(0)
	require.Len(t, selected, SettlementBatchSize)

	ids := make([]string, 0, len(selected))
	for _, p := range selected {
		ids = append(ids, p.ID)
		assert.True(t, p.IsPending())
	}
	assert.Equal(t, []string{"a", "c", "d", "e", "f"}, ids)

	assert.Len(t, New(positions).SelectForSettlement(2), 2)
	assert.Empty(t, Empty().SelectForSettlement(5))
}

func TestRemove(t *testing.T) {
	l, result := Empty().Admit([]models.Observation{
		observation("A", "ml", 2.0, 10, baseTime),
		observation("B", "ml", 2.0, 10, baseTime),
	}, 1000, baseTime)

	next, removed := l.Remove(result.Accepted[0].ID)
	assert.True(t, removed)
	assert.Equal(t, 1, next.Len())
	assert.Equal(t, 2, l.Len())

	f := next.Financials(initialBankroll)
	assert.True(t, f.InPlay.Equal(decimal.NewFromInt(25)))

	same, removed := next.Remove("missing")
	assert.False(t, removed)
	assert.Equal(t, next, same)
}

func TestSettleManually(t *testing.T) {
	l, _ := admitOne(t, Empty(), observation("X", "spread", 2.0, 10, baseTime))
	id := l.Positions()[0].ID

	voided, err := l.Settle(id, models.StatusVoid, "")
	require.NoError(t, err)
	p, _ := voided.Get(id)
	assert.Equal(t, models.StatusVoid, p.Status)
	assert.Equal(t, ManualSettlementNote, p.SettlementNote)

	_, err = voided.Settle(id, models.StatusWon, "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = l.Settle(id, models.StatusPending, "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = l.Settle("missing", models.StatusWon, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFilter(t *testing.T) {
	l, result := Empty().Admit([]models.Observation{
		observation("A", "ml", 2.0, 10, baseTime),
		observation("B", "ml", 2.0, 10, baseTime),
	}, 1000, baseTime)
	l, _ = l.ApplySettlement([]models.Outcome{{PositionID: result.Accepted[0].ID, Verdict: models.StatusWon}})

	assert.Len(t, l.Filter(models.StatusWon), 1)
	assert.Len(t, l.Filter(models.StatusPending), 1)
	assert.Len(t, l.Filter(models.StatusLost), 0)
	assert.Len(t, l.Filter(""), 2)
}
