package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/quant-ninja/internal/models"
	"github.com/yourusername/quant-ninja/internal/staking"
)

// DedupWindow is how close in time two observations of the same event and
// market must be to count as the same line seen again
const DedupWindow = 600000 * time.Millisecond

// AdmitResult describes what happened to a batch of candidates
type AdmitResult struct {
	Accepted        []models.Position
	NonPositiveEdge int
	Duplicates      int
	ZeroStake       int
}

// AcceptedCount returns the number of new positions
func (r AdmitResult) AcceptedCount() int {
	return len(r.Accepted)
}

// Rejected returns the number of candidates that did not become positions
func (r AdmitResult) Rejected() int {
	return r.NonPositiveEdge + r.Duplicates + r.ZeroStake
}

// Admit turns candidate observations into new pending positions.
//
// Candidates with a non-positive edge, candidates that repeat an existing
// position's event and market within DedupWindow, and candidates whose stake
// sizes to zero are dropped. Every stake is sized against the same
// availableCash. Survivors are prepended in batch order. When nothing
// survives the receiver is returned as-is.
func (l Ledger) Admit(candidates []models.Observation, availableCash float64, now time.Time) (Ledger, AdmitResult) {
	var result AdmitResult

	for _, c := range candidates {
		if c.EdgePercent <= 0 {
			result.NonPositiveEdge++
			continue
		}

		observedAt := c.ObservedAt
		if observedAt.IsZero() {
			observedAt = now
		}

		if l.isDuplicate(c.Event, c.Market, observedAt) {
			result.Duplicates++
			continue
		}

		stake := staking.ComputeStake(c.EdgePercent, c.Odds, availableCash)
		if stake == 0 {
			result.ZeroStake++
			continue
		}

		var sources []models.Source
		if len(c.Sources) > 0 {
			sources = append(sources, c.Sources...)
		}

		result.Accepted = append(result.Accepted, models.Position{
			ID:          uuid.New().String(),
			Event:       c.Event,
			Market:      c.Market,
			Bookie:      c.Bookie,
			Odds:        c.Odds,
			EdgePercent: c.EdgePercent,
			Stake:       stake,
			Status:      models.StatusPending,
			CreatedAt:   observedAt,
			Sources:     sources,
		})
	}

	if len(result.Accepted) == 0 {
		return l, result
	}

	next := make([]models.Position, 0, len(result.Accepted)+len(l.positions))
	next = append(next, clonePositions(result.Accepted)...)
	next = append(next, clonePositions(l.positions)...)
	return Ledger{positions: next}, result
}

// isDuplicate checks the candidate against positions that existed before the batch
func (l Ledger) isDuplicate(event, market string, observedAt time.Time) bool {
	for _, p := range l.positions {
		if p.Event != event || p.Market != market {
			continue
		}
		delta := observedAt.Sub(p.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta < DedupWindow {
			return true
		}
	}
	return false
}
