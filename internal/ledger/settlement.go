package ledger

import (
	"sort"

	"github.com/yourusername/quant-ninja/internal/models"
)

const (
	// SettlementBatchSize bounds how many positions one settlement pass verifies
	SettlementBatchSize = 5

	// DefaultSettlementNote is attached when the oracle gives no details
	DefaultSettlementNote = "Verified via AI Market Search"

	// ManualSettlementNote is attached to positions settled by hand without a note
	ManualSettlementNote = "Settled manually"
)

// SelectForSettlement returns up to limit pending positions, oldest first.
// A non-positive limit uses SettlementBatchSize.
func (l Ledger) SelectForSettlement(limit int) []models.Position {
	if limit <= 0 {
		limit = SettlementBatchSize
	}

	pending := make([]models.Position, 0, len(l.positions))
	for _, p := range l.positions {
		if p.IsPending() {
			pending = append(pending, p.Clone())
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending
}

// ApplySettlement applies conclusive outcomes to pending positions and
// returns the new ledger with the number of positions that changed.
//
// Outcomes whose verdict is not WON or LOST, outcomes for unknown ids and
// outcomes for positions that are no longer pending are ignored. Each outcome
// touches only its own position, so the order of outcomes does not matter.
func (l Ledger) ApplySettlement(outcomes []models.Outcome) (Ledger, int) {
	var next []models.Position
	applied := 0

	for _, o := range outcomes {
		if !o.IsConclusive() {
			continue
		}
		idx := l.indexOf(o.PositionID)
		if idx < 0 {
			continue
		}
		if next == nil {
			next = l.Positions()
		}
		if !next[idx].IsPending() {
			continue
		}

		note := o.Note
		if note == "" {
			note = DefaultSettlementNote
		}

		next[idx].Status = o.Verdict
		next[idx].SettlementNote = note
		next[idx].Sources = append([]models.Source(nil), o.Sources...)
		applied++
	}

	if applied == 0 {
		return l, 0
	}
	return Ledger{positions: next}, applied
}
