// Package ledger holds the ordered collection of positions and the rules for
// admitting, settling and removing them. Every operation returns a new Ledger;
// a Ledger value is never modified after construction.
package ledger

import (
	"fmt"
	"sort"

	"github.com/yourusername/quant-ninja/internal/models"
)

// Ledger is an immutable, newest-first collection of positions
type Ledger struct {
	positions []models.Position
}

// New builds a ledger from positions in newest-first order. The input slice is copied.
func New(positions []models.Position) Ledger {
	return Ledger{positions: clonePositions(positions)}
}

// Empty returns a ledger with no positions
func Empty() Ledger {
	return Ledger{}
}

// Len returns the number of positions
func (l Ledger) Len() int {
	return len(l.positions)
}

// Positions returns a copy of all positions, newest first
func (l Ledger) Positions() []models.Position {
	return clonePositions(l.positions)
}

// Get returns the position with the given id
func (l Ledger) Get(id string) (models.Position, bool) {
	idx := l.indexOf(id)
	if idx < 0 {
		return models.Position{}, false
	}
	return l.positions[idx].Clone(), true
}

// Filter returns the positions with the given status, newest first.
// An empty status returns everything.
func (l Ledger) Filter(status models.Status) []models.Position {
	if status == "" {
		return l.Positions()
	}
	out := make([]models.Position, 0, len(l.positions))
	for _, p := range l.positions {
		if p.Status == status {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Chronological returns a copy of the positions ordered by CreatedAt ascending
func (l Ledger) Chronological() []models.Position {
	out := l.Positions()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Remove drops the position with the given id. The second return value
// reports whether anything was removed.
func (l Ledger) Remove(id string) (Ledger, bool) {
	idx := l.indexOf(id)
	if idx < 0 {
		return l, false
	}

	next := make([]models.Position, 0, len(l.positions)-1)
	next = append(next, l.positions[:idx]...)
	next = append(next, l.positions[idx+1:]...)
	return Ledger{positions: next}, true
}

// Settle manually moves a pending position to a terminal status
func (l Ledger) Settle(id string, status models.Status, note string) (Ledger, error) {
	idx := l.indexOf(id)
	if idx < 0 {
		return l, fmt.Errorf("settle %s: %w", id, models.ErrNotFound)
	}
	if !status.IsTerminal() {
		return l, fmt.Errorf("settle %s to %q: %w", id, status, models.ErrInvalidTransition)
	}
	if !l.positions[idx].IsPending() {
		return l, fmt.Errorf("settle %s from %s: %w", id, l.positions[idx].Status, models.ErrInvalidTransition)
	}

	next := l.Positions()
	next[idx].Status = status
	if note == "" {
		note = ManualSettlementNote
	}
	next[idx].SettlementNote = note
	return Ledger{positions: next}, nil
}

func (l Ledger) indexOf(id string) int {
	for i := range l.positions {
		if l.positions[i].ID == id {
			return i
		}
	}
	return -1
}

func clonePositions(in []models.Position) []models.Position {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.Position, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
