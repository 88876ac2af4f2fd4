package models

import (
	"strings"
	"time"
)

// Observation is a validated candidate bet reported by an external source.
// Records that fail the validate tags never reach the ledger.
type Observation struct {
	Event       string    `json:"event" validate:"required,max=256"`
	Market      string    `json:"market" validate:"required,max=256"`
	Bookie      string    `json:"bookie" validate:"max=128"`
	Odds        float64   `json:"odds" validate:"gt=1,lte=1000"`
	EdgePercent float64   `json:"ev" validate:"gte=-100,lte=1000"`
	ObservedAt  time.Time `json:"observedAt"`
	Sources     []Source  `json:"sources,omitempty"`
}

// Normalize trims free-text fields in place
func (o *Observation) Normalize() {
	o.Event = strings.TrimSpace(o.Event)
	o.Market = strings.TrimSpace(o.Market)
	o.Bookie = strings.TrimSpace(o.Bookie)
}

// Outcome is a settlement verdict for one position
type Outcome struct {
	PositionID string   `json:"positionId"`
	Verdict    Status   `json:"verdict"`
	Note       string   `json:"note,omitempty"`
	Sources    []Source `json:"sources,omitempty"`
}

// IsConclusive reports whether the verdict settles the position
func (o Outcome) IsConclusive() bool {
	return o.Verdict == StatusWon || o.Verdict == StatusLost
}
