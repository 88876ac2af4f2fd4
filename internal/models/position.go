package models

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle state of a position
type Status string

const (
	StatusPending Status = "PENDING"
	StatusWon     Status = "WON"
	StatusLost    Status = "LOST"
	StatusVoid    Status = "VOID"
)

// IsTerminal reports whether the status can no longer change
func (s Status) IsTerminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusVoid
}

// IsValid reports whether s is one of the known statuses
func (s Status) IsValid() bool {
	return s == StatusPending || s.IsTerminal()
}

// Source is a provenance reference attached to a position by the oracle
type Source struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri,omitempty"`
}

// Position represents a single staked (paper) wager.
//
// Event, Market, Bookie, Odds, EdgePercent, Stake and CreatedAt are fixed at
// admission. Only Status, SettlementNote and Sources change afterwards.
type Position struct {
	ID             string    `json:"id"`
	Event          string    `json:"event"`
	Market         string    `json:"market"`
	Bookie         string    `json:"bookie"`
	Odds           float64   `json:"odds"`
	EdgePercent    float64   `json:"ev"`
	Stake          float64   `json:"stake"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"-"`
	SettlementNote string    `json:"resultDetails,omitempty"`
	Sources        []Source  `json:"groundingSources,omitempty"`
}

// positionJSON carries CreatedAt as Unix milliseconds, the layout snapshots are stored in
type positionJSON struct {
	positionAlias
	Timestamp int64 `json:"timestamp"`
}

type positionAlias Position

// MarshalJSON encodes CreatedAt as a millisecond timestamp
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(positionJSON{
		positionAlias: positionAlias(p),
		Timestamp:     p.CreatedAt.UnixMilli(),
	})
}

// UnmarshalJSON decodes a position with a millisecond timestamp
func (p *Position) UnmarshalJSON(data []byte) error {
	var raw positionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Position(raw.positionAlias)
	p.CreatedAt = time.UnixMilli(raw.Timestamp).UTC()
	return nil
}

// IsPending checks if the position is still awaiting settlement
func (p *Position) IsPending() bool {
	return p.Status == StatusPending
}

// ProfitLoss returns the realised P&L, zero while pending
func (p *Position) ProfitLoss() float64 {
	switch p.Status {
	case StatusWon:
		return p.Stake*p.Odds - p.Stake
	case StatusLost, StatusVoid:
		return -p.Stake
	default:
		return 0
	}
}

// Clone returns a deep copy of the position
func (p Position) Clone() Position {
	if p.Sources != nil {
		p.Sources = append([]Source(nil), p.Sources...)
	}
	return p
}
