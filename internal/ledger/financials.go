package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/yourusername/quant-ninja/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Financials is the derived money view of a ledger. It is recomputed from
// the full collection on every call and never stored.
type Financials struct {
	InitialBankroll decimal.Decimal `json:"initial_bankroll"`
	AvailableCash   decimal.Decimal `json:"available_cash"`
	InPlay          decimal.Decimal `json:"in_play"`
	CurrentEquity   decimal.Decimal `json:"current_equity"`
	TotalBets       int             `json:"total_bets"`
	Pending         int             `json:"pending"`
	TotalWins       int             `json:"total_wins"`
	TotalLosses     int             `json:"total_losses"`
	TotalVoids      int             `json:"total_voids"`
	WinRate         float64         `json:"win_rate"`
	ROI             float64         `json:"roi"`
}

// NetProfit returns equity growth over the initial bankroll
func (f Financials) NetProfit() decimal.Decimal {
	return f.CurrentEquity.Sub(f.InitialBankroll)
}

// Financials derives the money view in one pass over the ledger.
//
// Available cash is the initial bankroll minus every stake ever placed plus
// stake*odds for each winner, floored at zero. Equity is available cash plus
// the stakes still in play.
func (l Ledger) Financials(initialBankroll decimal.Decimal) Financials {
	f := Financials{
		InitialBankroll: initialBankroll,
		TotalBets:       len(l.positions),
	}

	cash := initialBankroll
	inPlay := decimal.Zero

	for _, p := range l.positions {
		stake := decimal.NewFromFloat(p.Stake)
		cash = cash.Sub(stake)

		switch p.Status {
		case models.StatusPending:
			inPlay = inPlay.Add(stake)
			f.Pending++
		case models.StatusWon:
			cash = cash.Add(stake.Mul(decimal.NewFromFloat(p.Odds)))
			f.TotalWins++
		case models.StatusLost:
			f.TotalLosses++
		case models.StatusVoid:
			f.TotalVoids++
		}
	}

	if cash.IsNegative() {
		cash = decimal.Zero
	}

	f.AvailableCash = cash
	f.InPlay = inPlay
	f.CurrentEquity = cash.Add(inPlay)

	settled := f.TotalBets - f.Pending
	if settled == 0 {
		settled = 1
	}
	f.WinRate = decimal.NewFromInt(int64(f.TotalWins)).
		Div(decimal.NewFromInt(int64(settled))).
		Mul(hundred).
		InexactFloat64()

	if !initialBankroll.IsZero() {
		f.ROI = f.CurrentEquity.Sub(initialBankroll).
			Div(initialBankroll).
			Mul(hundred).
			InexactFloat64()
	}

	return f
}
