// Package report renders the ledger and its financials as terminal tables.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/yourusername/quant-ninja/internal/bot"
	"github.com/yourusername/quant-ninja/internal/ledger"
	"github.com/yourusername/quant-ninja/internal/models"
)

const (
	maxTextWidth = 32
	timeLayout   = "2006-01-02 15:04"
)

// Writer prints reports to out
type Writer struct {
	out io.Writer
}

// NewWriter creates a report writer
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Positions prints one row per position in the order given
func (w *Writer) Positions(positions []models.Position) {
	if len(positions) == 0 {
		fmt.Fprintln(w.out, "  No positions.")
		return
	}

	tbl := tablewriter.NewWriter(w.out)
	tbl.Header("ID", "Placed", "Event", "Market", "Bookie", "Odds", "EV%", "Stake", "Status", "P/L")

	for _, p := range positions {
		pl := "-"
		if p.Status.IsTerminal() {
			pl = fmt.Sprintf("%+.2f", p.ProfitLoss())
		}
		tbl.Append(
			shortID(p.ID),
			p.CreatedAt.Local().Format(timeLayout),
			truncate(p.Event),
			truncate(p.Market),
			p.Bookie,
			fmt.Sprintf("%.2f", p.Odds),
			fmt.Sprintf("%.1f", p.EdgePercent),
			fmt.Sprintf("$%.2f", p.Stake),
			string(p.Status),
			pl,
		)
	}
	tbl.Render()
}

// Financials prints the money summary
func (w *Writer) Financials(f ledger.Financials) {
	fmt.Fprintf(w.out, "========================================================\n")
	fmt.Fprintf(w.out, "  BANKROLL\n")
	fmt.Fprintf(w.out, "========================================================\n")
	fmt.Fprintf(w.out, "  Initial bankroll:   $%s\n", f.InitialBankroll.StringFixed(2))
	fmt.Fprintf(w.out, "  Available cash:     $%s\n", f.AvailableCash.StringFixed(2))
	fmt.Fprintf(w.out, "  In play:            $%s\n", f.InPlay.StringFixed(2))
	fmt.Fprintf(w.out, "  Current equity:     $%s\n", f.CurrentEquity.StringFixed(2))
	fmt.Fprintf(w.out, "  Net profit:         $%s\n", f.NetProfit().StringFixed(2))
	fmt.Fprintf(w.out, "  ROI:                %.2f%%\n", f.ROI)
	fmt.Fprintf(w.out, "\n  Bets: %d  (pending %d, won %d, lost %d, void %d)\n",
		f.TotalBets, f.Pending, f.TotalWins, f.TotalLosses, f.TotalVoids)
	fmt.Fprintf(w.out, "  Win rate:           %.1f%%\n", f.WinRate)
}

// Performance prints the overall line followed by one row per bookie
func (w *Writer) Performance(overall *bot.LivePerformance, byBookie []*bot.LivePerformance) {
	fmt.Fprintf(w.out, "\n  --- PERFORMANCE ---\n")
	if overall != nil {
		fmt.Fprintf(w.out, "  Staked $%.2f, P/L %+.2f, yield %.2f%%, streak %d\n",
			overall.TotalStaked, overall.TotalPL, overall.YieldPercent, overall.CurrentStreak)
	}
	if len(byBookie) == 0 {
		return
	}

	tbl := tablewriter.NewWriter(w.out)
	tbl.Header("Bookie", "Bets", "Won", "Lost", "Void", "Pending", "Staked", "P/L", "Yield%")
	for _, p := range byBookie {
		tbl.Append(
			p.Key,
			fmt.Sprintf("%d", p.TotalBets),
			fmt.Sprintf("%d", p.WinningBets),
			fmt.Sprintf("%d", p.LosingBets),
			fmt.Sprintf("%d", p.VoidBets),
			fmt.Sprintf("%d", p.PendingBets),
			fmt.Sprintf("$%.2f", p.TotalStaked),
			fmt.Sprintf("%+.2f", p.TotalPL),
			fmt.Sprintf("%.2f", p.YieldPercent),
		)
	}
	tbl.Render()
}

// Dashboard prints financials then performance
func (w *Writer) Dashboard(d *bot.DashboardData) {
	w.Financials(d.Financials)
	w.Performance(d.Performance, d.ByBookie)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= maxTextWidth {
		return s
	}
	return string([]rune(s)[:maxTextWidth-3]) + "..."
}
