package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yourusername/quant-ninja/internal/bot"
	"github.com/yourusername/quant-ninja/internal/capture"
	"github.com/yourusername/quant-ninja/internal/models"
	"github.com/yourusername/quant-ninja/internal/report"
)

var (
	statusFilter string
	assumeYes    bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Extract lines from a dashboard screenshot and admit them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		frame, err := capture.NewFrame(args[0], data)
		if err != nil {
			return err
		}

		orch, st, err := openOrchestrator(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeStore(st)
		if err := orch.Session().Load(cmd.Context()); err != nil {
			return err
		}

		result, err := orch.Agent().ScanFrame(cmd.Context(), frame, bot.SourceUpload)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !result.Valid {
			fmt.Fprintln(out, "  Image is not a betting dashboard, nothing admitted.")
			return nil
		}
		fmt.Fprintf(out, "  Lines found: %d  admitted: %d  duplicates: %d  no edge: %d  malformed: %d\n",
			result.Candidates, result.Admission.AcceptedCount(), result.Admission.Duplicates,
			result.Admission.NonPositiveEdge, result.Malformed)
		report.NewWriter(out).Positions(result.Admission.Accepted)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Discover value lines through web search and admit them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Features.SyncEnabled {
			return fmt.Errorf("sync is disabled by features.sync_enabled")
		}

		orch, st, err := openOrchestrator(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeStore(st)
		if err := orch.Session().Load(cmd.Context()); err != nil {
			return err
		}

		result, err := orch.Sync(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "  Lines found: %d  admitted: %d  duplicates: %d  no edge: %d\n",
			result.Candidates, result.Admission.AcceptedCount(), result.Admission.Duplicates, result.Admission.NonPositiveEdge)
		report.NewWriter(out).Positions(result.Admission.Accepted)
		return nil
	},
}

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Verify outcomes for the oldest pending positions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, st, err := openOrchestrator(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeStore(st)
		if err := orch.Session().Load(cmd.Context()); err != nil {
			return err
		}

		result, err := orch.Settler().SettleOnce(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "  Checked: %d  settled: %d  still pending: %d  failed: %d\n",
			result.Checked, len(result.Settled), result.Pending, result.Failed)
		if len(result.Settled) > 0 {
			report.NewWriter(out).Positions(result.Settled)
		}
		return nil
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and edit positions",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List positions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status models.Status
		if statusFilter != "" {
			status = models.Status(strings.ToUpper(statusFilter))
			if !status.IsValid() {
				return fmt.Errorf("invalid status %q", statusFilter)
			}
		}

		session, st, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore(st)

		report.NewWriter(cmd.OutOrStdout()).Positions(session.Ledger().Filter(status))
		return nil
	},
}

var ledgerRemoveCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a position from the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, st, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore(st)

		p, err := session.Remove(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Removed %s (%s, %s)\n", p.ID, p.Event, p.Status)
		return nil
	},
}

var ledgerSettleCmd = &cobra.Command{
	Use:   "settle <id> <won|lost|void> [note]",
	Short: "Settle a pending position by hand",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := models.Status(strings.ToUpper(args[1]))
		if !status.IsTerminal() {
			return fmt.Errorf("status must be won, lost or void, got %q", args[1])
		}
		var note string
		if len(args) == 3 {
			note = args[2]
		}

		session, st, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore(st)

		p, err := session.Settle(cmd.Context(), args[0], status, note)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s is now %s, P/L %+.2f\n", p.ID, p.Status, p.ProfitLoss())
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show bankroll, ROI and per-bookie performance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, st, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore(st)

		report.NewWriter(cmd.OutOrStdout()).Dashboard(bot.NewMonitor(session, appLog).GetDashboardData())
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every position and restore the initial bankroll",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !assumeYes {
			return fmt.Errorf("reset discards the whole ledger; rerun with --yes to confirm")
		}

		session, st, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore(st)

		dropped, err := session.Reset(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Dropped %d positions, bankroll back to $%.2f\n", dropped, cfg.Bankroll.Initial)
		return nil
	},
}

func init() {
	ledgerListCmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Only show positions with this status (pending, won, lost, void)")
	resetCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Confirm the reset")

	ledgerCmd.AddCommand(ledgerListCmd, ledgerRemoveCmd, ledgerSettleCmd)
}
