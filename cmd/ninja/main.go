// Package main provides the quant-ninja command line.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/quant-ninja/internal/bot"
	"github.com/yourusername/quant-ninja/internal/capture"
	"github.com/yourusername/quant-ninja/internal/config"
	"github.com/yourusername/quant-ninja/internal/logger"
	"github.com/yourusername/quant-ninja/internal/metrics"
	"github.com/yourusername/quant-ninja/internal/oracle"
	"github.com/yourusername/quant-ninja/internal/store"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	cfg        *config.Config
	appLog     *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "ninja",
	Short:         "Paper-trading bankroll and bet lifecycle engine",
	Long:          `Admits value lines from dashboard screenshots or web search, stakes them with quarter-Kelly against a paper bankroll, and settles them by verifying real outcomes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ninja %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config/config.yaml", "Path to configuration file")
	rootCmd.AddCommand(versionCmd, serveCmd, scanCmd, syncCmd, settleCmd, ledgerCmd, statsCmd, resetCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}

	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.ValidateEnvironment(cfg); err != nil {
		return err
	}

	appLog = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	metrics.InitRegistry()
	return nil
}

// openSession opens the configured store and loads the ledger from it
func openSession(ctx context.Context) (*bot.Session, store.Store, error) {
	st, err := store.Open(ctx, &cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	session := bot.NewSession(st, cfg.Bankroll.Initial, appLog)
	if err := session.Load(ctx); err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return session, st, nil
}

// openOrchestrator wires the full bot for commands that call the oracle.
// The ledger is not loaded; Start loads it, one-shot commands call Load.
func openOrchestrator(ctx context.Context, withSource bool) (*bot.Orchestrator, store.Store, error) {
	client, err := oracle.NewClient(&cfg.Oracle, appLog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create oracle client: %w", err)
	}

	st, err := store.Open(ctx, &cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	source, err := frameSource(withSource)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	return bot.NewOrchestrator(cfg, st, client, source, appLog), st, nil
}

func frameSource(enabled bool) (capture.FrameSource, error) {
	if !enabled || cfg.Agent.FrameDir == "" {
		return nil, nil
	}
	source, err := capture.NewDirectorySource(cfg.Agent.FrameDir)
	if err != nil {
		return nil, err
	}
	return source, nil
}

func closeStore(st store.Store) {
	if err := st.Close(); err != nil {
		appLog.WithError(err).Warn("Failed to close store")
	}
}
