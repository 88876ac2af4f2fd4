package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/quant-ninja/internal/api"
	"github.com/yourusername/quant-ninja/internal/health"
	"github.com/yourusername/quant-ninja/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent, settlement schedule and dashboard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"version":     Version,
		"driver":      cfg.Storage.Driver,
	}).Info("Quant Ninja starting")

	orch, st, err := openOrchestrator(ctx, cfg.Features.AgentEnabled)
	if err != nil {
		return err
	}
	defer closeStore(st)

	healthServer := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Commit:      GitCommit,
		Port:        cfg.Health.Port,
		Logger:      appLog,
		Store:       st,
	})
	if err := healthServer.Start(ctx); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		startMetricsServer(ctx)
	}

	if cfg.API.Enabled {
		apiServer := api.NewServer(cfg, orch, appLog)
		if err := apiServer.Start(ctx); err != nil {
			return err
		}
	}

	if err := orch.Start(ctx); err != nil {
		return err
	}
	healthServer.SetReady(true)

	status := orch.GetStatus()
	appLog.WithFields(logrus.Fields{
		"agent_enabled":       status.AgentEnabled,
		"auto_settle_enabled": status.AutoSettleEnabled,
		"jobs":                len(status.Jobs),
		"equity":              status.Financials.CurrentEquity.StringFixed(2),
	}).Info("Quant Ninja is running")

	<-ctx.Done()
	appLog.Info("Shutdown signal received")
	healthServer.SetReady(false)

	if err := orch.Stop(); err != nil {
		appLog.WithError(err).Error("Error during orchestrator shutdown")
	}

	appLog.Info("Quant Ninja shut down successfully")
	return nil
}

func startMetricsServer(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler())

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLog.WithField("port", cfg.Metrics.Port).Info("Metrics server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.WithError(err).Error("Metrics server error")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
