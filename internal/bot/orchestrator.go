package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/quant-ninja/internal/capture"
	"github.com/yourusername/quant-ninja/internal/config"
	"github.com/yourusername/quant-ninja/internal/ledger"
	"github.com/yourusername/quant-ninja/internal/scheduler"
	"github.com/yourusername/quant-ninja/internal/store"
)

const performanceUpdateInterval = time.Minute

// OrchestratorStatus represents current bot status
type OrchestratorStatus struct {
	Running           bool                `json:"running"`
	AgentEnabled      bool                `json:"agent_enabled"`
	AutoSettleEnabled bool                `json:"auto_settle_enabled"`
	Agent             AgentStatus         `json:"agent"`
	Financials        ledger.Financials   `json:"financials"`
	Jobs              []scheduler.JobInfo `json:"jobs"`
	NextRun           time.Time           `json:"next_run,omitempty"`
	LastUpdate        time.Time           `json:"last_update"`
}

// Orchestrator coordinates all bot components
type Orchestrator struct {
	config    *config.Config
	session   *Session
	agent     *Agent
	settler   *Settler
	syncer    *Syncer
	monitor   *Monitor
	breaker   *CircuitBreaker
	scheduler *scheduler.Scheduler
	logger    *logrus.Logger
	running   bool
	mu        sync.RWMutex
}

// NewOrchestrator wires the bot components. source may be nil when the agent is disabled.
func NewOrchestrator(cfg *config.Config, st store.Store, o Oracle, source capture.FrameSource, logger *logrus.Logger) *Orchestrator {
	session := NewSession(st, cfg.Bankroll.Initial, logger)
	breaker := NewCircuitBreaker(CircuitBreakerConfigFrom(&cfg.Agent), logger)

	orch := &Orchestrator{
		config:    cfg,
		session:   session,
		agent:     NewAgent(session, o, source, breaker, &cfg.Agent, logger),
		settler:   NewSettler(session, o, &cfg.Settlement, logger),
		syncer:    NewSyncer(session, o, logger),
		monitor:   NewMonitor(session, logger),
		breaker:   breaker,
		scheduler: scheduler.NewScheduler(logger),
		logger:    logger,
	}

	logger.Info("Bot orchestrator initialized successfully")
	return orch
}

// Session returns the ledger session
func (o *Orchestrator) Session() *Session { return o.session }

// Agent returns the scan agent
func (o *Orchestrator) Agent() *Agent { return o.agent }

// Settler returns the settlement runner
func (o *Orchestrator) Settler() *Settler { return o.settler }

// Monitor returns the performance monitor
func (o *Orchestrator) Monitor() *Monitor { return o.monitor }

// Sync runs one web-search discovery pass
func (o *Orchestrator) Sync(ctx context.Context) (*SyncReport, error) {
	return o.syncer.Sync(ctx)
}

// Start loads the ledger, schedules the periodic jobs and starts the scheduler
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator is already running")
	}
	o.running = true
	o.mu.Unlock()

	if err := o.session.Load(ctx); err != nil {
		o.setRunning(false)
		return err
	}

	if err := o.scheduleJobs(); err != nil {
		o.setRunning(false)
		return err
	}

	if o.config.Features.AgentEnabled {
		if err := o.agent.Arm(); err != nil {
			o.logger.WithError(err).Warn("Failed to arm agent")
		}
	}

	if err := o.scheduler.Start(); err != nil {
		o.setRunning(false)
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := o.Stop(); err != nil {
			o.logger.WithError(err).Error("Failed to stop orchestrator")
		}
	}()

	o.logger.WithFields(logrus.Fields{
		"agent_enabled":       o.config.Features.AgentEnabled,
		"auto_settle_enabled": o.config.Features.AutoSettleEnabled,
		"jobs":                len(o.scheduler.Entries()),
	}).Info("Bot orchestrator started successfully")

	return nil
}

// Stop gracefully stops all bot components
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = false
	o.mu.Unlock()

	o.logger.Info("Stopping bot orchestrator")

	o.agent.Disarm("shutdown")
	if err := o.scheduler.Stop(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	o.logger.Info("Bot orchestrator stopped")
	return nil
}

// GetStatus returns current orchestrator status
func (o *Orchestrator) GetStatus() *OrchestratorStatus {
	o.mu.RLock()
	running := o.running
	o.mu.RUnlock()

	return &OrchestratorStatus{
		Running:           running,
		AgentEnabled:      o.config.Features.AgentEnabled,
		AutoSettleEnabled: o.config.Features.AutoSettleEnabled,
		Agent:             o.agent.Status(),
		Financials:        o.session.Financials(),
		Jobs:              o.scheduler.Entries(),
		NextRun:           o.scheduler.NextRun(),
		LastUpdate:        time.Now(),
	}
}

func (o *Orchestrator) scheduleJobs() error {
	if len(o.scheduler.Entries()) > 0 {
		return nil
	}

	if o.config.Features.AgentEnabled {
		if _, err := o.scheduler.ScheduleEvery("scan", o.config.Agent.ScanInterval(), 0, o.scanJob); err != nil {
			return fmt.Errorf("failed to schedule scan: %w", err)
		}
	}

	if o.config.Features.AutoSettleEnabled {
		settle := func(ctx context.Context) error {
			_, err := o.settler.SettleOnce(ctx)
			if errors.Is(err, ErrSettlementInProgress) {
				return nil
			}
			return err
		}
		if _, err := o.scheduler.ScheduleEvery("settle", o.config.Settlement.Interval(), 0, settle); err != nil {
			return fmt.Errorf("failed to schedule settlement: %w", err)
		}
	}

	if _, err := o.scheduler.ScheduleEvery("performance", performanceUpdateInterval, 0, o.monitor.UpdatePerformance); err != nil {
		return fmt.Errorf("failed to schedule performance update: %w", err)
	}

	return nil
}

// scanJob is the scheduled scan body; a disarmed agent or an overlapping scan is a no-op
func (o *Orchestrator) scanJob(ctx context.Context) error {
	if !o.agent.IsArmed() {
		return nil
	}
	_, err := o.agent.ScanOnce(ctx)
	if errors.Is(err, ErrScanInProgress) || errors.Is(err, ErrAgentDisarmed) {
		return nil
	}
	return err
}

func (o *Orchestrator) setRunning(running bool) {
	o.mu.Lock()
	o.running = running
	o.mu.Unlock()
}
