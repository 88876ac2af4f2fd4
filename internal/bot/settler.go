package bot

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/quant-ninja/internal/config"
	"github.com/yourusername/quant-ninja/internal/ledger"
	"github.com/yourusername/quant-ninja/internal/logger"
	"github.com/yourusername/quant-ninja/internal/metrics"
	"github.com/yourusername/quant-ninja/internal/models"
)

const defaultRequestTimeout = 45 * time.Second

// ErrSettlementInProgress is returned when a settlement pass overlaps another
var ErrSettlementInProgress = errors.New("settlement already in progress")

// SettleReport summarises one settlement pass
type SettleReport struct {
	Checked  int               `json:"checked"`
	Settled  []models.Position `json:"settled"`
	Pending  int               `json:"pending"`
	Failed   int               `json:"failed"`
	Duration time.Duration     `json:"duration"`
}

// Settler verifies pending positions against the oracle
type Settler struct {
	session        *Session
	oracle         Oracle
	batchSize      int
	requestTimeout time.Duration
	running        atomic.Bool

	oracleLog *logger.OracleLogger
	logger    *logrus.Entry
}

// NewSettler creates a settler from the settlement settings
func NewSettler(session *Session, o Oracle, cfg *config.SettlementConfig, log *logrus.Logger) *Settler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = ledger.SettlementBatchSize
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Settler{
		session:        session,
		oracle:         o,
		batchSize:      batchSize,
		requestTimeout: timeout,
		oracleLog:      logger.NewOracleLogger(log),
		logger:         log.WithField("component", "settler"),
	}
}

// SettleOnce verifies the oldest pending positions concurrently and applies
// every conclusive verdict in one ledger mutation. Failed or timed-out
// verifications leave their positions pending and never abort the batch.
func (s *Settler) SettleOnce(ctx context.Context) (*SettleReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSettlementInProgress
	}
	defer s.running.Store(false)

	start := time.Now()
	candidates := s.session.Ledger().SelectForSettlement(s.batchSize)
	report := &SettleReport{Checked: len(candidates)}
	if len(candidates) == 0 {
		return report, nil
	}

	outcomes := make([]*models.Outcome, len(candidates))
	var failed atomic.Int32

	var g errgroup.Group
	for i, p := range candidates {
		g.Go(func() error {
			reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
			defer cancel()

			outcome, err := s.oracle.VerifyOutcome(reqCtx, p)
			if err != nil {
				failed.Add(1)
				s.oracleLog.LogOracleError("verify", err)
				return nil
			}
			outcomes[i] = outcome
			s.oracleLog.LogVerification(p.ID, string(outcome.Verdict), len(outcome.Sources))
			return nil
		})
	}
	_ = g.Wait()

	conclusive := make([]models.Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o != nil && o.IsConclusive() {
			conclusive = append(conclusive, *o)
		}
	}

	settled, err := s.session.ApplySettlement(ctx, conclusive)
	if err != nil {
		return nil, err
	}

	report.Settled = settled
	report.Failed = int(failed.Load())
	report.Pending = report.Checked - len(settled)
	report.Duration = time.Since(start)
	metrics.RecordSettlementPass(report.Duration.Seconds())

	s.logger.WithFields(logrus.Fields{
		"checked":     report.Checked,
		"settled":     len(settled),
		"failed":      report.Failed,
		"duration_ms": report.Duration.Milliseconds(),
	}).Info("Settlement pass completed")

	return report, nil
}
