package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/quant-ninja/internal/ledger"
)

// SyncReport summarises one web-search discovery pass
type SyncReport struct {
	Candidates int                `json:"candidates"`
	Malformed  int                `json:"malformed"`
	Admission  ledger.AdmitResult `json:"admission"`
	Duration   time.Duration      `json:"duration"`
}

// Syncer discovers lines through the oracle's web search and admits them
type Syncer struct {
	session *Session
	oracle  Oracle
	logger  *logrus.Entry
}

// NewSyncer creates a syncer
func NewSyncer(session *Session, o Oracle, log *logrus.Logger) *Syncer {
	return &Syncer{
		session: session,
		oracle:  o,
		logger:  log.WithField("component", "sync"),
	}
}

// Sync runs one discovery pass
func (s *Syncer) Sync(ctx context.Context) (*SyncReport, error) {
	start := time.Now()

	extraction, err := s.oracle.SearchCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search candidates: %w", err)
	}

	result, err := s.session.Admit(ctx, SourceSync, extraction.Candidates)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{
		Candidates: len(extraction.Candidates),
		Malformed:  extraction.Rejected,
		Admission:  result,
		Duration:   time.Since(start),
	}

	s.logger.WithFields(logrus.Fields{
		"candidates":  report.Candidates,
		"accepted":    result.AcceptedCount(),
		"duplicates":  result.Duplicates,
		"malformed":   report.Malformed,
		"duration_ms": report.Duration.Milliseconds(),
	}).Info("Sync completed")

	return report, nil
}
