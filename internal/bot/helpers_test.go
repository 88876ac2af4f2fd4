package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quant-ninja/internal/config"
	"github.com/yourusername/quant-ninja/internal/logger"
	"github.com/yourusername/quant-ninja/internal/models"
	"github.com/yourusername/quant-ninja/internal/oracle"
)

// MockOracle is a mock implementation of Oracle
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) ExtractCandidates(ctx context.Context, frame []byte, mimeType string) (*oracle.Extraction, error) {
	args := m.Called(ctx, frame, mimeType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oracle.Extraction), args.Error(1)
}

func (m *MockOracle) SearchCandidates(ctx context.Context) (*oracle.Extraction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oracle.Extraction), args.Error(1)
}

func (m *MockOracle) VerifyOutcome(ctx context.Context, p models.Position) (*models.Outcome, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Outcome), args.Error(1)
}

var errSaveFailed = errors.New("disk full")

// memStore keeps the snapshot in memory
type memStore struct {
	mu        sync.Mutex
	positions []models.Position
	loadErr   error
	failSave  bool
	saves     int
}

func (s *memStore) Load(context.Context) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]models.Position(nil), s.positions...), nil
}

func (s *memStore) Save(_ context.Context, positions []models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errSaveFailed
	}
	s.saves++
	s.positions = append([]models.Position(nil), positions...)
	return nil
}

func (s *memStore) Ping(context.Context) error { return nil }
func (s *memStore) Close() error               { return nil }
func (s *memStore) Driver() string             { return "memory" }

func (s *memStore) snapshot() []models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Position(nil), s.positions...)
}

func newTestSession(t *testing.T, st *memStore) *Session {
	t.Helper()
	s := NewSession(st, 1000, logger.Discard())
	require.NoError(t, s.Load(t.Context()))
	return s
}

func candidate(event, market string, odds, edge float64) models.Observation {
	return models.Observation{
		Event:       event,
		Market:      market,
		Bookie:      "Pinnacle",
		Odds:        odds,
		EdgePercent: edge,
	}
}

func pendingPosition(id string, createdAt time.Time) models.Position {
	return models.Position{
		ID:          id,
		Event:       "Event " + id,
		Market:      "Market " + id,
		Bookie:      "Pinnacle",
		Odds:        2.0,
		EdgePercent: 10,
		Stake:       25,
		Status:      models.StatusPending,
		CreatedAt:   createdAt,
	}
}

func testAgentConfig() *config.AgentConfig {
	return &config.AgentConfig{
		ScanIntervalSeconds:   15,
		MaxFailureCount:       3,
		FailureWindowSeconds:  300,
		CooldownSeconds:       120,
		DisarmOnInvalidScreen: true,
		LogSize:               5,
	}
}
