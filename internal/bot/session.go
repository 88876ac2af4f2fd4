// Package bot runs the trading session: it owns the ledger, scans dashboards
// for candidates, and settles positions against the oracle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/quant-ninja/internal/ledger"
	"github.com/yourusername/quant-ninja/internal/logger"
	"github.com/yourusername/quant-ninja/internal/metrics"
	"github.com/yourusername/quant-ninja/internal/models"
	"github.com/yourusername/quant-ninja/internal/store"
)

// Admission sources
const (
	SourceScan   = "scan"
	SourceSync   = "sync"
	SourceUpload = "upload"
)

// Settlement actors
const (
	SettledByOracle = "oracle"
	SettledByManual = "manual"
)

// EventType identifies what changed in the ledger
type EventType string

const (
	EventAdmitted EventType = "admitted"
	EventSettled  EventType = "settled"
	EventRemoved  EventType = "removed"
	EventReset    EventType = "reset"
	EventLoaded   EventType = "loaded"
)

// Event is published to listeners after every committed mutation
type Event struct {
	Type       EventType         `json:"type"`
	Positions  []string          `json:"positions,omitempty"`
	Financials ledger.Financials `json:"financials"`
	At         time.Time         `json:"at"`
}

// Listener receives ledger events. Listeners run on the mutating goroutine
// and must neither block nor mutate the session.
type Listener func(Event)

// Session owns the current ledger. Writers are serialised and every new
// ledger is saved before it replaces the current one.
type Session struct {
	store   store.Store
	initial decimal.Decimal

	writeMu sync.Mutex
	mu      sync.RWMutex
	current ledger.Ledger

	listenerMu sync.RWMutex
	listeners  map[int]Listener
	nextID     int

	audit  *logger.AuditLogger
	logger *logrus.Entry
	now    func() time.Time
}

// NewSession creates a session with an empty ledger. Call Load to restore the last snapshot.
func NewSession(st store.Store, initialBankroll float64, log *logrus.Logger) *Session {
	return &Session{
		store:     st,
		initial:   decimal.NewFromFloat(initialBankroll),
		current:   ledger.Empty(),
		listeners: make(map[int]Listener),
		audit:     logger.NewAuditLogger(log),
		logger:    log.WithField("component", "session"),
		now:       time.Now,
	}
}

// Load replaces the in-memory ledger with the stored snapshot. A corrupt
// snapshot starts the session empty with a warning.
func (s *Session) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	positions, err := s.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrCorruptSnapshot) {
			return fmt.Errorf("failed to load ledger: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"driver": s.store.Driver(),
			"error":  err.Error(),
		}).Warn("Stored ledger is corrupt, starting empty")
		positions = nil
	}

	next := ledger.New(positions)
	s.swap(next)

	fin := next.Financials(s.initial)
	s.logger.WithFields(logrus.Fields{
		"driver":    s.store.Driver(),
		"positions": next.Len(),
		"equity":    fin.CurrentEquity.StringFixed(2),
	}).Info("Ledger loaded")

	s.publish(EventLoaded, nil, fin)
	return nil
}

// Ledger returns the current immutable ledger
func (s *Session) Ledger() ledger.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Financials derives the money view of the current ledger
func (s *Session) Financials() ledger.Financials {
	return s.Ledger().Financials(s.initial)
}

// InitialBankroll returns the starting bankroll
func (s *Session) InitialBankroll() decimal.Decimal {
	return s.initial
}

// Admit sizes and admits candidates against the current available cash.
// Business rejections are reported in the result, never as errors.
func (s *Session) Admit(ctx context.Context, source string, candidates []models.Observation) (ledger.AdmitResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.Ledger()
	cash := cur.Financials(s.initial).AvailableCash.InexactFloat64()

	next, result := cur.Admit(candidates, cash, s.now())
	metrics.RecordAdmission(source, result)

	if result.AcceptedCount() == 0 {
		return result, nil
	}

	if err := s.commit(ctx, next); err != nil {
		return ledger.AdmitResult{}, err
	}

	ids := make([]string, 0, len(result.Accepted))
	for _, p := range result.Accepted {
		s.audit.LogPositionAdmitted(p, source)
		ids = append(ids, p.ID)
	}

	s.publish(EventAdmitted, ids, next.Financials(s.initial))
	return result, nil
}

// ApplySettlement applies oracle outcomes and returns the positions that changed
func (s *Session) ApplySettlement(ctx context.Context, outcomes []models.Outcome) ([]models.Position, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.Ledger()
	next, applied := cur.ApplySettlement(outcomes)
	if applied == 0 {
		return nil, nil
	}

	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}

	settled := make([]models.Position, 0, applied)
	for _, o := range outcomes {
		before, ok := cur.Get(o.PositionID)
		if !ok || !before.IsPending() {
			continue
		}
		after, ok := next.Get(o.PositionID)
		if !ok || after.IsPending() {
			continue
		}
		settled = append(settled, after)
	}

	ids := make([]string, 0, len(settled))
	for _, p := range settled {
		metrics.RecordSettlement(string(p.Status), SettledByOracle)
		s.audit.LogPositionSettled(p, SettledByOracle)
		ids = append(ids, p.ID)
	}

	s.publish(EventSettled, ids, next.Financials(s.initial))
	return settled, nil
}

// Settle manually moves a pending position to WON, LOST or VOID
func (s *Session) Settle(ctx context.Context, id string, status models.Status, note string) (models.Position, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, err := s.Ledger().Settle(id, status, note)
	if err != nil {
		return models.Position{}, err
	}

	if err := s.commit(ctx, next); err != nil {
		return models.Position{}, err
	}

	p, _ := next.Get(id)
	metrics.RecordSettlement(string(p.Status), SettledByManual)
	s.audit.LogPositionSettled(p, SettledByManual)

	s.publish(EventSettled, []string{id}, next.Financials(s.initial))
	return p, nil
}

// Remove deletes a position in any status
func (s *Session) Remove(ctx context.Context, id string) (models.Position, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.Ledger()
	p, ok := cur.Get(id)
	if !ok {
		return models.Position{}, fmt.Errorf("remove %s: %w", id, models.ErrNotFound)
	}

	next, _ := cur.Remove(id)
	if err := s.commit(ctx, next); err != nil {
		return models.Position{}, err
	}

	metrics.RecordRemoval()
	s.audit.LogPositionRemoved(p)

	s.publish(EventRemoved, []string{id}, next.Financials(s.initial))
	return p, nil
}

// Reset clears the ledger and returns how many positions were dropped
func (s *Session) Reset(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	dropped := s.Ledger().Len()
	next := ledger.Empty()
	if err := s.commit(ctx, next); err != nil {
		return 0, err
	}

	s.audit.LogLedgerReset(dropped)
	s.publish(EventReset, nil, next.Financials(s.initial))
	return dropped, nil
}

// Subscribe registers a listener and returns a function that removes it
func (s *Session) Subscribe(l Listener) func() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		delete(s.listeners, id)
	}
}

// commit saves next and only then makes it current. Callers hold writeMu.
func (s *Session) commit(ctx context.Context, next ledger.Ledger) error {
	start := time.Now()
	err := s.store.Save(ctx, next.Positions())
	metrics.RecordSnapshotSave(s.store.Driver(), err, time.Since(start).Seconds())
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"driver": s.store.Driver(),
			"error":  err.Error(),
		}).Error("Failed to save ledger snapshot")
		return fmt.Errorf("failed to save ledger: %w", err)
	}

	s.swap(next)
	return nil
}

func (s *Session) swap(next ledger.Ledger) {
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
}

func (s *Session) publish(eventType EventType, ids []string, fin ledger.Financials) {
	metrics.UpdateFinancials(fin)

	s.listenerMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenerMu.RUnlock()

	evt := Event{Type: eventType, Positions: ids, Financials: fin, At: s.now().UTC()}
	for _, l := range listeners {
		l(evt)
	}
}
