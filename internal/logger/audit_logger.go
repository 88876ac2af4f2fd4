// Package logger provides audit logging.
package logger

import (
	"github.com/sirupsen/logrus"

	"github.com/yourusername/quant-ninja/internal/models"
)

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogPositionAdmitted logs a new paper position.
func (al *AuditLogger) LogPositionAdmitted(p models.Position, source string) {
	al.WithFields(logrus.Fields{
		"position_id": p.ID,
		"event":       p.Event,
		"market":      p.Market,
		"bookie":      p.Bookie,
		"odds":        p.Odds,
		"ev":          p.EdgePercent,
		"stake":       p.Stake,
		"timestamp":   p.CreatedAt.UnixMilli(),
		"source":      source,
	}).Info("Position admitted")
}

// LogPositionSettled logs a status transition out of PENDING.
func (al *AuditLogger) LogPositionSettled(p models.Position, settledBy string) {
	al.WithFields(logrus.Fields{
		"position_id": p.ID,
		"event":       p.Event,
		"new_state":   p.Status,
		"stake":       p.Stake,
		"odds":        p.Odds,
		"profit_loss": p.ProfitLoss(),
		"details":     p.SettlementNote,
		"sources":     len(p.Sources),
		"settled_by":  settledBy,
	}).Info("Position settled")
}

// LogPositionRemoved logs a manual deletion.
func (al *AuditLogger) LogPositionRemoved(p models.Position) {
	al.WithFields(logrus.Fields{
		"position_id": p.ID,
		"event":       p.Event,
		"state":       p.Status,
		"stake":       p.Stake,
	}).Warn("Position removed")
}

// LogLedgerReset logs a wipe of the whole ledger.
func (al *AuditLogger) LogLedgerReset(positionsDropped int) {
	al.WithField("positions_dropped", positionsDropped).Warn("Ledger reset")
}

// LogCircuitBreakerEvent logs circuit breaker events.
func (al *AuditLogger) LogCircuitBreakerEvent(eventType, reason string, metricsSnapshot map[string]interface{}, actionTaken string) {
	al.WithFields(logrus.Fields{
		"event_type":       eventType,
		"reason":           reason,
		"metrics_snapshot": metricsSnapshot,
		"action_taken":     actionTaken,
	}).Warn("Circuit breaker event recorded")
}
