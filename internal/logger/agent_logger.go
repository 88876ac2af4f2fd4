// Package logger provides agent-specific logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// AgentLogger provides dedicated logging for the live scan agent.
type AgentLogger struct {
	*logrus.Entry
}

// NewAgentLogger creates a new agent logger.
func NewAgentLogger(baseLogger *logrus.Logger) *AgentLogger {
	return &AgentLogger{
		Entry: baseLogger.WithField("component", "agent"),
	}
}

// LogScan logs one completed scan cycle.
func (al *AgentLogger) LogScan(frame string, candidates, accepted, duplicates, rejected int, durationMs float64) {
	al.WithFields(logrus.Fields{
		"frame":            frame,
		"candidates":       candidates,
		"accepted":         accepted,
		"duplicates":       duplicates,
		"rejected":         rejected,
		"scan_duration_ms": durationMs,
	}).Info("Agent scan completed")
}

// LogStakeDecision logs the sizing of one admitted candidate.
func (al *AgentLogger) LogStakeDecision(event, market string, edgePercent, odds, kellyFraction, stake, availableCash float64) {
	al.WithFields(logrus.Fields{
		"event":          event,
		"market":         market,
		"ev":             edgePercent,
		"odds":           odds,
		"kelly_fraction": kellyFraction,
		"stake":          stake,
		"available_cash": availableCash,
	}).Debug("Stake sized")
}

// LogStateChange logs arming and disarming.
func (al *AgentLogger) LogStateChange(armed bool, reason string) {
	al.WithFields(logrus.Fields{
		"armed":  armed,
		"reason": reason,
	}).Info("Agent state changed")
}
