// Package logger provides oracle-specific logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// OracleLogger provides dedicated logging for oracle calls.
type OracleLogger struct {
	*logrus.Entry
}

// NewOracleLogger creates a new oracle logger.
func NewOracleLogger(baseLogger *logrus.Logger) *OracleLogger {
	return &OracleLogger{
		Entry: baseLogger.WithField("component", "oracle"),
	}
}

// LogOracleRequest logs a completed oracle call.
func (ol *OracleLogger) LogOracleRequest(operation, model string, cacheHit bool, latencyMs float64) {
	ol.WithFields(logrus.Fields{
		"operation":  operation,
		"model":      model,
		"cache_hit":  cacheHit,
		"latency_ms": latencyMs,
	}).Debug("Oracle request completed")
}

// LogExtraction logs the result of boundary parsing.
func (ol *OracleLogger) LogExtraction(operation string, valid bool, candidates, rejected int) {
	ol.WithFields(logrus.Fields{
		"operation":  operation,
		"valid":      valid,
		"candidates": candidates,
		"rejected":   rejected,
	}).Info("Oracle extraction parsed")
}

// LogVerification logs a settlement verdict.
func (ol *OracleLogger) LogVerification(positionID, verdict string, sources int) {
	ol.WithFields(logrus.Fields{
		"position_id": positionID,
		"verdict":     verdict,
		"sources":     sources,
	}).Info("Oracle verification returned")
}

// LogOracleError logs oracle failures.
func (ol *OracleLogger) LogOracleError(operation string, err error) {
	ol.WithFields(logrus.Fields{
		"operation": operation,
		"error":     err.Error(),
	}).Error("Oracle request failed")
}
