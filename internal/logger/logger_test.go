package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quant-ninja/internal/models"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func testPosition() models.Position {
	return models.Position{
		ID:          "pos_123",
		Event:       "Lakers vs Celtics",
		Market:      "Lakers -4.5",
		Bookie:      "Pinnacle",
		Odds:        2.0,
		EdgePercent: 10,
		Stake:       25,
		Status:      models.StatusPending,
		CreatedAt:   time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewLoggerLevels(t *testing.T) {
	buf := &bytes.Buffer{}

	log := NewLoggerWithOutput("debug", "development", buf)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log = NewLoggerWithOutput("nonsense", "development", buf)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.Contains(t, buf.String(), "Invalid log level")
}

func TestNewLoggerProductionUsesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLoggerWithOutput("info", "production", buf)

	log.WithField("key", "value").Info("hello")

	entry := parseLogOutput(buf)
	require.NotNil(t, entry)
	assert.Equal(t, "value", entry["key"])
}

func TestAuditLoggerPositionAdmitted(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogPositionAdmitted(testPosition(), "scan")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "audit", logEntry["component"])
	assert.Equal(t, "pos_123", logEntry["position_id"])
	assert.Equal(t, float64(25), logEntry["stake"])
	assert.Equal(t, "scan", logEntry["source"])
}

func TestAuditLoggerPositionSettled(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	p := testPosition()
	p.Status = models.StatusWon
	p.SettlementNote = "Lakers won 110-101"
	auditLogger.LogPositionSettled(p, "oracle")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "WON", logEntry["new_state"])
	assert.Equal(t, float64(25), logEntry["profit_loss"])
	assert.Equal(t, "oracle", logEntry["settled_by"])
}

func TestAuditLoggerCircuitBreakerEvent(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogCircuitBreakerEvent(
		"OPENED",
		"oracle_failures",
		map[string]interface{}{"failures": 5},
		"DISARM_AGENT",
	)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "OPENED", logEntry["event_type"])
	assert.Equal(t, "warning", logEntry["level"])
}

func TestOracleLoggerError(t *testing.T) {
	log, buf := setupTestLogger()
	oracleLogger := NewOracleLogger(log)

	oracleLogger.LogOracleError("verify", errors.New("status 503"))

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "oracle", logEntry["component"])
	assert.Equal(t, "status 503", logEntry["error"])
}

func TestAgentLoggerScan(t *testing.T) {
	log, buf := setupTestLogger()
	agentLogger := NewAgentLogger(log)

	agentLogger.LogScan("frame_001.png", 4, 2, 1, 1, 1830)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "agent", logEntry["component"])
	assert.Equal(t, float64(2), logEntry["accepted"])
}

func BenchmarkAuditLoggerPositionAdmitted(b *testing.B) {
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	auditLogger := NewAuditLogger(log)
	p := testPosition()

	for i := 0; i < b.N; i++ {
		auditLogger.LogPositionAdmitted(p, "scan")
	}
}
