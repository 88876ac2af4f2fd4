package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/quant-ninja/internal/capture"
	"github.com/yourusername/quant-ninja/internal/config"
	"github.com/yourusername/quant-ninja/internal/ledger"
	"github.com/yourusername/quant-ninja/internal/logger"
	"github.com/yourusername/quant-ninja/internal/metrics"
)

const defaultAgentLogSize = 50

var (
	// ErrScanInProgress is returned when a scan starts while another is running
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrAgentDisarmed is returned by ScanOnce while the agent is disarmed
	ErrAgentDisarmed = errors.New("agent is disarmed")
	// ErrCircuitOpen is returned when arming while the breaker cools down
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Scan results as recorded in metrics
const (
	scanAccepted = "accepted"
	scanNoFrame  = "no_frame"
	scanInvalid  = "invalid_screen"
	scanError    = "error"
)

// LogLevel classifies agent log entries
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// LogEntry is one line of the agent activity log
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   LogLevel  `json:"level"`
	Message string    `json:"message"`
}

// ScanReport describes one scan cycle
type ScanReport struct {
	Frame      string             `json:"frame,omitempty"`
	Skipped    bool               `json:"skipped"`
	Valid      bool               `json:"valid"`
	Candidates int                `json:"candidates"`
	Malformed  int                `json:"malformed"`
	Admission  ledger.AdmitResult `json:"admission"`
	Duration   time.Duration      `json:"duration"`
}

// AgentStatus is a point-in-time view of the agent
type AgentStatus struct {
	Armed       bool         `json:"armed"`
	Scanning    bool         `json:"scanning"`
	Breaker     CircuitState `json:"breaker"`
	Scans       int64        `json:"scans"`
	Accepted    int64        `json:"accepted"`
	LastScanAt  time.Time    `json:"last_scan_at,omitempty"`
	LastError   string       `json:"last_error,omitempty"`
	FrameSource string       `json:"frame_source,omitempty"`
	Log         []LogEntry   `json:"log"`
}

// Agent watches a frame source, extracts candidates through the oracle and
// admits them into the session
type Agent struct {
	session *Session
	oracle  Oracle
	source  capture.FrameSource
	breaker *CircuitBreaker

	disarmOnInvalid bool

	armed    atomic.Bool
	scanning atomic.Bool
	scans    atomic.Int64
	accepted atomic.Int64

	mu         sync.Mutex
	log        []LogEntry
	logSize    int
	lastScanAt time.Time
	lastError  string

	agentLog *logger.AgentLogger
	audit    *logger.AuditLogger
	logger   *logrus.Entry
	now      func() time.Time
}

// NewAgent creates a disarmed agent. A nil source limits the agent to ScanFrame.
func NewAgent(session *Session, o Oracle, source capture.FrameSource, breaker *CircuitBreaker, cfg *config.AgentConfig, log *logrus.Logger) *Agent {
	logSize := cfg.LogSize
	if logSize <= 0 {
		logSize = defaultAgentLogSize
	}

	a := &Agent{
		session:         session,
		oracle:          o,
		source:          source,
		breaker:         breaker,
		disarmOnInvalid: cfg.DisarmOnInvalidScreen,
		logSize:         logSize,
		log:             make([]LogEntry, 0, logSize),
		agentLog:        logger.NewAgentLogger(log),
		audit:           logger.NewAuditLogger(log),
		logger:          log.WithField("component", "agent"),
		now:             time.Now,
	}

	breaker.RegisterShutdownCallback(func(reason string) error {
		metrics.RecordCircuitBreakerTrip()
		a.audit.LogCircuitBreakerEvent("OPENED", reason, map[string]interface{}{
			"scans":    a.scans.Load(),
			"accepted": a.accepted.Load(),
		}, "DISARM_AGENT")
		a.Disarm("circuit breaker: " + reason)
		return nil
	})

	metrics.UpdateAgentArmed(false)
	return a
}

// Arm enables scheduled scanning. Arming is refused while the breaker cools down.
func (a *Agent) Arm() error {
	state := a.breaker.GetState()
	if state == CircuitOpen {
		return ErrCircuitOpen
	}
	if state == CircuitHalfOpen {
		a.breaker.Reset()
	}

	if a.armed.Swap(true) {
		return nil
	}
	metrics.UpdateAgentArmed(true)
	a.agentLog.LogStateChange(true, "armed")
	a.record(LogSuccess, "Agent armed, watching for lines")
	return nil
}

// Disarm stops scheduled scanning
func (a *Agent) Disarm(reason string) {
	if !a.armed.Swap(false) {
		return
	}
	metrics.UpdateAgentArmed(false)
	a.agentLog.LogStateChange(false, reason)
	a.record(LogWarning, "Agent disarmed: "+reason)
}

// IsArmed reports whether scheduled scans run
func (a *Agent) IsArmed() bool {
	return a.armed.Load()
}

// Status returns the current agent state and a copy of the activity log, newest first
func (a *Agent) Status() AgentStatus {
	breaker := a.breaker.GetState()

	a.mu.Lock()
	defer a.mu.Unlock()

	log := make([]LogEntry, len(a.log))
	for i := range a.log {
		log[i] = a.log[len(a.log)-1-i]
	}

	status := AgentStatus{
		Armed:      a.armed.Load(),
		Scanning:   a.scanning.Load(),
		Breaker:    breaker,
		Scans:      a.scans.Load(),
		Accepted:   a.accepted.Load(),
		LastScanAt: a.lastScanAt,
		LastError:  a.lastError,
		Log:        log,
	}
	if a.source != nil {
		status.FrameSource = a.source.Name()
	}
	return status
}

// ScanOnce reads the next frame from the source and scans it. It is the
// scheduled job body, so a missing frame is a skipped scan, not an error.
func (a *Agent) ScanOnce(ctx context.Context) (*ScanReport, error) {
	if !a.armed.Load() {
		return nil, ErrAgentDisarmed
	}
	if a.source == nil {
		return nil, fmt.Errorf("agent has no frame source")
	}

	frame, err := a.source.Next(ctx)
	if err != nil {
		if errors.Is(err, capture.ErrNoFrame) {
			metrics.RecordScan(scanNoFrame, 0)
			return &ScanReport{Skipped: true}, nil
		}
		a.fail(err)
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	return a.ScanFrame(ctx, frame, SourceScan)
}

// ScanFrame runs one extraction on frame and admits the valid candidates.
// Overlapping scans are rejected with ErrScanInProgress. Only SourceScan
// frames feed the breaker and the invalid viewport disarm; uploads never
// change the armed state.
func (a *Agent) ScanFrame(ctx context.Context, frame *capture.Frame, source string) (*ScanReport, error) {
	if !a.scanning.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer a.scanning.Store(false)

	live := source == SourceScan
	start := time.Now()
	report := &ScanReport{Frame: frame.Name}
	a.scans.Add(1)

	a.mu.Lock()
	a.lastScanAt = a.now().UTC()
	a.mu.Unlock()

	extraction, err := a.oracle.ExtractCandidates(ctx, frame.Data, frame.MimeType)
	if err != nil {
		metrics.RecordScan(scanError, time.Since(start).Seconds())
		if live {
			a.breaker.RecordFailure(err)
		}
		a.fail(err)
		return nil, fmt.Errorf("failed to extract candidates: %w", err)
	}
	if live {
		a.breaker.RecordSuccess()
	}

	report.Valid = extraction.Valid
	report.Candidates = len(extraction.Candidates)
	report.Malformed = extraction.Rejected

	if !extraction.Valid {
		report.Duration = time.Since(start)
		metrics.RecordScan(scanInvalid, report.Duration.Seconds())
		a.record(LogWarning, "Viewport does not show a betting dashboard")
		if live && a.disarmOnInvalid {
			a.Disarm("invalid viewport")
		}
		return report, nil
	}

	result, err := a.session.Admit(ctx, source, extraction.Candidates)
	if err != nil {
		metrics.RecordScan(scanError, time.Since(start).Seconds())
		a.fail(err)
		return nil, err
	}

	report.Admission = result
	report.Duration = time.Since(start)
	a.accepted.Add(int64(result.AcceptedCount()))
	metrics.RecordScan(scanAccepted, report.Duration.Seconds())

	a.agentLog.LogScan(frame.Name, report.Candidates, result.AcceptedCount(), result.Duplicates, result.Rejected()+report.Malformed, float64(report.Duration.Milliseconds()))
	for _, p := range result.Accepted {
		a.record(LogSuccess, fmt.Sprintf("Staked %.2f on %s (%s) @ %.2f", p.Stake, p.Market, p.Event, p.Odds))
	}
	if result.AcceptedCount() == 0 {
		a.record(LogInfo, fmt.Sprintf("Scan found %d lines, none admitted", report.Candidates))
	}

	a.mu.Lock()
	a.lastError = ""
	a.mu.Unlock()

	return report, nil
}

func (a *Agent) fail(err error) {
	a.mu.Lock()
	a.lastError = err.Error()
	a.mu.Unlock()

	a.logger.WithField("error", err.Error()).Warn("Scan failed")
	a.record(LogError, "Scan failed: "+err.Error())
}

// record appends to the activity log, dropping the oldest entry when full
func (a *Agent) record(level LogLevel, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.log) == a.logSize {
		copy(a.log, a.log[1:])
		a.log = a.log[:len(a.log)-1]
	}
	a.log = append(a.log, LogEntry{Time: a.now().UTC(), Level: level, Message: message})
}
