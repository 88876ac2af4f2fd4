package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quant-ninja/internal/capture"
	"github.com/yourusername/quant-ninja/internal/logger"
	"github.com/yourusername/quant-ninja/internal/models"
	"github.com/yourusername/quant-ninja/internal/oracle"
)

// stubSource hands out queued frames
type stubSource struct {
	frames []*capture.Frame
}

func (s *stubSource) Next(context.Context) (*capture.Frame, error) {
	if len(s.frames) == 0 {
		return nil, capture.ErrNoFrame
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *stubSource) Name() string { return "stub" }

func testFrame(name string) *capture.Frame {
	return &capture.Frame{Name: name, Data: []byte(name), MimeType: "image/png"}
}

func newTestAgent(t *testing.T, o Oracle, source capture.FrameSource) (*Agent, *Session, *CircuitBreaker) {
	t.Helper()
	log := logger.Discard()
	session := newTestSession(t, &memStore{})
	cfg := testAgentConfig()
	breaker := NewCircuitBreaker(CircuitBreakerConfigFrom(cfg), log)
	return NewAgent(session, o, source, breaker, cfg, log), session, breaker
}

func TestAgentScanFrameAdmitsCandidates(t *testing.T) {
	o := new(MockOracle)
	o.On("ExtractCandidates", mock.Anything, []byte("frame_001.png"), "image/png").Return(&oracle.Extraction{
		Valid: true,
		Candidates: []models.Observation{
			candidate("Lakers vs Celtics", "Lakers -4.5", 2.0, 10),
			candidate("Arsenal vs Chelsea", "Draw", 3.4, 0),
		},
		Rejected: 1,
	}, nil)

	agent, session, _ := newTestAgent(t, o, nil)

	report, err := agent.ScanFrame(t.Context(), testFrame("frame_001.png"), SourceUpload)
	require.NoError(t, err)

	assert.True(t, report.Valid)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 1, report.Malformed)
	assert.Equal(t, 1, report.Admission.AcceptedCount())
	assert.Equal(t, 1, session.Ledger().Len())

	status := agent.Status()
	assert.Equal(t, int64(1), status.Scans)
	assert.Equal(t, int64(1), status.Accepted)
	require.NotEmpty(t, status.Log)
	assert.Equal(t, LogSuccess, status.Log[0].Level)
	o.AssertExpectations(t)
}

func TestAgentInvalidViewportDisarms(t *testing.T) {
	o := new(MockOracle)
	o.On("ExtractCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return(&oracle.Extraction{Valid: false}, nil)

	agent, session, _ := newTestAgent(t, o, &stubSource{frames: []*capture.Frame{testFrame("desktop.png")}})
	require.NoError(t, agent.Arm())

	report, err := agent.ScanOnce(t.Context())
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.False(t, agent.IsArmed())
	assert.Equal(t, 0, session.Ledger().Len())
}

func TestAgentInvalidUploadLeavesAgentArmed(t *testing.T) {
	o := new(MockOracle)
	o.On("ExtractCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return(&oracle.Extraction{Valid: false}, nil)

	agent, _, breaker := newTestAgent(t, o, nil)
	require.NoError(t, agent.Arm())

	report, err := agent.ScanFrame(t.Context(), testFrame("holiday.png"), SourceUpload)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.True(t, agent.IsArmed())
	assert.Equal(t, CircuitClosed, breaker.GetState())
}

func TestAgentFailingUploadsDoNotTripBreaker(t *testing.T) {
	o := new(MockOracle)
	o.On("ExtractCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, oracle.ErrUnavailable)

	agent, _, breaker := newTestAgent(t, o, nil)
	require.NoError(t, agent.Arm())

	for i := 0; i < 3; i++ {
		_, err := agent.ScanFrame(t.Context(), testFrame("upload.png"), SourceUpload)
		require.ErrorIs(t, err, oracle.ErrUnavailable)
	}

	assert.True(t, agent.IsArmed())
	assert.Equal(t, CircuitClosed, breaker.GetState())
	assert.Equal(t, 0, breaker.FailureCount())
	assert.NoError(t, agent.Arm())
	assert.NotEmpty(t, agent.Status().LastError)
}

func TestAgentScanOnceRequiresArming(t *testing.T) {
	agent, _, _ := newTestAgent(t, new(MockOracle), &stubSource{})

	_, err := agent.ScanOnce(t.Context())
	assert.ErrorIs(t, err, ErrAgentDisarmed)
}

func TestAgentScanOnceWithoutNewFrameIsSkipped(t *testing.T) {
	o := new(MockOracle)
	agent, _, _ := newTestAgent(t, o, &stubSource{})
	require.NoError(t, agent.Arm())

	report, err := agent.ScanOnce(t.Context())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	o.AssertNotCalled(t, "ExtractCandidates", mock.Anything, mock.Anything, mock.Anything)
}

func TestAgentOracleFailuresTripBreakerAndDisarm(t *testing.T) {
	o := new(MockOracle)
	o.On("ExtractCandidates", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, oracle.ErrUnavailable)

	frames := []*capture.Frame{testFrame("1.png"), testFrame("2.png"), testFrame("3.png")}
	agent, _, breaker := newTestAgent(t, o, &stubSource{frames: frames})
	require.NoError(t, agent.Arm())

	for i := 0; i < 2; i++ {
		_, err := agent.ScanOnce(t.Context())
		require.ErrorIs(t, err, oracle.ErrUnavailable)
		assert.True(t, agent.IsArmed())
	}

	_, err := agent.ScanOnce(t.Context())
	require.ErrorIs(t, err, oracle.ErrUnavailable)

	assert.Equal(t, CircuitOpen, breaker.GetState())
	assert.False(t, agent.IsArmed())
	assert.ErrorIs(t, agent.Arm(), ErrCircuitOpen)

	status := agent.Status()
	assert.Equal(t, CircuitOpen, status.Breaker)
	assert.NotEmpty(t, status.LastError)
}

func TestAgentRejectsOverlappingScans(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	o := new(MockOracle)
	o.On("ExtractCandidates", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(&oracle.Extraction{Valid: true}, nil).Once()

	agent, _, _ := newTestAgent(t, o, nil)

	done := make(chan error, 1)
	go func() {
		_, err := agent.ScanFrame(t.Context(), testFrame("slow.png"), SourceUpload)
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first scan never reached the oracle")
	}

	_, err := agent.ScanFrame(t.Context(), testFrame("fast.png"), SourceUpload)
	assert.ErrorIs(t, err, ErrScanInProgress)
	assert.True(t, agent.Status().Scanning)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, agent.Status().Scanning)
}

func TestAgentLogIsBoundedNewestFirst(t *testing.T) {
	agent, _, _ := newTestAgent(t, new(MockOracle), nil)

	for i := 0; i < 8; i++ {
		agent.record(LogInfo, string(rune('a'+i)))
	}

	log := agent.Status().Log
	require.Len(t, log, 5)
	assert.Equal(t, "h", log[0].Message)
	assert.Equal(t, "d", log[4].Message)
}

func TestAgentArmAfterCooldownResetsBreaker(t *testing.T) {
	agent, _, breaker := newTestAgent(t, new(MockOracle), nil)

	now := time.Now()
	breaker.now = func() time.Time { return now }
	breaker.Trip("manual")
	assert.ErrorIs(t, agent.Arm(), ErrCircuitOpen)

	breaker.now = func() time.Time { return now.Add(3 * time.Minute) }
	require.NoError(t, agent.Arm())
	assert.True(t, agent.IsArmed())
	assert.Equal(t, CircuitClosed, breaker.GetState())
}

func TestAgentSurfacesSaveFailures(t *testing.T) {
	o := new(MockOracle)
	o.On("ExtractCandidates", mock.Anything, mock.Anything, mock.Anything).Return(&oracle.Extraction{
		Valid:      true,
		Candidates: []models.Observation{candidate("A", "B", 2.0, 10)},
	}, nil)

	log := logger.Discard()
	st := &memStore{}
	session := newTestSession(t, st)
	cfg := testAgentConfig()
	agent := NewAgent(session, o, nil, NewCircuitBreaker(CircuitBreakerConfigFrom(cfg), log), cfg, log)

	st.failSave = true
	_, err := agent.ScanFrame(t.Context(), testFrame("x.png"), SourceUpload)
	assert.True(t, errors.Is(err, errSaveFailed))
	assert.Equal(t, 0, session.Ledger().Len())
}
