package bot

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/quant-ninja/internal/config"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// CircuitClosed means scanning is allowed
	CircuitClosed CircuitState = iota
	// CircuitHalfOpen means the cooldown has passed and one success closes the circuit
	CircuitHalfOpen
	// CircuitOpen means scanning is halted
	CircuitOpen
)

// String returns string representation of circuit state
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	case CircuitOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state by name
func (s CircuitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CircuitBreakerConfig defines circuit breaker thresholds
type CircuitBreakerConfig struct {
	MaxFailureCount   int           `json:"max_failure_count"`
	FailureTimeWindow time.Duration `json:"failure_time_window"`
	CooldownPeriod    time.Duration `json:"cooldown_period"`
}

// CircuitBreakerConfigFrom builds breaker thresholds from agent settings
func CircuitBreakerConfigFrom(cfg *config.AgentConfig) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailureCount:   cfg.MaxFailureCount,
		FailureTimeWindow: cfg.FailureWindow(),
		CooldownPeriod:    cfg.Cooldown(),
	}
}

// ShutdownCallback is called when the breaker trips
type ShutdownCallback func(reason string) error

// CircuitBreaker halts the scan agent after repeated oracle failures
type CircuitBreaker struct {
	config          CircuitBreakerConfig
	state           CircuitState
	failureCount    int
	lastFailureTime time.Time
	openedAt        time.Time
	mu              sync.Mutex
	logger          *logrus.Entry
	callbacks       []ShutdownCallback
	now             func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if config.MaxFailureCount <= 0 {
		config.MaxFailureCount = 1
	}
	return &CircuitBreaker{
		config:    config,
		state:     CircuitClosed,
		logger:    logger.WithField("component", "circuit_breaker"),
		callbacks: make([]ShutdownCallback, 0),
		now:       time.Now,
	}
}

// RecordFailure increments the failure count and opens the circuit once the
// threshold is reached inside the failure window. A failure while half-open
// reopens the circuit immediately.
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.refreshLocked(now)

	// Reset failure count if outside time window
	if now.Sub(cb.lastFailureTime) > cb.config.FailureTimeWindow {
		cb.failureCount = 0
	}

	cb.failureCount++
	cb.lastFailureTime = now

	cb.logger.WithFields(logrus.Fields{
		"failure_count": cb.failureCount,
		"max_allowed":   cb.config.MaxFailureCount,
		"time_window":   cb.config.FailureTimeWindow.String(),
		"error":         err.Error(),
	}).Warn("Failure recorded")

	if cb.state == CircuitHalfOpen {
		cb.tripLocked(fmt.Sprintf("Failure while half-open: %v", err))
		return
	}

	if cb.failureCount >= cb.config.MaxFailureCount {
		cb.tripLocked(fmt.Sprintf(
			"Max failure count exceeded (%d >= %d) within %v",
			cb.failureCount, cb.config.MaxFailureCount, cb.config.FailureTimeWindow,
		))
	}
}

// RecordSuccess resets the failure count and closes a half-open circuit
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refreshLocked(cb.now())
	cb.failureCount = 0
	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
		cb.logger.Info("Circuit breaker closed after successful call")
	}
}

// IsOpen returns true while the circuit is open and the cooldown has not passed
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refreshLocked(cb.now())
	return cb.state == CircuitOpen
}

// GetState returns current circuit state
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refreshLocked(cb.now())
	return cb.state
}

// FailureCount returns the failures counted in the current window
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Reset manually resets circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state
	cb.state = CircuitClosed
	cb.failureCount = 0

	cb.logger.WithFields(logrus.Fields{
		"old_state": oldState.String(),
		"new_state": cb.state.String(),
	}).Info("Circuit breaker manually reset")
}

// RegisterShutdownCallback registers a callback run when the breaker trips
func (cb *CircuitBreaker) RegisterShutdownCallback(callback ShutdownCallback) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.callbacks = append(cb.callbacks, callback)
}

// Trip opens the circuit and executes all callbacks
func (cb *CircuitBreaker) Trip(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.tripLocked(reason)
}

// refreshLocked moves an open circuit to half-open once the cooldown has passed
func (cb *CircuitBreaker) refreshLocked(now time.Time) {
	if cb.state == CircuitOpen && now.Sub(cb.openedAt) > cb.config.CooldownPeriod {
		cb.state = CircuitHalfOpen
		cb.logger.Info("Circuit breaker entering half-open state after cooldown")
	}
}

// tripLocked assumes the lock is held
func (cb *CircuitBreaker) tripLocked(reason string) {
	if cb.state == CircuitOpen {
		cb.logger.Warn("Circuit breaker already open, ignoring duplicate trip")
		return
	}

	oldState := cb.state
	cb.state = CircuitOpen
	cb.openedAt = cb.now()

	cb.logger.WithFields(logrus.Fields{
		"old_state":       oldState.String(),
		"new_state":       cb.state.String(),
		"reason":          reason,
		"failure_count":   cb.failureCount,
		"cooldown_period": cb.config.CooldownPeriod.String(),
	}).Error("Circuit breaker tripped")

	for i, callback := range cb.callbacks {
		if err := callback(reason); err != nil {
			cb.logger.WithFields(logrus.Fields{
				"callback_index": i,
				"error":          err.Error(),
			}).Error("Shutdown callback failed")
		}
	}
}
