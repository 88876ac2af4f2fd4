// Package scheduler runs the periodic scan and settlement jobs
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// MinInterval is the shortest interval a job may be scheduled at
const MinInterval = 5 * time.Second

// ErrRunning is returned when jobs are added or removed while the scheduler is running
var ErrRunning = errors.New("scheduler is running")

// JobFunc is a unit of scheduled work
type JobFunc func(ctx context.Context) error

// JobInfo describes one scheduled job
type JobInfo struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	Next     time.Time     `json:"next"`
	Prev     time.Time     `json:"prev"`
}

type job struct {
	id       cron.EntryID
	name     string
	interval time.Duration
}

// Scheduler manages interval jobs on top of cron. A job that is still running
// when its next tick fires is skipped rather than stacked.
type Scheduler struct {
	cron            *cron.Cron
	logger          *logrus.Entry
	mu              sync.RWMutex
	isRunning       bool
	jobs            []job
	gracefulTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler
func NewScheduler(logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	entry := logger.WithField("component", "scheduler")
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{entry})),
		),
		logger:          entry,
		jobs:            make([]job, 0),
		gracefulTimeout: 30 * time.Second,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// ScheduleEvery runs fn every interval. Each run gets a context bounded by
// timeout (or by the interval when timeout is zero) that is also cancelled
// when the scheduler stops.
func (s *Scheduler) ScheduleEvery(name string, interval, timeout time.Duration, fn JobFunc) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return 0, fmt.Errorf("cannot schedule %s: %w", name, ErrRunning)
	}
	if interval < MinInterval {
		return 0, fmt.Errorf("interval %s for %s is below the %s minimum", interval, name, MinInterval)
	}
	if timeout <= 0 {
		timeout = interval
	}

	jobFunc := func() {
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			s.logger.WithFields(logrus.Fields{
				"job":         name,
				"duration_ms": time.Since(start).Milliseconds(),
				"error":       err.Error(),
			}).Warn("Scheduled job failed")
			return
		}
		s.logger.WithFields(logrus.Fields{
			"job":         name,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("Scheduled job completed")
	}

	entryID := s.cron.Schedule(cron.Every(interval), cron.FuncJob(jobFunc))
	s.jobs = append(s.jobs, job{id: entryID, name: name, interval: interval})

	s.logger.WithFields(logrus.Fields{
		"job":      name,
		"interval": interval.String(),
		"timeout":  timeout.String(),
	}).Info("Scheduled job")

	return entryID, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobs)).Info("Scheduler started")

	return nil
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()
	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
	case <-time.After(s.gracefulTimeout):
		s.logger.WithField("timeout", s.gracefulTimeout.String()).Warn("Scheduler stop timed out waiting for jobs")
	}

	s.isRunning = false
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.logger.Info("Scheduler stopped")

	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns the time of the next scheduled job run
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, j := range s.jobs {
		entry := s.cron.Entry(j.id)
		if entry.Valid() {
			if nextRun.IsZero() || entry.Next.Before(nextRun) {
				nextRun = entry.Next
			}
		}
	}

	return nextRun
}

// Entries returns information about scheduled jobs
func (s *Scheduler) Entries() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		info := JobInfo{Name: j.name, Interval: j.interval}
		if entry := s.cron.Entry(j.id); entry.Valid() {
			info.Next = entry.Next
			info.Prev = entry.Prev
		}
		entries = append(entries, info)
	}

	return entries
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(jobID cron.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot remove job: %w", ErrRunning)
	}

	for i, j := range s.jobs {
		if j.id == jobID {
			s.cron.Remove(jobID)
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			s.logger.WithField("job", j.name).Info("Removed job")
			return nil
		}
	}

	return fmt.Errorf("job %d not found", jobID)
}

// cronLogger adapts a logrus entry to cron.Logger
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			f[key] = keysAndValues[i+1]
		}
	}
	return f
}
