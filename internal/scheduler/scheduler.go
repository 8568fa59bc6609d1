// Package scheduler runs the daily brief job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const stopTimeout = 30 * time.Second

// BriefRunner is the job the scheduler triggers
type BriefRunner interface {
	Run(ctx context.Context) (*core.Brief, error)
}

// Scheduler triggers BriefRunner.Run on a cron spec with a seconds field.
// A trigger that fires while a run is in progress is skipped.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	runner   BriefRunner
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	running  atomic.Bool
	mu       sync.Mutex
	started  bool
	entryID  cron.EntryID
	lastRun  time.Time
	lastErr  error
	runCount int
}

// NewScheduler creates a new scheduler; the cron expression is validated on Start
func NewScheduler(spec string, runner BriefRunner, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLogger(cronLogger{logger.Sugar()})),
		spec:   spec,
		runner: runner,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start registers the job and starts the cron loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler is already running")
	}

	entryID, err := s.cron.AddFunc(s.spec, func() { s.Trigger() })
	if err != nil {
		return fmt.Errorf("failed to add cron job %q: %w", s.spec, err)
	}
	s.entryID = entryID
	s.cron.Start()
	s.started = true

	s.logger.Info("Scheduler started",
		zap.String("schedule", s.spec),
		zap.Time("next_run", s.cron.Entry(entryID).Next))
	return nil
}

// Stop cancels an in-flight run and waits for it to return
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.cancel()
	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		s.logger.Info("Scheduler stopped gracefully")
	case <-time.After(stopTimeout):
		s.logger.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.started = false
	return nil
}

// Trigger runs the job now unless a run is in progress. It reports whether the job ran.
func (s *Scheduler) Trigger() bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("Previous brief run still in progress, skipping")
		return false
	}
	defer s.running.Store(false)

	start := time.Now()
	brief, err := s.runner.Run(s.ctx)

	s.mu.Lock()
	s.lastRun = start
	s.lastErr = err
	s.runCount++
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Scheduled brief run failed", zap.Error(err))
		return true
	}

	s.logger.Info("Scheduled brief run completed",
		zap.String("brief_id", brief.ID),
		zap.Int("selected", len(brief.Selected)),
		zap.Duration("duration", time.Since(start)))
	return true
}

// Status returns when the job last ran, the run count and the last run's error
func (s *Scheduler) Status() (time.Time, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.runCount, s.lastErr
}

// NextRun returns the next scheduled time, or the zero time before Start
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
