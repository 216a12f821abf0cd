package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"shift_reminder_bot/internal/domain/assignment"
	"shift_reminder_bot/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrRunInProgress is returned by RunNow when a cycle is already executing.
var ErrRunInProgress = errors.New("a reminder cycle is already in progress")

// Run outcomes recorded in stats.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailed  = "FAILED"
)

// ReminderService is the slice of the dispatcher the scheduler drives.
type ReminderService interface {
	ProcessScheduledReminders(ctx context.Context, now time.Time) (*assignment.RunResult, error)
}

// Config controls the periodic trigger and its cycle-level retry policy.
type Config struct {
	Interval   time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// RunStats is an observability snapshot of the scheduler.
type RunStats struct {
	Active         bool      `json:"active"`
	TotalRuns      uint64    `json:"total_runs"`
	SkippedTicks   uint64    `json:"skipped_ticks"`
	Retries        uint64    `json:"retries"`
	LastRunID      string    `json:"last_run_id,omitempty"`
	LastOutcome    string    `json:"last_outcome,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	LastStartedAt  time.Time `json:"last_started_at"`
	LastFinishedAt time.Time `json:"last_finished_at"`
}

// ReminderScheduler owns the periodic reminder trigger. It is an explicitly
// constructed object carrying its own cron engine, clock and run guard, so
// independent instances (e.g. in tests) never interfere. Exactly one instance
// is expected to be active system-wide; mutual exclusion across processes is
// an external concern.
type ReminderScheduler struct {
	cronEngine *cron.Cron
	service    ReminderService
	cfg        Config
	logger     *logrus.Entry

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	running atomic.Bool // single-flight guard for one cycle

	mu     sync.Mutex // guards active and stats
	active bool
	stats  RunStats
}

func NewReminderScheduler(service ReminderService, cfg Config, logger *logrus.Entry) *ReminderScheduler {
	return &ReminderScheduler{
		cronEngine: cron.New(),
		service:    service,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// Start arms the periodic timer and kicks off one cycle immediately. Calling
// Start while already active is a no-op; Stop first to change configuration.
func (s *ReminderScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.logger.Info("Scheduler already active; Start is a no-op.")
		return nil
	}

	spec := fmt.Sprintf("@every %s", s.cfg.Interval)
	if _, err := s.cronEngine.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("could not register reminder cron job: %w", err)
	}
	s.cronEngine.Start()
	s.active = true
	s.stats.Active = true
	s.logger.Infof("Reminder scheduler started, interval %s.", s.cfg.Interval)

	// First cycle runs right away rather than waiting a full interval.
	go s.tick()
	return nil
}

// Stop cancels the timer. An in-flight cycle is allowed to finish; once Stop
// returns, no further ticks fire.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.stats.Active = false
	s.mu.Unlock()

	s.logger.Info("Stopping reminder scheduler...")
	ctx := s.cronEngine.Stop() // waits for running cron-invoked jobs
	<-ctx.Done()
	s.logger.Info("Reminder scheduler stopped.")
}

// RunNow executes a single cycle synchronously with the same retry policy the
// timer path uses. It is safe to call while the periodic timer is armed; if a
// cycle is already executing it returns ErrRunInProgress instead of queueing.
func (s *ReminderScheduler) RunNow(ctx context.Context) (*assignment.RunResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)
	return s.runCycle(ctx)
}

func (s *ReminderScheduler) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *ReminderScheduler) Stats() RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// tick is the cron entry point. A tick that fires while the previous cycle is
// still running is skipped, not queued; the skip is recorded in stats.
func (s *ReminderScheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Lock()
		s.stats.SkippedTicks++
		s.mu.Unlock()
		metrics.SchedulerTicksSkipped.Inc()
		s.logger.Warn("Previous reminder cycle still running; skipping this tick.")
		return
	}
	defer s.running.Store(false)

	if _, err := s.runCycle(context.Background()); err != nil {
		s.logger.Errorf("Reminder cycle failed after retries; waiting for next tick: %v", err)
	}
}

// runCycle executes one cycle, retrying cycle-level errors up to MaxRetries
// with RetryDelay between attempts. Per-placement errors live inside the
// RunResult and are not retried here. Caller must hold the run guard.
func (s *ReminderScheduler) runCycle(ctx context.Context) (*assignment.RunResult, error) {
	runID := uuid.NewString()
	startedAt := s.now()
	s.logger.Infof("Reminder cycle %s starting.", runID)

	var result *assignment.RunResult
	var err error
	for attempt := 0; ; attempt++ {
		result, err = s.service.ProcessScheduledReminders(ctx, s.now())
		if err == nil {
			break
		}
		if attempt >= s.cfg.MaxRetries {
			break
		}
		s.mu.Lock()
		s.stats.Retries++
		s.mu.Unlock()
		s.logger.Warnf("Reminder cycle %s attempt %d failed, retrying in %s: %v", runID, attempt+1, s.cfg.RetryDelay, err)
		if serr := s.sleep(ctx, s.cfg.RetryDelay); serr != nil {
			err = fmt.Errorf("retry wait aborted: %w", serr)
			break
		}
	}

	finishedAt := s.now()
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailed
	}

	s.mu.Lock()
	s.stats.TotalRuns++
	s.stats.LastRunID = runID
	s.stats.LastOutcome = outcome
	s.stats.LastStartedAt = startedAt
	s.stats.LastFinishedAt = finishedAt
	if err != nil {
		s.stats.LastError = err.Error()
	} else {
		s.stats.LastError = ""
	}
	s.mu.Unlock()
	metrics.SchedulerRuns.WithLabelValues(outcome).Inc()

	if err != nil {
		return nil, err
	}
	s.logger.Infof("Reminder cycle %s finished: processed=%d sent=%d skipped=%d failed=%d",
		runID, result.Processed, result.Sent, result.Skipped, result.Failed)
	return result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
