package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"shift_reminder_bot/internal/domain/assignment"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReminderService struct {
	mu      sync.Mutex
	calls   int
	errs    []error       // error to return per call, nil-padded past the end
	block   chan struct{} // when non-nil, every call waits here after signaling
	started chan struct{} // signaled at the top of every call when non-nil
}

func (f *fakeReminderService) ProcessScheduledReminders(_ context.Context, _ time.Time) (*assignment.RunResult, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if n <= len(f.errs) && f.errs[n-1] != nil {
		return nil, f.errs[n-1]
	}
	return &assignment.RunResult{Processed: 1, Sent: 1}, nil
}

func (f *fakeReminderService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quietEntry() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func newTestScheduler(svc ReminderService, cfg Config) (*ReminderScheduler, *[]time.Duration) {
	s := NewReminderScheduler(svc, cfg, quietEntry())
	sleeps := &[]time.Duration{}
	s.sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return s, sleeps
}

func TestRunNowRetriesCycleErrorThenSucceeds(t *testing.T) {
	svc := &fakeReminderService{errs: []error{fmt.Errorf("gateway flapping")}}
	s, sleeps := newTestScheduler(svc, Config{Interval: time.Minute, MaxRetries: 2, RetryDelay: time.Minute})

	res, err := s.RunNow(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 2, svc.callCount(), "one failure plus one successful retry")
	assert.Equal(t, []time.Duration{time.Minute}, *sleeps)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.TotalRuns)
	assert.Equal(t, uint64(1), stats.Retries)
	assert.Equal(t, OutcomeSuccess, stats.LastOutcome)
	assert.Empty(t, stats.LastError)
	assert.NotEmpty(t, stats.LastRunID)
}

func TestRunNowExhaustsRetriesAndDefers(t *testing.T) {
	boom := fmt.Errorf("db down")
	svc := &fakeReminderService{errs: []error{boom, boom}}
	s, sleeps := newTestScheduler(svc, Config{Interval: time.Minute, MaxRetries: 1, RetryDelay: 30 * time.Second})

	_, err := s.RunNow(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, svc.callCount())
	assert.Len(t, *sleeps, 1)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.TotalRuns, "an exhausted cycle still counts as one completed run")
	assert.Equal(t, OutcomeFailed, stats.LastOutcome)
	assert.Contains(t, stats.LastError, "db down")
}

func TestTickDuringRunningCycleIsSkippedNotQueued(t *testing.T) {
	svc := &fakeReminderService{
		block:   make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	s, _ := newTestScheduler(svc, Config{Interval: time.Minute, MaxRetries: 0, RetryDelay: time.Second})

	done := make(chan struct{})
	go func() {
		_, err := s.RunNow(context.Background())
		assert.NoError(t, err)
		close(done)
	}()
	<-svc.started // first cycle is now in flight

	s.tick() // the overlapping tick must be dropped
	assert.Equal(t, uint64(1), s.Stats().SkippedTicks)
	assert.Equal(t, 1, svc.callCount(), "the skipped tick never reached the service")

	_, err := s.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(svc.block)
	<-done

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.TotalRuns, "skips are recorded separately, never double-counted")
	assert.Equal(t, uint64(1), stats.SkippedTicks)
}

func TestStartIsIdempotentAndStopDisarms(t *testing.T) {
	svc := &fakeReminderService{started: make(chan struct{}, 4)}
	s, _ := newTestScheduler(svc, Config{Interval: time.Hour, MaxRetries: 0, RetryDelay: time.Second})

	require.NoError(t, s.Start())
	assert.True(t, s.IsActive())

	select {
	case <-svc.started:
	case <-time.After(2 * time.Second):
		t.Fatal("immediate first cycle never ran")
	}

	require.NoError(t, s.Start(), "second Start must be a no-op")
	assert.True(t, s.IsActive())

	s.Stop()
	assert.False(t, s.IsActive())
	s.Stop() // stopping twice is harmless
}

func TestRunNowWorksWithoutStart(t *testing.T) {
	svc := &fakeReminderService{}
	s, _ := newTestScheduler(svc, Config{Interval: time.Minute, MaxRetries: 0, RetryDelay: time.Second})

	res, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.False(t, s.IsActive(), "a manual run does not arm the timer")
}
