// internal/app/reminder_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shift_reminder_bot/internal/domain/assignment"
	"shift_reminder_bot/internal/domain/associate"
	"shift_reminder_bot/internal/domain/job"
	domainsms "shift_reminder_bot/internal/domain/sms"
	idb "shift_reminder_bot/internal/infra/database"
	"shift_reminder_bot/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Custom application-level errors for the reminder dispatcher
var ErrAssociateOptedOut = fmt.Errorf("associate has opted out of SMS")
var ErrAllRemindersSent = fmt.Errorf("all reminder classes already sent for this placement")

// ReminderService defines the dispatcher operations: computing due reminders
// for a moment in time and sending them, plus a manual test-send path.
type ReminderService interface {
	// ProcessScheduledReminders runs one cycle for "now". Per-placement
	// failures are isolated into the result; only a cycle-level failure
	// (e.g. the candidate query itself) is returned as an error.
	ProcessScheduledReminders(ctx context.Context, now time.Time) (*assignment.RunResult, error)
	// SendTestReminder bypasses the due-window check but reuses the same
	// compose/send/persist path, so it exercises identical idempotence and
	// error handling.
	SendTestReminder(ctx context.Context, jobID, associateID int64) error
}

// ReminderDefaults are the globally configured reminder offsets and timezone,
// overridable per job.
type ReminderDefaults struct {
	NightBeforeTime string
	DayOfTime       string
	Location        *time.Location
}

// ReminderServiceImpl implements the ReminderService interface.
type ReminderServiceImpl struct {
	placementRepo assignment.Repository
	associateRepo associate.Repository
	jobRepo       job.Repository
	smsClient     domainsms.Client
	logger        *logrus.Entry
	defaults      ReminderDefaults
	now           func() time.Time
}

func NewReminderServiceImpl(
	pr assignment.Repository,
	ar associate.Repository,
	jr job.Repository,
	sc domainsms.Client,
	logger *logrus.Entry,
	defaults ReminderDefaults,
) *ReminderServiceImpl {
	return &ReminderServiceImpl{
		placementRepo: pr,
		associateRepo: ar,
		jobRepo:       jr,
		smsClient:     sc,
		logger:        logger,
		defaults:      defaults,
		now:           time.Now,
	}
}

// ProcessScheduledReminders walks every non-terminal placement whose work date
// is today or tomorrow and delivers whichever reminder classes are due and not
// yet sent. One bad placement never aborts the batch.
func (s *ReminderServiceImpl) ProcessScheduledReminders(ctx context.Context, now time.Time) (*assignment.RunResult, error) {
	result := &assignment.RunResult{
		RunID:     uuid.NewString(),
		StartedAt: now,
	}

	today := assignment.DateIn(now, s.defaults.Location)
	placements, err := s.placementRepo.ListUpcoming(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming placements: %w", err)
	}
	s.logger.Debugf("Run %s: %d candidate placements.", result.RunID, len(placements))

	for _, p := range placements {
		if p.ConfirmationStatus.Terminal() {
			continue // terminal placements get no further reminders
		}
		result.Processed++
		s.processPlacement(ctx, p, now, result)
	}

	result.FinishedAt = s.now()
	return result, nil
}

func (s *ReminderServiceImpl) processPlacement(ctx context.Context, p *assignment.Placement, now time.Time, result *assignment.RunResult) {
	assoc, err := s.associateRepo.GetByID(ctx, p.AssociateID)
	if err != nil {
		s.recordFailure(result, p.ID, "", fmt.Sprintf("fetch associate %d: %v", p.AssociateID, err))
		return
	}
	if assoc.OptedOut {
		result.Skipped++
		metrics.RemindersSkipped.Inc()
		s.logger.Debugf("Placement %d skipped: associate %d opted out.", p.ID, assoc.ID)
		return
	}

	jb, err := s.jobRepo.GetByID(ctx, p.JobID)
	if err != nil {
		s.recordFailure(result, p.ID, "", fmt.Sprintf("fetch job %d: %v", p.JobID, err))
		return
	}

	cfg, err := s.windowConfigFor(jb)
	if err != nil {
		s.recordFailure(result, p.ID, "", fmt.Sprintf("resolve reminder windows: %v", err))
		return
	}

	for _, class := range assignment.Classes {
		if p.SentAt(class).Valid {
			continue // at most one send per class per placement
		}
		due, err := assignment.Due(class, p, cfg, now)
		if err != nil {
			s.recordFailure(result, p.ID, class, fmt.Sprintf("compute due window: %v", err))
			return
		}
		if !due {
			continue
		}
		if err := s.deliver(ctx, p, jb, assoc, class, now); err != nil {
			s.recordFailure(result, p.ID, class, err.Error())
			metrics.RemindersFailed.WithLabelValues(string(class)).Inc()
			continue
		}
		result.Sent++
		metrics.RemindersSent.WithLabelValues(string(class)).Inc()
	}
}

// SendTestReminder delivers the next unsent reminder class for the placement
// matching the job/associate pair, skipping the due-window check entirely.
func (s *ReminderServiceImpl) SendTestReminder(ctx context.Context, jobID, associateID int64) error {
	now := s.now()
	today := assignment.DateIn(now, s.defaults.Location)

	p, err := s.placementRepo.GetByJobAndAssociate(ctx, jobID, associateID, today)
	if err != nil {
		return fmt.Errorf("failed to resolve placement for job %d, associate %d: %w", jobID, associateID, err)
	}

	assoc, err := s.associateRepo.GetByID(ctx, associateID)
	if err != nil {
		return fmt.Errorf("failed to fetch associate %d: %w", associateID, err)
	}
	if assoc.OptedOut {
		return ErrAssociateOptedOut
	}

	jb, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to fetch job %d: %w", jobID, err)
	}

	for _, class := range assignment.Classes {
		if p.SentAt(class).Valid {
			continue
		}
		s.logger.Infof("Sending test %s reminder for placement %d.", class, p.ID)
		return s.deliver(ctx, p, jb, assoc, class, now)
	}
	return ErrAllRemindersSent
}

// deliver composes, sends and persists one reminder. The "mark as sent" write
// happens only after a confirmed successful send, and the repository applies
// it atomically with the not-yet-sent check.
func (s *ReminderServiceImpl) deliver(ctx context.Context, p *assignment.Placement, jb *job.Job, assoc *associate.Associate, class assignment.ReminderClass, now time.Time) error {
	body := composeReminder(class, assoc, jb, p)
	if _, err := s.smsClient.Send(ctx, assoc.Phone, body); err != nil {
		return fmt.Errorf("send %s reminder: %w", class, err)
	}

	err := s.placementRepo.MarkReminderSent(ctx, p.ID, class, now)
	if err != nil {
		if errors.Is(err, idb.ErrReminderAlreadySent) {
			// Another writer stamped the class between our read and the send.
			s.logger.Warnf("Placement %d %s reminder was marked sent concurrently.", p.ID, class)
			return nil
		}
		return fmt.Errorf("mark %s reminder sent: %w", class, err)
	}

	switch class {
	case assignment.ClassNightBefore:
		p.NightBeforeSentAt.Time = now
		p.NightBeforeSentAt.Valid = true
	case assignment.ClassDayOf:
		p.DayOfSentAt.Time = now
		p.DayOfSentAt.Valid = true
	}
	p.LastActivityAt.Time = now
	p.LastActivityAt.Valid = true

	s.logger.Infof("Sent %s reminder for placement %d to associate %d.", class, p.ID, assoc.ID)
	return nil
}

// windowConfigFor applies a job's overrides over the configured defaults.
func (s *ReminderServiceImpl) windowConfigFor(jb *job.Job) (assignment.WindowConfig, error) {
	cfg := assignment.WindowConfig{
		NightBeforeTime: s.defaults.NightBeforeTime,
		DayOfTime:       s.defaults.DayOfTime,
		Location:        s.defaults.Location,
	}
	if jb.NightBeforeTime.Valid {
		cfg.NightBeforeTime = jb.NightBeforeTime.String
	}
	if jb.DayOfTime.Valid {
		cfg.DayOfTime = jb.DayOfTime.String
	}
	if jb.Timezone.Valid {
		loc, err := time.LoadLocation(jb.Timezone.String)
		if err != nil {
			return cfg, fmt.Errorf("invalid job timezone %q: %w", jb.Timezone.String, err)
		}
		cfg.Location = loc
	}
	return cfg, nil
}

func (s *ReminderServiceImpl) recordFailure(result *assignment.RunResult, placementID int64, class assignment.ReminderClass, reason string) {
	result.Failed++
	result.Errors = append(result.Errors, assignment.PlacementError{
		PlacementID: placementID,
		Class:       class,
		Reason:      reason,
	})
	s.logger.Errorf("Placement %d failed: %s", placementID, reason)
}

func composeReminder(class assignment.ReminderClass, assoc *associate.Associate, jb *job.Job, p *assignment.Placement) string {
	when := "today"
	if class == assignment.ClassNightBefore {
		when = "tomorrow"
	}
	return fmt.Sprintf("Hi %s! Reminder: you're scheduled for %s at %s (%s) %s at %s. Reply C to confirm or X if you can't make it.",
		assoc.FirstName, jb.Title, jb.Customer, jb.Location, when, p.StartTime)
}
