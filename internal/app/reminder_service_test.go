package app

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"shift_reminder_bot/internal/domain/assignment"
	"shift_reminder_bot/internal/domain/associate"
	"shift_reminder_bot/internal/domain/confirmation"
	"shift_reminder_bot/internal/domain/job"
	domainsms "shift_reminder_bot/internal/domain/sms"
	idb "shift_reminder_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory fakes shared by the app tests ---

type fakePlacementRepo struct {
	placements map[int64]*assignment.Placement
	listErr    error
}

func (f *fakePlacementRepo) ListUpcoming(_ context.Context, from, to time.Time) ([]*assignment.Placement, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*assignment.Placement
	for _, p := range f.placements {
		if p.ConfirmationStatus.Terminal() {
			continue
		}
		if p.WorkDate.Before(from) || p.WorkDate.After(to) {
			continue
		}
		out = append(out, p)
	}
	sortPlacements(out)
	return out, nil
}

func (f *fakePlacementRepo) ListActiveByAssociate(_ context.Context, associateID int64, onOrAfter time.Time, limit int) ([]*assignment.Placement, error) {
	var out []*assignment.Placement
	for _, p := range f.placements {
		if p.AssociateID != associateID || p.ConfirmationStatus.Terminal() || p.WorkDate.Before(onOrAfter) {
			continue
		}
		out = append(out, p)
	}
	sortPlacements(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePlacementRepo) GetByJobAndAssociate(_ context.Context, jobID, associateID int64, onOrAfter time.Time) (*assignment.Placement, error) {
	var out []*assignment.Placement
	for _, p := range f.placements {
		if p.JobID == jobID && p.AssociateID == associateID && !p.WorkDate.Before(onOrAfter) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, idb.ErrPlacementNotFound
	}
	sortPlacements(out)
	return out[0], nil
}

func (f *fakePlacementRepo) MarkReminderSent(_ context.Context, placementID int64, class assignment.ReminderClass, sentAt time.Time) error {
	p, ok := f.placements[placementID]
	if !ok {
		return idb.ErrPlacementNotFound
	}
	if p.ConfirmationStatus.Terminal() || p.SentAt(class).Valid {
		return idb.ErrReminderAlreadySent
	}
	stamp := sql.NullTime{Time: sentAt, Valid: true}
	if class == assignment.ClassDayOf {
		p.DayOfSentAt = stamp
	} else {
		p.NightBeforeSentAt = stamp
	}
	p.LastActivityAt = stamp
	return nil
}

func (f *fakePlacementRepo) UpdateConfirmation(_ context.Context, placementID int64, from, to confirmation.Status, confirmed bool, at time.Time) error {
	p, ok := f.placements[placementID]
	if !ok {
		return idb.ErrPlacementNotFound
	}
	if p.ConfirmationStatus != from {
		return idb.ErrStaleUpdate
	}
	p.ConfirmationStatus = to
	p.LastActivityAt = sql.NullTime{Time: at, Valid: true}
	if confirmed {
		p.LastConfirmedAt = sql.NullTime{Time: at, Valid: true}
	}
	return nil
}

func sortPlacements(ps []*assignment.Placement) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].WorkDate.Equal(ps[j].WorkDate) {
			return ps[i].WorkDate.Before(ps[j].WorkDate)
		}
		if ps[i].StartTime != ps[j].StartTime {
			return ps[i].StartTime < ps[j].StartTime
		}
		return ps[i].ID < ps[j].ID
	})
}

type fakeAssociateRepo struct {
	byID map[int64]*associate.Associate
}

func (f *fakeAssociateRepo) GetByID(_ context.Context, id int64) (*associate.Associate, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, idb.ErrAssociateNotFound
	}
	return a, nil
}

func (f *fakeAssociateRepo) GetByPhone(_ context.Context, phone string) (*associate.Associate, error) {
	for _, a := range f.byID {
		if a.Phone == phone {
			return a, nil
		}
	}
	return nil, idb.ErrAssociateNotFound
}

func (f *fakeAssociateRepo) SetOptOut(_ context.Context, id int64, optedOut bool) error {
	a, ok := f.byID[id]
	if !ok {
		return idb.ErrAssociateNotFound
	}
	a.OptedOut = optedOut
	return nil
}

type fakeJobRepo struct {
	byID map[int64]*job.Job
}

func (f *fakeJobRepo) GetByID(_ context.Context, id int64) (*job.Job, error) {
	j, ok := f.byID[id]
	if !ok {
		return nil, idb.ErrJobNotFound
	}
	return j, nil
}

type sentMessage struct {
	To   string
	Body string
}

type fakeSMSClient struct {
	sent   []sentMessage
	failTo map[string]error
}

func (f *fakeSMSClient) Send(_ context.Context, to, body string) (*domainsms.SendResult, error) {
	if err, ok := f.failTo[to]; ok {
		return nil, err
	}
	f.sent = append(f.sent, sentMessage{To: to, Body: body})
	return &domainsms.SendResult{MessageID: fmt.Sprintf("SM%d", len(f.sent)), Status: "queued"}, nil
}

// --- fixtures ---

func testLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)
	return loc
}

func testFixtures(loc *time.Location) (*fakePlacementRepo, *fakeAssociateRepo, *fakeJobRepo, *fakeSMSClient) {
	placements := &fakePlacementRepo{placements: map[int64]*assignment.Placement{
		1: {
			ID: 1, JobID: 10, AssociateID: 100,
			WorkDate:           time.Date(2025, 8, 5, 0, 0, 0, 0, loc),
			StartTime:          "09:00",
			ConfirmationStatus: confirmation.StatusUnconfirmed,
		},
	}}
	associates := &fakeAssociateRepo{byID: map[int64]*associate.Associate{
		100: {ID: 100, FirstName: "Dana", Phone: "3035550100"},
	}}
	jobs := &fakeJobRepo{byID: map[int64]*job.Job{
		10: {ID: 10, Title: "Warehouse Picker", Customer: "Acme Logistics", Location: "Denver, CO"},
	}}
	gateway := &fakeSMSClient{failTo: map[string]error{}}
	return placements, associates, jobs, gateway
}

func newTestService(t *testing.T, pr *fakePlacementRepo, ar *fakeAssociateRepo, jr *fakeJobRepo, sc *fakeSMSClient, loc *time.Location) *ReminderServiceImpl {
	t.Helper()
	svc := NewReminderServiceImpl(pr, ar, jr, sc, testLogEntry(), ReminderDefaults{
		NightBeforeTime: "19:00",
		DayOfTime:       "07:00",
		Location:        loc,
	})
	return svc
}

func testLogEntry() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

// --- tests ---

func TestProcessBeforeBothWindowsSendsNothing(t *testing.T) {
	loc := testLocation(t)
	pr, ar, jr, sc := testFixtures(loc)
	svc := newTestService(t, pr, ar, jr, sc, loc)

	now := time.Date(2025, 8, 4, 12, 0, 0, 0, loc)
	res, err := svc.ProcessScheduledReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 0, res.Sent)
	assert.Empty(t, sc.sent)
}

func TestEachClassSentExactlyOnceAcrossTicks(t *testing.T) {
	loc := testLocation(t)
	pr, ar, jr, sc := testFixtures(loc)
	svc := newTestService(t, pr, ar, jr, sc, loc)
	ctx := context.Background()

	// Night-before window: first tick sends, immediate second tick does not.
	eveNow := time.Date(2025, 8, 4, 19, 5, 0, 0, loc)
	res, err := svc.ProcessScheduledReminders(ctx, eveNow)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	require.Len(t, sc.sent, 1)
	assert.Contains(t, sc.sent[0].Body, "tomorrow at 09:00")

	res, err = svc.ProcessScheduledReminders(ctx, eveNow.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent)
	assert.Len(t, sc.sent, 1, "repeated ticks inside the window must not resend")

	// Day-of window the next morning.
	morningNow := time.Date(2025, 8, 5, 7, 5, 0, 0, loc)
	res, err = svc.ProcessScheduledReminders(ctx, morningNow)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	require.Len(t, sc.sent, 2)
	assert.Contains(t, sc.sent[1].Body, "today at 09:00")

	res, err = svc.ProcessScheduledReminders(ctx, morningNow.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent)
	assert.Len(t, sc.sent, 2)
}

func TestOptedOutAssociateIsSkippedNotFailed(t *testing.T) {
	loc := testLocation(t)
	pr, ar, jr, sc := testFixtures(loc)
	ar.byID[100].OptedOut = true
	svc := newTestService(t, pr, ar, jr, sc, loc)

	now := time.Date(2025, 8, 4, 19, 5, 0, 0, loc)
	res, err := svc.ProcessScheduledReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, 0, res.Failed)
	assert.Empty(t, sc.sent)
	assert.False(t, pr.placements[1].NightBeforeSentAt.Valid, "skip must not consume the reminder class")
}

func TestTerminalPlacementGetsNoReminders(t *testing.T) {
	loc := testLocation(t)
	pr, ar, jr, sc := testFixtures(loc)
	pr.placements[1].ConfirmationStatus = confirmation.StatusDeclined
	svc := newTestService(t, pr, ar, jr, sc, loc)

	now := time.Date(2025, 8, 4, 19, 5, 0, 0, loc)
	res, err := svc.ProcessScheduledReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Empty(t, sc.sent)
}

func TestSendFailureIsIsolatedPerPlacement(t *testing.T) {
	loc := testLocation(t)
	pr, ar, jr, sc := testFixtures(loc)
	pr.placements[2] = &assignment.Placement{
		ID: 2, JobID: 10, AssociateID: 101,
		WorkDate:           time.Date(2025, 8, 5, 0, 0, 0, 0, loc),
		StartTime:          "09:00",
		ConfirmationStatus: confirmation.StatusUnconfirmed,
	}
	ar.byID[101] = &associate.Associate{ID: 101, FirstName: "Lee", Phone: "3035550101"}
	sc.failTo["3035550100"] = &domainsms.GatewayError{Kind: domainsms.KindTransient, Op: "send", Err: fmt.Errorf("timeout")}
	svc := newTestService(t, pr, ar, jr, sc, loc)

	now := time.Date(2025, 8, 4, 19, 5, 0, 0, loc)
	res, err := svc.ProcessScheduledReminders(context.Background(), now)
	require.NoError(t, err, "per-placement failures never abort the cycle")
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, int64(1), res.Errors[0].PlacementID)

	// The failed class stays unmarked and goes out on a later tick.
	assert.False(t, pr.placements[1].NightBeforeSentAt.Valid)
	delete(sc.failTo, "3035550100")
	res, err = svc.ProcessScheduledReminders(context.Background(), now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.True(t, pr.placements[1].NightBeforeSentAt.Valid)
}

func TestCycleErrorWhenCandidateQueryFails(t *testing.T) {
	loc := testLocation(t)
	pr, ar, jr, sc := testFixtures(loc)
	pr.listErr = fmt.Errorf("connection refused")
	svc := newTestService(t, pr, ar, jr, sc, loc)

	_, err := svc.ProcessScheduledReminders(context.Background(), time.Now())
	require.Error(t, err)
}

func TestJobOverridesShiftTheWindow(t *testing.T) {
	loc := testLocation(t)
	pr, ar, jr, sc := testFixtures(loc)
	jr.byID[10].NightBeforeTime = sql.NullString{String: "17:00", Valid: true}
	svc := newTestService(t, pr, ar, jr, sc, loc)

	now := time.Date(2025, 8, 4, 17, 30, 0, 0, loc)
	res, err := svc.ProcessScheduledReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent, "the job's 17:00 override opens the window before the 19:00 default")
}

func TestSendTestReminderBypassesWindowAndMarksSent(t *testing.T) {
	loc := testLocation(t)
	pr, ar, jr, sc := testFixtures(loc)
	svc := newTestService(t, pr, ar, jr, sc, loc)
	svc.now = func() time.Time { return time.Date(2025, 8, 1, 12, 0, 0, 0, loc) }

	require.NoError(t, svc.SendTestReminder(context.Background(), 10, 100))
	require.Len(t, sc.sent, 1)
	assert.True(t, pr.placements[1].NightBeforeSentAt.Valid, "test sends share the persist path")

	require.NoError(t, svc.SendTestReminder(context.Background(), 10, 100))
	assert.True(t, pr.placements[1].DayOfSentAt.Valid)

	err := svc.SendTestReminder(context.Background(), 10, 100)
	assert.ErrorIs(t, err, ErrAllRemindersSent)
}

func TestSendTestReminderRespectsOptOut(t *testing.T) {
	loc := testLocation(t)
	pr, ar, jr, sc := testFixtures(loc)
	ar.byID[100].OptedOut = true
	svc := newTestService(t, pr, ar, jr, sc, loc)
	svc.now = func() time.Time { return time.Date(2025, 8, 1, 12, 0, 0, 0, loc) }

	err := svc.SendTestReminder(context.Background(), 10, 100)
	assert.ErrorIs(t, err, ErrAssociateOptedOut)
	assert.Empty(t, sc.sent)
}
