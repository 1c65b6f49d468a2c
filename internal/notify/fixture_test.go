package notify_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/dedup"
	"github.com/joshu-sajeev/coursenotify/internal/mocks"
	"github.com/joshu-sajeev/coursenotify/internal/models"
	"github.com/joshu-sajeev/coursenotify/internal/notify"
	"github.com/joshu-sajeev/coursenotify/internal/queue"
	"github.com/joshu-sajeev/coursenotify/internal/storage/postgres"
	"github.com/joshu-sajeev/coursenotify/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Monday 2025-03-03 09:00 UTC
var now = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

var policy = config.PolicySettings{
	SweepSchedule:         "0 9 * * 1",
	ReminderCoolDown:      24 * time.Hour,
	FirstReminderDelay:    24 * time.Hour,
	CriticalDeadlineHours: 48,
	WeekLengthDays:        7,
	ReminderMaxAttempts:   3,
	ReminderBackoffBase:   2 * time.Second,
	AlertMaxAttempts:      3,
	AlertBackoffDelay:     5 * time.Second,
}

type fixture struct {
	db        *gorm.DB
	clock     *testutil.Clock
	q         *queue.Queue
	entities  *postgres.EntityRepository
	guard     *dedup.Guard
	records   *postgres.NotificationRepository
	scheduler *notify.Scheduler
	deliverer *mocks.DelivererMock
	reminder  *notify.ReminderProcessor
	alert     *notify.AlertProcessor
	sweep     *notify.SweepProcessor
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	clock := testutil.NewClock(now)
	logger := discard()

	q := queue.New(postgres.NewJobRepository(db), queue.WithClock(clock.Now), queue.WithLogger(logger))
	entities := postgres.NewEntityRepository(db)
	guard := dedup.New(postgres.NewDedupRepository(db), policy.ReminderCoolDown, dedup.WithClock(clock.Now))
	scheduler := notify.NewScheduler(q, policy, logger)
	deliverer := &mocks.DelivererMock{}
	records := postgres.NewNotificationRepository(db)

	return &fixture{
		db:        db,
		clock:     clock,
		q:         q,
		entities:  entities,
		guard:     guard,
		records:   records,
		scheduler: scheduler,
		deliverer: deliverer,
		reminder:  notify.NewReminderProcessor(entities, guard, deliverer, records, logger, clock.Now),
		alert:     notify.NewAlertProcessor(entities, deliverer, records, logger, clock.Now),
		sweep:     notify.NewSweepProcessor(entities, guard, scheduler, policy, logger, clock.Now),
	}
}

// seedOffering stores an active offering with its own module and
// facilitator, started at start.
func (f *fixture) seedOffering(t *testing.T, email string, start time.Time) *models.CourseOffering {
	t.Helper()

	module := models.Module{Code: "GO101", Name: "Intro to Go"}
	require.NoError(t, f.db.Create(&module).Error)
	facilitator := models.Facilitator{FirstName: "Ada", LastName: "Lovelace", Email: email}
	require.NoError(t, f.db.Create(&facilitator).Error)

	offering := models.CourseOffering{
		ModuleID:      module.ID,
		Trimester:     "T1",
		IntakePeriod:  "HT1",
		FacilitatorID: &facilitator.ID,
		IsActive:      true,
		StartDate:     start,
	}
	require.NoError(t, f.db.Create(&offering).Error)
	return &offering
}

func (f *fixture) seedManager(t *testing.T, email string, active bool) models.Manager {
	t.Helper()
	m := models.Manager{FirstName: "Grace", LastName: "Hopper", Email: email, IsActive: active}
	require.NoError(t, f.db.Create(&m).Error)
	return m
}

func (f *fixture) seedTracker(t *testing.T, o *models.CourseOffering, week int, submittedAt *time.Time) {
	t.Helper()
	tracker := models.ActivityTracker{
		AllocationID:  o.ID,
		FacilitatorID: *o.FacilitatorID,
		WeekNumber:    week,
		SubmittedAt:   submittedAt,
	}
	require.NoError(t, f.db.Create(&tracker).Error)
}

// jobs returns the leasable jobs of one type.
func (f *fixture) jobs(t *testing.T, jobType config.JobType) []models.Job {
	t.Helper()
	var jobs []models.Job
	require.NoError(t, f.db.
		Where("type = ? AND status IN ?", string(jobType),
			[]string{string(config.JobStatusPending), string(config.JobStatusDelayed)}).
		Order("created_at ASC").
		Find(&jobs).Error)
	return jobs
}

// notifications returns the delivery records, newest first.
func (f *fixture) notifications(t *testing.T) []models.NotificationLog {
	t.Helper()
	entries, _, err := f.records.List(context.Background(), 100, 0)
	require.NoError(t, err)
	return entries
}

func (f *fixture) lease(t *testing.T, jobType config.JobType) *queue.Lease {
	t.Helper()
	lease, err := f.q.TryLease(context.Background(), "test", jobType)
	require.NoError(t, err)
	require.NotNil(t, lease)
	return lease
}

// overdueStart returns the start date of an offering whose week is
// overdue by the given duration at now.
func overdueStart(week int, overdue time.Duration) time.Time {
	weekStart := now.Add(-policy.FirstReminderDelay - overdue)
	return weekStart.Add(-time.Duration(week-1) * policy.WeekLength())
}
