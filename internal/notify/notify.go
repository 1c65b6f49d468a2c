// Package notify holds the job processors of the notification core and the
// API that enqueues their jobs.
package notify

import (
	"context"
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/models"
)

// Outcome is how a processor finished a job.
type Outcome string

const (
	Delivered  Outcome = "delivered"
	Suppressed Outcome = "suppressed"
	Stale      Outcome = "stale"
	Skipped    Outcome = "skipped"
	Swept      Outcome = "swept"
	Failed     Outcome = "failed"
)

// Processor runs the domain logic of one job type. A nil error completes the
// job; the error otherwise decides between retry and giving up, see
// common.Retryable.
type Processor interface {
	Type() config.JobType
	Process(ctx context.Context, job *models.Job) (Outcome, error)
}

// EntityStore is the read side of the course administration store. Lookups
// of single entities fail with common.ErrNotFound when the entity is gone.
type EntityStore interface {
	FindActiveCourseOfferings(ctx context.Context) ([]models.CourseOffering, error)
	FindCourseOffering(ctx context.Context, id uint) (*models.CourseOffering, error)
	FindFacilitator(ctx context.Context, id uint) (*models.Facilitator, error)
	FindActivityTracker(ctx context.Context, offeringID uint, week int) (*models.ActivityTracker, error)
	FindActiveManagers(ctx context.Context) ([]models.Manager, error)
	RecordReminderSent(ctx context.Context, offeringID uint, week int, at time.Time) (bool, error)
}

// NotificationRecorder keeps the record of delivered notifications.
type NotificationRecorder interface {
	Record(ctx context.Context, entry *models.NotificationLog) error
}

func clockOrNow(now func() time.Time) func() time.Time {
	if now == nil {
		now = time.Now
	}
	return func() time.Time { return now().UTC() }
}
