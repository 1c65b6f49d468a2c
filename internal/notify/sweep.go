package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/dedup"
	"github.com/joshu-sajeev/coursenotify/internal/dto"
	"github.com/joshu-sajeev/coursenotify/internal/models"
)

// SweepProcessor finds active course offerings whose current-week activity
// log is overdue and queues reminders and, past the critical deadline,
// manager alerts.
type SweepProcessor struct {
	entities  EntityStore
	guard     *dedup.Guard
	scheduler *Scheduler
	policy    config.PolicySettings
	logger    *slog.Logger
	now       func() time.Time
}

var _ Processor = (*SweepProcessor)(nil)

func NewSweepProcessor(entities EntityStore, guard *dedup.Guard, scheduler *Scheduler, policy config.PolicySettings, logger *slog.Logger, now func() time.Time) *SweepProcessor {
	return &SweepProcessor{
		entities:  entities,
		guard:     guard,
		scheduler: scheduler,
		policy:    policy,
		logger:    logger,
		now:       clockOrNow(now),
	}
}

func (p *SweepProcessor) Type() config.JobType { return config.JobTypeDeadlineSweep }

type sweepResult struct {
	offerings int
	reminders int
	alerts    int
	failures  int
}

// Process never returns an error. A failing offering is logged and skipped;
// failing to list the offerings reports Failed and waits for the next
// occurrence.
func (p *SweepProcessor) Process(ctx context.Context, job *models.Job) (Outcome, error) {
	now := p.now()

	offerings, err := p.entities.FindActiveCourseOfferings(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "deadline sweep could not list offerings",
			"job_id", job.ID, "error", err)
		return Failed, nil
	}

	var res sweepResult
	for i := range offerings {
		res.offerings++
		if err := p.sweepOffering(ctx, &offerings[i], now, &res); err != nil {
			res.failures++
			p.logger.ErrorContext(ctx, "deadline sweep skipped offering",
				"job_id", job.ID, "course_offering_id", offerings[i].ID, "error", err)
		}
	}

	p.logger.InfoContext(ctx, "deadline sweep finished",
		"job_id", job.ID,
		"offerings", res.offerings,
		"reminders", res.reminders,
		"alerts", res.alerts,
		"failures", res.failures,
	)
	return Swept, nil
}

func (p *SweepProcessor) sweepOffering(ctx context.Context, o *models.CourseOffering, now time.Time, res *sweepResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if o.FacilitatorID == nil {
		return nil
	}
	if o.EndDate != nil && now.After(*o.EndDate) {
		return nil
	}
	week, ok := WeekNumber(o.StartDate, now, p.policy.WeekLength())
	if !ok {
		return nil
	}
	// Until the current week is due, the week that just ended is the one
	// a sweep can still catch.
	if !now.After(p.deadline(o, week)) {
		week--
	}
	if week < 1 || week > MaxWeek {
		return nil
	}

	tracker, err := p.entities.FindActivityTracker(ctx, o.ID, week)
	if err != nil {
		return err
	}
	if tracker.Submitted() {
		return nil
	}

	overdue := now.Sub(p.deadline(o, week))

	key := dedup.Key{FacilitatorID: *o.FacilitatorID, CourseOfferingID: o.ID, WeekNumber: week}
	send, err := p.guard.ShouldSend(ctx, key)
	if err != nil {
		return err
	}
	if send {
		_, err := p.scheduler.EnqueueFacilitatorReminder(ctx, dto.FacilitatorReminderPayload{
			FacilitatorID:    key.FacilitatorID,
			CourseOfferingID: key.CourseOfferingID,
			WeekNumber:       week,
		}, 0)
		if err != nil {
			return err
		}
		res.reminders++
	}

	if overdue > p.policy.CriticalDeadline() {
		id, err := p.scheduler.EnqueueManagerAlert(ctx, dto.ManagerAlertPayload{
			FacilitatorID:    key.FacilitatorID,
			CourseOfferingID: key.CourseOfferingID,
			AlertType:        config.AlertMissingActivityLog,
			WeekNumber:       week,
		})
		if err != nil {
			return err
		}
		if id != "" {
			res.alerts++
		}
	}
	return nil
}

func (p *SweepProcessor) deadline(o *models.CourseOffering, week int) time.Time {
	return WeekStart(o.StartDate, week, p.policy.WeekLength()).Add(p.policy.FirstReminderDelay)
}
