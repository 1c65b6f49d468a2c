package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/dto"
	"github.com/joshu-sajeev/coursenotify/internal/queue"
)

// Enqueuer is the part of the job queue the scheduler writes to.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType config.JobType, payload any, opts ...queue.Option) (string, error)
	EnsureRecurring(ctx context.Context, jobType config.JobType, payload any, expr, timezone string, opts ...queue.Option) (string, error)
}

// Scheduler enqueues notification jobs with the retry policy of their type.
type Scheduler struct {
	q      Enqueuer
	policy config.PolicySettings
	logger *slog.Logger
}

func NewScheduler(q Enqueuer, policy config.PolicySettings, logger *slog.Logger) *Scheduler {
	return &Scheduler{q: q, policy: policy, logger: logger}
}

// EnqueueFacilitatorReminder queues a reminder that becomes due after delay.
func (s *Scheduler) EnqueueFacilitatorReminder(ctx context.Context, p dto.FacilitatorReminderPayload, delay time.Duration) (string, error) {
	if err := dto.ValidatePayload(p); err != nil {
		return "", err
	}

	id, err := s.q.Enqueue(ctx, config.JobTypeFacilitatorReminder, p,
		queue.WithDelay(delay),
		queue.WithMaxAttempts(s.policy.ReminderMaxAttempts),
		queue.WithBackoff(queue.Exponential(s.policy.ReminderBackoffBase)),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue facilitator reminder: %w", err)
	}
	return id, nil
}

// ScheduleFacilitatorReminder queues a reminder with the default first
// reminder delay.
func (s *Scheduler) ScheduleFacilitatorReminder(ctx context.Context, p dto.FacilitatorReminderPayload) (string, error) {
	return s.EnqueueFacilitatorReminder(ctx, p, s.policy.FirstReminderDelay)
}

// EnqueueManagerAlert queues an alert to every active manager. A missing log
// is alerted at most once per offering and week; a repeat returns an empty
// ID and no error.
func (s *Scheduler) EnqueueManagerAlert(ctx context.Context, p dto.ManagerAlertPayload) (string, error) {
	if err := dto.ValidatePayload(p); err != nil {
		return "", err
	}

	opts := []queue.Option{
		queue.WithMaxAttempts(s.policy.AlertMaxAttempts),
		queue.WithBackoff(queue.Fixed(s.policy.AlertBackoffDelay)),
	}
	if p.AlertType == config.AlertMissingActivityLog {
		opts = append(opts, queue.WithUniqueKey(
			fmt.Sprintf("%s:%s:%d:%d", config.JobTypeManagerAlert, p.AlertType, p.CourseOfferingID, p.WeekNumber)))
	}

	id, err := s.q.Enqueue(ctx, config.JobTypeManagerAlert, p, opts...)
	if errors.Is(err, queue.ErrDuplicateJob) {
		s.logger.InfoContext(ctx, "manager alert already queued",
			"alert_type", p.AlertType, "course_offering_id", p.CourseOfferingID, "week", p.WeekNumber)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("enqueue manager alert: %w", err)
	}
	return id, nil
}

// NotifySubmission tells managers that a facilitator filed an activity log.
// It never fails the caller: the enqueue runs in the background and errors
// are only logged.
func (s *Scheduler) NotifySubmission(ctx context.Context, facilitatorID, offeringID uint, week int) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		_, err := s.EnqueueManagerAlert(ctx, dto.ManagerAlertPayload{
			FacilitatorID:    facilitatorID,
			CourseOfferingID: offeringID,
			AlertType:        config.AlertActivityLogSubmitted,
			WeekNumber:       week,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to queue submission alert",
				"facilitator_id", facilitatorID, "course_offering_id", offeringID, "week", week, "error", err)
		}
	}()
}

// EnqueueSweepNow queues a one-off deadline sweep.
func (s *Scheduler) EnqueueSweepNow(ctx context.Context) (string, error) {
	id, err := s.q.Enqueue(ctx, config.JobTypeDeadlineSweep, dto.DeadlineSweepPayload{},
		queue.WithMaxAttempts(1))
	if err != nil {
		return "", fmt.Errorf("enqueue deadline sweep: %w", err)
	}
	return id, nil
}

// EnsureDeadlineSweep registers the recurring deadline sweep if it is not
// scheduled yet.
func (s *Scheduler) EnsureDeadlineSweep(ctx context.Context) (string, error) {
	id, err := s.q.EnsureRecurring(ctx, config.JobTypeDeadlineSweep, dto.DeadlineSweepPayload{},
		s.policy.SweepSchedule, s.policy.SweepTimezone, queue.WithMaxAttempts(1))
	if err != nil {
		return "", fmt.Errorf("register deadline sweep: %w", err)
	}
	return id, nil
}
