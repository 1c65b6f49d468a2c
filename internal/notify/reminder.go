package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/dedup"
	"github.com/joshu-sajeev/coursenotify/internal/delivery"
	"github.com/joshu-sajeev/coursenotify/internal/dto"
	"github.com/joshu-sajeev/coursenotify/internal/metrics"
	"github.com/joshu-sajeev/coursenotify/internal/models"
)

// ReminderProcessor reminds a facilitator to file the activity log for a
// week, at most once per cool-down window.
type ReminderProcessor struct {
	entities  EntityStore
	guard     *dedup.Guard
	deliverer delivery.Deliverer
	records   NotificationRecorder
	logger    *slog.Logger
	now       func() time.Time
}

var _ Processor = (*ReminderProcessor)(nil)

func NewReminderProcessor(entities EntityStore, guard *dedup.Guard, deliverer delivery.Deliverer, records NotificationRecorder, logger *slog.Logger, now func() time.Time) *ReminderProcessor {
	return &ReminderProcessor{
		entities:  entities,
		guard:     guard,
		deliverer: deliverer,
		records:   records,
		logger:    logger,
		now:       clockOrNow(now),
	}
}

func (p *ReminderProcessor) Type() config.JobType { return config.JobTypeFacilitatorReminder }

func (p *ReminderProcessor) Process(ctx context.Context, job *models.Job) (Outcome, error) {
	var payload dto.FacilitatorReminderPayload
	if err := dto.DecodePayload(job.Payload, &payload); err != nil {
		return Failed, err
	}
	log := p.logger.With(
		"job_id", job.ID,
		"facilitator_id", payload.FacilitatorID,
		"course_offering_id", payload.CourseOfferingID,
		"week", payload.WeekNumber,
	)

	offering, err := p.entities.FindCourseOffering(ctx, payload.CourseOfferingID)
	if err != nil {
		return Failed, err
	}

	tracker, err := p.entities.FindActivityTracker(ctx, offering.ID, payload.WeekNumber)
	if err != nil {
		return Failed, err
	}
	if tracker.Submitted() {
		metrics.ReminderSuppressed("submitted")
		log.InfoContext(ctx, "activity log already submitted, reminder dropped")
		return Stale, nil
	}

	facilitator, err := p.entities.FindFacilitator(ctx, payload.FacilitatorID)
	if err != nil {
		return Failed, err
	}

	key := dedup.Key{
		FacilitatorID:    payload.FacilitatorID,
		CourseOfferingID: payload.CourseOfferingID,
		WeekNumber:       payload.WeekNumber,
	}
	sentAt, claimed, err := p.guard.RecordSent(ctx, key)
	if err != nil {
		return Failed, err
	}
	if !claimed {
		metrics.ReminderSuppressed("cooldown")
		log.InfoContext(ctx, "reminder already sent inside the cool-down window")
		return Suppressed, nil
	}

	n := reminderNotification(offering, facilitator, payload.WeekNumber)
	if err := p.deliverer.Deliver(ctx, n); err != nil {
		metrics.Delivery(string(p.Type()), "failed")
		if ferr := p.guard.Forget(context.WithoutCancel(ctx), key, sentAt); ferr != nil {
			log.ErrorContext(ctx, "failed to release reminder claim", "error", ferr)
		}
		return Failed, fmt.Errorf("deliver reminder: %w", err)
	}
	metrics.Delivery(string(p.Type()), "delivered")

	sent := p.now()
	updated, err := p.entities.RecordReminderSent(ctx, offering.ID, payload.WeekNumber, sent)
	if err != nil {
		log.WarnContext(ctx, "reminder sent but tracker not updated", "error", err)
	}
	if err := p.records.Record(ctx, &models.NotificationLog{
		JobID:            job.ID,
		Type:             p.Type(),
		TemplateKey:      n.TemplateKey,
		FacilitatorID:    payload.FacilitatorID,
		CourseOfferingID: payload.CourseOfferingID,
		WeekNumber:       payload.WeekNumber,
		Recipient:        n.Target.Email,
		Status:           models.NotificationStatusSent,
		SentAt:           sent,
	}); err != nil {
		log.WarnContext(ctx, "reminder sent but not recorded", "error", err)
	}
	log.InfoContext(ctx, "reminder delivered", "type", p.Type(), "tracker_updated", updated)
	return Delivered, nil
}

func reminderNotification(o *models.CourseOffering, f *models.Facilitator, week int) delivery.Notification {
	return delivery.Notification{
		Target:      delivery.Recipient{Name: f.FullName(), Email: f.Email},
		Subject:     fmt.Sprintf("Activity log reminder: %s week %d", o.Module.Name, week),
		TemplateKey: string(config.JobTypeFacilitatorReminder),
		Data: map[string]any{
			"facilitator":   f.FullName(),
			"module":        o.Module.Name,
			"module_code":   o.Module.Code,
			"trimester":     o.Trimester,
			"intake_period": o.IntakePeriod,
			"week":          week,
		},
	}
}
