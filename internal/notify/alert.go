package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/joshu-sajeev/coursenotify/common"
	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/delivery"
	"github.com/joshu-sajeev/coursenotify/internal/dto"
	"github.com/joshu-sajeev/coursenotify/internal/metrics"
	"github.com/joshu-sajeev/coursenotify/internal/models"
)

// AlertProcessor sends one alert to every active manager. When any send
// fails with a retryable error the whole batch is retried, so managers that
// already got the alert may get it again.
type AlertProcessor struct {
	entities  EntityStore
	deliverer delivery.Deliverer
	records   NotificationRecorder
	logger    *slog.Logger
	now       func() time.Time
}

var _ Processor = (*AlertProcessor)(nil)

func NewAlertProcessor(entities EntityStore, deliverer delivery.Deliverer, records NotificationRecorder, logger *slog.Logger, now func() time.Time) *AlertProcessor {
	return &AlertProcessor{
		entities:  entities,
		deliverer: deliverer,
		records:   records,
		logger:    logger,
		now:       clockOrNow(now),
	}
}

func (p *AlertProcessor) Type() config.JobType { return config.JobTypeManagerAlert }

func (p *AlertProcessor) Process(ctx context.Context, job *models.Job) (Outcome, error) {
	var payload dto.ManagerAlertPayload
	if err := dto.DecodePayload(job.Payload, &payload); err != nil {
		return Failed, err
	}
	log := p.logger.With(
		"job_id", job.ID,
		"alert_type", payload.AlertType,
		"facilitator_id", payload.FacilitatorID,
		"course_offering_id", payload.CourseOfferingID,
		"week", payload.WeekNumber,
	)

	offering, err := p.entities.FindCourseOffering(ctx, payload.CourseOfferingID)
	if err != nil {
		return Failed, err
	}
	facilitator, err := p.entities.FindFacilitator(ctx, payload.FacilitatorID)
	if err != nil {
		return Failed, err
	}

	managers, err := p.entities.FindActiveManagers(ctx)
	if err != nil {
		return Failed, err
	}
	if len(managers) == 0 {
		log.WarnContext(ctx, "no active managers to alert")
		return Skipped, nil
	}

	var errs []error
	for i := range managers {
		n := alertNotification(payload, &managers[i], offering, facilitator)
		if err := p.deliverer.Deliver(ctx, n); err != nil {
			metrics.Delivery(string(p.Type()), "failed")
			errs = append(errs, fmt.Errorf("manager %d: %w", managers[i].ID, err))
			continue
		}
		metrics.Delivery(string(p.Type()), "delivered")
		p.record(ctx, log, job, payload, n)
	}

	if len(errs) == 0 {
		log.InfoContext(ctx, "manager alert delivered", "type", p.Type(), "managers", len(managers))
		return Delivered, nil
	}

	joined := errors.Join(errs...)
	if slices.ContainsFunc(errs, common.Retryable) {
		return Failed, fmt.Errorf("%w: %d of %d manager alerts failed: %v",
			common.ErrTransientDelivery, len(errs), len(managers), joined)
	}
	return Failed, fmt.Errorf("manager alerts rejected: %w", joined)
}

func (p *AlertProcessor) record(ctx context.Context, log *slog.Logger, job *models.Job, payload dto.ManagerAlertPayload, n delivery.Notification) {
	err := p.records.Record(ctx, &models.NotificationLog{
		JobID:            job.ID,
		Type:             p.Type(),
		TemplateKey:      n.TemplateKey,
		FacilitatorID:    payload.FacilitatorID,
		CourseOfferingID: payload.CourseOfferingID,
		WeekNumber:       payload.WeekNumber,
		Recipient:        n.Target.Email,
		Status:           models.NotificationStatusSent,
		SentAt:           p.now(),
	})
	if err != nil {
		log.WarnContext(ctx, "alert sent but not recorded", "recipient", n.Target.Email, "error", err)
	}
}

func alertNotification(p dto.ManagerAlertPayload, m *models.Manager, o *models.CourseOffering, f *models.Facilitator) delivery.Notification {
	subject := fmt.Sprintf("Missing activity log: %s week %d", o.Module.Name, p.WeekNumber)
	if p.AlertType == config.AlertActivityLogSubmitted {
		subject = fmt.Sprintf("Activity log submitted: %s week %d", o.Module.Name, p.WeekNumber)
	}

	return delivery.Notification{
		Target:      delivery.Recipient{Name: m.FullName(), Email: m.Email},
		Subject:     subject,
		TemplateKey: p.AlertType,
		Data: map[string]any{
			"manager":           m.FullName(),
			"facilitator":       f.FullName(),
			"facilitator_email": f.Email,
			"module":            o.Module.Name,
			"module_code":       o.Module.Code,
			"trimester":         o.Trimester,
			"intake_period":     o.IntakePeriod,
			"week":              p.WeekNumber,
		},
	}
}
