package job

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/joshu-sajeev/coursenotify/common"
	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/dto"
	"github.com/joshu-sajeev/coursenotify/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type JobService struct {
	queue         AdminQueue
	scheduler     AlertScheduler
	notifications NotificationLog
}

func NewJobService(q AdminQueue, s AlertScheduler, n NotificationLog) *JobService {
	return &JobService{queue: q, scheduler: s, notifications: n}
}

var _ JobServiceInterface = (*JobService)(nil)

// GetJob retrieves a job by its ID.
// It maps queue errors to appropriate API errors
// (e.g., not found, timeout, or storage failure).
func (s *JobService) GetJob(ctx context.Context, id string) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	job, err := s.queue.Get(ctx, id)
	if err != nil {
		return nil, common.ToAPIError(err, "job")
	}

	resp := toResponse(job)
	return &resp, nil
}

// ListJobs pages through the jobs in one status, newest first.
// A zero limit falls back to the default page size.
func (s *JobService) ListJobs(ctx context.Context, status string, limit, offset int) (*dto.JobListDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	st := config.JobStatus(status)
	if !slices.Contains(config.AllowedJobStatuses, st) {
		return nil, common.NewAPIError(
			http.StatusBadRequest,
			"invalid status",
			map[string]any{
				"provided": status,
				"allowed":  config.AllowedJobStatuses,
			},
		)
	}
	limit, err := pageLimit(limit, offset)
	if err != nil {
		return nil, err
	}

	jobs, total, err := s.queue.ListByStatus(ctx, st, limit, offset)
	if err != nil {
		return nil, common.ToAPIError(err, "list jobs")
	}

	dtos := make([]dto.JobResponseDTO, len(jobs))
	for i := range jobs {
		dtos[i] = toResponse(&jobs[i])
	}
	return &dto.JobListDTO{Jobs: dtos, Total: total, Limit: limit, Offset: offset}, nil
}

// RequeueJob hands a dead job back to the queue with a fresh attempt budget.
func (s *JobService) RequeueJob(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	if err := s.queue.Requeue(ctx, id); err != nil {
		return common.ToAPIError(err, "requeue job")
	}
	return nil
}

// EnqueueAlert queues a manager alert. A missing-activity-log alert already
// queued for the same offering and week is reported as a duplicate.
func (s *JobService) EnqueueAlert(ctx context.Context, req *dto.EnqueueAlertDTO) (*dto.EnqueuedDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	if req.AlertType == config.AlertMissingActivityLog && req.WeekNumber < 1 {
		return nil, common.NewAPIError(
			http.StatusBadRequest,
			"validation failed",
			map[string]any{"WeekNumber": "failed required"},
		)
	}

	id, err := s.scheduler.EnqueueManagerAlert(ctx, dto.ManagerAlertPayload{
		FacilitatorID:    req.FacilitatorID,
		CourseOfferingID: req.CourseOfferingID,
		AlertType:        req.AlertType,
		WeekNumber:       req.WeekNumber,
	})
	if err != nil {
		return nil, common.ToAPIError(err, "enqueue alert")
	}
	return &dto.EnqueuedDTO{ID: id, Duplicate: id == ""}, nil
}

// TriggerSweep queues a one-off deadline sweep outside the weekly schedule.
func (s *JobService) TriggerSweep(ctx context.Context) (*dto.EnqueuedDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	id, err := s.scheduler.EnqueueSweepNow(ctx)
	if err != nil {
		return nil, common.ToAPIError(err, "enqueue sweep")
	}
	return &dto.EnqueuedDTO{ID: id}, nil
}

// Stats counts jobs per status. Statuses without jobs are reported as zero.
func (s *JobService) Stats(ctx context.Context) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	counts, err := s.queue.Stats(ctx)
	if err != nil {
		return nil, common.ToAPIError(err, "job stats")
	}

	out := make(map[string]int64, len(config.AllowedJobStatuses))
	for _, st := range config.AllowedJobStatuses {
		out[string(st)] = counts[st]
	}
	return out, nil
}

// ListNotifications pages through the delivered notifications still inside
// the retention window, newest first.
func (s *JobService) ListNotifications(ctx context.Context, limit, offset int) (*dto.NotificationListDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	limit, err := pageLimit(limit, offset)
	if err != nil {
		return nil, err
	}

	entries, total, err := s.notifications.List(ctx, limit, offset)
	if err != nil {
		return nil, common.ToAPIError(err, "list notifications")
	}

	dtos := make([]dto.NotificationResponseDTO, len(entries))
	for i, e := range entries {
		dtos[i] = dto.NotificationResponseDTO{
			ID:               e.ID,
			JobID:            e.JobID,
			Type:             string(e.Type),
			TemplateKey:      e.TemplateKey,
			FacilitatorID:    e.FacilitatorID,
			CourseOfferingID: e.CourseOfferingID,
			WeekNumber:       e.WeekNumber,
			Recipient:        e.Recipient,
			Status:           e.Status,
			SentAt:           e.SentAt,
		}
	}
	return &dto.NotificationListDTO{Notifications: dtos, Total: total, Limit: limit, Offset: offset}, nil
}

// pageLimit applies the default and maximum page size.
func pageLimit(limit, offset int) (int, error) {
	if limit < 0 || offset < 0 {
		return 0, common.Errf(http.StatusBadRequest, "limit and offset must not be negative")
	}
	if limit == 0 {
		limit = defaultListLimit
	}
	return min(limit, maxListLimit), nil
}

func toResponse(job *models.Job) dto.JobResponseDTO {
	return dto.JobResponseDTO{
		ID:             job.ID,
		Type:           string(job.Type),
		Payload:        json.RawMessage(job.Payload),
		Status:         string(job.Status),
		Attempts:       job.Attempts,
		MaxAttempts:    job.MaxAttempts,
		NotBefore:      job.NotBefore,
		Recurrence:     job.Recurrence,
		LeasedBy:       job.LeasedBy,
		LeaseExpiresAt: job.LeaseExpiresAt,
		LastError:      job.LastError,
		CompletedAt:    job.CompletedAt,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}
