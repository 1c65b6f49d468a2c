package job

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/dto"
	"github.com/joshu-sajeev/coursenotify/internal/models"
)

// AdminQueue is the operator side of the job queue.
type AdminQueue interface {
	Get(ctx context.Context, id string) (*models.Job, error)
	ListByStatus(ctx context.Context, status config.JobStatus, limit, offset int) ([]models.Job, int64, error)
	Requeue(ctx context.Context, id string) error
	Stats(ctx context.Context) (map[config.JobStatus]int64, error)
}

// AlertScheduler enqueues notification jobs on behalf of API callers.
type AlertScheduler interface {
	EnqueueManagerAlert(ctx context.Context, p dto.ManagerAlertPayload) (string, error)
	EnqueueSweepNow(ctx context.Context) (string, error)
}

// NotificationLog is the record of delivered notifications.
type NotificationLog interface {
	List(ctx context.Context, limit, offset int) ([]models.NotificationLog, int64, error)
}

// JobServiceInterface defines the contract for job business logic operations.
type JobServiceInterface interface {
	GetJob(ctx context.Context, id string) (*dto.JobResponseDTO, error)
	ListJobs(ctx context.Context, status string, limit, offset int) (*dto.JobListDTO, error)
	RequeueJob(ctx context.Context, id string) error
	EnqueueAlert(ctx context.Context, req *dto.EnqueueAlertDTO) (*dto.EnqueuedDTO, error)
	TriggerSweep(ctx context.Context) (*dto.EnqueuedDTO, error)
	Stats(ctx context.Context) (map[string]int64, error)
	ListNotifications(ctx context.Context, limit, offset int) (*dto.NotificationListDTO, error)
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	EnqueueAlert(c *gin.Context)
	TriggerSweep(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Requeue(c *gin.Context)
	Stats(c *gin.Context)
	ListNotifications(c *gin.Context)
}
