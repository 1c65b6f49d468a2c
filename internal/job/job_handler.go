package job

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshu-sajeev/coursenotify/common"
	"github.com/joshu-sajeev/coursenotify/internal/dto"
	"github.com/joshu-sajeev/coursenotify/middleware"
)

type JobHandler struct {
	service JobServiceInterface
}

func NewJobHandler(s JobServiceInterface) *JobHandler {
	return &JobHandler{service: s}
}

var _ JobHandlerInterface = (*JobHandler)(nil)

// RegisterRoutes mounts the admin endpoints on r.
func (h *JobHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/alerts", h.EnqueueAlert)
	r.POST("/sweeps", h.TriggerSweep)
	r.GET("/jobs", h.List)
	r.GET("/jobs/:id", h.Get)
	r.POST("/jobs/:id/requeue", h.Requeue)
	r.GET("/stats", h.Stats)
	r.GET("/notifications", h.ListNotifications)
}

// EnqueueAlert handles HTTP requests for queueing a manager alert.
// It returns HTTP 202 with the job ID, or with duplicate=true when the
// same missing-activity-log alert is already queued.
func (h *JobHandler) EnqueueAlert(c *gin.Context) {
	var req dto.EnqueueAlertDTO

	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	resp, err := h.service.EnqueueAlert(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// TriggerSweep queues a deadline sweep that runs as soon as a worker is free.
func (h *JobHandler) TriggerSweep(c *gin.Context) {
	resp, err := h.service.TriggerSweep(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// Get handles HTTP requests to fetch a job by its ID.
func (h *JobHandler) Get(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	resp, err := h.service.GetJob(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List handles HTTP requests to page through jobs in one status.
// The status defaults to dead, the dead-letter view operators start from.
func (h *JobHandler) List(c *gin.Context) {
	status := c.DefaultQuery("status", "dead")

	limit, offset, ok := paging(c)
	if !ok {
		return
	}

	jobs, err := h.service.ListJobs(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// Requeue hands a dead job back to the queue and returns HTTP 204.
func (h *JobHandler) Requeue(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}

	if err := h.service.RequeueJob(c.Request.Context(), id); err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.Status(http.StatusNoContent)
}

// Stats returns the number of jobs per status.
func (h *JobHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListNotifications returns the delivered notifications, newest first.
func (h *JobHandler) ListNotifications(c *gin.Context) {
	limit, offset, ok := paging(c)
	if !ok {
		return
	}

	resp, err := h.service.ListNotifications(c.Request.Context(), limit, offset)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, resp)
}

func paging(c *gin.Context) (limit, offset int, ok bool) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "invalid limit"))
		c.Abort()
		return 0, 0, false
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "invalid offset"))
		c.Abort()
		return 0, 0, false
	}
	return limit, offset, true
}

func jobID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "invalid ID"))
		c.Abort()
		return "", false
	}
	return id, true
}
