package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joshu-sajeev/coursenotify/common"
	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/metrics"
	"github.com/joshu-sajeev/coursenotify/internal/models"
	"github.com/joshu-sajeev/coursenotify/internal/notify"
	"github.com/joshu-sajeev/coursenotify/internal/queue"
)

// Queue is the part of the job queue a worker consumes.
type Queue interface {
	Lease(ctx context.Context, workerID string, types ...config.JobType) (*queue.Lease, error)
	Ack(ctx context.Context, lease *queue.Lease) error
	Fail(ctx context.Context, lease *queue.Lease, cause error) (config.JobStatus, error)
	Extend(ctx context.Context, lease *queue.Lease, ttl time.Duration) error
	LeaseTTL() time.Duration
}

// Worker leases jobs of its processor's type one at a time.
type Worker struct {
	ID             string
	q              Queue
	processor      notify.Processor
	processTimeout time.Duration
	logger         *slog.Logger
}

func NewWorker(id string, q Queue, p notify.Processor, processTimeout time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		ID:             id,
		q:              q,
		processor:      p,
		processTimeout: processTimeout,
		logger:         logger.With("worker", id, "type", p.Type()),
	}
}

// Run leases and processes jobs until leaseCtx is done. workCtx bounds the
// job in flight: once it is cancelled the job is abandoned and its lease
// left to expire.
func (w *Worker) Run(leaseCtx, workCtx context.Context) {
	for {
		lease, err := w.q.Lease(leaseCtx, w.ID, w.processor.Type())
		if err != nil {
			if leaseCtx.Err() == nil {
				w.logger.Error("worker stopped", "error", err)
			}
			return
		}
		w.handle(workCtx, lease)
	}
}

func (w *Worker) handle(ctx context.Context, lease *queue.Lease) {
	job := lease.Job
	log := w.logger.With("job_id", job.ID, "attempt", job.Attempts, "max_attempts", job.MaxAttempts)

	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, w.processTimeout)
	stopHeartbeat := w.heartbeat(jobCtx, cancel, lease, log)
	outcome, err := w.process(jobCtx, job)
	lost := stopHeartbeat()
	cancel()
	metrics.ObserveJob(string(job.Type), time.Since(start))

	if ctx.Err() != nil {
		log.Warn("job abandoned on shutdown, lease will expire")
		return
	}
	if lost {
		log.Warn("lease lost while processing, result dropped", "outcome", outcome, "error", err)
		return
	}

	switch {
	case err == nil:
		if aerr := w.q.Ack(ctx, lease); aerr != nil {
			log.Error("failed to acknowledge job", "outcome", outcome, "error", aerr)
			return
		}
		log.Info("job completed", "outcome", outcome)

	case !common.Retryable(err):
		if aerr := w.q.Ack(ctx, lease); aerr != nil {
			log.Error("failed to acknowledge job", "outcome", outcome, "error", aerr)
			return
		}
		log.Warn("job failed permanently", "error", err)

	default:
		status, ferr := w.q.Fail(ctx, lease, err)
		if ferr != nil {
			log.Error("failed to record job failure", "cause", err, "error", ferr)
			return
		}
		log.Warn("job failed", "status", status, "error", err)
	}
}

// heartbeat extends the lease every third of its TTL while the job runs. A
// lost lease cancels the job since another worker may hold it now. The
// returned func stops the heartbeat and reports whether the lease was lost.
func (w *Worker) heartbeat(ctx context.Context, cancel context.CancelFunc, lease *queue.Lease, log *slog.Logger) func() bool {
	ttl := w.q.LeaseTTL()
	if ttl <= 0 {
		return func() bool { return false }
	}

	var (
		wg   sync.WaitGroup
		lost bool
	)
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				err := w.q.Extend(ctx, lease, ttl)
				if errors.Is(err, common.ErrLeaseLost) {
					lost = true
					cancel()
					return
				}
				if err != nil && ctx.Err() == nil {
					log.Warn("lease heartbeat failed", "error", err)
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() bool {
		close(done)
		wg.Wait()
		return lost
	}
}

func (w *Worker) process(ctx context.Context, job *models.Job) (outcome notify.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = notify.Failed, fmt.Errorf("processor panic: %v", r)
		}
	}()
	return w.processor.Process(ctx, job)
}
