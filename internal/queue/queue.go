// Package queue is a durable job queue with leasing, retry with backoff and
// recurring jobs, persisted through a Store.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/coursenotify/common"
	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/metrics"
	"github.com/joshu-sajeev/coursenotify/internal/models"
	"github.com/joshu-sajeev/coursenotify/internal/wakeup"
	"gorm.io/datatypes"
)

// ErrDuplicateJob is returned by Enqueue when a job with the same unique key
// already exists.
var ErrDuplicateJob = errors.New("duplicate job")

const (
	defaultLeaseTTL = time.Minute
	defaultPollMin  = time.Second
	defaultPollMax  = 30 * time.Second
	reclaimBatch    = 100
)

// Store persists jobs. Implementations must make every lease transition a
// conditional update so that one job has at most one live lease.
type Store interface {
	Create(ctx context.Context, job *models.Job) (bool, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	LeaseNext(ctx context.Context, types []config.JobType, workerID, token string, now time.Time, ttl time.Duration) (*models.Job, error)
	Complete(ctx context.Context, id, token string, now time.Time, next *models.Job) error
	Reschedule(ctx context.Context, id, token string, notBefore time.Time, errMsg string, now time.Time) error
	Bury(ctx context.Context, id, token, errMsg string, now time.Time, next *models.Job) error
	Extend(ctx context.Context, id, token string, until time.Time) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Job, error)
	Release(ctx context.Context, id, token string, now time.Time) error
	ListByStatus(ctx context.Context, status config.JobStatus, limit, offset int) ([]models.Job, int64, error)
	Requeue(ctx context.Context, id string, now time.Time) error
	CountByStatus(ctx context.Context) (map[config.JobStatus]int64, error)
	FindLiveRecurring(ctx context.Context, jobType config.JobType) (*models.Job, error)
}

// Lease is a worker's time-bounded claim on a job.
type Lease struct {
	Job       *models.Job
	Token     string
	ExpiresAt time.Time
}

type Queue struct {
	store    Store
	notifier wakeup.Notifier
	logger   *slog.Logger
	now      func() time.Time
	leaseTTL time.Duration
	pollMin  time.Duration
	pollMax  time.Duration
}

func New(store Store, opts ...QueueOption) *Queue {
	q := &Queue{
		store:    store,
		notifier: wakeup.Nop{},
		logger:   slog.Default(),
		now:      time.Now,
		leaseTTL: defaultLeaseTTL,
		pollMin:  defaultPollMin,
		pollMax:  defaultPollMax,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.pollMax < q.pollMin {
		q.pollMax = q.pollMin
	}
	return q
}

func (q *Queue) clock() time.Time {
	return q.now().UTC().Truncate(time.Microsecond)
}

func (q *Queue) LeaseTTL() time.Duration { return q.leaseTTL }

// Enqueue stores a new job and returns its ID. The payload is marshalled to
// JSON. A job without delay is Pending and immediately leasable; a delayed
// job is Delayed until its delay elapses.
func (q *Queue) Enqueue(ctx context.Context, jobType config.JobType, payload any, opts ...Option) (string, error) {
	cfg := enqueueConfig{
		maxAttempts: 1,
		backoff:     Exponential(time.Second),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxAttempts < 1 {
		return "", fmt.Errorf("max attempts must be at least 1, got %d", cfg.maxAttempts)
	}

	var rec *Recurrence
	if cfg.recurrence != "" {
		r, err := ParseRecurrence(cfg.recurrence, cfg.recurrenceTZ)
		if err != nil {
			return "", err
		}
		rec = &r
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", jobType, err)
	}

	now := q.clock()
	notBefore := now.Add(cfg.delay)
	if !cfg.runAt.IsZero() {
		notBefore = cfg.runAt.UTC().Truncate(time.Microsecond)
	}

	job := &models.Job{
		ID:           uuid.NewString(),
		Type:         jobType,
		Payload:      datatypes.JSON(raw),
		Status:       config.JobStatusPending,
		MaxAttempts:  cfg.maxAttempts,
		NotBefore:    notBefore,
		BackoffKind:  cfg.backoff.Kind,
		BackoffDelay: cfg.backoff.Delay,
		UniqueKey:    cfg.uniqueKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if notBefore.After(now) {
		job.Status = config.JobStatusDelayed
	}
	if rec != nil {
		job.Recurrence = rec.Expr
		job.RecurrenceTZ = rec.Timezone
	}

	created, err := q.store.Create(ctx, job)
	if err != nil {
		return "", err
	}
	if !created {
		return "", fmt.Errorf("%s job %q: %w", jobType, *cfg.uniqueKey, ErrDuplicateJob)
	}

	metrics.JobEnqueued(string(jobType))
	q.logger.Debug("job enqueued",
		"job_id", job.ID, "type", jobType, "status", job.Status, "not_before", notBefore)

	if job.Status == config.JobStatusPending {
		q.notifier.Notify(string(jobType))
	}
	return job.ID, nil
}

// TryLease claims the next visible job of the given types without waiting.
// It returns (nil, nil) when nothing is available.
func (q *Queue) TryLease(ctx context.Context, workerID string, types ...config.JobType) (*Lease, error) {
	if len(types) == 0 {
		return nil, errors.New("lease: at least one job type is required")
	}

	token := uuid.NewString()
	job, err := q.store.LeaseNext(ctx, types, workerID, token, q.clock(), q.leaseTTL)
	if err != nil || job == nil {
		return nil, err
	}

	metrics.JobLeased(string(job.Type))
	return &Lease{Job: job, Token: token, ExpiresAt: *job.LeaseExpiresAt}, nil
}

// Lease blocks until a job of the given types can be claimed or ctx is done.
// Between attempts it waits with an idle backoff, cut short when a new job
// of a matching type is announced. Storage errors are logged and retried.
func (q *Queue) Lease(ctx context.Context, workerID string, types ...config.JobType) (*Lease, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	wake, unsubscribe := q.notifier.Subscribe(names...)
	defer unsubscribe()

	wait := q.pollMin
	for {
		lease, err := q.TryLease(ctx, workerID, types...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			q.logger.Warn("lease failed", "worker", workerID, "error", err)
		}
		if lease != nil {
			return lease, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-wake:
			timer.Stop()
			wait = q.pollMin
		case <-timer.C:
			wait = min(wait*2, q.pollMax)
		}
	}
}

// Ack completes a leased job. For a recurring job the next occurrence is
// enqueued in the same transaction.
func (q *Queue) Ack(ctx context.Context, lease *Lease) error {
	now := q.clock()
	next, err := q.nextOccurrence(lease.Job, now)
	if err != nil {
		q.logger.Error("recurrence dropped", "job_id", lease.Job.ID, "error", err)
	}

	if err := q.store.Complete(ctx, lease.Job.ID, lease.Token, now, next); err != nil {
		return err
	}

	metrics.JobCompleted(string(lease.Job.Type))
	if next != nil {
		q.announce(next, now)
	}
	return nil
}

// Fail records a failed attempt. While attempts remain the job is Delayed by
// its backoff; otherwise it is Dead and waits for an operator. The resulting
// status is returned.
func (q *Queue) Fail(ctx context.Context, lease *Lease, cause error) (config.JobStatus, error) {
	job := lease.Job
	now := q.clock()
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}

	if job.Attempts < job.MaxAttempts {
		backoff := Backoff{Kind: job.BackoffKind, Delay: job.BackoffDelay}
		notBefore := now.Add(backoff.Next(job.Attempts))
		if err := q.store.Reschedule(ctx, job.ID, lease.Token, notBefore, errMsg, now); err != nil {
			return "", err
		}
		metrics.JobRetried(string(job.Type))
		return config.JobStatusDelayed, nil
	}

	next, err := q.nextOccurrence(job, now)
	if err != nil {
		q.logger.Error("recurrence dropped", "job_id", job.ID, "error", err)
	}
	if err := q.store.Bury(ctx, job.ID, lease.Token, errMsg, now, next); err != nil {
		return "", err
	}

	metrics.JobDead(string(job.Type))
	q.logger.Warn("job is dead",
		"job_id", job.ID, "type", job.Type, "attempts", job.Attempts, "error", errMsg)
	if next != nil {
		q.announce(next, now)
	}
	return config.JobStatusDead, nil
}

// Extend pushes the lease expiry to now+ttl.
func (q *Queue) Extend(ctx context.Context, lease *Lease, ttl time.Duration) error {
	until := q.clock().Add(ttl)
	if err := q.store.Extend(ctx, lease.Job.ID, lease.Token, until); err != nil {
		return err
	}
	lease.ExpiresAt = until
	return nil
}

// ReclaimExpired releases Active jobs whose lease expired. Jobs with attempts
// left go back to Pending; the others are Dead.
func (q *Queue) ReclaimExpired(ctx context.Context) (released, buried int, err error) {
	now := q.clock()
	expired, err := q.store.ListExpired(ctx, now, reclaimBatch)
	if err != nil {
		return 0, 0, err
	}

	for i := range expired {
		job := &expired[i]
		if job.LeaseToken == nil {
			continue
		}

		if job.Attempts < job.MaxAttempts {
			err = q.store.Release(ctx, job.ID, *job.LeaseToken, now)
			if err == nil {
				released++
				metrics.LeaseReclaimed()
				q.notifier.Notify(string(job.Type))
			}
		} else {
			next, nerr := q.nextOccurrence(job, now)
			if nerr != nil {
				q.logger.Error("recurrence dropped", "job_id", job.ID, "error", nerr)
			}
			err = q.store.Bury(ctx, job.ID, *job.LeaseToken, "lease expired", now, next)
			if err == nil {
				buried++
				metrics.JobDead(string(job.Type))
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, common.ErrLeaseLost):
			// re-leased or completed since it was listed
		default:
			return released, buried, err
		}
	}
	return released, buried, nil
}

// EnsureRecurring makes sure a live occurrence of a recurring job of the
// given type exists, enqueueing the first occurrence at the next activation
// of expr otherwise. It is safe to call from every process at start-up.
func (q *Queue) EnsureRecurring(ctx context.Context, jobType config.JobType, payload any, expr, timezone string, opts ...Option) (string, error) {
	rec, err := ParseRecurrence(expr, timezone)
	if err != nil {
		return "", err
	}

	live, err := q.store.FindLiveRecurring(ctx, jobType)
	if err != nil {
		return "", err
	}
	if live != nil {
		return live.ID, nil
	}

	runAt := rec.Next(q.clock())
	opts = append(opts,
		WithRunAt(runAt),
		WithRecurrence(expr, timezone),
		WithUniqueKey(occurrenceKey(jobType, runAt)),
	)

	id, err := q.Enqueue(ctx, jobType, payload, opts...)
	if errors.Is(err, ErrDuplicateJob) {
		// another process registered the same occurrence
		live, err = q.store.FindLiveRecurring(ctx, jobType)
		if err != nil {
			return "", err
		}
		if live != nil {
			return live.ID, nil
		}
		return "", fmt.Errorf("register %s: %w", jobType, ErrDuplicateJob)
	}
	return id, err
}

func (q *Queue) Get(ctx context.Context, id string) (*models.Job, error) {
	return q.store.Get(ctx, id)
}

func (q *Queue) ListByStatus(ctx context.Context, status config.JobStatus, limit, offset int) ([]models.Job, int64, error) {
	return q.store.ListByStatus(ctx, status, limit, offset)
}

// Requeue gives a Dead job a fresh attempt budget and makes it leasable now.
func (q *Queue) Requeue(ctx context.Context, id string) error {
	if err := q.store.Requeue(ctx, id, q.clock()); err != nil {
		return err
	}

	job, err := q.store.Get(ctx, id)
	if err == nil {
		q.notifier.Notify(string(job.Type))
	}
	return nil
}

func (q *Queue) Stats(ctx context.Context) (map[config.JobStatus]int64, error) {
	return q.store.CountByStatus(ctx)
}

func occurrenceKey(jobType config.JobType, at time.Time) string {
	return string(jobType) + "@" + strconv.FormatInt(at.Unix(), 10)
}

// nextOccurrence builds the job that follows a recurring job, or nil for a
// one-off job.
func (q *Queue) nextOccurrence(job *models.Job, now time.Time) (*models.Job, error) {
	if !job.Recurring() {
		return nil, nil
	}

	rec, err := ParseRecurrence(job.Recurrence, job.RecurrenceTZ)
	if err != nil {
		return nil, err
	}

	// never schedule before the run that just finished
	from := now
	if job.NotBefore.After(from) {
		from = job.NotBefore
	}
	runAt := rec.Next(from).Truncate(time.Microsecond)
	key := occurrenceKey(job.Type, runAt)

	status := config.JobStatusDelayed
	if !runAt.After(now) {
		status = config.JobStatusPending
	}

	return &models.Job{
		ID:           uuid.NewString(),
		Type:         job.Type,
		Payload:      job.Payload,
		Status:       status,
		MaxAttempts:  job.MaxAttempts,
		NotBefore:    runAt,
		BackoffKind:  job.BackoffKind,
		BackoffDelay: job.BackoffDelay,
		Recurrence:   job.Recurrence,
		RecurrenceTZ: job.RecurrenceTZ,
		UniqueKey:    &key,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (q *Queue) announce(job *models.Job, now time.Time) {
	metrics.JobEnqueued(string(job.Type))
	if !job.NotBefore.After(now) {
		q.notifier.Notify(string(job.Type))
	}
}
