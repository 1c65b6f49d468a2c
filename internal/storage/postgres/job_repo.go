package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joshu-sajeev/coursenotify/common"
	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/models"
	"github.com/joshu-sajeev/coursenotify/internal/queue"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// leaseScan bounds how many candidate rows one lease transaction inspects.
const leaseScan = 10

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

var _ queue.Store = (*JobRepository)(nil)

func storageErr(err error) error {
	return fmt.Errorf("%w: %w", common.ErrStorage, err)
}

// Create inserts a new job. A job whose unique key is already taken is not
// inserted and Create reports false without an error.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(job)
	if res.Error != nil {
		return false, fmt.Errorf("create job: %w", storageErr(res.Error))
	}
	return res.RowsAffected == 1, nil
}

// Get retrieves a single job by its ID. Returns common.ErrNotFound when the
// job does not exist.
func (r *JobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("get job: %w", storageErr(err))
	}
	return &job, nil
}

// LeaseNext claims the oldest visible job of the given types for workerID.
// Candidates are selected with FOR UPDATE SKIP LOCKED on Postgres so
// concurrent workers never block on each other, and every claim is a
// conditional update on the state that was read. Returns (nil, nil) when no
// job is available.
func (r *JobRepository) LeaseNext(
	ctx context.Context,
	types []config.JobType,
	workerID, token string,
	now time.Time,
	ttl time.Duration,
) (*models.Job, error) {
	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = string(t)
	}

	var leased *models.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("type IN ?", typeNames).
			Where(
				tx.Where("status IN ? AND not_before <= ?",
					[]string{string(config.JobStatusPending), string(config.JobStatusDelayed)}, now).
					Or("status = ? AND lease_expires_at <= ? AND attempts < max_attempts",
						string(config.JobStatusActive), now),
			).
			Order("not_before ASC, created_at ASC").
			Limit(leaseScan)
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var candidates []models.Job
		if err := q.Find(&candidates).Error; err != nil {
			return err
		}

		expiresAt := now.Add(ttl)
		for i := range candidates {
			c := &candidates[i]

			guard := tx.Model(&models.Job{}).
				Where("id = ? AND status = ? AND attempts = ?", c.ID, string(c.Status), c.Attempts)
			if c.LeaseToken == nil {
				guard = guard.Where("lease_token IS NULL")
			} else {
				guard = guard.Where("lease_token = ?", *c.LeaseToken)
			}

			res := guard.Updates(map[string]any{
				"status":           string(config.JobStatusActive),
				"attempts":         gorm.Expr("attempts + ?", 1),
				"lease_token":      token,
				"leased_by":        workerID,
				"lease_expires_at": expiresAt,
				"updated_at":       now,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				continue
			}

			c.Status = config.JobStatusActive
			c.Attempts++
			c.LeaseToken = &token
			c.LeasedBy = workerID
			c.LeaseExpiresAt = &expiresAt
			c.UpdatedAt = now
			leased = c
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lease job: %w", storageErr(err))
	}
	return leased, nil
}

func (r *JobRepository) leased(tx *gorm.DB, id, token string) *gorm.DB {
	return tx.Model(&models.Job{}).
		Where("id = ? AND lease_token = ? AND status = ?", id, token, string(config.JobStatusActive))
}

// insertNext adds the next occurrence of a recurring job. An occurrence that
// already exists under the same unique key is left alone.
func insertNext(tx *gorm.DB, next *models.Job) error {
	if next == nil {
		return nil
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(next).Error
}

// Complete marks a leased job Completed and inserts next, if any, in the
// same transaction. Returns common.ErrLeaseLost when the lease no longer
// holds.
func (r *JobRepository) Complete(ctx context.Context, id, token string, now time.Time, next *models.Job) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := r.leased(tx, id, token).Updates(map[string]any{
			"status":           string(config.JobStatusCompleted),
			"completed_at":     now,
			"lease_token":      nil,
			"lease_expires_at": nil,
			"last_error":       "",
			"updated_at":       now,
		})
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected != 1 {
			return common.ErrLeaseLost
		}
		if err := insertNext(tx, next); err != nil {
			return storageErr(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	return nil
}

// Reschedule moves a leased job back to Delayed until notBefore.
func (r *JobRepository) Reschedule(ctx context.Context, id, token string, notBefore time.Time, errMsg string, now time.Time) error {
	res := r.leased(r.db.WithContext(ctx), id, token).Updates(map[string]any{
		"status":           string(config.JobStatusDelayed),
		"not_before":       notBefore,
		"last_error":       errMsg,
		"lease_token":      nil,
		"leased_by":        "",
		"lease_expires_at": nil,
		"updated_at":       now,
	})
	if res.Error != nil {
		return fmt.Errorf("reschedule job %s: %w", id, storageErr(res.Error))
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("reschedule job %s: %w", id, common.ErrLeaseLost)
	}
	return nil
}

// Bury marks a leased job Dead and inserts next, if any, in the same
// transaction.
func (r *JobRepository) Bury(ctx context.Context, id, token, errMsg string, now time.Time, next *models.Job) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := r.leased(tx, id, token).Updates(map[string]any{
			"status":           string(config.JobStatusDead),
			"last_error":       errMsg,
			"lease_token":      nil,
			"lease_expires_at": nil,
			"updated_at":       now,
		})
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected != 1 {
			return common.ErrLeaseLost
		}
		if err := insertNext(tx, next); err != nil {
			return storageErr(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bury job %s: %w", id, err)
	}
	return nil
}

// Extend moves the lease expiry of a held lease to until.
func (r *JobRepository) Extend(ctx context.Context, id, token string, until time.Time) error {
	res := r.leased(r.db.WithContext(ctx), id, token).Update("lease_expires_at", until)
	if res.Error != nil {
		return fmt.Errorf("extend lease %s: %w", id, storageErr(res.Error))
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("extend lease %s: %w", id, common.ErrLeaseLost)
	}
	return nil
}

// ListExpired returns Active jobs whose lease expired at or before now.
func (r *JobRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Job, error) {
	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("status = ? AND lease_expires_at <= ?", string(config.JobStatusActive), now).
		Order("lease_expires_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list expired leases: %w", storageErr(err))
	}
	return jobs, nil
}

// Release hands an expired lease back to the queue as Pending.
func (r *JobRepository) Release(ctx context.Context, id, token string, now time.Time) error {
	res := r.leased(r.db.WithContext(ctx), id, token).Updates(map[string]any{
		"status":           string(config.JobStatusPending),
		"not_before":       now,
		"lease_token":      nil,
		"leased_by":        "",
		"lease_expires_at": nil,
		"updated_at":       now,
	})
	if res.Error != nil {
		return fmt.Errorf("release job %s: %w", id, storageErr(res.Error))
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("release job %s: %w", id, common.ErrLeaseLost)
	}
	return nil
}

// ListByStatus pages through jobs in one status, newest first, and returns
// the total number of jobs in that status.
func (r *JobRepository) ListByStatus(ctx context.Context, status config.JobStatus, limit, offset int) ([]models.Job, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.Job{}).Where("status = ?", string(status))

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", storageErr(err))
	}

	var jobs []models.Job
	if err := db.Order("updated_at DESC, id ASC").Limit(limit).Offset(offset).Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", storageErr(err))
	}
	return jobs, total, nil
}

// Requeue makes a Dead or Failed job Pending again with a fresh attempt
// budget. The requeued job is detached from its recurrence chain, whose next
// occurrence was inserted when it died.
func (r *JobRepository) Requeue(ctx context.Context, id string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status IN ?", id,
			[]string{string(config.JobStatusDead), string(config.JobStatusFailed)}).
		Updates(map[string]any{
			"status":      string(config.JobStatusPending),
			"attempts":    0,
			"not_before":  now,
			"recurrence":  "",
			"unique_key":  nil,
			"leased_by":   "",
			"lease_token": nil,
			"updated_at":  now,
		})
	if res.Error != nil {
		return fmt.Errorf("requeue job %s: %w", id, storageErr(res.Error))
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// distinguish a missing job from one in the wrong state
	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("requeue job %s in status %s: %w", id, job.Status, common.ErrInvalidState)
}

// CountByStatus returns the number of jobs per status.
func (r *JobRepository) CountByStatus(ctx context.Context) (map[config.JobStatus]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count jobs by status: %w", storageErr(err))
	}

	counts := make(map[config.JobStatus]int64, len(rows))
	for _, row := range rows {
		counts[config.JobStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// FindLiveRecurring returns a non-terminal recurring job of the given type,
// or (nil, nil) when none exists.
func (r *JobRepository) FindLiveRecurring(ctx context.Context, jobType config.JobType) (*models.Job, error) {
	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("type = ? AND recurrence <> '' AND status IN ?", string(jobType), []string{
			string(config.JobStatusPending),
			string(config.JobStatusDelayed),
			string(config.JobStatusActive),
		}).
		Order("not_before ASC").
		Limit(1).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("find recurring job: %w", storageErr(err))
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}
