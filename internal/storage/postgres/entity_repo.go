package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joshu-sajeev/coursenotify/common"
	"github.com/joshu-sajeev/coursenotify/internal/models"
	"github.com/joshu-sajeev/coursenotify/internal/notify"
	"gorm.io/gorm"
)

// EntityRepository reads the course administration tables.
type EntityRepository struct {
	db *gorm.DB
}

func NewEntityRepository(db *gorm.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

var _ notify.EntityStore = (*EntityRepository)(nil)

// FindActiveCourseOfferings returns every active offering with its module
// and facilitator loaded.
func (r *EntityRepository) FindActiveCourseOfferings(ctx context.Context) ([]models.CourseOffering, error) {
	var offerings []models.CourseOffering
	if err := r.db.WithContext(ctx).
		Preload("Module").
		Preload("Facilitator").
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&offerings).Error; err != nil {
		return nil, fmt.Errorf("find active course offerings: %w", storageErr(err))
	}
	return offerings, nil
}

func (r *EntityRepository) FindCourseOffering(ctx context.Context, id uint) (*models.CourseOffering, error) {
	var offering models.CourseOffering
	if err := r.db.WithContext(ctx).
		Preload("Module").
		Preload("Facilitator").
		First(&offering, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("course offering %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("find course offering: %w", storageErr(err))
	}
	return &offering, nil
}

func (r *EntityRepository) FindFacilitator(ctx context.Context, id uint) (*models.Facilitator, error) {
	var facilitator models.Facilitator
	if err := r.db.WithContext(ctx).First(&facilitator, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("facilitator %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("find facilitator: %w", storageErr(err))
	}
	return &facilitator, nil
}

// FindActivityTracker returns the activity log row for an offering and week,
// or (nil, nil) when the facilitator has not started one.
func (r *EntityRepository) FindActivityTracker(ctx context.Context, offeringID uint, week int) (*models.ActivityTracker, error) {
	var trackers []models.ActivityTracker
	if err := r.db.WithContext(ctx).
		Where("allocation_id = ? AND week_number = ?", offeringID, week).
		Limit(1).
		Find(&trackers).Error; err != nil {
		return nil, fmt.Errorf("find activity tracker: %w", storageErr(err))
	}
	if len(trackers) == 0 {
		return nil, nil
	}
	return &trackers[0], nil
}

func (r *EntityRepository) FindActiveManagers(ctx context.Context) ([]models.Manager, error) {
	var managers []models.Manager
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&managers).Error; err != nil {
		return nil, fmt.Errorf("find active managers: %w", storageErr(err))
	}
	return managers, nil
}

// RecordReminderSent bumps the reminder bookkeeping on an existing tracker
// row. It never creates one, so a missing row reports false.
func (r *EntityRepository) RecordReminderSent(ctx context.Context, offeringID uint, week int, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ActivityTracker{}).
		Where("allocation_id = ? AND week_number = ?", offeringID, week).
		Updates(map[string]any{
			"last_reminder_sent_at": at,
			"reminder_count":        gorm.Expr("reminder_count + ?", 1),
		})
	if res.Error != nil {
		return false, fmt.Errorf("record reminder sent: %w", storageErr(res.Error))
	}
	return res.RowsAffected > 0, nil
}
