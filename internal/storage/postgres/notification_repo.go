package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/models"
	"github.com/joshu-sajeev/coursenotify/internal/notify"
	"gorm.io/gorm"
)

// NotificationRepository stores the record of delivered notifications.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

var _ notify.NotificationRecorder = (*NotificationRepository)(nil)

func (r *NotificationRepository) Record(ctx context.Context, entry *models.NotificationLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("record notification: %w", storageErr(err))
	}
	return nil
}

// List pages through the records, newest first.
func (r *NotificationRepository) List(ctx context.Context, limit, offset int) ([]models.NotificationLog, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.NotificationLog{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", storageErr(err))
	}

	var entries []models.NotificationLog
	if err := db.Order("sent_at DESC, id DESC").Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", storageErr(err))
	}
	return entries, total, nil
}

// PruneBefore deletes the records sent before cutoff.
func (r *NotificationRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("sent_at < ?", cutoff).Delete(&models.NotificationLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune notifications: %w", storageErr(res.Error))
	}
	return res.RowsAffected, nil
}
