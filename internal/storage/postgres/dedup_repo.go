package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/dedup"
	"github.com/joshu-sajeev/coursenotify/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DedupRepository struct {
	db *gorm.DB
}

func NewDedupRepository(db *gorm.DB) *DedupRepository {
	return &DedupRepository{db: db}
}

var _ dedup.Store = (*DedupRepository)(nil)

func whereKey(db *gorm.DB, key dedup.Key) *gorm.DB {
	return db.Where("facilitator_id = ? AND course_offering_id = ? AND week_number = ?",
		key.FacilitatorID, key.CourseOfferingID, key.WeekNumber)
}

// Claim upserts the entry for key in one statement. The update branch only
// fires when the stored send is at or before cutoff, so the affected row
// count tells whether this caller won the claim.
func (r *DedupRepository) Claim(ctx context.Context, key dedup.Key, now, cutoff time.Time) (bool, error) {
	entry := models.ReminderDedupEntry{
		FacilitatorID:    key.FacilitatorID,
		CourseOfferingID: key.CourseOfferingID,
		WeekNumber:       key.WeekNumber,
		LastSentAt:       now,
		SendCount:        1,
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "facilitator_id"},
			{Name: "course_offering_id"},
			{Name: "week_number"},
		},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "last_sent_at"}, Value: now},
			{Column: clause.Column{Name: "send_count"}, Value: gorm.Expr("reminder_dedup_entries.send_count + 1")},
		},
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "reminder_dedup_entries.last_sent_at <= ?", Vars: []any{cutoff}},
		}},
	}).Create(&entry)
	if res.Error != nil {
		return false, fmt.Errorf("claim reminder %s: %w", key, storageErr(res.Error))
	}
	return res.RowsAffected == 1, nil
}

// LastSent returns the last recorded send for key, or nil if there is none.
func (r *DedupRepository) LastSent(ctx context.Context, key dedup.Key) (*time.Time, error) {
	var entries []models.ReminderDedupEntry
	if err := whereKey(r.db.WithContext(ctx), key).Limit(1).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("last reminder %s: %w", key, storageErr(err))
	}
	if len(entries) == 0 {
		return nil, nil
	}
	last := entries[0].LastSentAt.UTC()
	return &last, nil
}

// Release rolls back the claim made at sentAt. The first send for a key is
// removed; later sends rewind last_sent_at to restore.
func (r *DedupRepository) Release(ctx context.Context, key dedup.Key, sentAt, restore time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := whereKey(tx, key).
			Where("last_sent_at = ? AND send_count <= 1", sentAt).
			Delete(&models.ReminderDedupEntry{})
		if res.Error != nil || res.RowsAffected > 0 {
			return res.Error
		}

		return whereKey(tx.Model(&models.ReminderDedupEntry{}), key).
			Where("last_sent_at = ?", sentAt).
			Updates(map[string]any{
				"last_sent_at": restore,
				"send_count":   gorm.Expr("send_count - 1"),
			}).Error
	})
	if err != nil {
		return fmt.Errorf("release reminder %s: %w", key, storageErr(err))
	}
	return nil
}
