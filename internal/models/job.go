package models

import (
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/config"
	"gorm.io/datatypes"
)

type Job struct {
	ID             string           `gorm:"primaryKey;type:varchar(36)"`
	Type           config.JobType   `gorm:"type:varchar(64);not null;index:idx_jobs_lease,priority:1"`
	Payload        datatypes.JSON   `gorm:"type:jsonb"`
	Status         config.JobStatus `gorm:"type:varchar(20);not null;index:idx_jobs_lease,priority:2"`
	Attempts       int              `gorm:"not null"`
	MaxAttempts    int              `gorm:"not null"`
	NotBefore      time.Time        `gorm:"not null;index:idx_jobs_lease,priority:3"`
	BackoffKind    string           `gorm:"type:varchar(16);not null"`
	BackoffDelay   time.Duration    `gorm:"not null"`
	Recurrence     string           `gorm:"type:varchar(128)"`
	RecurrenceTZ   string           `gorm:"column:recurrence_tz;type:varchar(64)"`
	UniqueKey      *string          `gorm:"type:varchar(191);uniqueIndex"`
	LeaseToken     *string          `gorm:"type:varchar(36);index"`
	LeasedBy       string           `gorm:"type:varchar(64)"`
	LeaseExpiresAt *time.Time       `gorm:"index"`
	LastError      string           `gorm:"type:text"`
	CompletedAt    *time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (Job) TableName() string { return "jobs" }

// Recurring reports whether completing the job schedules another occurrence.
func (j *Job) Recurring() bool { return j.Recurrence != "" }

// ReminderDedupEntry records the last reminder sent for one facilitator,
// course offering and week.
type ReminderDedupEntry struct {
	FacilitatorID    uint      `gorm:"primaryKey;autoIncrement:false"`
	CourseOfferingID uint      `gorm:"primaryKey;autoIncrement:false"`
	WeekNumber       int       `gorm:"primaryKey;autoIncrement:false"`
	LastSentAt       time.Time `gorm:"not null"`
	SendCount        int       `gorm:"not null"`
}

func (ReminderDedupEntry) TableName() string { return "reminder_dedup_entries" }
