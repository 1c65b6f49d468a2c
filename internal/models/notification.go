package models

import (
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/config"
)

const NotificationStatusSent = "sent"

// NotificationLog is the record of one delivered notification, kept for the
// retention window and then pruned.
type NotificationLog struct {
	ID               uint           `gorm:"primaryKey"`
	JobID            string         `gorm:"type:varchar(36);not null"`
	Type             config.JobType `gorm:"type:varchar(64);not null"`
	TemplateKey      string         `gorm:"type:varchar(64);not null"`
	FacilitatorID    uint           `gorm:"not null"`
	CourseOfferingID uint           `gorm:"not null"`
	WeekNumber       int            `gorm:"not null"`
	Recipient        string         `gorm:"type:varchar(255);not null"`
	Status           string         `gorm:"type:varchar(16);not null"`
	SentAt           time.Time      `gorm:"not null;index"`
}

func (NotificationLog) TableName() string { return "notification_logs" }
