package dto

import (
	"encoding/json"
	"time"
)

type EnqueueAlertDTO struct {
	FacilitatorID    uint   `json:"facilitator_id" validate:"required"`
	CourseOfferingID uint   `json:"course_offering_id" validate:"required"`
	AlertType        string `json:"alert_type" validate:"required,oneof=missing-activity-log activity-log-submitted"`
	WeekNumber       int    `json:"week_number" validate:"gte=0,lte=52"`
}

type EnqueuedDTO struct {
	ID        string `json:"id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

type JobResponseDTO struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	Status         string          `json:"status"`
	Attempts       int             `json:"attempts"`
	MaxAttempts    int             `json:"max_attempts"`
	NotBefore      time.Time       `json:"not_before"`
	Recurrence     string          `json:"recurrence,omitempty"`
	LeasedBy       string          `json:"leased_by,omitempty"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type JobListDTO struct {
	Jobs   []JobResponseDTO `json:"jobs"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type NotificationResponseDTO struct {
	ID               uint      `json:"id"`
	JobID            string    `json:"job_id"`
	Type             string    `json:"type"`
	TemplateKey      string    `json:"template_key"`
	FacilitatorID    uint      `json:"facilitator_id"`
	CourseOfferingID uint      `json:"course_offering_id"`
	WeekNumber       int       `json:"week_number"`
	Recipient        string    `json:"recipient"`
	Status           string    `json:"status"`
	SentAt           time.Time `json:"sent_at"`
}

type NotificationListDTO struct {
	Notifications []NotificationResponseDTO `json:"notifications"`
	Total         int64                     `json:"total"`
	Limit         int                       `json:"limit"`
	Offset        int                       `json:"offset"`
}
