package dto

type FacilitatorReminderPayload struct {
	FacilitatorID    uint `json:"facilitator_id" validate:"required"`
	CourseOfferingID uint `json:"course_offering_id" validate:"required"`
	WeekNumber       int  `json:"week_number" validate:"gte=1,lte=52"`
}

type ManagerAlertPayload struct {
	FacilitatorID    uint   `json:"facilitator_id" validate:"required"`
	CourseOfferingID uint   `json:"course_offering_id" validate:"required"`
	AlertType        string `json:"alert_type" validate:"required,oneof=missing-activity-log activity-log-submitted"`
	WeekNumber       int    `json:"week_number,omitempty" validate:"gte=0,lte=52"`
}

type DeadlineSweepPayload struct{}
