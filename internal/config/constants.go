package config

type JobType string

type JobStatus string

const (
	JobTypeFacilitatorReminder JobType = "facilitator-reminder"
	JobTypeManagerAlert        JobType = "manager-alert"
	JobTypeDeadlineSweep       JobType = "deadline-sweep"
)

var AllowedJobTypes = []JobType{
	JobTypeFacilitatorReminder,
	JobTypeManagerAlert,
	JobTypeDeadlineSweep,
}

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusDelayed   JobStatus = "delayed"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusDead      JobStatus = "dead"
)

var AllowedJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusDelayed,
	JobStatusActive,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusDead,
}

// Terminal reports whether no automatic transition leaves the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusDead || s == JobStatusFailed
}

const (
	AlertMissingActivityLog   = "missing-activity-log"
	AlertActivityLogSubmitted = "activity-log-submitted"
)

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

const (
	DeliveryProviderLog      = "log"
	DeliveryProviderSendgrid = "sendgrid"
)
