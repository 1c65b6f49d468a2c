package models

import "time"

// The models below belong to the course administration store. The
// notification core only reads them, apart from the reminder bookkeeping
// columns on ActivityTracker.

type Module struct {
	ID   uint   `gorm:"primaryKey"`
	Code string `gorm:"type:varchar(32);not null"`
	Name string `gorm:"type:varchar(255);not null"`
}

type Facilitator struct {
	ID        uint   `gorm:"primaryKey"`
	FirstName string `gorm:"type:varchar(50);not null"`
	LastName  string `gorm:"type:varchar(50);not null"`
	Email     string `gorm:"type:varchar(255);not null;uniqueIndex"`
}

func (f Facilitator) FullName() string { return f.FirstName + " " + f.LastName }

type Manager struct {
	ID        uint   `gorm:"primaryKey"`
	FirstName string `gorm:"type:varchar(50);not null"`
	LastName  string `gorm:"type:varchar(50);not null"`
	Email     string `gorm:"type:varchar(255);not null;uniqueIndex"`
	IsActive  bool   `gorm:"not null"`
}

func (m Manager) FullName() string { return m.FirstName + " " + m.LastName }

// CourseOffering is also called an allocation: a module taught to a cohort
// in a trimester, optionally assigned a facilitator.
type CourseOffering struct {
	ID            uint         `gorm:"primaryKey"`
	ModuleID      uint         `gorm:"not null"`
	Module        Module       `gorm:"foreignKey:ModuleID"`
	Trimester     string       `gorm:"type:varchar(2);not null"`
	IntakePeriod  string       `gorm:"type:varchar(3);not null"`
	FacilitatorID *uint        `gorm:"index"`
	Facilitator   *Facilitator `gorm:"foreignKey:FacilitatorID"`
	IsActive      bool         `gorm:"not null;index"`
	StartDate     time.Time    `gorm:"not null"`
	EndDate       *time.Time
}

type ActivityTracker struct {
	ID                 uint `gorm:"primaryKey"`
	AllocationID       uint `gorm:"not null;uniqueIndex:idx_tracker_allocation_week"`
	FacilitatorID      uint `gorm:"not null"`
	WeekNumber         int  `gorm:"not null;uniqueIndex:idx_tracker_allocation_week"`
	SubmittedAt        *time.Time
	LastReminderSentAt *time.Time
	ReminderCount      int    `gorm:"not null"`
	Notes              string `gorm:"type:text"`
}

// Submitted reports whether the facilitator has filed the log.
func (t *ActivityTracker) Submitted() bool { return t != nil && t.SubmittedAt != nil }

// All returns every model the notification core touches, for AutoMigrate.
func All() []any {
	return []any{
		&Job{},
		&ReminderDedupEntry{},
		&Module{},
		&Facilitator{},
		&Manager{},
		&CourseOffering{},
		&ActivityTracker{},
		&NotificationLog{},
	}
}
