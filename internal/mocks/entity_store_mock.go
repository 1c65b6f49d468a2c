package mocks

import (
	"context"
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/models"
	"github.com/stretchr/testify/mock"
)

type EntityStoreMock struct {
	mock.Mock
}

func (m *EntityStoreMock) FindActiveCourseOfferings(ctx context.Context) ([]models.CourseOffering, error) {
	args := m.Called(ctx)

	offerings, _ := args.Get(0).([]models.CourseOffering)
	return offerings, args.Error(1)
}

func (m *EntityStoreMock) FindCourseOffering(ctx context.Context, id uint) (*models.CourseOffering, error) {
	args := m.Called(ctx, id)

	offering, _ := args.Get(0).(*models.CourseOffering)
	return offering, args.Error(1)
}

func (m *EntityStoreMock) FindFacilitator(ctx context.Context, id uint) (*models.Facilitator, error) {
	args := m.Called(ctx, id)

	facilitator, _ := args.Get(0).(*models.Facilitator)
	return facilitator, args.Error(1)
}

func (m *EntityStoreMock) FindActivityTracker(ctx context.Context, offeringID uint, week int) (*models.ActivityTracker, error) {
	args := m.Called(ctx, offeringID, week)

	tracker, _ := args.Get(0).(*models.ActivityTracker)
	return tracker, args.Error(1)
}

func (m *EntityStoreMock) FindActiveManagers(ctx context.Context) ([]models.Manager, error) {
	args := m.Called(ctx)

	managers, _ := args.Get(0).([]models.Manager)
	return managers, args.Error(1)
}

func (m *EntityStoreMock) RecordReminderSent(ctx context.Context, offeringID uint, week int, at time.Time) (bool, error) {
	args := m.Called(ctx, offeringID, week, at)
	return args.Bool(0), args.Error(1)
}
