package mocks

import (
	"context"

	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/dto"
	"github.com/joshu-sajeev/coursenotify/internal/models"
	"github.com/stretchr/testify/mock"
)

type AdminQueueMock struct {
	mock.Mock
}

func (m *AdminQueueMock) Get(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *AdminQueueMock) ListByStatus(ctx context.Context, status config.JobStatus, limit, offset int) ([]models.Job, int64, error) {
	args := m.Called(ctx, status, limit, offset)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Get(1).(int64), args.Error(2)
}

func (m *AdminQueueMock) Requeue(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *AdminQueueMock) Stats(ctx context.Context) (map[config.JobStatus]int64, error) {
	args := m.Called(ctx)

	stats, _ := args.Get(0).(map[config.JobStatus]int64)
	return stats, args.Error(1)
}

type SchedulerMock struct {
	mock.Mock
}

func (m *SchedulerMock) EnqueueManagerAlert(ctx context.Context, p dto.ManagerAlertPayload) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *SchedulerMock) EnqueueSweepNow(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type NotificationLogMock struct {
	mock.Mock
}

func (m *NotificationLogMock) List(ctx context.Context, limit, offset int) ([]models.NotificationLog, int64, error) {
	args := m.Called(ctx, limit, offset)

	entries, _ := args.Get(0).([]models.NotificationLog)
	return entries, args.Get(1).(int64), args.Error(2)
}
