package mocks

import (
	"context"

	"github.com/joshu-sajeev/coursenotify/internal/dto"
	"github.com/stretchr/testify/mock"
)

type JobServiceMock struct {
	mock.Mock
}

func (m *JobServiceMock) GetJob(ctx context.Context, id string) (*dto.JobResponseDTO, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.JobResponseDTO), args.Error(1)
}

func (m *JobServiceMock) ListJobs(ctx context.Context, status string, limit, offset int) (*dto.JobListDTO, error) {
	args := m.Called(status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.JobListDTO), args.Error(1)
}

func (m *JobServiceMock) RequeueJob(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *JobServiceMock) EnqueueAlert(ctx context.Context, req *dto.EnqueueAlertDTO) (*dto.EnqueuedDTO, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.EnqueuedDTO), args.Error(1)
}

func (m *JobServiceMock) TriggerSweep(ctx context.Context) (*dto.EnqueuedDTO, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.EnqueuedDTO), args.Error(1)
}

func (m *JobServiceMock) Stats(ctx context.Context) (map[string]int64, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *JobServiceMock) ListNotifications(ctx context.Context, limit, offset int) (*dto.NotificationListDTO, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.NotificationListDTO), args.Error(1)
}
