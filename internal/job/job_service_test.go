package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/joshu-sajeev/coursenotify/common"
	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/dto"
	"github.com/joshu-sajeev/coursenotify/internal/mocks"
	"github.com/joshu-sajeev/coursenotify/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const jobUUID = "7f1c2a4e-3b9d-4c1e-9a6f-2d8e5b0c1a77"

func canceledCtx() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func assertAPIStatus(t *testing.T, err error, status int) {
	t.Helper()
	var apiErr common.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, status, apiErr.Status)
}

func TestJobService_GetJob(t *testing.T) {
	notBefore := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		ctx        context.Context
		setupMock  func(*mocks.AdminQueueMock)
		wantStatus int
	}{
		{
			name: "found",
			ctx:  context.Background(),
			setupMock: func(m *mocks.AdminQueueMock) {
				m.On("Get", mock.Anything, jobUUID).Return(&models.Job{
					ID:          jobUUID,
					Type:        config.JobTypeManagerAlert,
					Payload:     []byte(`{"alert_type":"missing-activity-log"}`),
					Status:      config.JobStatusDead,
					Attempts:    3,
					MaxAttempts: 3,
					NotBefore:   notBefore,
					LastError:   "sendgrid: status 503",
				}, nil)
			},
		},
		{
			name: "not found",
			ctx:  context.Background(),
			setupMock: func(m *mocks.AdminQueueMock) {
				m.On("Get", mock.Anything, jobUUID).Return(nil, fmt.Errorf("job %s: %w", jobUUID, common.ErrNotFound))
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "storage down",
			ctx:  context.Background(),
			setupMock: func(m *mocks.AdminQueueMock) {
				m.On("Get", mock.Anything, jobUUID).Return(nil, fmt.Errorf("get job: %w", common.ErrStorage))
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "canceled context",
			ctx:        canceledCtx(),
			setupMock:  func(m *mocks.AdminQueueMock) {},
			wantStatus: http.StatusRequestTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := new(mocks.AdminQueueMock)
			tt.setupMock(q)
			svc := NewJobService(q, new(mocks.SchedulerMock), new(mocks.NotificationLogMock))

			got, err := svc.GetJob(tt.ctx, jobUUID)
			if tt.wantStatus != 0 {
				assertAPIStatus(t, err, tt.wantStatus)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, jobUUID, got.ID)
				assert.Equal(t, "manager-alert", got.Type)
				assert.Equal(t, "dead", got.Status)
				assert.Equal(t, notBefore, got.NotBefore)
				assert.Equal(t, "sendgrid: status 503", got.LastError)
				assert.JSONEq(t, `{"alert_type":"missing-activity-log"}`, string(got.Payload))
			}
			q.AssertExpectations(t)
		})
	}
}

func TestJobService_ListJobs(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		limit      int
		offset     int
		setupMock  func(*mocks.AdminQueueMock)
		wantStatus int
		wantLimit  int
	}{
		{
			name:   "default limit",
			status: "dead",
			setupMock: func(m *mocks.AdminQueueMock) {
				m.On("ListByStatus", mock.Anything, config.JobStatusDead, defaultListLimit, 0).
					Return([]models.Job{{ID: "a"}, {ID: "b"}}, int64(7), nil)
			},
			wantLimit: defaultListLimit,
		},
		{
			name:   "limit capped",
			status: "pending",
			limit:  10_000,
			offset: 20,
			setupMock: func(m *mocks.AdminQueueMock) {
				m.On("ListByStatus", mock.Anything, config.JobStatusPending, maxListLimit, 20).
					Return([]models.Job{}, int64(0), nil)
			},
			wantLimit: maxListLimit,
		},
		{
			name:       "unknown status",
			status:     "running",
			setupMock:  func(m *mocks.AdminQueueMock) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "negative offset",
			status:     "dead",
			offset:     -1,
			setupMock:  func(m *mocks.AdminQueueMock) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "storage down",
			status: "dead",
			setupMock: func(m *mocks.AdminQueueMock) {
				m.On("ListByStatus", mock.Anything, config.JobStatusDead, defaultListLimit, 0).
					Return(nil, int64(0), common.ErrStorage)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := new(mocks.AdminQueueMock)
			tt.setupMock(q)
			svc := NewJobService(q, new(mocks.SchedulerMock), new(mocks.NotificationLogMock))

			got, err := svc.ListJobs(context.Background(), tt.status, tt.limit, tt.offset)
			if tt.wantStatus != 0 {
				assertAPIStatus(t, err, tt.wantStatus)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantLimit, got.Limit)
				assert.Equal(t, tt.offset, got.Offset)
			}
			q.AssertExpectations(t)
		})
	}
}

func TestJobService_RequeueJob(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "requeued"},
		{name: "not dead", err: fmt.Errorf("job is completed: %w", common.ErrInvalidState), wantStatus: http.StatusConflict},
		{name: "missing", err: common.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "unexpected", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := new(mocks.AdminQueueMock)
			q.On("Requeue", mock.Anything, jobUUID).Return(tt.err)
			svc := NewJobService(q, new(mocks.SchedulerMock), new(mocks.NotificationLogMock))

			err := svc.RequeueJob(context.Background(), jobUUID)
			if tt.wantStatus != 0 {
				assertAPIStatus(t, err, tt.wantStatus)
			} else {
				assert.NoError(t, err)
			}
			q.AssertExpectations(t)
		})
	}
}

func TestJobService_EnqueueAlert(t *testing.T) {
	submitted := &dto.EnqueueAlertDTO{
		FacilitatorID:    4,
		CourseOfferingID: 9,
		AlertType:        config.AlertActivityLogSubmitted,
		WeekNumber:       2,
	}
	missing := &dto.EnqueueAlertDTO{
		FacilitatorID:    4,
		CourseOfferingID: 9,
		AlertType:        config.AlertMissingActivityLog,
		WeekNumber:       3,
	}

	tests := []struct {
		name       string
		req        *dto.EnqueueAlertDTO
		setupMock  func(*mocks.SchedulerMock)
		want       *dto.EnqueuedDTO
		wantStatus int
	}{
		{
			name: "queued",
			req:  submitted,
			setupMock: func(m *mocks.SchedulerMock) {
				m.On("EnqueueManagerAlert", mock.Anything, dto.ManagerAlertPayload{
					FacilitatorID:    4,
					CourseOfferingID: 9,
					AlertType:        config.AlertActivityLogSubmitted,
					WeekNumber:       2,
				}).Return(jobUUID, nil)
			},
			want: &dto.EnqueuedDTO{ID: jobUUID},
		},
		{
			name: "duplicate",
			req:  missing,
			setupMock: func(m *mocks.SchedulerMock) {
				m.On("EnqueueManagerAlert", mock.Anything, mock.Anything).Return("", nil)
			},
			want: &dto.EnqueuedDTO{Duplicate: true},
		},
		{
			name: "missing log without week",
			req: &dto.EnqueueAlertDTO{
				FacilitatorID:    4,
				CourseOfferingID: 9,
				AlertType:        config.AlertMissingActivityLog,
			},
			setupMock:  func(m *mocks.SchedulerMock) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "rejected payload",
			req:  submitted,
			setupMock: func(m *mocks.SchedulerMock) {
				m.On("EnqueueManagerAlert", mock.Anything, mock.Anything).
					Return("", fmt.Errorf("manager alert: %w", common.ErrInvalidPayload))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "storage down",
			req:  submitted,
			setupMock: func(m *mocks.SchedulerMock) {
				m.On("EnqueueManagerAlert", mock.Anything, mock.Anything).Return("", common.ErrStorage)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := new(mocks.SchedulerMock)
			tt.setupMock(s)
			svc := NewJobService(new(mocks.AdminQueueMock), s, new(mocks.NotificationLogMock))

			got, err := svc.EnqueueAlert(context.Background(), tt.req)
			if tt.wantStatus != 0 {
				assertAPIStatus(t, err, tt.wantStatus)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			s.AssertExpectations(t)
		})
	}
}

func TestJobService_TriggerSweep(t *testing.T) {
	s := new(mocks.SchedulerMock)
	s.On("EnqueueSweepNow", mock.Anything).Return(jobUUID, nil).Once()
	svc := NewJobService(new(mocks.AdminQueueMock), s, new(mocks.NotificationLogMock))

	got, err := svc.TriggerSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, jobUUID, got.ID)

	_, err = svc.TriggerSweep(canceledCtx())
	assertAPIStatus(t, err, http.StatusRequestTimeout)
	s.AssertExpectations(t)
}

func TestJobService_Stats(t *testing.T) {
	q := new(mocks.AdminQueueMock)
	q.On("Stats", mock.Anything).Return(map[config.JobStatus]int64{
		config.JobStatusPending: 4,
		config.JobStatusDead:    1,
	}, nil)
	svc := NewJobService(q, new(mocks.SchedulerMock), new(mocks.NotificationLogMock))

	got, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		"pending":   4,
		"delayed":   0,
		"active":    0,
		"completed": 0,
		"failed":    0,
		"dead":      1,
	}, got)
}

func TestJobService_ListNotifications(t *testing.T) {
	sent := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		limit      int
		offset     int
		setupMock  func(*mocks.NotificationLogMock)
		wantStatus int
		wantLimit  int
		wantIDs    []uint
	}{
		{
			name: "newest first with default limit",
			setupMock: func(m *mocks.NotificationLogMock) {
				m.On("List", mock.Anything, defaultListLimit, 0).Return([]models.NotificationLog{
					{ID: 2, JobID: "j2", Type: config.JobTypeManagerAlert, Recipient: "m@example.com", Status: models.NotificationStatusSent, SentAt: sent},
					{ID: 1, JobID: "j1", Type: config.JobTypeFacilitatorReminder, Recipient: "f@example.com", Status: models.NotificationStatusSent, SentAt: sent.Add(-time.Hour)},
				}, int64(2), nil)
			},
			wantLimit: defaultListLimit,
			wantIDs:   []uint{2, 1},
		},
		{
			name:   "limit capped",
			limit:  9_999,
			offset: 5,
			setupMock: func(m *mocks.NotificationLogMock) {
				m.On("List", mock.Anything, maxListLimit, 5).Return([]models.NotificationLog{}, int64(0), nil)
			},
			wantLimit: maxListLimit,
			wantIDs:   []uint{},
		},
		{
			name:       "negative limit",
			limit:      -1,
			setupMock:  func(m *mocks.NotificationLogMock) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "storage down",
			setupMock: func(m *mocks.NotificationLogMock) {
				m.On("List", mock.Anything, defaultListLimit, 0).Return(nil, int64(0), common.ErrStorage)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := new(mocks.NotificationLogMock)
			tt.setupMock(n)
			svc := NewJobService(new(mocks.AdminQueueMock), new(mocks.SchedulerMock), n)

			got, err := svc.ListNotifications(context.Background(), tt.limit, tt.offset)
			if tt.wantStatus != 0 {
				assertAPIStatus(t, err, tt.wantStatus)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantLimit, got.Limit)
				ids := make([]uint, len(got.Notifications))
				for i, e := range got.Notifications {
					ids[i] = e.ID
				}
				assert.Equal(t, tt.wantIDs, ids)
			}
			n.AssertExpectations(t)
		})
	}
}

func TestJobService_ListNotificationsTimedOut(t *testing.T) {
	svc := NewJobService(new(mocks.AdminQueueMock), new(mocks.SchedulerMock), new(mocks.NotificationLogMock))

	_, err := svc.ListNotifications(canceledCtx(), 0, 0)
	assertAPIStatus(t, err, http.StatusRequestTimeout)
}
