package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/joshu-sajeev/coursenotify/common"
	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/delivery"
	"github.com/joshu-sajeev/coursenotify/internal/dto"
	"github.com/joshu-sajeev/coursenotify/internal/models"
	"github.com/joshu-sajeev/coursenotify/internal/notify"
	"github.com/joshu-sajeev/coursenotify/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func reminderFor(o *models.CourseOffering, week int) dto.FacilitatorReminderPayload {
	return dto.FacilitatorReminderPayload{
		FacilitatorID:    *o.FacilitatorID,
		CourseOfferingID: o.ID,
		WeekNumber:       week,
	}
}

// runOnce leases one reminder, processes it and settles it the way a worker
// does.
func (f *fixture) runOnce(t *testing.T, p notify.Processor) (notify.Outcome, config.JobStatus) {
	t.Helper()
	ctx := context.Background()

	lease := f.lease(t, p.Type())
	outcome, err := p.Process(ctx, lease.Job)
	if err == nil || !common.Retryable(err) {
		require.NoError(t, f.q.Ack(ctx, lease))
		return outcome, config.JobStatusCompleted
	}

	status, ferr := f.q.Fail(ctx, lease, err)
	require.NoError(t, ferr)
	return outcome, status
}

func TestReminder_DeliversOnceAndUpdatesTracker(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	offering := f.seedOffering(t, "ada@example.com", overdueStart(2, time.Hour))
	f.seedTracker(t, offering, 2, nil)

	f.deliverer.On("Deliver", mock.Anything, mock.MatchedBy(func(n delivery.Notification) bool {
		return n.Target.Email == "ada@example.com" &&
			n.Subject == "Activity log reminder: Intro to Go week 2" &&
			n.TemplateKey == string(config.JobTypeFacilitatorReminder)
	})).Return(nil).Once()

	_, err := f.scheduler.EnqueueFacilitatorReminder(ctx, reminderFor(offering, 2), 0)
	require.NoError(t, err)

	outcome, status := f.runOnce(t, f.reminder)
	assert.Equal(t, notify.Delivered, outcome)
	assert.Equal(t, config.JobStatusCompleted, status)

	var tracker models.ActivityTracker
	require.NoError(t, f.db.First(&tracker, "allocation_id = ? AND week_number = ?", offering.ID, 2).Error)
	assert.Equal(t, 1, tracker.ReminderCount)
	require.NotNil(t, tracker.LastReminderSentAt)
	assert.Equal(t, now, tracker.LastReminderSentAt.UTC())

	records := f.notifications(t)
	require.Len(t, records, 1)
	assert.Equal(t, config.JobTypeFacilitatorReminder, records[0].Type)
	assert.Equal(t, "ada@example.com", records[0].Recipient)
	assert.Equal(t, *offering.FacilitatorID, records[0].FacilitatorID)
	assert.Equal(t, offering.ID, records[0].CourseOfferingID)
	assert.Equal(t, 2, records[0].WeekNumber)
	assert.Equal(t, models.NotificationStatusSent, records[0].Status)
	assert.Equal(t, now, records[0].SentAt.UTC())

	f.deliverer.AssertExpectations(t)
}

func TestReminder_ReprocessingAfterSuccessDeliversNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	offering := f.seedOffering(t, "ada@example.com", overdueStart(2, time.Hour))
	f.deliverer.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	id, err := f.scheduler.EnqueueFacilitatorReminder(ctx, reminderFor(offering, 2), 0)
	require.NoError(t, err)
	job, err := f.q.Get(ctx, id)
	require.NoError(t, err)

	outcome, err := f.reminder.Process(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, notify.Delivered, outcome)

	// same job handed out again after its lease expired
	outcome, err = f.reminder.Process(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, notify.Suppressed, outcome)

	f.deliverer.AssertNumberOfCalls(t, "Deliver", 1)
	assert.Len(t, f.notifications(t), 1)
}

func TestReminder_SubmittedLogIsStale(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	offering := f.seedOffering(t, "ada@example.com", overdueStart(2, time.Hour))
	submitted := now.Add(-time.Minute)
	f.seedTracker(t, offering, 2, &submitted)

	_, err := f.scheduler.EnqueueFacilitatorReminder(ctx, reminderFor(offering, 2), 0)
	require.NoError(t, err)

	outcome, status := f.runOnce(t, f.reminder)
	assert.Equal(t, notify.Stale, outcome)
	assert.Equal(t, config.JobStatusCompleted, status)
	f.deliverer.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestReminder_TransientFailuresRetryUntilDelivered(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	offering := f.seedOffering(t, "ada@example.com", overdueStart(2, time.Hour))

	f.deliverer.On("Deliver", mock.Anything, mock.Anything).
		Return(fmt.Errorf("%w: smtp timeout", common.ErrTransientDelivery)).Twice()
	f.deliverer.On("Deliver", mock.Anything, mock.Anything).Return(nil).Once()

	id, err := f.scheduler.EnqueueFacilitatorReminder(ctx, reminderFor(offering, 2), 0)
	require.NoError(t, err)

	for _, backoff := range []time.Duration{2 * time.Second, 4 * time.Second} {
		outcome, status := f.runOnce(t, f.reminder)
		assert.Equal(t, notify.Failed, outcome)
		assert.Equal(t, config.JobStatusDelayed, status)

		job, err := f.q.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, f.clock.Now().Add(backoff), job.NotBefore.UTC())
		f.clock.Advance(backoff)
	}

	outcome, status := f.runOnce(t, f.reminder)
	assert.Equal(t, notify.Delivered, outcome)
	assert.Equal(t, config.JobStatusCompleted, status)

	job, err := f.q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, config.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.Attempts)
	f.deliverer.AssertNumberOfCalls(t, "Deliver", 3)
}

func TestReminder_ExhaustedRetriesEndDead(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	offering := f.seedOffering(t, "ada@example.com", overdueStart(2, time.Hour))

	f.deliverer.On("Deliver", mock.Anything, mock.Anything).
		Return(fmt.Errorf("%w: connection refused", common.ErrTransientDelivery))

	id, err := f.scheduler.EnqueueFacilitatorReminder(ctx, reminderFor(offering, 2), 0)
	require.NoError(t, err)

	var statuses []config.JobStatus
	for range 3 {
		_, status := f.runOnce(t, f.reminder)
		statuses = append(statuses, status)
		f.clock.Advance(time.Minute)
	}
	assert.Equal(t, []config.JobStatus{
		config.JobStatusDelayed, config.JobStatusDelayed, config.JobStatusDead,
	}, statuses)

	job, err := f.q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, config.JobStatusDead, job.Status)
	assert.Equal(t, 3, job.Attempts)

	f.clock.Advance(24 * time.Hour)
	lease, err := f.q.TryLease(ctx, "test", config.JobTypeFacilitatorReminder)
	require.NoError(t, err)
	assert.Nil(t, lease)
	f.deliverer.AssertNumberOfCalls(t, "Deliver", 3)
}

func TestReminder_PermanentFailureIsNotRetried(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	offering := f.seedOffering(t, "ada@example.com", overdueStart(2, time.Hour))

	f.deliverer.On("Deliver", mock.Anything, mock.Anything).
		Return(fmt.Errorf("%w: mailbox does not exist", common.ErrPermanentDelivery)).Once()

	_, err := f.scheduler.EnqueueFacilitatorReminder(ctx, reminderFor(offering, 2), 0)
	require.NoError(t, err)

	outcome, status := f.runOnce(t, f.reminder)
	assert.Equal(t, notify.Failed, outcome)
	assert.Equal(t, config.JobStatusCompleted, status)
	assert.Empty(t, f.notifications(t))
}

func TestReminder_MissingEntitiesAreNotRetried(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	offering := f.seedOffering(t, "ada@example.com", overdueStart(2, time.Hour))

	tests := []struct {
		name    string
		payload dto.FacilitatorReminderPayload
	}{
		{"offering gone", dto.FacilitatorReminderPayload{FacilitatorID: *offering.FacilitatorID, CourseOfferingID: 999, WeekNumber: 2}},
		{"facilitator gone", dto.FacilitatorReminderPayload{FacilitatorID: 999, CourseOfferingID: offering.ID, WeekNumber: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := f.scheduler.EnqueueFacilitatorReminder(ctx, tt.payload, 0)
			require.NoError(t, err)
			job, err := f.q.Get(ctx, id)
			require.NoError(t, err)

			_, err = f.reminder.Process(ctx, job)
			assert.ErrorIs(t, err, common.ErrNotFound)
			assert.False(t, common.Retryable(err))
		})
	}
	f.deliverer.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestReminder_InvalidPayloadIsNotRetried(t *testing.T) {
	f := setup(t)

	_, err := f.reminder.Process(context.Background(), &models.Job{
		ID:      "bad",
		Type:    config.JobTypeFacilitatorReminder,
		Payload: []byte(`{"facilitator_id":1,"course_offering_id":1,"week_number":0}`),
	})
	assert.ErrorIs(t, err, common.ErrInvalidPayload)
	assert.False(t, common.Retryable(err))
}

func TestReminder_ConcurrentDuplicatesDeliverOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	offering := f.seedOffering(t, "ada@example.com", overdueStart(2, time.Hour))
	f.deliverer.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	for range 2 {
		_, err := f.scheduler.EnqueueFacilitatorReminder(ctx, reminderFor(offering, 2), 0)
		require.NoError(t, err)
	}

	leases := []*queue.Lease{
		f.lease(t, config.JobTypeFacilitatorReminder),
		f.lease(t, config.JobTypeFacilitatorReminder),
	}
	require.NotEqual(t, leases[0].Job.ID, leases[1].Job.ID)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []notify.Outcome
	)
	for _, lease := range leases {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := f.reminder.Process(ctx, lease.Job)
			if err != nil {
				outcome = notify.Failed
			}
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []notify.Outcome{notify.Delivered, notify.Suppressed}, outcomes)
	f.deliverer.AssertNumberOfCalls(t, "Deliver", 1)
}

func TestReminder_StorageErrorIsRetryable(t *testing.T) {
	f := setup(t)
	offering := f.seedOffering(t, "ada@example.com", overdueStart(2, time.Hour))

	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	payload := reminderFor(offering, 2)
	job := &models.Job{ID: "r1", Type: config.JobTypeFacilitatorReminder}
	job.Payload, err = json.Marshal(payload)
	require.NoError(t, err)

	_, err = f.reminder.Process(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrStorage))
	assert.True(t, common.Retryable(err))
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, *models.NotificationLog) error {
	return common.ErrStorage
}

func TestReminder_RecordFailureKeepsDelivery(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	offering := f.seedOffering(t, "ada@example.com", overdueStart(2, time.Hour))
	f.deliverer.On("Deliver", mock.Anything, mock.Anything).Return(nil).Once()

	id, err := f.scheduler.EnqueueFacilitatorReminder(ctx, reminderFor(offering, 2), 0)
	require.NoError(t, err)
	job, err := f.q.Get(ctx, id)
	require.NoError(t, err)

	reminder := notify.NewReminderProcessor(f.entities, f.guard, f.deliverer, failingRecorder{}, discard(), f.clock.Now)
	outcome, err := reminder.Process(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, notify.Delivered, outcome)
	f.deliverer.AssertExpectations(t)
}
