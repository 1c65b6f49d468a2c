package dto

import (
	"testing"

	"github.com/joshu-sajeev/coursenotify/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "valid reminder", raw: `{"facilitator_id":4,"course_offering_id":9,"week_number":3}`},
		{name: "malformed json", raw: `{"facilitator_id":`, wantErr: true},
		{name: "missing facilitator", raw: `{"course_offering_id":9,"week_number":3}`, wantErr: true},
		{name: "week out of range", raw: `{"facilitator_id":4,"course_offering_id":9,"week_number":53}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p FacilitatorReminderPayload
			err := DecodePayload([]byte(tt.raw), &p)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrInvalidPayload)
				assert.False(t, common.Retryable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint(4), p.FacilitatorID)
			assert.Equal(t, 3, p.WeekNumber)
		})
	}
}

func TestDecodePayload_AlertType(t *testing.T) {
	var p ManagerAlertPayload
	err := DecodePayload([]byte(`{"facilitator_id":1,"course_offering_id":2,"alert_type":"late_submission"}`), &p)
	assert.ErrorIs(t, err, common.ErrInvalidPayload)

	err = DecodePayload([]byte(`{"facilitator_id":1,"course_offering_id":2,"alert_type":"missing-activity-log","week_number":3}`), &p)
	assert.NoError(t, err)
}
