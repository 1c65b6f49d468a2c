package wakeup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func received(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

func TestLocal_NotifyWakesMatchingSubscribers(t *testing.T) {
	l := NewLocal()

	reminders, stopReminders := l.Subscribe("facilitator-reminder")
	defer stopReminders()
	sweeps, stopSweeps := l.Subscribe("deadline-sweep")
	defer stopSweeps()

	l.Notify("facilitator-reminder")

	assert.True(t, received(reminders))
	assert.False(t, received(sweeps))
}

func TestLocal_SignalsCoalesce(t *testing.T) {
	l := NewLocal()
	ch, stop := l.Subscribe("manager-alert", "facilitator-reminder")
	defer stop()

	for i := 0; i < 5; i++ {
		l.Notify("manager-alert")
	}
	l.Notify("facilitator-reminder")

	assert.True(t, received(ch))
	assert.False(t, received(ch), "pending signals collapse into one")
}

func TestLocal_UnsubscribeIsIdempotent(t *testing.T) {
	l := NewLocal()
	ch, stop := l.Subscribe("deadline-sweep")
	stop()
	stop()

	l.Notify("deadline-sweep")
	assert.False(t, received(ch))
	assert.Empty(t, l.subs)
}
