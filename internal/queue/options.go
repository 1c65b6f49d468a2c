package queue

import (
	"log/slog"
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/wakeup"
)

type enqueueConfig struct {
	delay        time.Duration
	runAt        time.Time
	maxAttempts  int
	backoff      Backoff
	recurrence   string
	recurrenceTZ string
	uniqueKey    *string
}

// Option adjusts a single Enqueue call.
type Option func(*enqueueConfig)

// WithDelay makes the job visible only after d has elapsed.
func WithDelay(d time.Duration) Option {
	return func(c *enqueueConfig) { c.delay = d }
}

// WithRunAt makes the job visible at t. It takes precedence over WithDelay.
func WithRunAt(t time.Time) Option {
	return func(c *enqueueConfig) { c.runAt = t }
}

func WithMaxAttempts(n int) Option {
	return func(c *enqueueConfig) { c.maxAttempts = n }
}

func WithBackoff(b Backoff) Option {
	return func(c *enqueueConfig) { c.backoff = b }
}

// WithRecurrence re-enqueues the job on the cron schedule after each run.
func WithRecurrence(expr, timezone string) Option {
	return func(c *enqueueConfig) {
		c.recurrence = expr
		c.recurrenceTZ = timezone
	}
}

// WithUniqueKey rejects the enqueue with ErrDuplicateJob when a job with the
// same key already exists.
func WithUniqueKey(key string) Option {
	return func(c *enqueueConfig) { c.uniqueKey = &key }
}

// QueueOption configures a Queue at construction.
type QueueOption func(*Queue)

func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

func WithLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) { q.logger = l }
}

func WithNotifier(n wakeup.Notifier) QueueOption {
	return func(q *Queue) { q.notifier = n }
}

func WithLeaseTTL(d time.Duration) QueueOption {
	return func(q *Queue) { q.leaseTTL = d }
}

// WithPollInterval bounds the idle polling of Lease: it starts at min and
// doubles up to max while the queue stays empty.
func WithPollInterval(min, max time.Duration) QueueOption {
	return func(q *Queue) {
		q.pollMin = min
		q.pollMax = max
	}
}
