package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_jobs_enqueued_total",
		Help: "Jobs written to the queue.",
	}, []string{"type"})

	jobsLeased = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_jobs_leased_total",
		Help: "Jobs handed to a worker.",
	}, []string{"type"})

	jobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_jobs_completed_total",
		Help: "Jobs acknowledged as completed.",
	}, []string{"type"})

	jobsRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_jobs_retried_total",
		Help: "Failed attempts rescheduled with backoff.",
	}, []string{"type"})

	jobsDead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_jobs_dead_total",
		Help: "Jobs that exhausted their attempts.",
	}, []string{"type"})

	leasesReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_leases_reclaimed_total",
		Help: "Expired leases returned to the queue by the janitor.",
	})

	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_deliveries_total",
		Help: "Delivery attempts by job type and result.",
	}, []string{"type", "result"})

	remindersSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_reminders_suppressed_total",
		Help: "Reminders not sent, by reason.",
	}, []string{"reason"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notify_job_duration_seconds",
		Help:    "Processor run time.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)

func JobEnqueued(jobType string)  { jobsEnqueued.WithLabelValues(jobType).Inc() }
func JobLeased(jobType string)    { jobsLeased.WithLabelValues(jobType).Inc() }
func JobCompleted(jobType string) { jobsCompleted.WithLabelValues(jobType).Inc() }
func JobRetried(jobType string)   { jobsRetried.WithLabelValues(jobType).Inc() }
func JobDead(jobType string)      { jobsDead.WithLabelValues(jobType).Inc() }
func LeaseReclaimed()             { leasesReclaimed.Inc() }

func Delivery(jobType, result string) { deliveries.WithLabelValues(jobType, result).Inc() }

func ReminderSuppressed(reason string) { remindersSuppressed.WithLabelValues(reason).Inc() }

func ObserveJob(jobType string, d time.Duration) {
	jobDuration.WithLabelValues(jobType).Observe(d.Seconds())
}
