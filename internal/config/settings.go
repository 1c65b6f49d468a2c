package config

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-envconfig"
)

// Settings is the process-wide configuration. It is loaded once at start-up
// and never mutated afterwards.
type Settings struct {
	Env          string `env:"APP_ENV,default=development"`
	LogLevel     string `env:"LOG_LEVEL,default=info"`
	RollbarToken string `env:"ROLLBAR_TOKEN"`
	CodeVersion  string `env:"CODE_VERSION,default=dev"`
	HTTPAddr     string `env:"HTTP_ADDR,default=:8080"`
	MetricsAddr  string `env:"METRICS_ADDR,default=:9100"`
	NatsURL      string `env:"NATS_URL"`

	Worker   WorkerSettings
	Policy   PolicySettings
	Delivery DeliverySettings
}

type WorkerSettings struct {
	PerType         int           `env:"WORKERS_PER_TYPE,default=2"`
	LeaseTTL        time.Duration `env:"LEASE_TTL,default=1m"`
	PollMinInterval time.Duration `env:"POLL_MIN_INTERVAL,default=1s"`
	PollMaxInterval time.Duration `env:"POLL_MAX_INTERVAL,default=30s"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL,default=30s"`
	ProcessTimeout  time.Duration `env:"PROCESS_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`
}

type PolicySettings struct {
	SweepSchedule         string        `env:"SWEEP_SCHEDULE,default=0 9 * * 1"`
	SweepTimezone         string        `env:"SWEEP_TIMEZONE"`
	ReminderCoolDown      time.Duration `env:"REMINDER_COOLDOWN,default=24h"`
	FirstReminderDelay    time.Duration `env:"FIRST_REMINDER_DELAY,default=24h"`
	CriticalDeadlineHours int           `env:"CRITICAL_DEADLINE_HOURS,default=48"`
	WeekLengthDays        int           `env:"WEEK_LENGTH_DAYS,default=7"`
	ReminderMaxAttempts   int           `env:"REMINDER_MAX_ATTEMPTS,default=3"`
	ReminderBackoffBase   time.Duration `env:"REMINDER_BACKOFF_BASE,default=2s"`
	AlertMaxAttempts      int           `env:"ALERT_MAX_ATTEMPTS,default=3"`
	AlertBackoffDelay     time.Duration `env:"ALERT_BACKOFF_DELAY,default=5s"`
	NotificationRetention time.Duration `env:"NOTIFICATION_RETENTION,default=168h"`
}

type DeliverySettings struct {
	Provider       string        `env:"DELIVERY_PROVIDER,default=log"`
	Timeout        time.Duration `env:"DELIVERY_TIMEOUT,default=10s"`
	SendgridAPIKey string        `env:"SENDGRID_API_KEY"`
	FromName       string        `env:"MAIL_FROM_NAME,default=Course Operations"`
	FromAddress    string        `env:"MAIL_FROM_ADDRESS,default=no-reply@example.com"`
	SubjectPrefix  string        `env:"MAIL_SUBJECT_PREFIX,default=[Facilitation]"`
}

func (p PolicySettings) CriticalDeadline() time.Duration {
	return time.Duration(p.CriticalDeadlineHours) * time.Hour
}

func (p PolicySettings) WeekLength() time.Duration {
	return time.Duration(p.WeekLengthDays) * 24 * time.Hour
}

// to help with testing
var envProcess = envconfig.Process

func Load(ctx context.Context) (*Settings, error) {
	var s Settings
	if err := envProcess(ctx, &s); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validateSettings(&s); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &s, nil
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func validateSettings(s *Settings) error {
	var errors []string

	w := s.Worker
	if w.PerType < 1 {
		errors = append(errors, "WORKERS_PER_TYPE must be at least 1")
	}
	if w.LeaseTTL <= 0 {
		errors = append(errors, "LEASE_TTL must be positive")
	}
	if w.ProcessTimeout <= 0 {
		errors = append(errors, "PROCESS_TIMEOUT must be positive")
	}
	if w.PollMinInterval <= 0 || w.PollMaxInterval < w.PollMinInterval {
		errors = append(errors, "POLL_MIN_INTERVAL must be positive and not exceed POLL_MAX_INTERVAL")
	}
	if w.JanitorInterval <= 0 {
		errors = append(errors, "JANITOR_INTERVAL must be positive")
	}

	p := s.Policy
	if _, err := cronParser.Parse(p.SweepSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("SWEEP_SCHEDULE is invalid: %v", err))
	}
	if p.SweepTimezone != "" {
		if _, err := time.LoadLocation(p.SweepTimezone); err != nil {
			errors = append(errors, "SWEEP_TIMEZONE is not a known location")
		}
	}
	if p.ReminderCoolDown <= 0 {
		errors = append(errors, "REMINDER_COOLDOWN must be positive")
	}
	if p.FirstReminderDelay < 0 {
		errors = append(errors, "FIRST_REMINDER_DELAY must not be negative")
	}
	if p.CriticalDeadlineHours < 0 {
		errors = append(errors, "CRITICAL_DEADLINE_HOURS must not be negative")
	}
	if p.WeekLengthDays < 1 {
		errors = append(errors, "WEEK_LENGTH_DAYS must be at least 1")
	}
	if p.ReminderMaxAttempts < 1 || p.AlertMaxAttempts < 1 {
		errors = append(errors, "REMINDER_MAX_ATTEMPTS and ALERT_MAX_ATTEMPTS must be at least 1")
	}
	if p.ReminderBackoffBase <= 0 || p.AlertBackoffDelay <= 0 {
		errors = append(errors, "backoff delays must be positive")
	}
	if p.NotificationRetention <= 0 {
		errors = append(errors, "NOTIFICATION_RETENTION must be positive")
	}

	d := s.Delivery
	if !slices.Contains([]string{DeliveryProviderLog, DeliveryProviderSendgrid}, d.Provider) {
		errors = append(errors, "DELIVERY_PROVIDER must be one of log, sendgrid")
	}
	if d.Provider == DeliveryProviderSendgrid && strings.TrimSpace(d.SendgridAPIKey) == "" {
		errors = append(errors, "SENDGRID_API_KEY is required for the sendgrid provider")
	}
	if d.Timeout <= 0 {
		errors = append(errors, "DELIVERY_TIMEOUT must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}
