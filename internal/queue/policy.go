package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/robfig/cron/v3"
)

// Backoff decides how long a failed job waits before its next attempt.
type Backoff struct {
	Kind  string
	Delay time.Duration
}

func Fixed(d time.Duration) Backoff { return Backoff{Kind: config.BackoffFixed, Delay: d} }

func Exponential(base time.Duration) Backoff {
	return Backoff{Kind: config.BackoffExponential, Delay: base}
}

// Next returns the wait after the given (1-based) failed attempt:
// fixed -> Delay, exponential -> Delay * 2^(attempts-1).
func (b Backoff) Next(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if b.Kind == config.BackoffFixed {
		return b.Delay
	}

	// cap the shift so a misconfigured max attempts cannot overflow
	shift := min(attempts-1, 20)
	return b.Delay << shift
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Recurrence is a parsed cron-style repeat rule.
type Recurrence struct {
	Expr     string
	Timezone string
	schedule cron.Schedule
}

func ParseRecurrence(expr, timezone string) (Recurrence, error) {
	expr = strings.TrimSpace(expr)
	spec := expr
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return Recurrence{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
		spec = "CRON_TZ=" + loc.String() + " " + expr
	}

	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return Recurrence{}, fmt.Errorf("invalid recurrence %q: %w", expr, err)
	}

	return Recurrence{Expr: expr, Timezone: timezone, schedule: schedule}, nil
}

// Next returns the first activation strictly after t, in UTC.
func (r Recurrence) Next(t time.Time) time.Time {
	return r.schedule.Next(t).UTC()
}
