// Package delivery sends notifications to people.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/config"
)

type Recipient struct {
	Name  string
	Email string
}

// Notification is one message for one recipient. TemplateKey names the kind
// of message; Data carries the values it is rendered from.
type Notification struct {
	Target      Recipient
	Subject     string
	TemplateKey string
	Data        map[string]any
}

// Deliverer sends a notification. Errors wrap common.ErrTransientDelivery
// when another attempt may succeed and common.ErrPermanentDelivery when it
// cannot.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// Body renders the plain-text body of n: one "key: value" line per data
// entry, in key order.
func Body(n Notification) string {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(n.Data)) {
		fmt.Fprintf(&b, "%s: %v\n", k, n.Data[k])
	}
	return b.String()
}

// LogDeliverer writes notifications to the log instead of sending them.
type LogDeliverer struct {
	logger *slog.Logger
}

func NewLogDeliverer(logger *slog.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger}
}

func (d *LogDeliverer) Deliver(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.logger.InfoContext(ctx, "notification",
		"to", n.Target.Email,
		"subject", n.Subject,
		"template", n.TemplateKey,
		"data", n.Data,
	)
	return nil
}

type timeoutDeliverer struct {
	next    Deliverer
	timeout time.Duration
}

// WithTimeout bounds every Deliver call of next by timeout.
func WithTimeout(next Deliverer, timeout time.Duration) Deliverer {
	if timeout <= 0 {
		return next
	}
	return &timeoutDeliverer{next: next, timeout: timeout}
}

func (d *timeoutDeliverer) Deliver(ctx context.Context, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.next.Deliver(ctx, n)
}

// FromSettings builds the configured deliverer, bounded by the delivery
// timeout.
func FromSettings(s config.DeliverySettings, logger *slog.Logger) (Deliverer, error) {
	var d Deliverer
	switch s.Provider {
	case config.DeliveryProviderLog:
		d = NewLogDeliverer(logger)
	case config.DeliveryProviderSendgrid:
		d = NewSendgridDeliverer(s.SendgridAPIKey, s.FromName, s.FromAddress, s.SubjectPrefix)
	default:
		return nil, fmt.Errorf("unknown delivery provider %q", s.Provider)
	}
	return WithTimeout(d, s.Timeout), nil
}
