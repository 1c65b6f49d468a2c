package wakeup

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "coursenotify.jobs"

// NATS fans wake-ups out to every worker process connected to the same
// server. Delivery is best effort; pollers still pick up anything missed.
type NATS struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	local  *Local
	logger *slog.Logger
}

var _ Notifier = (*NATS)(nil)

func NewNATS(url string, logger *slog.Logger) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("coursenotify"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	n := &NATS{nc: nc, local: NewLocal(), logger: logger}

	sub, err := nc.Subscribe(subjectPrefix+".>", func(msg *nats.Msg) {
		n.local.Notify(strings.TrimPrefix(msg.Subject, subjectPrefix+"."))
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", subjectPrefix, err)
	}
	n.sub = sub

	return n, nil
}

// Notify publishes to the shared subject; the local subscription receives
// the echo like any other process.
func (n *NATS) Notify(jobType string) {
	if err := n.nc.Publish(subjectPrefix+"."+jobType, nil); err != nil {
		n.logger.Warn("wake-up publish failed", "type", jobType, "error", err)
		n.local.Notify(jobType)
	}
}

func (n *NATS) Subscribe(jobTypes ...string) (<-chan struct{}, func()) {
	return n.local.Subscribe(jobTypes...)
}

func (n *NATS) Close() error {
	if n.sub != nil {
		_ = n.sub.Unsubscribe()
	}
	return n.nc.Drain()
}
