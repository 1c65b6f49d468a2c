// Package logging builds the process logger: JSON records on stdout and,
// when a Rollbar token is configured, error records forwarded to Rollbar.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/rollbar/rollbar-go"
)

type Options struct {
	Level        string
	Env          string
	RollbarToken string
	CodeVersion  string
	Output       io.Writer
}

func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var h slog.Handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	if opts.RollbarToken != "" {
		rollbar.SetToken(opts.RollbarToken)
		rollbar.SetEnvironment(opts.Env)
		rollbar.SetCodeVersion(opts.CodeVersion)
		if host, err := os.Hostname(); err == nil {
			rollbar.SetServerHost(host)
		}
		h = &rollbarHandler{next: h, report: reportToRollbar}
	}
	return slog.New(h)
}

// Flush waits for queued Rollbar reports. Call it before the process exits.
func Flush() {
	rollbar.Wait()
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func reportToRollbar(msg string, err error, fields map[string]any) {
	if err != nil {
		rollbar.Error(err, msg, fields)
		return
	}
	rollbar.Error(msg, fields)
}

// rollbarHandler forwards error records to Rollbar and passes every record
// on to next. Stored attrs carry the group prefix that was open when they
// were added.
type rollbarHandler struct {
	next   slog.Handler
	attrs  []slog.Attr
	group  string
	report func(msg string, err error, fields map[string]any)
}

func (h *rollbarHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *rollbarHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		fields := make(map[string]any, len(h.attrs)+r.NumAttrs())
		var recErr error
		add := func(key string, v slog.Value) {
			if e, ok := v.Any().(error); ok && recErr == nil {
				recErr = e
			}
			fields[key] = v.Resolve().Any()
		}
		for _, a := range h.attrs {
			add(a.Key, a.Value)
		}
		r.Attrs(func(a slog.Attr) bool {
			add(h.prefixed(a.Key), a.Value)
			return true
		})
		h.report(r.Message, recErr, fields)
	}
	return h.next.Handle(ctx, r)
}

func (h *rollbarHandler) prefixed(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

func (h *rollbarHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := slices.Clip(h.attrs)
	for _, a := range attrs {
		merged = append(merged, slog.Attr{Key: h.prefixed(a.Key), Value: a.Value})
	}
	return &rollbarHandler{
		next:   h.next.WithAttrs(attrs),
		attrs:  merged,
		group:  h.group,
		report: h.report,
	}
}

func (h *rollbarHandler) WithGroup(name string) slog.Handler {
	return &rollbarHandler{
		next:   h.next.WithGroup(name),
		attrs:  h.attrs,
		group:  h.prefixed(name),
		report: h.report,
	}
}
