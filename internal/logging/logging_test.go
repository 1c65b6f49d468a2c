package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "warn", Output: &buf})

	logger.Info("dropped")
	logger.Warn("kept", "job_id", "abc")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"job_id":"abc"`)
}

func TestRollbarHandler_ForwardsErrorsOnly(t *testing.T) {
	type report struct {
		msg    string
		err    error
		fields map[string]any
	}
	var reports []report

	var buf bytes.Buffer
	h := &rollbarHandler{
		next: slog.NewJSONHandler(&buf, nil),
		report: func(msg string, err error, fields map[string]any) {
			reports = append(reports, report{msg, err, fields})
		},
	}
	logger := slog.New(h).With("worker", "w1")

	cause := errors.New("smtp down")
	logger.Info("leased")
	logger.Error("delivery failed", "error", cause, "attempt", 2)

	require.Len(t, reports, 1)
	assert.Equal(t, "delivery failed", reports[0].msg)
	assert.Equal(t, cause, reports[0].err)
	assert.Equal(t, "w1", reports[0].fields["worker"])
	assert.EqualValues(t, 2, reports[0].fields["attempt"])

	// records still reach the wrapped handler
	assert.Contains(t, buf.String(), "leased")
	assert.Contains(t, buf.String(), "delivery failed")
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
}

func TestRollbarHandler_GroupsApplyToLaterAttrsOnly(t *testing.T) {
	var fields map[string]any
	h := &rollbarHandler{
		next: slog.NewJSONHandler(io.Discard, nil),
		report: func(_ string, _ error, f map[string]any) {
			fields = f
		},
	}

	logger := slog.New(h).
		With("a", 1).
		WithGroup("g").
		With("b", 2).
		WithGroup("h")
	logger.Error("boom", "c", 3)

	assert.Equal(t, map[string]any{
		"a":     int64(1),
		"g.b":   int64(2),
		"g.h.c": int64(3),
	}, fields)
}
