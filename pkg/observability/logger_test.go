package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/replayer/pkg/observability"
)

func spanContext(t *testing.T) context.Context {
	t.Helper()

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})

	return trace.ContextWithSpanContext(context.Background(), sc)
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	return record
}

func TestTracingHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "replayer", "staging", observability.ModeRun))

	logger.InfoContext(spanContext(t), "stride merged")

	record := decode(t, &buf)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "replayer", record["service"])
	assert.Equal(t, "staging", record["env"])
	assert.Equal(t, "run", record["mode"])
}

func TestTracingHandler_NoTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "replayer", "", observability.ModeDryRun))

	logger.Info("planned")

	record := decode(t, &buf)
	assert.NotContains(t, record, "trace_id")
	assert.NotContains(t, record, "span_id")
	assert.NotContains(t, record, "env")
	assert.Equal(t, "dry-run", record["mode"])
}

func TestTracingHandler_GroupKeepsServiceAtTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "replayer", "", observability.ModeRun))

	logger.WithGroup("stride").With("index", 49).Info("merged")

	record := decode(t, &buf)
	assert.Equal(t, "replayer", record["service"])

	group, ok := record["stride"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 49, group["index"], 0)
}

func TestTracingHandler_RespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := observability.NewLogger(observability.Config{
		ServiceName: "replayer",
		LogLevel:    slog.LevelWarn,
		LogJSON:     true,
		LogWriter:   &buf,
	})

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn("shown")
	assert.Equal(t, "shown", decode(t, &buf)["msg"])
}

func TestNewLogger_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := observability.NewLogger(observability.Config{ServiceName: "replayer", LogWriter: &buf})
	logger.Info("no commits to onboard")

	assert.Contains(t, buf.String(), `msg="no commits to onboard"`)
	assert.Contains(t, buf.String(), "service=replayer")
}
