// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/tasklist/tasklist/pkg/errutil"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "not JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("tasklist", "1.0.0", "json", "info", &buf)
	require.NoError(t, err)

	logger.Info("test message")

	entry := decode(t, &buf)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "tasklist", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.NotContains(t, entry, "request_id")
	assert.NotContains(t, entry, "trace_id")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("tasklist", "1.0.0", "TEXT", "", &buf)
	require.NoError(t, err)

	logger.Info("test message")

	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), "service=tasklist")
}

func TestSetup_DefaultFormatIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("tasklist", "dev", "", "", &buf)
	require.NoError(t, err)

	logger.Info("x")
	decode(t, &buf)
}

func TestSetup_RejectsUnknownFormat(t *testing.T) {
	_, err := Setup("tasklist", "dev", "xml", "info", nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "LOG_FORMAT_INVALID")
}

func TestSetup_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("tasklist", "dev", "json", "warn", &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Equal(t, "kept", decode(t, &buf)["msg"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	errutil.AssertErrorCode(t, err, "LOG_LEVEL_INVALID")
}

func TestHandler_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("tasklist", "dev", "json", "info", &buf)
	require.NoError(t, err)

	ctx := WithRequestID(context.Background(), "01HZX")
	logger.InfoContext(ctx, "handled")

	assert.Equal(t, "01HZX", decode(t, &buf)["request_id"])
	assert.Equal(t, "01HZX", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("tasklist", "dev", "json", "info", &buf)
	require.NoError(t, err)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "traced message")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_WithAttrsKeepsMetadata(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("tasklist", "dev", "json", "info", &buf)
	require.NoError(t, err)

	logger.With("component", "web").WithGroup("http").Info("x", "status", 200)

	entry := decode(t, &buf)
	assert.Equal(t, "web", entry["component"])
	// Attributes added by the handler land inside the open group.
	group, ok := entry["http"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tasklist", group["service"])
}
