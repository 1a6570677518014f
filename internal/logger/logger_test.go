package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug", "JSON")
	assert.True(t, l.Enabled(context.Background(), slog.LevelDebug))

	l.Info("photo encoded", slog.Int("bytes", 42))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "photo encoded", entry["msg"])
	assert.EqualValues(t, 42, entry["bytes"])
}

func TestNewTextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "text")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Warn("shown", "key", "value")
	assert.Contains(t, buf.String(), "key=value")
}

func TestInitSetsGlobal(t *testing.T) {
	prev := L
	t.Cleanup(func() {
		L = prev
		slog.SetDefault(prev)
	})
	Init("error", "text")
	assert.False(t, L.Enabled(context.Background(), slog.LevelWarn))
	assert.Same(t, L, slog.Default())
}

func TestContextLogger(t *testing.T) {
	custom := New(&bytes.Buffer{}, "info", "text").With("request_id", "12345")
	ctx := WithContext(context.Background(), custom)
	assert.Same(t, custom, FromContext(ctx))
	assert.Same(t, L, FromContext(context.Background()))
}

func TestGlobalHelpers(t *testing.T) {
	prev := L
	t.Cleanup(func() { L = prev })
	var buf bytes.Buffer
	L = New(&buf, "debug", "text")

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")
	out := buf.String()
	for _, level := range []string{"DEBUG", "INFO", "WARN", "ERROR"} {
		assert.Contains(t, out, "level="+level)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%s) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
