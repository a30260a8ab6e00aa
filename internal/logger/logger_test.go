package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/xprobe/internal/logger"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("XPROBE_LOG_LEVEL", "debug")
	t.Setenv("XPROBE_LOG_FORMAT", "JSON")
	t.Setenv("XPROBE_LOG_SOURCE", "true")

	cfg := logger.LoadConfig()
	assert.Equal(t, slog.LevelDebug, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.AddSource)
}

func TestLoadConfigIgnoresInvalidValues(t *testing.T) {
	t.Setenv("XPROBE_LOG_LEVEL", "loud")
	t.Setenv("XPROBE_LOG_FORMAT", "xml")
	t.Setenv("XPROBE_LOG_SOURCE", "maybe")

	assert.Equal(t, logger.DefaultConfig().Level, logger.LoadConfig().Level)
	assert.Equal(t, "text", logger.LoadConfig().Format)
	assert.False(t, logger.LoadConfig().AddSource)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   slog.Level
		wantOK bool
	}{
		{in: "WARN", want: slog.LevelWarn, wantOK: true},
		{in: "warning", want: slog.LevelWarn, wantOK: true},
		{in: "error", want: slog.LevelError, wantOK: true},
		{in: "-4", want: slog.LevelDebug, wantOK: true},
		{in: "", wantOK: false},
		{in: "verbose", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := logger.ParseLevel(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: slog.LevelWarn, Format: "json", Writer: &buf})

	log.Info("dropped")
	log.Warn("probe failed", "table", "orders")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "probe failed", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "orders", entry["table"])
	assert.NotContains(t, entry, "caller")
}

func TestNewDebugAndSource(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: slog.LevelDebug, Format: "json", AddSource: true, Writer: &buf})

	log.With("dialect", "sqlite").Debug("timed full query", "rows", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "sqlite", entry["dialect"])
	assert.EqualValues(t, 3, entry["rows"])
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestNewDefaultsToText(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Writer: &buf})
	log.Debug("hidden")
	log.Info("hello", "k", "v")

	out := buf.String()
	assert.Contains(t, out, "INFO\thello")
	assert.Contains(t, out, `{"k": "v"}`)
	assert.NotContains(t, out, "hidden")
}
