package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line: %s", line)
		entries = append(entries, entry)
	}
	return entries
}

func TestStructuredLogging(t *testing.T) {
	t.Run("ParseLevel accepts known levels", func(t *testing.T) {
		for _, name := range []string{"debug", "info", "warn", "error"} {
			level, err := ParseLevel(name)
			require.NoError(t, err)
			assert.Equal(t, LogLevel(name), level)
		}

		_, err := ParseLevel("verbose")
		assert.Error(t, err)
	})

	t.Run("ParseFormat accepts known formats", func(t *testing.T) {
		for _, name := range []string{"auto", "text", "json"} {
			format, err := ParseFormat(name)
			require.NoError(t, err)
			assert.Equal(t, Format(name), format)
		}

		_, err := ParseFormat("xml")
		assert.Error(t, err)
	})

	t.Run("level maps to slog level", func(t *testing.T) {
		tests := []struct {
			level    LogLevel
			expected slog.Level
		}{
			{LogLevelDebug, slog.LevelDebug},
			{LogLevelInfo, slog.LevelInfo},
			{LogLevelWarn, slog.LevelWarn},
			{LogLevelError, slog.LevelError},
			{"", slog.LevelInfo},
		}

		for _, tt := range tests {
			t.Run(string(tt.level), func(t *testing.T) {
				assert.Equal(t, tt.expected, tt.level.slogLevel())
			})
		}
	})

	t.Run("Logger outputs structured JSON", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New("test-component", Options{Level: LogLevelDebug, Format: FormatJSON, Output: &buf})

		logger.Info("test message", "key", "value", "number", 42)

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		entry := entries[0]

		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "test message", entry["msg"])
		assert.Equal(t, "test-component", entry["component"])
		assert.Equal(t, "value", entry["key"])
		assert.Equal(t, float64(42), entry["number"])
		assert.Contains(t, entry, "time")
	})

	t.Run("auto format falls back to JSON for non-terminals", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New("auto", Options{Format: FormatAuto, Output: &buf})

		logger.Info("hello")

		assert.True(t, strings.HasPrefix(buf.String(), "{"))
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New("text", Options{Format: FormatText, Output: &buf})

		logger.Info("hello", "key", "value")

		assert.Contains(t, buf.String(), "msg=hello")
		assert.Contains(t, buf.String(), "component=text")
		assert.Contains(t, buf.String(), "key=value")
	})

	t.Run("level filters output", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New("test", Options{Level: LogLevelWarn, Format: FormatJSON, Output: &buf})

		logger.Debug("hidden")
		logger.Info("hidden")
		logger.Warn("shown")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "shown", entries[0]["msg"])
	})

	t.Run("WithComponent creates logger with new component", func(t *testing.T) {
		var buf bytes.Buffer
		original := New("original", Options{Format: FormatJSON, Output: &buf})

		original.WithComponent("new-component").Info("test message")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "new-component", entries[0]["component"])
	})

	t.Run("WithAccount and WithCycle add context", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New("scheduler", Options{Format: FormatJSON, Output: &buf})

		logger.WithAccount("alice").WithCycle("cycle-1").Info("checking eligibility")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "alice", entries[0]["account"])
		assert.Equal(t, "cycle-1", entries[0]["cycle_id"])
		assert.Equal(t, "scheduler", entries[0]["component"])
	})
}

func TestEventHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := New("scheduler", Options{Level: LogLevelDebug, Format: FormatJSON, Output: &buf})

	logger.LogClaimSuccess(1500, 98765.432, 8)
	logger.LogClaimFailure("claiming", "auth", "check api_key", errors.New("credentials rejected"))
	logger.LogBackoff(time.Minute, 3)
	logger.LogWait("next cycle", 2*time.Hour, "2h")
	logger.LogError("journal", errors.New("disk full"), "account", "alice")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 5)

	assert.Equal(t, "claimed reward", entries[0]["msg"])
	assert.Equal(t, "$1500.00", entries[0]["reward"])
	assert.Equal(t, "$98765.43", entries[0]["new_balance"])
	assert.Equal(t, float64(8), entries[0]["login_streak"])

	assert.Equal(t, "ERROR", entries[1]["level"])
	assert.Equal(t, "claiming", entries[1]["stage"])
	assert.Equal(t, "auth", entries[1]["kind"])
	assert.Equal(t, "check api_key", entries[1]["hint"])
	assert.Equal(t, "credentials rejected", entries[1]["error"])

	assert.Equal(t, "WARN", entries[2]["level"])
	assert.Equal(t, "1m0s", entries[2]["delay"])
	assert.Equal(t, float64(3), entries[2]["consecutive_failures"])

	assert.Equal(t, "DEBUG", entries[3]["level"])
	assert.Equal(t, "2h", entries[3]["human"])

	assert.Equal(t, "journal", entries[4]["operation"])
	assert.Equal(t, "alice", entries[4]["account"])
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.NotPanics(t, func() {
		logger.Info("nothing")
		logger.WithAccount("a").Error("nothing")
	})
}
