package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		checkFunc func(t *testing.T, logger *Logger, output *bytes.Buffer)
	}{
		{
			name:   "json format with debug level",
			config: Config{Level: "debug", Format: "json"},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Debug("thinking changed", slog.Bool("thinking", true))

				entries := decodeLines(t, output)
				require.Len(t, entries, 1)
				assert.Equal(t, "DEBUG", entries[0]["level"])
				assert.Equal(t, "thinking changed", entries[0]["msg"])
				assert.Equal(t, true, entries[0]["thinking"])
				assert.Contains(t, entries[0], "time")
			},
		},
		{
			name:   "warn level filters info",
			config: Config{Level: "WARN", Format: "json"},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("task submitted")
				logger.Warn("refresh failed", slog.String("error", "timeout"))

				entries := decodeLines(t, output)
				require.Len(t, entries, 1)
				assert.Equal(t, "WARN", entries[0]["level"])
				assert.Equal(t, "timeout", entries[0]["error"])
			},
		},
		{
			name:   "console format",
			config: Config{Level: "info", Format: "console", NoColor: true, TimeFormat: time.Kitchen},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("API key saved")

				assert.Contains(t, output.String(), "INF")
				assert.Contains(t, output.String(), "API key saved")
			},
		},
		{
			name:   "source location",
			config: Config{Level: "info", Format: "json", EnableSource: true},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("message with source")

				entries := decodeLines(t, output)
				require.Len(t, entries, 1)
				source, ok := entries[0]["source"].(map[string]interface{})
				require.True(t, ok)
				assert.Contains(t, source, "file")
				assert.Contains(t, source, "line")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			cfg := tt.config
			cfg.writer = output

			logger, err := New(&cfg)
			require.NoError(t, err)
			require.NotNil(t, logger)

			tt.checkFunc(t, logger, output)
		})
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	logger, err := New(&Config{Format: "xml", writer: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Nil(t, logger)
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.log")

	logger, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("written to file")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
	assert.NoError(t, logger.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{level: "debug", expected: slog.LevelDebug},
		{level: "DEBUG", expected: slog.LevelDebug},
		{level: "info", expected: slog.LevelInfo},
		{level: "warning", expected: slog.LevelWarn},
		{level: "error", expected: slog.LevelError},
		{level: "invalid", expected: slog.LevelInfo},
		{level: "", expected: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestLogger_WithGroupAndWith(t *testing.T) {
	output := &bytes.Buffer{}

	logger, err := New(&Config{Level: "info", Format: "json", writer: output})
	require.NoError(t, err)

	logger.With(slog.String("component", "tracker")).
		WithGroup("task").
		Info("task added", slog.String("id", "42"))

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	assert.Equal(t, "tracker", entries[0]["component"])

	group, ok := entries[0]["task"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "42", group["id"])
}
