package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates logger with console writer", func(t *testing.T) {
		logger := NewLogger(Config{Level: "info", NoColor: true})
		assert.NotNil(t, logger)
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})

	t.Run("creates logger with file writer", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "snapwiz.log")

		logger := NewLogger(Config{Level: "debug", LogFile: logFile, NoColor: true, Quiet: true})
		logger.Debug().Msg("written to file only")

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "written to file only")
	})
}

func TestLevelWriter_DropsBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	w := levelWriter{Writer: &buf, min: zerolog.WarnLevel}

	n, err := w.WriteLevel(zerolog.InfoLevel, []byte("info\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Empty(t, buf.String())

	_, err = w.WriteLevel(zerolog.ErrorLevel, []byte("error\n"))
	require.NoError(t, err)
	assert.Equal(t, "error\n", buf.String())
}

func TestForTask(t *testing.T) {
	var buf bytes.Buffer
	base := NewTestLogger(&buf)

	ForTask(base, "task-1", "/tmp/a.deb").Info().Msg("stage advanced")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "task-1", event["task_id"])
	assert.Equal(t, "/tmp/a.deb", event["package"])
	assert.Equal(t, "stage advanced", event["message"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"warning", "warn"},
		{"error", "error"},
		{"invalid", "info"},
		{"", "info"},
		{" Debug ", "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input).String())
		})
	}
}
