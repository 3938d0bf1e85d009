package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: "json", Output: &buf})

	l.Info("Runner", "Audit finished: contracts=%d", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "Runner", entry["component"])
	assert.Equal(t, "Audit finished: contracts=3", entry["msg"])
}

func TestLoggerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})

	l.Info("Runner", "hidden")
	assert.Empty(t, buf.String())

	l.SetLogLevel(LevelDebug)
	l.Debug("Runner", "shown")
	assert.True(t, strings.Contains(buf.String(), "shown"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.Error("Any", "discarded: %v", "x")
}
