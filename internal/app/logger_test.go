package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"})

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept", "batch_id", "b-1")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "b-1", line["batch_id"])
	assert.NotContains(t, line, "source")
}

func TestNewLoggerDebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, &Config{LogLevel: "debug"}).Debug("trace")
	assert.Contains(t, buf.String(), "source=")
	assert.Contains(t, buf.String(), "msg=trace")
}

func TestParseLevel(t *testing.T) {
	for raw, want := range map[string]string{"": "INFO", "debug": "DEBUG", "Error": "ERROR"} {
		level, err := parseLevel(raw)
		require.NoError(t, err)
		assert.Equal(t, want, level.String())
	}
	_, err := parseLevel("loud")
	assert.Error(t, err)
}
