package events

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", "text", &buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", "json", &buf)

	logger.WithField("record_id", "evt-1").Info("pulled record")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "pulled record", entry["msg"])
	assert.Equal(t, "evt-1", entry["record_id"])
	assert.NotEmpty(t, entry["time"])
}

func TestLoggerFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	base := New("debug", "text", &buf)

	child := base.WithField("component", "engine").WithFields(map[string]interface{}{
		"op": "pull",
	})
	child.Info("merged")

	out := buf.String()
	assert.Contains(t, out, "component=engine")
	assert.Contains(t, out, "op=pull")

	// Child fields must not leak back into the parent.
	buf.Reset()
	base.Info("plain")
	assert.NotContains(t, buf.String(), "component=engine")
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", "text", &buf)

	logger.WithError(assert.AnError).Error("push failed")
	assert.Contains(t, buf.String(), assert.AnError.Error())

	// Nil error adds nothing.
	buf.Reset()
	logger.WithError(nil).Info("fine")
	assert.NotContains(t, buf.String(), "error=")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("anything else"))
}
