package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, verboseMode bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verboseMode)
	t.Cleanup(func() {
		SetVerbose(false)
		SetJSON(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	buf := capture(t, true)

	Debug("test message %s", "arg")

	assert.Contains(t, buf.String(), "[DEBUG] test message arg")
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	buf := capture(t, false)

	Debug("test message")
	Info("info message")
	Section("Search")

	assert.Zero(t, buf.Len())
}

func TestSection(t *testing.T) {
	buf := capture(t, true)

	Section("Processing Queue")

	assert.Contains(t, buf.String(), "=== Processing Queue ===")
}

func TestInfo_WhenVerbose(t *testing.T) {
	buf := capture(t, true)

	Info("processed %d items", 3)

	assert.Contains(t, buf.String(), "[INFO] processed 3 items")
}

func TestWarn_AlwaysWritten(t *testing.T) {
	buf := capture(t, false)

	Warn("text:%d failed", 7)

	assert.Contains(t, buf.String(), "[WARN] text:7 failed")
}

func TestError_IncludesCause(t *testing.T) {
	buf := capture(t, false)

	Error(errors.New("disk full"), "saving snapshot")

	assert.Contains(t, buf.String(), "[ERROR] saving snapshot")
	assert.Contains(t, buf.String(), "disk full")
}

func TestSetJSON(t *testing.T) {
	buf := capture(t, false)
	SetJSON(true)

	Warn("queue stalled")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "queue stalled", entry["message"])
}
