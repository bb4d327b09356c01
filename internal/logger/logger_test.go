package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleLoggerTextOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelDebug, time.UTC).Module("classifier")

	log.Info("model loaded", String("model", "food101"), Int("labels", 101), Float32("threshold", 0.05))

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "INFO  [classifier] model loaded"), line)
	assert.Contains(t, line, "model=food101")
	assert.Contains(t, line, "labels=101")
	assert.Contains(t, line, "threshold=0.05")
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelWarn, time.UTC)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	log.Log(LogLevelError, "also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN  shown")
	assert.Contains(t, out, "ERROR also shown")
}

func TestNestedModulesAndFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := NewSlogLogger(&buf, LogLevelInfo, time.UTC).Module("analysis")
	child := base.Module("gateway").With(String("record_id", "r-1"))

	child.Info("saved")
	base.Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[analysis.gateway] saved record_id=r-1")
	assert.NotContains(t, lines[1], "record_id")
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC)

	log.WithContext(WithTraceID(context.Background(), "abc-123")).Info("request")
	log.WithContext(context.Background()).Info("untraced")

	out := buf.String()
	assert.Contains(t, out, "request trace_id=abc-123")
	assert.Contains(t, out, "untraced\n")
}

func TestCentralLoggerFileOutputIsJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "mealsnap.log")
	var console bytes.Buffer
	cl, err := newCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: true, Level: "warn"},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"datastore": "error"},
	}, &console)
	require.NoError(t, err)

	cl.Module("nutrition").Debug("lookup", String("query", "1 apple"))
	cl.Module("datastore").Warn("dropped by module level")
	require.NoError(t, cl.Close())

	assert.Empty(t, console.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "lookup", entry["msg"])
	assert.Equal(t, "nutrition", entry["module"])
	assert.Equal(t, "1 apple", entry["query"])
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}

func TestErrorFieldNil(t *testing.T) {
	t.Parallel()

	f := Error(nil)
	assert.Equal(t, "error", f.Key)
	assert.Nil(t, f.Value)
}
