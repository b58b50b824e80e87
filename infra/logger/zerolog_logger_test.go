package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corelogger "github.com/kilianp07/chpdispatch/core/logger"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerLevelAndFields(t *testing.T) {
	t.Setenv("APP_ENV", "")
	var buf bytes.Buffer
	l := NewWithOptions("dispatch", Options{Level: "warn", Out: &buf})
	l.Infof("dropped")
	child := corelogger.With(l, map[string]any{"site": "behounkova"})
	child.Warnf("horizon %d", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "dispatch", entry["component"])
	assert.Equal(t, "behounkova", entry["site"])
	assert.Equal(t, "horizon 2", entry["message"])
}

func TestZerologLoggerDebugw(t *testing.T) {
	t.Setenv("APP_ENV", "")
	var buf bytes.Buffer
	l := NewWithOptions("solver", Options{Level: "debug", Out: &buf})
	l.Debugw("incumbent", map[string]any{"objective": 12.5})
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, 12.5, entry["objective"])
}
