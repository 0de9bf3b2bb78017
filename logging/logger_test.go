package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickLogger_ContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf})

	l.WithComponent("invoker").WithTick(7).WithAgent("meta_planner", "run-1").Info("hello", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "invoker", entry["component"])
	assert.Equal(t, float64(7), entry["tick"])
	assert.Equal(t, "meta_planner", entry["agent"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "v", entry["k"])
}

func TestTickLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "text", Output: &buf})
	l.Info("dropped")
	assert.Zero(t, buf.Len())
	l.LogLLMCall("gpt-4o", 0, time.Second, false, errors.New("boom"))
	assert.Contains(t, buf.String(), "LLM call failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLevel("nonsense"))
}

func TestComponent(t *testing.T) {
	assert.Equal(t, NoOpLogger{}, Component(nil, "x"))
	assert.Equal(t, NoOpLogger{}, Component(NoOpLogger{}, "x"))
	tl := NewSlogLogger(LogLevelInfo, "text", false)
	scoped, ok := Component(tl, "state").(*TickLogger)
	require.True(t, ok)
	assert.Equal(t, "state", scoped.component)
}

func TestTickLogger_StartTimer(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "text", Output: &buf})

	stop := l.StartTimer("step meta-analysis")
	dur := stop()
	assert.GreaterOrEqual(t, dur, time.Duration(0))
	assert.Contains(t, buf.String(), "operation=\"step meta-analysis\"")

	buf.Reset()
	l.LogStage("meta-analysis", 2, dur, nil)
	assert.Contains(t, buf.String(), "Stage completed")
	assert.Contains(t, buf.String(), "agent_count=2")
}

func TestLogger_AcceptsPlainSlog(t *testing.T) {
	var buf bytes.Buffer
	var l Logger = slog.New(slog.NewTextHandler(&buf, nil))
	Component(l, "state").Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
