package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config or flag value to a LogLevel. Unknown values yield LogLevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface used across tickmesh.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// TickLogger wraps slog.Logger adding contextual cloning helpers and
// orchestration specific helpers. It is cheap to copy via the With* methods.
type TickLogger struct {
	logger    *slog.Logger
	level     LogLevel
	component string
	tick      int
	agent     string
	runID     string
}

// LoggerConfig configures construction of a TickLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultLoggerConfig returns a baseline text info level configuration writing to stderr.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "text", Output: os.Stderr}
}

// NewLogger builds a TickLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *TickLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}
	return &TickLogger{logger: slog.New(handler), level: cfg.Level, component: cfg.Component, tick: -1}
}

// NewSlogLogger creates a TickLogger writing to stderr with the given level and format.
func NewSlogLogger(level LogLevel, format string, addSource bool) *TickLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *TickLogger) clone() *TickLogger {
	nl := *l
	return &nl
}

// WithComponent sets the logical component (scheduler, invoker, mailbox, ...).
func (l *TickLogger) WithComponent(c string) *TickLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithTick attaches the tick being produced.
func (l *TickLogger) WithTick(tick int) *TickLogger {
	nl := l.clone()
	nl.tick = tick
	return nl
}

// WithAgent attaches an agent identifier and the run id of its invocation.
func (l *TickLogger) WithAgent(agent, runID string) *TickLogger {
	nl := l.clone()
	nl.agent = agent
	nl.runID = runID
	return nl
}

func (l *TickLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 4)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.tick >= 0 {
		attrs = append(attrs, slog.Int("tick", l.tick))
	}
	if l.agent != "" {
		attrs = append(attrs, slog.String("agent", l.agent))
	}
	if l.runID != "" {
		attrs = append(attrs, slog.String("run_id", l.runID))
	}
	return attrs
}

func (l *TickLogger) log(level slog.Level, msg string, args ...any) {
	if !l.logger.Enabled(context.Background(), level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(l.buildAttrs()...)
	r.Add(args...)
	_ = l.logger.Handler().Handle(context.Background(), r)
}

// Debug logs at debug level.
func (l *TickLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *TickLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *TickLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *TickLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// LogLLMCall records model call latency, token usage and success.
func (l *TickLogger) LogLLMCall(model string, tokens int, dur time.Duration, success bool, err error) {
	args := []any{"model", model, "token_count", tokens, "duration", dur, "success", success}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	if !success {
		l.Error("LLM call failed", args...)
		return
	}
	l.Info("LLM call completed", args...)
}

// LogStage records the outcome of one scheduler step.
func (l *TickLogger) LogStage(stage string, agents int, dur time.Duration, err error) {
	args := []any{"stage", stage, "agent_count", agents, "duration", dur}
	if err != nil {
		l.Error("Stage failed", append(args, "error", err.Error())...)
		return
	}
	l.Info("Stage completed", args...)
}

// StartTimer returns a closure that logs and returns the elapsed duration when invoked.
func (l *TickLogger) StartTimer(op string) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		d := time.Since(start)
		l.Debug("Operation completed", "operation", op, "duration", d)
		return d
	}
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// Component returns l scoped to component when l is a *TickLogger, otherwise l unchanged.
func Component(l Logger, component string) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	if tl, ok := l.(*TickLogger); ok {
		return tl.WithComponent(component)
	}
	return l
}
