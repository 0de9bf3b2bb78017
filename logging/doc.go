// Package logging provides a minimal logging interface and adapters for tickmesh.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// that the scheduler, invoker and stores use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - TickLogger, a slog-backed logger carrying component / tick / agent context
//   - NoOpLogger for silent operation (tests, minimal setups)
//
// A plain *slog.Logger satisfies Logger as well.
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "text", false)
//	sched := scheduler.New(store, reg, router, inv, func(o *scheduler.Options) { o.Logger = logger })
//
// Arguments after the message are slog key/value pairs.
package logging
