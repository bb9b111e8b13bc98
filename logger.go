package ipintel

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with ipintel-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithSource adds a source field to the logger.
func (l *Logger) WithSource(source string) *Logger {
	return &Logger{
		Logger: l.Logger.With("source", source),
	}
}

// LogLoad logs the initial load of a data file.
func (l *Logger) LogLoad(ctx context.Context, source string, h Header, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"source", source,
			"duration", duration,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "load completed",
		"source", source,
		"version", h.Version(),
		"published", h.Published.Time().Format(time.DateOnly),
		"duration", duration,
	)
}

// LogReload logs a reload. On failure the previous data file stays in use.
func (l *Logger) LogReload(ctx context.Context, source string, h Header, duration time.Duration, err error) {
	if err != nil {
		l.WarnContext(ctx, "reload failed, keeping current data file",
			"source", source,
			"duration", duration,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "reload completed",
		"source", source,
		"version", h.Version(),
		"published", h.Published.Time().Format(time.DateOnly),
		"duration", duration,
	)
}

// LogRelease logs the engine letting go of a data file.
func (l *Logger) LogRelease(ctx context.Context, source string, refs int64) {
	l.DebugContext(ctx, "data file released",
		"source", source,
		"refs", refs,
	)
}

// LogLookup logs an address resolution.
func (l *Logger) LogLookup(ctx context.Context, addr string, results int, err error) {
	if err != nil {
		l.DebugContext(ctx, "lookup failed",
			"addr", addr,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "lookup completed",
			"addr", addr,
			"results", results,
		)
	}
}
