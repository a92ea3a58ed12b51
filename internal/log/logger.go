// Package log provides structured logging for mealgroom.
//
// A Logger interface backed by stdlib slog keeps subsystems testable: the
// remote client, executor, and orchestrator accept a Logger, with a global
// default for the CLI entry point. Diagnostics go to stderr; command output
// (pattern tables, batch summaries) goes to stdout and never through here.
//
// Verbosity levels map to flags on the root command:
//   - ERROR (--quiet): failures only
//   - WARN (default): recoverable problems, e.g. a failed cache refresh
//   - INFO (--verbose): operational context, e.g. "fetched 412 recipes"
//   - DEBUG (--debug): request-level detail, retry attempts, cache decisions
//
// The API token must never be passed as a log attribute.
package log

import (
	"io"
	"log/slog"
	"sync"
)

// Logger is the interface for structured logging. Method signatures match
// slog for easy integration.
type Logger interface {
	// Debug logs at DEBUG level: retry attempts, per-request timing,
	// pattern-id derivation details.
	Debug(msg string, args ...any)

	// Info logs at INFO level: snapshot sizes, batch start/finish.
	Info(msg string, args ...any)

	// Warn logs at WARN level: recoverable issues such as a non-fatal
	// catalog refresh failure.
	Warn(msg string, args ...any)

	// Error logs at ERROR level: failures surfaced to the operator.
	Error(msg string, args ...any)

	// With returns a Logger carrying additional context attributes.
	With(args ...any) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// New creates a Logger backed by slog with the given handler.
func New(h slog.Handler) Logger {
	return &slogLogger{l: slog.New(h)}
}

// NewText creates a Logger writing human-readable lines at the given level.
// The CLI passes os.Stderr so diagnostics never mix with command output.
func NewText(w io.Writer, level slog.Level) Logger {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}

// noopLogger discards all log output.
type noopLogger struct{}

// NewNoop returns a logger that discards everything. Used in tests.
func NewNoop() Logger {
	return noopLogger{}
}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) With(...any) Logger   { return noopLogger{} }

var (
	defaultLogger Logger = noopLogger{}
	defaultMu     sync.RWMutex
)

// Default returns the global logger configured at startup.
// Returns a noop logger if SetDefault has not been called.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the global logger. Called once in main() after parsing
// verbosity flags.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}
