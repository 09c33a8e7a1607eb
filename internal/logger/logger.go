// Package logger provides a context-carried structured logger.
package logger

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Logger is the logging interface used across the engine.
type Logger interface {
	Debug(msg string, tags ...any)
	Info(msg string, tags ...any)
	Warn(msg string, tags ...any)
	Error(msg string, tags ...any)
	With(tags ...any) Logger
}

// Options configures a new Logger.
type Options struct {
	// Debug enables debug-level output.
	Debug bool
	// Quiet suppresses stderr output.
	Quiet bool
	// LogFile is an optional secondary sink.
	LogFile io.Writer
	// Format is "text" or "json". Defaults to "text".
	Format string
}

type appLogger struct {
	inner *slog.Logger
}

// NewLogger creates a Logger writing to stderr and, when configured, a log
// file. Multiple sinks are fanned out with slog-multi.
func NewLogger(opts Options) Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var handlers []slog.Handler
	if !opts.Quiet {
		handlers = append(handlers, newHandler(os.Stderr, opts.Format, level))
	}
	if opts.LogFile != nil {
		handlers = append(handlers, newHandler(opts.LogFile, opts.Format, level))
	}
	if len(handlers) == 0 {
		handlers = append(handlers, newHandler(io.Discard, opts.Format, level))
	}

	return &appLogger{inner: slog.New(slogmulti.Fanout(handlers...))}
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}

func (l *appLogger) Debug(msg string, tags ...any) { l.inner.Debug(msg, tags...) }
func (l *appLogger) Info(msg string, tags ...any)  { l.inner.Info(msg, tags...) }
func (l *appLogger) Warn(msg string, tags ...any)  { l.inner.Warn(msg, tags...) }
func (l *appLogger) Error(msg string, tags ...any) { l.inner.Error(msg, tags...) }

func (l *appLogger) With(tags ...any) Logger {
	return &appLogger{inner: l.inner.With(tags...)}
}

var defaultLogger = NewLogger(Options{})
