// Package logger provides structured logging for SQL Sentinel, backed by
// log/slog with typed field constructors.
package logger

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// LogLevel controls the minimum severity a logger emits.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// Field is a typed key/value pair attached to a log entry.
type Field = slog.Attr

// Logger is the logging interface used throughout the application.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

func String(key, value string) Field      { return slog.String(key, value) }
func Int(key string, value int) Field     { return slog.Int(key, value) }
func Int64(key string, value int64) Field { return slog.Int64(key, value) }
func Uint64(key string, value uint64) Field {
	return slog.Uint64(key, value)
}
func Float64(key string, value float64) Field { return slog.Float64(key, value) }
func Bool(key string, value bool) Field       { return slog.Bool(key, value) }
func Duration(key string, value time.Duration) Field {
	return slog.Duration(key, value)
}
func Time(key string, value time.Time) Field { return slog.Time(key, value) }
func Any(key string, value any) Field        { return slog.Any(key, value) }

// Error wraps an error under the conventional "error" key. A nil error is
// rendered as the string "nil" rather than being dropped.
func Error(err error) Field {
	if err == nil {
		return slog.String("error", "nil")
	}
	return slog.String("error", err.Error())
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger creates a Logger writing text-formatted entries to w at the
// given minimum level. Initial fields, if any, are attached to every entry.
func NewSlogLogger(w io.Writer, level LogLevel, fields []Field) Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel(level)})
	l := slog.New(handler)
	if len(fields) > 0 {
		l = l.With(attrsToArgs(fields)...)
	}
	return &slogLogger{l: l}
}

// NewDiscardLogger returns a logger that drops everything. Used in tests.
func NewDiscardLogger() Logger {
	return NewSlogLogger(io.Discard, LogLevelError, nil)
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
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

// ParseLevel maps a level name to a LogLevel, defaulting to info.
func ParseLevel(name string) LogLevel {
	switch name {
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

func attrsToArgs(fields []Field) []any {
	args := make([]any, len(fields))
	for i := range fields {
		args[i] = fields[i]
	}
	return args
}

func (s *slogLogger) Debug(msg string, fields ...Field) {
	s.l.LogAttrs(context.Background(), slog.LevelDebug, msg, fields...)
}

func (s *slogLogger) Info(msg string, fields ...Field) {
	s.l.LogAttrs(context.Background(), slog.LevelInfo, msg, fields...)
}

func (s *slogLogger) Warn(msg string, fields ...Field) {
	s.l.LogAttrs(context.Background(), slog.LevelWarn, msg, fields...)
}

func (s *slogLogger) Error(msg string, fields ...Field) {
	s.l.LogAttrs(context.Background(), slog.LevelError, msg, fields...)
}

func (s *slogLogger) With(fields ...Field) Logger {
	return &slogLogger{l: s.l.With(attrsToArgs(fields)...)}
}
