package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Level int

const (
	ERROR Level = iota
	WARN
	INFO
	DEBUG
)

func ParseLevel(lvl string) (Level, error) {
	switch strings.ToLower(lvl) {
	case "error":
		return ERROR, nil
	case "warn":
		return WARN, nil
	case "info":
		return INFO, nil
	case "debug":
		return DEBUG, nil
	}
	return INFO, fmt.Errorf("invalid log level: %s", lvl)
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case ERROR:
		return slog.LevelError
	case WARN:
		return slog.LevelWarn
	case DEBUG:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Logger is a leveled logger. The embedded slog.Logger is used for structured
// records; the printf helpers are kept for command output.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing text records to stderr.
func New(level Level) *Logger {
	return NewWithWriter(level, os.Stderr)
}

// NewWithWriter creates a Logger writing text records to w.
func NewWithWriter(level Level, w io.Writer) *Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.slogLevel()})
	return &Logger{Logger: slog.New(h)}
}

// Discard returns a Logger that drops every record.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// With returns a Logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Errorf prints a formatted error message.
func (l *Logger) Errorf(format string, v ...any) {
	l.logf(slog.LevelError, format, v...)
}

// Warnf prints a formatted warning message.
func (l *Logger) Warnf(format string, v ...any) {
	l.logf(slog.LevelWarn, format, v...)
}

// Infof prints a formatted info message.
func (l *Logger) Infof(format string, v ...any) {
	l.logf(slog.LevelInfo, format, v...)
}

// Debugf prints a formatted debug message.
func (l *Logger) Debugf(format string, v ...any) {
	l.logf(slog.LevelDebug, format, v...)
}

func (l *Logger) logf(level slog.Level, format string, v ...any) {
	ctx := context.Background()
	if !l.Enabled(ctx, level) {
		return
	}
	l.Log(ctx, level, fmt.Sprintf(format, v...))
}

// Redact masks a secret for logging, keeping a short prefix for correlation.
func Redact(secret string) string {
	r := []rune(secret)
	if len(r) <= 8 {
		return "[REDACTED]"
	}
	return string(r[:4]) + "***"
}
