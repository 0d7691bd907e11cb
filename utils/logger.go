package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/lmittmann/tint"
)

// LoggerOptions configures where and how much the Logger writes.
type LoggerOptions struct {
	Writer io.Writer
	Level  string

	// Fluent, when set, receives a copy of every record at or above Level.
	Fluent    *fluent.Fluent
	FluentTag string
}

// Logger provides leveled logging throughout the application.
type Logger struct {
	slog      *slog.Logger
	level     slog.Level
	fluent    *fluent.Fluent
	fluentTag string
}

// NewLogger creates a Logger writing coloured output to stdout at info level.
func NewLogger() *Logger {
	return NewLoggerWithOptions(LoggerOptions{})
}

// NewLoggerWithOptions creates a Logger from explicit options.
func NewLoggerWithOptions(opts LoggerOptions) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	level := ParseLevel(opts.Level)

	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05",
	})

	tag := opts.FluentTag
	if tag == "" {
		tag = "log"
	}

	return &Logger{
		slog:      slog.New(handler),
		level:     level,
		fluent:    opts.Fluent,
		fluentTag: tag,
	}
}

// NewFluentClient connects the forwarding client used by LoggerOptions.Fluent.
func NewFluentClient(host string, port int, tagPrefix string) (*fluent.Fluent, error) {
	if tagPrefix == "" {
		return nil, fmt.Errorf("fluent: tag prefix is required")
	}
	client, err := fluent.New(fluent.Config{
		FluentHost: host,
		FluentPort: port,
		TagPrefix:  tagPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("fluent: connect %s:%d: %w", host, port, err)
	}
	return client, nil
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Info(format string, args ...any) {
	l.log(slog.LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

// Close flushes and closes the Fluent forwarder, if any.
func (l *Logger) Close() error {
	if l.fluent == nil {
		return nil
	}
	return l.fluent.Close()
}

func (l *Logger) log(level slog.Level, format string, args ...any) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.slog.Log(context.Background(), level, msg)

	if l.fluent != nil {
		_ = l.fluent.Post(l.fluentTag, map[string]any{
			"level":     strings.ToLower(level.String()),
			"message":   msg,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}
