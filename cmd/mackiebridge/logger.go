package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel is a user-facing log level name.
type LogLevel string

const (
	LogLevelError LogLevel = "error"
	LogLevelWarn  LogLevel = "warn"
	LogLevelInfo  LogLevel = "info"
	LogLevelDebug LogLevel = "debug"
)

// logLevels maps accepted spellings to levels. Debug includes per-message
// MIDI and host traffic, so it is noisy on a busy surface.
var logLevels = map[string]struct {
	name  LogLevel
	level slog.Level
}{
	"error":   {LogLevelError, slog.LevelError},
	"warn":    {LogLevelWarn, slog.LevelWarn},
	"warning": {LogLevelWarn, slog.LevelWarn},
	"info":    {LogLevelInfo, slog.LevelInfo},
	"debug":   {LogLevelDebug, slog.LevelDebug},
}

// parseLogLevel converts a config or flag value to a LogLevel.
func parseLogLevel(level string) (LogLevel, error) {
	l, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return "", fmt.Errorf("invalid log level: %s (must be error, warn, info, or debug)", level)
	}
	return l.name, nil
}

func (l LogLevel) slogLevel() slog.Level {
	if e, ok := logLevels[string(l)]; ok {
		return e.level
	}
	return slog.LevelInfo
}

// setupLogger creates the daemon's base logger on stdout.
func setupLogger(level LogLevel) *slog.Logger {
	return newLogger(os.Stdout, level)
}

func newLogger(w io.Writer, level LogLevel) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.slogLevel()})
	return slog.New(handler)
}

// componentLogger tags every record with the part of the bridge that
// wrote it: surface, hostlink, status or daemon.
func componentLogger(base *slog.Logger, component string) *slog.Logger {
	return base.With("component", component)
}
