// Package logger holds the process-wide structured logger. Output is JSON on
// stdout; the level is adjustable at runtime through a shared LevelVar so the
// binaries can wire it from configuration.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

var (
	level         = new(slog.LevelVar)
	defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
)

func L() *slog.Logger {
	return defaultLogger
}

func SetLevel(l slog.Level) {
	level.Set(l)
}

// ParseLevel maps a config string to a slog level. Unknown values fall back
// to info rather than failing startup.
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

func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

func Fatal(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
	os.Exit(1)
}
