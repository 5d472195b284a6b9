// Package logger provides structured logging using log/slog. It sets up a
// JSON handler with service-level context for consistent log shape across
// binaries.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Init creates a structured logger for the given service. The logger
// outputs JSON to stdout with the service name embedded, and is installed
// as the process default.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)
	slog.SetDefault(logger)

	return logger
}

// ParseLevel maps a config string to a slog level. Unknown values fall
// back to info.
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
