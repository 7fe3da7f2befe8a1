// Package logging installs the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// ParseLevel maps a level name to a slog level. debug overrides name.
// Unknown names fall back to info.
func ParseLevel(name string, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// New returns a slog logger backed by a charmbracelet/log handler
func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           log.Level(level),
	})
	return slog.New(handler)
}

// Setup installs a stderr logger as the slog default and returns it
func Setup(level string, debug bool) *slog.Logger {
	logger := New(os.Stderr, ParseLevel(level, debug))
	slog.SetDefault(logger)
	return logger
}
