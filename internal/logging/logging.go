package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs the default logger from LOG_LEVEL and LOG_FORMAT.
// def applies when LOG_LEVEL is unset or unknown.
func Init(def slog.Level) *slog.Logger {
	return Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), def)
}

// Setup installs a stderr logger as the slog default and returns it.
func Setup(level, format string, def slog.Level) *slog.Logger {
	logger := New(os.Stderr, ParseLevel(level, def), format)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing text or JSON to w.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a LOG_LEVEL value onto a slog level.
func ParseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	default:
		return def
	}
}
