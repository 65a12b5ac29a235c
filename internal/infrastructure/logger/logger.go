package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process-wide slog logger. JSON output, level from
// config, and it becomes slog.Default so packages constructed with a nil
// logger still log consistently.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(log)
	return log
}
