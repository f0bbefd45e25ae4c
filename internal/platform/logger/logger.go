package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Setup initializes and configures the application's logging system.
// It creates a structured JSON logger writing to stdout at the given level
// and sets it as the default logger for the application.
//
// An unrecognized level falls back to info with a warning on stderr.
func Setup(logLevel string) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo

		// The real logger does not exist yet, so warn through a throwaway
		// text handler.
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", logLevel,
			"default_level", "info")
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)

	// Set as default so package-level slog functions share the handler.
	slog.SetDefault(logger)

	return logger
}
