package util

import (
	"log/slog"
	"os"
	"strings"
)

// InitSlog configures slog based on LOG_LEVEL environment variable.
// Supported levels: debug, info, warn, error
func InitSlog() {
	if logLevel, ok := os.LookupEnv("LOG_LEVEL"); ok {
		opts := &slog.HandlerOptions{
			Level: ParseLevel(logLevel),
		}
		handler := slog.NewTextHandler(os.Stderr, opts)
		slog.SetDefault(slog.New(handler))
	}
}

// ParseLevel maps a level name to a slog.Level, falling back to info.
func ParseLevel(name string) slog.Level {
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
