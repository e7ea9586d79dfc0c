// logger.go - Structured logging setup

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// setupLogger builds a text slog logger for the given level string.
// Logging happens only on the control and setup paths, never in the
// render callback.
func setupLogger(level string) (*slog.Logger, error) {
	var slogLevel slog.Level

	switch strings.ToLower(level) {
	case "error":
		slogLevel = slog.LevelError
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "info", "":
		slogLevel = slog.LevelInfo
	case "debug":
		slogLevel = slog.LevelDebug
	default:
		return nil, fmt.Errorf("invalid log level: %s (must be error, warn, info, or debug)", level)
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slogLevel,
	})
	return slog.New(handler), nil
}
