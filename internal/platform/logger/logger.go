package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. Services receive child loggers via
// their WithLogger options so packages never reach for a global.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
