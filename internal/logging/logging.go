package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Setup installs a JSON slog handler at the given level as the default logger.
func Setup(level string) {
	slog.SetDefault(New(os.Stdout, level))
}

// New builds a JSON logger writing to w.
func New(w io.Writer, level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

func Fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
