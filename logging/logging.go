package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	once   sync.Once
	logger *slog.Logger
)

// Configure initializes the shared JSON logger at the given level ("debug", "info", "warn",
// "error"). Only the first call takes effect; later calls return the existing logger.
func Configure(level string) *slog.Logger {
	once.Do(func() {
		logger = New(os.Stdout, level)
	})
	return logger
}

// Logger returns the configured slog logger, configuring it at info level on first use if necessary.
func Logger() *slog.Logger {
	if logger == nil {
		return Configure("info")
	}
	return logger
}

// New builds a standalone JSON logger writing to w. Unknown levels fall back to info.
func New(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Discard returns a logger that drops every record. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
