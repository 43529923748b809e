package util

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogger installs a JSON slog logger on stdout as the process default.
// Every service binary calls this first thing in main, so log shape is the
// same whether the process runs on a server or on the relay phone.
func InitLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: true,
	}))
	slog.SetDefault(logger)
	return logger
}
