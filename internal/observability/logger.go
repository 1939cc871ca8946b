// Package observability настраивает логирование, метрики и трассировку.
package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger JSON-логгер в stdout с уровнем из LOG_LEVEL и полями service/env.
func NewLogger(level, service, env string) *slog.Logger {
	return newLogger(os.Stdout, level).With(
		slog.String("service", service),
		slog.String("env", env),
	)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel переводит строку уровня в slog.Level; неизвестное значение = info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
