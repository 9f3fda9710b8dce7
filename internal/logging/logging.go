// Package logging wires structured logging for every Driggsby package: a
// human-readable stderr handler for interactive use, plus an optional
// rotating file sink (lumberjack) when a log destination is configured.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process-wide logger.
type Options struct {
	Destination string // file path, or "" for stderr-only
	Level       string // debug|info|warn|error
	MaxSizeMB   int
	MaxBackups  int
}

// New builds a slog.Logger per Options. The returned logger also becomes the
// process default via slog.SetDefault.
func New(opts Options) *slog.Logger {
	level := parseLevel(opts.Level)

	var writer io.Writer = os.Stderr
	if opts.Destination != "" {
		fileSink := &lumberjack.Logger{
			Filename:   opts.Destination,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			Compress:   true,
		}
		writer = io.MultiWriter(os.Stderr, fileSink)
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(name string) slog.Level {
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

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
