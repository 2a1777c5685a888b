package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the handler, level and outputs of the application logger.
type Options struct {
	Service    string
	Env        string
	Level      string
	Format     string // "json" or "text"
	File       string // optional rotated log file
	MaxSizeMB  int
	MaxBackups int
}

// New builds a logger writing to stdout and, when configured, to a rotated file.
func New(opts Options) *slog.Logger {
	return NewWithWriter(os.Stdout, opts)
}

// NewWithWriter is New with an explicit console writer.
func NewWithWriter(stdout io.Writer, opts Options) *slog.Logger {
	writers := []io.Writer{stdout}

	// File output with rotation via lumberjack
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		})
	}

	w := io.MultiWriter(writers...)
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		h = slog.NewTextHandler(w, handlerOpts)
	} else {
		h = slog.NewJSONHandler(w, handlerOpts)
	}

	return slog.New(h).With(
		slog.String("service", opts.Service),
		slog.String("env", opts.Env),
	)
}

// Discard returns a logger that drops everything; used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
