// Package logging builds the slog logger of both binaries.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/iudanet/shiftgrid/internal/config"
)

// ParseLevel converts a config level name into slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// New creates a logger from cfg.
// С указанным файлом пишет JSON в файл с ротацией, иначе в stderr:
// текстом для терминала, JSON для всего остального.
// The returned closer releases the log file and must be called on exit.
func New(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	return newLogger(cfg, os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
}

func newLogger(cfg config.LoggingConfig, stderr io.Writer, tty bool) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		return slog.New(slog.NewJSONHandler(file, opts)), file, nil
	}

	if tty {
		return slog.New(slog.NewTextHandler(stderr, opts)), nopCloser{}, nil
	}
	return slog.New(slog.NewJSONHandler(stderr, opts)), nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
