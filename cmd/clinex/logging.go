package main

import (
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jackzampolin/clinex/internal/config"
)

// logSink is the rotating log file, closed on exit.
var logSink io.Closer

// setupLogging builds a text logger on stderr, teeing to a rotating file when
// cfg.File is set.
func setupLogging(stderr io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	if name := strings.TrimSpace(cfg.Level); name != "" {
		if err := level.UnmarshalText([]byte(name)); err != nil {
			return nil, err
		}
	}

	out := stderr
	if cfg.File != "" {
		closeLog()
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		logSink = file
		out = io.MultiWriter(stderr, file)
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), nil
}

func closeLog() {
	if logSink != nil {
		_ = logSink.Close()
		logSink = nil
	}
}
