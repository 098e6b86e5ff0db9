package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/natefinch/lumberjack"

	"cloudpico-sensorsim/internal/config"
)

func New(cfg config.Config, version string, appName string) *slog.Logger {
	var fileHandler slog.Handler
	if cfg.LogFile != "" {
		// The file always gets JSON, independent of the console format.
		fileHandler = slog.NewJSONHandler(newRotatingFile(cfg), &slog.HandlerOptions{
			Level: cfg.LogLevel,
		})
	}

	var console slog.Handler
	if version == "dev" {
		console = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
	} else {
		console = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		})
	}

	h := console
	if fileHandler != nil {
		h = fanout{console, fileHandler}
	}

	if version == "dev" {
		return slog.New(h).With("app", appName)
	}
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}

func newRotatingFile(cfg config.Config) io.Writer {
	return &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogFileMaxSizeMB,
		MaxBackups: cfg.LogFileMaxBackups,
		MaxAge:     28,
		Compress:   true,
	}
}
