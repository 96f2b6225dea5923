package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/lysyi3m/prompt-comb/app/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileMaxSizeMB  = 10
	logFileMaxBackups = 1
)

// levelSettings updates the log level whenever debug_mode changes.
type levelSettings struct {
	*config.Store
	level      *slog.LevelVar
	forceDebug bool
}

func (s *levelSettings) Update(settings config.Settings) (config.Settings, error) {
	updated, err := s.Store.Update(settings)
	if err != nil {
		return updated, err
	}
	s.apply(updated)
	return updated, nil
}

func (s *levelSettings) apply(settings config.Settings) {
	if s.forceDebug {
		s.level.Set(slog.LevelDebug)
		return
	}
	s.level.Set(levelFor(settings.DebugMode))
}

func levelFor(mode config.DebugMode) slog.Level {
	switch mode {
	case config.DebugProduction:
		return slog.LevelWarn
	case config.DebugVerbose:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// newLogFile returns a writer that rotates logFile once it passes 10 MB,
// keeping one old copy.
func newLogFile(logFile string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
	}
}

func newLogHandler(level *slog.LevelVar, stdout, file io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(stdout, opts)
	if file != nil {
		handler = teeHandler{handler, slog.NewJSONHandler(file, opts)}
	}
	return handler
}

func setupLogging(level *slog.LevelVar, logFile string) func() {
	var file io.Writer
	closer := func() {}

	if logFile != "" {
		rotating := newLogFile(logFile)
		file = rotating
		closer = func() { rotating.Close() }
	}

	slog.SetDefault(slog.New(newLogHandler(level, os.Stdout, file)))
	return closer
}

// teeHandler sends every record to all of its handlers.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
