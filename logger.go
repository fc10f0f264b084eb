package idxdeploy

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/idxdeploy/model"
)

// Logger is a slog.Logger carrying deployment attributes under stable keys.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps handler. A nil handler logs text at info level to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger logs JSON records at level and above to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return newStderrLogger(level, func(w io.Writer, o *slog.HandlerOptions) slog.Handler {
		return slog.NewJSONHandler(w, o)
	})
}

// NewTextLogger logs key=value records at level and above to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return newStderrLogger(level, func(w io.Writer, o *slog.HandlerOptions) slog.Handler {
		return slog.NewTextHandler(w, o)
	})
}

func newStderrLogger(level slog.Level, mk func(io.Writer, *slog.HandlerOptions) slog.Handler) *Logger {
	return NewLogger(mk(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithPartition attaches the three partition roots.
func (l *Logger) WithPartition(rawPath, localPath, remotePath string) *Logger {
	return &Logger{Logger: l.With(
		slog.String("raw_path", rawPath),
		slog.String("local_path", localPath),
		slog.String("remote_path", remotePath),
	)}
}

// WithVersions attaches the base and target versions.
func (l *Logger) WithVersions(base, target model.VersionID) *Logger {
	return &Logger{Logger: l.With(
		slog.Int64("base_version", int64(base)),
		slog.Int64("target_version", int64(target)),
	)}
}

// outcome logs msg at okLevel, or failMsg at failLevel with the error attached.
func (l *Logger) outcome(ctx context.Context, err error, okLevel slog.Level, msg string, failLevel slog.Level, failMsg string, attrs ...slog.Attr) {
	if err != nil {
		l.LogAttrs(ctx, failLevel, failMsg, append(attrs, slog.Any("error", err))...)
		return
	}
	l.LogAttrs(ctx, okLevel, msg, attrs...)
}

// LogPlan records a planning step.
func (l *Logger) LogPlan(ctx context.Context, remote, local, added, removed int, err error) {
	l.outcome(ctx, err, slog.LevelInfo, "plan built", slog.LevelError, "plan failed",
		slog.Int("remote_files", remote),
		slog.Int("local_files", local),
		slog.Int("added", added),
		slog.Int("removed", removed),
	)
}

// LogDeploy records the outcome of one Deploy call.
func (l *Logger) LogDeploy(ctx context.Context, o Outcome, took time.Duration, err error) {
	attrs := []slog.Attr{slog.Duration("duration", took)}
	if err == nil {
		attrs = append(attrs, slog.String("outcome", o.String()))
	}
	l.outcome(ctx, err, slog.LevelInfo, "deploy finished", slog.LevelError, "deploy failed", attrs...)
}

// LogWarmUp records a cache warm-up. A failed warm-up is only a warning.
func (l *Logger) LogWarmUp(ctx context.Context, hints int, err error) {
	l.outcome(ctx, err, slog.LevelDebug, "warm up completed", slog.LevelWarn, "warm up incomplete",
		slog.Int("hints", hints))
}

// LogClean records a done-marker collection.
func (l *Logger) LogClean(ctx context.Context, removed []model.VersionID, err error) {
	l.outcome(ctx, err, slog.LevelInfo, "clean done files completed", slog.LevelError, "clean done files failed",
		slog.Int("removed", len(removed)))
}
