// Package logging provides the structured logger used throughout the
// delta-driven index maintenance pipeline.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the logging surface every component depends on. Components
// accept this interface rather than *slog.Logger directly so tests can
// swap in a recording implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	DebugCtx(ctx context.Context, msg string, args ...any)
	InfoCtx(ctx context.Context, msg string, args ...any)
	WarnCtx(ctx context.Context, msg string, args ...any)
	ErrorCtx(ctx context.Context, msg string, args ...any)
}

type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(level slog.Level) *SlogLogger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	return &SlogLogger{logger: logger}
}

const prefix = "[indexsync] "

func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(prefix+msg, args...) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(prefix+msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(prefix+msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(prefix+msg, args...) }

type defaultArgsKey struct{}

func getDefaultArgs(ctx context.Context) []any {
	v := ctx.Value(defaultArgsKey{})
	if v == nil {
		return nil
	}
	return v.([]any)
}

// WithDefaultArgs attaches key/value pairs to ctx that every *Ctx call
// will append to its own args.
func WithDefaultArgs(ctx context.Context, args ...any) context.Context {
	merged := append(append([]any{}, getDefaultArgs(ctx)...), args...)
	return context.WithValue(ctx, defaultArgsKey{}, merged)
}

func (l *SlogLogger) DebugCtx(ctx context.Context, msg string, args ...any) {
	l.logger.Debug(prefix+msg, append(args, getDefaultArgs(ctx)...)...)
}

func (l *SlogLogger) InfoCtx(ctx context.Context, msg string, args ...any) {
	l.logger.Info(prefix+msg, append(args, getDefaultArgs(ctx)...)...)
}

func (l *SlogLogger) WarnCtx(ctx context.Context, msg string, args ...any) {
	l.logger.Warn(prefix+msg, append(args, getDefaultArgs(ctx)...)...)
}

func (l *SlogLogger) ErrorCtx(ctx context.Context, msg string, args ...any) {
	l.logger.Error(prefix+msg, append(args, getDefaultArgs(ctx)...)...)
}
