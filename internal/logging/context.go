// Package logging carries request-scoped slog loggers through contexts.
package logging

import (
	"context"
	"io"
	"log/slog"
)

type loggerContextKey struct{}

// WithLogger returns a context that carries the provided logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerContextKey{}, ensureLogger(logger))
}

// WithAttrs adds attributes to the logger already on ctx, so that every layer below
// logs them. fallback is used when ctx carries no logger.
func WithAttrs(ctx context.Context, fallback *slog.Logger, args ...any) context.Context {
	return WithLogger(ctx, FromContext(ctx, fallback).With(args...))
}

// FromContext returns the logger stored in context or the fallback logger.
// If neither is available, it returns a no-op logger.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return ensureLogger(fallback)
}

func ensureLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
