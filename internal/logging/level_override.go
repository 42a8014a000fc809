package logging

import (
	"context"
	"log/slog"
)

// minLevelHandler drops records below min before they reach next. The wrapped
// handler keeps the global level, so a per-stage override can only raise it.
type minLevelHandler struct {
	next slog.Handler
	min  slog.Level
}

func (h minLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.next.Enabled(ctx, level)
}

func (h minLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.min {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h minLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return minLevelHandler{next: h.next.WithAttrs(attrs), min: h.min}
}

func (h minLevelHandler) WithGroup(name string) slog.Handler {
	return minLevelHandler{next: h.next.WithGroup(name), min: h.min}
}

// WithLevelOverride returns a logger that only emits records at or above
// level. Applying it twice replaces the earlier override.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	next := logger.Handler()
	if prev, ok := next.(minLevelHandler); ok {
		next = prev.next
	}
	return slog.New(minLevelHandler{next: next, min: level})
}
