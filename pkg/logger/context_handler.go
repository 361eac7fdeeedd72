package logger

import (
	"context"
	"log/slog"
)

// contextHandler decorates a slog.Handler, appending attributes extracted
// from the log call's context to every record.
type contextHandler struct {
	inner      slog.Handler
	extractors []ContextExtractor
}

func newContextHandler(inner slog.Handler, extractors ...ContextExtractor) slog.Handler {
	if len(extractors) == 0 {
		return inner
	}
	return &contextHandler{inner: inner, extractors: extractors}
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, extract := range h.extractors {
		if attr, ok := extract(ctx); ok {
			record.AddAttrs(attr)
		}
	}
	return h.inner.Handle(ctx, record)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{inner: h.inner.WithAttrs(attrs), extractors: h.extractors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{inner: h.inner.WithGroup(name), extractors: h.extractors}
}
