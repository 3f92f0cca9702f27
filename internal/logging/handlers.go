package logging

import (
	"context"
	"errors"
	"log/slog"
)

// ContextProvider returns attributes evaluated when a record is handled,
// such as the current tick.
type ContextProvider func() []slog.Attr

// Fanout delivers every record to each sink enabled for its level.
type Fanout []slog.Handler

// NewFanout drops nil sinks.
func NewFanout(sinks ...slog.Handler) Fanout {
	out := make(Fanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (f Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range f {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle reaches every sink even when one fails and joins the failures.
func (f Fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range f {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (f Fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (f Fanout) each(fn func(slog.Handler) slog.Handler) Fanout {
	out := make(Fanout, len(f))
	for i, s := range f {
		out[i] = fn(s)
	}
	return out
}

// dynamicAttrs appends the provider's attributes to each record.
type dynamicAttrs struct {
	next     slog.Handler
	provider ContextProvider
}

// WithContext wraps next so every record carries provider's attributes.
// A nil provider returns next unchanged.
func WithContext(next slog.Handler, provider ContextProvider) slog.Handler {
	if provider == nil {
		return next
	}
	return dynamicAttrs{next: next, provider: provider}
}

func (h dynamicAttrs) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h dynamicAttrs) Handle(ctx context.Context, r slog.Record) error {
	if attrs := h.provider(); len(attrs) > 0 {
		r.AddAttrs(attrs...)
	}
	return h.next.Handle(ctx, r)
}

func (h dynamicAttrs) WithAttrs(attrs []slog.Attr) slog.Handler {
	return dynamicAttrs{next: h.next.WithAttrs(attrs), provider: h.provider}
}

func (h dynamicAttrs) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return dynamicAttrs{next: h.next.WithGroup(name), provider: h.provider}
}
