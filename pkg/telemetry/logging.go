// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Log keys stamped from the active span.
const (
	LogKeyTraceID = "trace_id"
	LogKeySpanID  = "span_id"
)

// ConfigureSlog builds a logger with NewLogger and installs it as the slog
// default, so registry and executive code falling back to slog.Default()
// share it.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	logger := NewLogger(output, level, format)
	slog.SetDefault(logger)
	return logger
}

// NewLogger returns a text or JSON logger whose records carry the trace and
// span ids of the span found in the logging context.
func NewLogger(output io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var base slog.Handler = slog.NewTextHandler(output, opts)
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		base = slog.NewJSONHandler(output, opts)
	}
	return slog.New(spanHandler{next: base})
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// spanHandler stamps records logged inside a valid span. Ids already set on
// the record, or pinned through WithAttrs, win.
type spanHandler struct {
	next   slog.Handler
	pinned bool
}

func (h spanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h spanHandler) Handle(ctx context.Context, record slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() && !h.pinned && !hasSpanKeys(record) {
		record.AddAttrs(
			slog.String(LogKeyTraceID, sc.TraceID().String()),
			slog.String(LogKeySpanID, sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, record)
}

func (h spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	pinned := h.pinned
	for _, a := range attrs {
		pinned = pinned || a.Key == LogKeyTraceID || a.Key == LogKeySpanID
	}
	return spanHandler{next: h.next.WithAttrs(attrs), pinned: pinned}
}

func (h spanHandler) WithGroup(name string) slog.Handler {
	return spanHandler{next: h.next.WithGroup(name), pinned: h.pinned}
}

func hasSpanKeys(record slog.Record) bool {
	found := false
	record.Attrs(func(a slog.Attr) bool {
		found = a.Key == LogKeyTraceID || a.Key == LogKeySpanID
		return !found
	})
	return found
}
