package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	perrors "github.com/jllopis/pillar/pkg/errors"
)

func TestInitNone(t *testing.T) {
	shutdown, err := InitWithConfig("test-service", "v0.0.1", Config{Exporter: "none"})
	if err != nil {
		t.Fatalf("InitWithConfig failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitStdoutWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitWithConfig("test-service", "v0.0.1", Config{Exporter: ExporterStdout, Writer: &buf})
	if err != nil {
		t.Fatalf("InitWithConfig failed: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "Executive.Probe")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Executive.Probe") {
		t.Fatalf("expected exported span in writer, got %q", buf.String())
	}
}

func TestInitRejectsBadExporter(t *testing.T) {
	if _, err := InitWithConfig("svc", "v", Config{Exporter: "carrier-pigeon"}); err == nil {
		t.Fatal("expected unknown exporter error")
	}
	if _, err := InitWithConfig("svc", "v", Config{Exporter: "otlp"}); err == nil {
		t.Fatal("expected missing endpoint error")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug", "json")

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "inside span")
	span.End()

	out := buf.String()
	if !strings.Contains(out, `"trace_id"`) || !strings.Contains(out, `"span_id"`) {
		t.Fatalf("expected trace ids in log line, got %s", out)
	}

	buf.Reset()
	logger.Info("outside span")
	if strings.Contains(buf.String(), "trace_id") {
		t.Fatalf("expected no trace id outside a span, got %s", buf.String())
	}
}

func TestLoggerKeepsPinnedTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info", "json").With(slog.String(LogKeyTraceID, "replayed"))

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "inside span")
	logger.DebugContext(ctx, "below level")
	span.End()

	out := buf.String()
	if strings.Count(out, LogKeyTraceID) != 1 || !strings.Contains(out, `"replayed"`) {
		t.Fatalf("expected only the pinned trace id, got %s", out)
	}
	if strings.Contains(out, "below level") {
		t.Fatalf("debug record should be filtered at info, got %s", out)
	}
}

func TestSkillMetricsNilSafe(t *testing.T) {
	var sm *SkillMetrics
	ctx := context.Background()
	sm.RecordEpisode(ctx, "reach", "terminated", 3, 1)
	sm.RecordSelection(ctx, "reach", 2)
	sm.RecordTermination(ctx, "reach", 0.5)
	sm.RecordError(ctx, errors.New("x"), "reach")
}

func TestSkillMetricsRecord(t *testing.T) {
	sm, err := NewSkillMetrics(context.Background())
	if err != nil {
		t.Fatalf("NewSkillMetrics: %v", err)
	}
	ctx := context.Background()
	sm.RecordEpisode(ctx, "grasp", "step_limit", 10, 0.2)
	sm.RecordSelection(ctx, "grasp", 1)
	sm.RecordTermination(ctx, "grasp", 0.9)
	sm.RecordError(ctx, perrors.New(perrors.CodeExecutionFailed, "boom", nil), "grasp")
	sm.RecordError(ctx, errors.New("plain"), "grasp")
	sm.RecordError(ctx, nil, "grasp")
}

func TestAttributes(t *testing.T) {
	attrs := SelectionAttributes(2, 8, 0.75, strings.Repeat("x", 20), 10)
	var param attribute.KeyValue
	for _, a := range attrs {
		if string(a.Key) == AttrSelectionParameter {
			param = a
		}
	}
	if param.Value.AsString() != strings.Repeat("x", 10)+"..." {
		t.Fatalf("expected truncated parameter, got %q", param.Value.AsString())
	}

	if got := EpisodeAttributes("", 3, "terminated", 1); len(got) != 3 {
		t.Fatalf("expected run id to be omitted, got %d attrs", len(got))
	}
	if got := EpisodeAttributes("run-1", 3, "terminated", 1); len(got) != 4 {
		t.Fatalf("expected run id attribute, got %d attrs", len(got))
	}
	if got := SkillAttributes("reach", 1, true); got[0].Value.AsString() != "reach" {
		t.Fatalf("unexpected skill attribute %v", got[0])
	}
	if got := SequenceAttributes("", 2); len(got) != 1 {
		t.Fatalf("expected sequence id to be omitted")
	}
}
