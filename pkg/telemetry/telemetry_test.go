package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestInit(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{
		ServiceName: "medgraph-test",
		Version:     "v0.0.1",
	})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Shutdown function should not be nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitWithUnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Exporter: "jaeger"})
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestInitRequiresOTLPEndpoint(t *testing.T) {
	_, err := Init(context.Background(), Config{Exporter: "otlp"})
	if err == nil {
		t.Fatal("expected error when otlp exporter has no endpoint")
	}
}

func TestConfigureSlogJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "debug", "json")
	logger.Debug("graph query executed", slog.Int("rows", 3))

	out := buf.String()
	if !strings.Contains(out, `"rows":3`) {
		t.Errorf("expected structured output, got %q", out)
	}
}

func TestConfigureSlogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "warn", "text")
	logger.Info("should be suppressed")
	if buf.Len() != 0 {
		t.Errorf("expected info record to be filtered at warn level, got %q", buf.String())
	}
}

func TestRequestAttributes(t *testing.T) {
	attrs := RequestAttributes("req-1", "PATIENT", "sess-9", 42)

	expected := map[string]any{
		AttrRequestID:   "req-1",
		AttrActorRole:   "PATIENT",
		AttrSessionID:   "sess-9",
		AttrQueryLength: 42,
	}
	assertAttributes(t, attrs, expected)
}

func TestToolAttributes(t *testing.T) {
	attrs := ToolAttributes("search_health_records", 120.5, true, false)

	expected := map[string]any{
		AttrToolName:       "search_health_records",
		AttrToolDurationMs: 120.5,
		AttrToolSuccess:    true,
		AttrToolEmpty:      false,
	}
	assertAttributes(t, attrs, expected)
}

func TestComposeAttributes(t *testing.T) {
	attrs := ComposeAttributes(2, 0.65, 4, 1800)

	expected := map[string]any{
		AttrComposeTier: 2,
		AttrConfidence:  0.65,
		AttrBundleItems: 4,
		AttrBundleBytes: 1800,
	}
	assertAttributes(t, attrs, expected)
}

// assertAttributes checks that expected key-value pairs exist in attrs
func assertAttributes(t *testing.T, attrs []attribute.KeyValue, expected map[string]any) {
	t.Helper()

	found := make(map[string]attribute.KeyValue)
	for _, attr := range attrs {
		found[string(attr.Key)] = attr
	}

	for key, expectedVal := range expected {
		attr, ok := found[key]
		if !ok {
			t.Errorf("missing attribute %s", key)
			continue
		}

		var actualVal any
		switch attr.Value.Type() {
		case attribute.STRING:
			actualVal = attr.Value.AsString()
		case attribute.INT64:
			actualVal = int(attr.Value.AsInt64())
		case attribute.FLOAT64:
			actualVal = attr.Value.AsFloat64()
		case attribute.BOOL:
			actualVal = attr.Value.AsBool()
		}

		if actualVal != expectedVal {
			t.Errorf("attribute %s: got %v, want %v", key, actualVal, expectedVal)
		}
	}
}
