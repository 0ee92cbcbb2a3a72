package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/signalsfoundry/scintillation-simulator/internal/logging"
	"github.com/signalsfoundry/scintillation-simulator/model"
)

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("SCINTSIM_TRACING_ENABLED", "TRUE")
	t.Setenv("SCINTSIM_TRACING_EXPORTER", "")
	t.Setenv("SCINTSIM_TRACING_SERVICE_NAME", "")
	t.Setenv("SCINTSIM_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("SCINTSIM_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled {
		t.Fatalf("expected tracing enabled")
	}
	if cfg.Exporter != "stdout" || cfg.ServiceName != "scintsim" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("unexpected ratio/endpoint: %+v", cfg)
	}

	t.Setenv("SCINTSIM_TRACING_SAMPLE_RATIO", "7")
	if got := TracingConfigFromEnv().SampleRatio; got != 1 {
		t.Fatalf("out of range ratio should fall back to 1, got %v", got)
	}
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := StartSpan(ctx, "test", "noop", attribute.String("k", "v"))
	if span.SpanContext().IsValid() {
		t.Fatalf("noop provider should produce invalid span contexts")
	}
	span.End()
	ShutdownWithTimeout(ctx, shutdown, nil)
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin", SampleRatio: 1}, nil)
	if err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func TestInitTracingExportsRunResource(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	var buf bytes.Buffer
	receiver := model.Receiver{Name: "sjc", LatitudeDeg: -23.2, LongitudeDeg: -45.86, AltitudeM: 605}
	reference := time.Date(2024, time.November, 25, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{
		Enabled:     true,
		Exporter:    "stdout",
		SampleRatio: 1,
		Output:      &buf,
		Run:         RunAttributes("run-42", model.SystemGPS, receiver, reference),
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := StartSpan(ctx, "test", "core.FindLOSSatellites", attribute.Int("satellites", 6))
	if !span.SpanContext().IsValid() {
		t.Fatalf("expected a recording span")
	}
	span.End()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"core.FindLOSSatellites",
		"scintsim.system",
		"gps",
		"scintsim.receiver.name",
		"2024-11-25T12:00:00Z",
		"run-42",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in exported span:\n%s", want, out)
		}
	}
}

func TestRunAttributesWithoutRunID(t *testing.T) {
	attrs := RunAttributes("", model.SystemGNSS, model.Receiver{Name: "sjc"}, time.Time{})
	for _, kv := range attrs {
		if kv.Key == "service.instance.id" {
			t.Fatalf("empty run id should not be attached")
		}
	}
	if len(attrs) != 6 {
		t.Fatalf("got %d attributes, want 6", len(attrs))
	}
}
