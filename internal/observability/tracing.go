package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/scintillation-simulator/internal/logging"
	"github.com/signalsfoundry/scintillation-simulator/model"
)

// Environment variables read by TracingConfigFromEnv.
const (
	EnvTracingEnabled  = "SCINTSIM_TRACING_ENABLED"
	EnvTracingExporter = "SCINTSIM_TRACING_EXPORTER"
	EnvTracingService  = "SCINTSIM_TRACING_SERVICE_NAME"
	EnvTracingRatio    = "SCINTSIM_TRACING_SAMPLE_RATIO"
	EnvOTLPEndpoint    = "SCINTSIM_OTLP_ENDPOINT"
)

const (
	defaultServiceName  = "scintsim"
	defaultOTLPEndpoint = "localhost:4317"
)

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // used when Exporter == otlp
	SampleRatio float64

	// Output receives spans from the stdout exporter, stderr when nil, so
	// that exports written to stdout are not interleaved with spans.
	Output io.Writer
	// Run is attached to the tracing resource and so to every span.
	Run []attribute.KeyValue
}

// TracingConfigFromEnv reads the SCINTSIM_TRACING_* variables. Unset or
// unparsable values keep their defaults: disabled, stdout exporter, full
// sampling.
func TracingConfigFromEnv() TracingConfig {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv(EnvTracingEnabled), "true"),
		ServiceName: defaultServiceName,
		Exporter:    "stdout",
		Endpoint:    os.Getenv(EnvOTLPEndpoint),
		SampleRatio: 1,
	}
	if v := strings.ToLower(os.Getenv(EnvTracingExporter)); v != "" {
		cfg.Exporter = v
	}
	if v := os.Getenv(EnvTracingService); v != "" {
		cfg.ServiceName = v
	}
	if v, err := strconv.ParseFloat(os.Getenv(EnvTracingRatio), 64); err == nil && v >= 0 && v <= 1 {
		cfg.SampleRatio = v
	}
	return cfg
}

// RunAttributes describes one simulation run: its identifier, the satellite
// system searched, the receiver and the reference time.
func RunAttributes(runID string, system model.SatelliteSystem, receiver model.Receiver, reference time.Time) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("scintsim.system", system.String()),
		attribute.String("scintsim.receiver.name", receiver.Name),
		attribute.Float64("scintsim.receiver.latitude_deg", receiver.LatitudeDeg),
		attribute.Float64("scintsim.receiver.longitude_deg", receiver.LongitudeDeg),
		attribute.Float64("scintsim.receiver.altitude_m", receiver.AltitudeM),
		attribute.String("scintsim.reference_time", reference.UTC().Format(time.RFC3339)),
	}
	if runID != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(runID))
	}
	return attrs
}

// InitTracing installs the global tracer provider and propagators. When
// tracing is disabled a noop provider is installed. The returned function
// flushes pending spans.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}

	exp, err := exporterFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	attrs := append([]attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceNamespace(defaultServiceName),
	}, cfg.Run...)
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func exporterFromConfig(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		return otlptrace.New(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// Tracer returns the named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer("github.com/signalsfoundry/scintillation-simulator/" + name)
}

// StartSpan starts a span on the named tracer and returns the derived context.
func StartSpan(ctx context.Context, tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer(tracer).Start(ctx, name, trace.WithAttributes(attrs...))
}

// ShutdownWithTimeout invokes the provided shutdown function with a bounded
// timeout, swallowing errors in the shutdown path.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
