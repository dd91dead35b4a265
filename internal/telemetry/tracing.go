package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/petrijr/auraflow/pkg/api"
)

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Exporter string // stdout or otlp
	Endpoint string // host:port of the OTLP gRPC collector
	Insecure bool
	// Writer receives stdout-exported spans; nil means os.Stdout.
	Writer io.Writer
}

// NewTracerProvider builds a batching tracer provider and installs it as
// the global provider. Callers must Shutdown it to flush spans.
func NewTracerProvider(ctx context.Context, cfg TracingConfig) (*sdktrace.TracerProvider, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Exporter {
	case "", "stdout":
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if cfg.Writer != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Writer))
		}
		exporter, err = stdouttrace.New(opts...)
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", ServiceName),
		)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return provider, nil
}

// Tracing is an api.Observer that emits one span per stage execution and
// one event-only span per terminal run.
type Tracing struct {
	tracer trace.Tracer
}

var _ api.Observer = (*Tracing)(nil)

// NewTracing creates a tracing observer on provider. A nil provider uses the
// global one.
func NewTracing(provider trace.TracerProvider) *Tracing {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracing{tracer: provider.Tracer("github.com/petrijr/auraflow")}
}

func (t *Tracing) OnRunStart(ctx context.Context, v *api.Venture) {}

func (t *Tracing) OnStageStart(ctx context.Context, v *api.Venture, stage api.State) {}

// OnStageCompleted records the stage span after the fact using the measured
// duration, so no state is kept between callbacks.
func (t *Tracing) OnStageCompleted(ctx context.Context, v *api.Venture, stage, next api.State, err error, d time.Duration) {
	end := time.Now()
	_, span := t.tracer.Start(ctx, "stage "+string(stage),
		trace.WithTimestamp(end.Add(-d)),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("venture.id", v.ID),
			attribute.String("venture.stage", string(stage)),
			attribute.String("venture.next_state", string(next)),
		),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
}

func (t *Tracing) OnTerminal(ctx context.Context, v *api.Venture) {
	_, span := t.tracer.Start(ctx, "venture terminal",
		trace.WithAttributes(
			attribute.String("venture.id", v.ID),
			attribute.String("venture.state", string(v.State)),
		),
	)
	span.End()
}
