// Package tracing wires an optional OpenTelemetry tracer provider
// exporting spans over OTLP/gRPC. Tracing is disabled unless an OTLP
// endpoint is configured; without one, Setup returns a no-op tracer and
// callers see zero overhead from span creation.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Cantido/hematite"

// Tracer is the handle callers use to start spans; Setup installs it as
// the global tracer provider too, so third-party instrumentation picks
// it up automatically.
type Tracer = trace.Tracer

// Shutdown flushes and stops the tracer provider. A no-op when tracing
// was never enabled.
type Shutdown func(context.Context) error

// Setup builds a tracer provider exporting to endpoint over OTLP/gRPC.
// If endpoint is empty, tracing is disabled: Setup returns a no-op
// tracer and a no-op shutdown function.
func Setup(ctx context.Context, endpoint, serviceVersion string) (Tracer, Shutdown, error) {
	if endpoint == "" {
		return otel.Tracer(tracerName), func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("hematite"),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Tracer(tracerName), provider.Shutdown, nil
}
