// Package tracing wraps OpenTelemetry span creation for the Agent
// Execution Loop, provider calls, and tool dispatch, grounded on the
// teacher's internal/observability.Tracer. Unlike the teacher, this core
// wires no OTLP exporter: SPEC_FULL.md names no external tracing backend,
// so the TracerProvider here runs with the SDK's default (no-op) span
// processor — spans are created and sampled, ready for a processor to be
// attached, but nothing is shipped over the network by default.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer issues spans under a fixed instrumentation name.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// New builds a Tracer and installs its provider as the global default,
// matching the teacher's pattern of registering via otel.SetTracerProvider.
func New(serviceName string) *Tracer {
	provider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(provider)
	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
	}
}

// Start begins a span named name, mirroring tracer.Start(ctx, name).
func (t *Tracer) Start(ctx context.Context, name string, attrs ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, attrs...)
}

// Shutdown flushes and stops the underlying provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
