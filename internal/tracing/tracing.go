// Package tracing provides the otel tracer used to wrap probe and
// proxy-forward calls. It defaults to a no-op exporter so tracing has
// zero cost unless a real collector is wired up later.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/AriHenrique/dyrasql"

// NewNoopProvider installs a tracer provider that records spans without
// exporting them anywhere, and returns the tracer components should use.
func NewNoopProvider() oteltrace.Tracer {
	provider := trace.NewTracerProvider()
	otel.SetTracerProvider(provider)
	return provider.Tracer(instrumentationName)
}

// StartProbeSpan wraps a probe call against the given cluster.
func StartProbeSpan(ctx context.Context, tracer oteltrace.Tracer, cluster string) (context.Context, oteltrace.Span) {
	return tracer.Start(ctx, "probe.run", oteltrace.WithAttributes(attribute.String("cluster", cluster)))
}

// StartForwardSpan wraps a statement forward call to the given cluster.
func StartForwardSpan(ctx context.Context, tracer oteltrace.Tracer, cluster string) (context.Context, oteltrace.Span) {
	return tracer.Start(ctx, "proxy.forward", oteltrace.WithAttributes(attribute.String("cluster", cluster)))
}
