// Package telemetry installs the process-wide OpenTelemetry tracer
// provider. Spans go to an OTLP/gRPC collector when an endpoint is
// configured; otherwise tracing stays a no-op.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// ServiceName is reported as service.name on every span.
const ServiceName = "vibed"

// Provider owns the installed tracer provider.
type Provider struct {
	tp       *sdktrace.TracerProvider
	endpoint string
}

// Setup installs a tracer provider exporting to endpoint. An empty
// endpoint installs a no-op provider.
func Setup(ctx context.Context, endpoint, profile string, logger *zap.Logger) (*Provider, error) {
	if endpoint == "" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &Provider{}, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	p := newProvider(exp, profile)
	p.endpoint = endpoint
	if logger != nil {
		logger.Info("tracing enabled", zap.String("otlp_endpoint", endpoint))
	}
	return p, nil
}

// NewWithExporter installs a provider exporting synchronously to exp.
func NewWithExporter(exp sdktrace.SpanExporter, profile string) *Provider {
	return newProvider(exp, profile, sdktrace.WithSyncer(exp))
}

func newProvider(exp sdktrace.SpanExporter, profile string, opts ...sdktrace.TracerProviderOption) *Provider {
	res := resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("nightvibe.profile", profile),
	)
	if len(opts) == 0 {
		opts = []sdktrace.TracerProviderOption{sdktrace.WithBatcher(exp)}
	}
	opts = append(opts, sdktrace.WithResource(res))
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp}
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool { return p != nil && p.tp != nil }

// Tracer returns a named tracer from the installed provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Shutdown flushes pending spans. Safe on a no-op provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
