// Package telemetry traces sieve runs with OpenTelemetry.
//
// Tracing is off unless telemetry.enabled (or OTEL_ENABLED=true) is set.
// When it is off every span goes to the global no-op provider, so the
// sieve code calls StartSpan unconditionally.
package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
)

var enabled atomic.Bool

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs a batching OTLP tracer provider as the global provider.
// With tracing disabled it changes nothing and returns a no-op shutdown.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	cfg.ApplyEnv()
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	sampler, err := newSampler(cfg.Sampler, cfg.SamplerArg)
	if err != nil {
		return noopShutdown, err
	}
	res, err := newResource(ctx, &cfg)
	if err != nil {
		return noopShutdown, fmt.Errorf("failed to build resource: %w", err)
	}
	exporter, err := newExporter(ctx, &cfg)
	if err != nil {
		return noopShutdown, fmt.Errorf("failed to create exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter),
		trace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	enabled.Store(true)

	return func(ctx context.Context) error {
		enabled.Store(false)
		return tp.Shutdown(ctx)
	}, nil
}

// Enabled reports whether Init installed a tracer provider.
func Enabled() bool {
	return enabled.Load()
}
