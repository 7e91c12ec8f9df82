// Package telemetry sets up OpenTelemetry tracing for scrape runs.
//
// With no OTLP endpoint configured, Setup installs a provider without an
// exporter so spans are still created and cheap, but go nowhere.
package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/pfrederiksen/city-events/internal/config"
)

// InstrumentationName names the tracer used across the module
const InstrumentationName = "github.com/pfrederiksen/city-events"

// Telemetry owns the installed tracer provider
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
}

// Shutdown flushes pending spans
func (t Telemetry) Shutdown(ctx context.Context) error {
	if t.TracerProvider == nil {
		return nil
	}
	var errs []error
	if err := t.TracerProvider.ForceFlush(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := t.TracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Setup builds a tracer provider from cfg and installs it globally
func Setup(ctx context.Context, cfg config.TelemetryConfig) (Telemetry, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return Telemetry{}, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(r)}
	if cfg.Endpoint != "" {
		exporter, err := newExporter(ctx, cfg)
		if err != nil {
			return Telemetry{}, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	return Telemetry{TracerProvider: provider}, nil
}

func newExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

// Tracer returns the module tracer from the global provider
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
