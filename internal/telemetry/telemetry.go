// internal/telemetry/telemetry.go
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Options struct {
	Service  string
	Env      string
	Endpoint string // OTLP/HTTP collector URL; empty disables export

	// MetricInterval defaults to one minute.
	MetricInterval time.Duration
}

// ShutdownFunc flushes and stops the tracer and meter providers.
type ShutdownFunc func(context.Context) error

// collector is the parsed OTLP/HTTP endpoint.
type collector struct {
	host     string
	insecure bool
	path     string
}

// Setup installs a batching tracer provider and a periodic meter provider,
// both exporting over OTLP/HTTP. With no endpoint the global no-op providers
// are left in place.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if opts.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	c, err := parseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", opts.Service),
		attribute.String("deployment.environment", opts.Env),
	)

	traceExporter, err := otlptracehttp.New(ctx, c.traceOptions()...)
	if err != nil {
		return nil, fmt.Errorf("create otlp trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	metricExporter, err := otlpmetrichttp.New(ctx, c.metricOptions()...)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}
	interval := opts.MetricInterval
	if interval <= 0 {
		interval = time.Minute
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func parseEndpoint(endpoint string) (collector, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return collector{}, fmt.Errorf("invalid otlp endpoint %q", endpoint)
	}

	c := collector{host: u.Host, insecure: u.Scheme == "http"}
	if u.Path != "" && u.Path != "/" {
		c.path = u.Path
	}
	return c, nil
}

func (c collector) traceOptions() []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(c.host)}
	if c.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if c.path != "" {
		opts = append(opts, otlptracehttp.WithURLPath(c.path))
	}
	return opts
}

// metricOptions keep the default /v1/metrics path; a custom path on the
// endpoint only applies to traces.
func (c collector) metricOptions() []otlpmetrichttp.Option {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(c.host)}
	if c.insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return opts
}
