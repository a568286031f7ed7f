// Package telemetry wires OpenTelemetry tracing and metrics. Spans cover
// admin HTTP requests and every task a managed executor runs.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// flushTimeout caps how long Shutdown waits for exporters to drain.
const flushTimeout = 5 * time.Second

// Config selects the collector and sampling for the runtime.
type Config struct {
	Enabled      bool
	Endpoint     string
	ServiceName  string
	Version      string
	Environment  string
	SamplingRate float64

	// Insecure disables TLS to the collector.
	Insecure bool
}

// Provider owns the SDK providers. The zero Provider is a no-op.
type Provider struct {
	traces  *trace.TracerProvider
	metrics *metric.MeterProvider
}

// New installs global tracer and meter providers exporting over OTLP/gRPC,
// and the W3C trace-context and baggage propagators. Disabled telemetry
// leaves the global no-op providers in place.
func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	res, err := serviceResource(cfg)
	if err != nil {
		return nil, err
	}

	traces, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}

	metrics, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		_ = traces.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(traces)
	otel.SetMeterProvider(metrics)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{traces: traces, metrics: metrics}, nil
}

func serviceResource(cfg *Config) (*resource.Resource, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	return res, nil
}

func newTracerProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*trace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}

	// Task spans follow the submitter's sampling decision so a sampled
	// request keeps every task it fans out to.
	return trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.SamplingRate))),
	), nil
}

func newMeterProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*metric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}

	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exporter)),
	), nil
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.traces != nil
}

// Shutdown flushes pending spans and metrics, then stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	return errors.Join(
		wrapShutdown("tracer provider", p.traces.Shutdown(ctx)),
		wrapShutdown("meter provider", p.metrics.Shutdown(ctx)),
	)
}

func wrapShutdown(what string, err error) error {
	if err != nil {
		return fmt.Errorf("shutting down %s: %w", what, err)
	}

	return nil
}
