// Package telemetry provides OpenTelemetry instrumentation for towercmp.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/towercmp/internal/config"
	"github.com/yairfalse/towercmp/pkg/resource"
)

// Provider wraps OTEL tracer and meter providers.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	// registry backs the Prometheus reader; written to textfile on shutdown.
	registry *promclient.Registry
	textfile string

	// Metrics
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	resourceCount   metric.Int64Counter
	findingCount    metric.Int64Counter
}

// NewProvider creates a new telemetry provider. textfile, when set, is the
// Prometheus text exposition file written by Shutdown.
func NewProvider(ctx context.Context, cfg config.OTELConfig, textfile string) (*Provider, error) {
	res, err := sdkresource.New(ctx,
		sdkresource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &Provider{
		registry: promclient.NewRegistry(),
		textfile: textfile,
	}

	if err := p.setupTracing(ctx, cfg, res); err != nil {
		return nil, err
	}

	if err := p.setupMetrics(ctx, cfg, res); err != nil {
		_ = p.tracerProvider.Shutdown(ctx)
		return nil, err
	}

	if err := p.initMetrics(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, cfg config.OTELConfig, res *sdkresource.Resource) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.Traces.Enabled && cfg.Endpoint != "" {
		exp, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		sampler := sdktrace.TraceIDRatioBased(cfg.Traces.SampleRate)
		opts = append(opts, sdktrace.WithBatcher(exp), sdktrace.WithSampler(sampler))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer("towercmp")

	return nil
}

func (p *Provider) setupMetrics(ctx context.Context, cfg config.OTELConfig, res *sdkresource.Resource) error {
	promExporter, err := prometheus.New(prometheus.WithRegisterer(p.registry))
	if err != nil {
		return fmt.Errorf("create prometheus exporter: %w", err)
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	}

	if cfg.Metrics.Enabled && cfg.Endpoint != "" {
		exp, err := createMetricExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter("towercmp")

	return nil
}

func createTraceExporter(ctx context.Context, cfg config.OTELConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createMetricExporter(ctx context.Context, cfg config.OTELConfig) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func (p *Provider) initMetrics() error {
	var err error

	p.requestCount, err = p.meter.Int64Counter(
		"towercmp_api_requests_total",
		metric.WithDescription("Total API requests issued"),
	)
	if err != nil {
		return fmt.Errorf("create request_count: %w", err)
	}

	p.requestDuration, err = p.meter.Float64Histogram(
		"towercmp_api_request_duration_seconds",
		metric.WithDescription("Duration of API requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create request_duration: %w", err)
	}

	p.resourceCount, err = p.meter.Int64Counter(
		"towercmp_resources_fetched_total",
		metric.WithDescription("Total resources fetched"),
	)
	if err != nil {
		return fmt.Errorf("create resource_count: %w", err)
	}

	p.findingCount, err = p.meter.Int64Counter(
		"towercmp_findings_total",
		metric.WithDescription("Total comparison findings"),
	)
	if err != nil {
		return fmt.Errorf("create finding_count: %w", err)
	}

	return nil
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// Registry returns the Prometheus registry fed by the meter provider.
func (p *Provider) Registry() *promclient.Registry {
	return p.registry
}

// StartSpan starts a new span.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// ObserveRequest records one API request. status is zero for transport
// failures.
func (p *Provider) ObserveRequest(ctx context.Context, source string, t resource.Type, status int, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("resource_type", string(t)),
		attribute.String("status", strconv.Itoa(status)),
	)
	p.requestCount.Add(ctx, 1, attrs)
	p.requestDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordResourceCount records the number of resources fetched.
func (p *Provider) RecordResourceCount(ctx context.Context, source string, t resource.Type, count int) {
	p.resourceCount.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("resource_type", string(t)),
	))
}

// RecordFindings records count findings of one kind.
func (p *Provider) RecordFindings(ctx context.Context, t resource.Type, kind string, count int) {
	if count == 0 {
		return
	}
	p.findingCount.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("resource_type", string(t)),
		attribute.String("kind", kind),
	))
}

// WriteTextfile writes the current metrics in Prometheus text format.
func (p *Provider) WriteTextfile(path string) error {
	if err := promclient.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Shutdown writes the textfile, if configured, then flushes and shuts
// down the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.textfile != "" {
		if err := p.WriteTextfile(p.textfile); err != nil {
			errs = append(errs, err)
		}
	}
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter: %w", err))
		}
	}
	return errors.Join(errs...)
}
