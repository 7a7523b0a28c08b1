// SPDX-License-Identifier: Apache-2.0

package otel

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Provider owns the meter and tracer providers of a run and flushes them on
// Close.
type Provider struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	resource       *resource.Resource
	shutdownFns    []func(context.Context) error
}

const (
	serviceName     = "ecctransform"
	shutdownTimeout = 5 * time.Second
)

func NewProvider(cfg *Config) (*Provider, error) {
	o := &Provider{
		resource: newResource(cfg.ServiceVersion),
	}
	ctx := context.Background()
	if err := o.initMeterProvider(ctx, cfg.Metrics); err != nil {
		return nil, fmt.Errorf("initialising meter provider: %w", err)
	}

	if err := o.initTracerProvider(ctx, cfg.Traces); err != nil {
		return nil, fmt.Errorf("initialising tracer provider: %w", err)
	}

	return o, nil
}

func (o *Provider) NewInstrumentation(name string) *Instrumentation {
	return &Instrumentation{
		Meter:  o.meterProvider.Meter(name),
		Tracer: o.tracerProvider.Tracer(name),
	}
}

func (o *Provider) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs error
	for _, shutdownFn := range o.shutdownFns {
		errs = errors.Join(errs, shutdownFn(ctx))
	}
	return errs
}

func (o *Provider) initMeterProvider(ctx context.Context, cfg *MetricsConfig) error {
	if cfg == nil {
		o.meterProvider = metricnoop.NewMeterProvider()
		otel.SetMeterProvider(o.meterProvider)
		return nil
	}

	metricsExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithTemporalitySelector(deltaSelector),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
	if err != nil {
		return err
	}

	// a run is usually shorter than the collection interval, the shutdown
	// flushes whatever the periodic reader has not exported yet
	reader := sdkmetric.NewPeriodicReader(metricsExporter, sdkmetric.WithInterval(cfg.collectionInterval()))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(o.resource),
		sdkmetric.WithReader(reader))
	o.shutdownFns = append(o.shutdownFns, mp.Shutdown)

	o.meterProvider = mp
	otel.SetMeterProvider(o.meterProvider)

	if cfg.RuntimeMetrics {
		if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
			return fmt.Errorf("starting runtime metrics: %w", err)
		}
	}

	return nil
}

func (o *Provider) initTracerProvider(ctx context.Context, cfg *TracesConfig) error {
	if cfg == nil {
		o.tracerProvider = tracenoop.NewTracerProvider()
		otel.SetTracerProvider(o.tracerProvider)
		return nil
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	)
	if err != nil {
		return err
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.sampleRatio()))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(o.resource),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter)),
		sdktrace.WithSampler(sampler))
	o.shutdownFns = append(o.shutdownFns, tp.Shutdown)

	o.tracerProvider = tp
	otel.SetTracerProvider(o.tracerProvider)

	return nil
}

func newResource(serviceVersion string) *resource.Resource {
	if serviceVersion == "" {
		serviceVersion = vcsRevision()
	}
	return resource.NewSchemaless(
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(serviceVersion),
	)
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return "unknown"
}

// Delta temporality for monotonic instruments, so that the data points of a
// short lived run are not discarded by the collector on startup.
func deltaSelector(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	switch kind {
	case sdkmetric.InstrumentKindUpDownCounter,
		sdkmetric.InstrumentKindObservableUpDownCounter:
		return metricdata.CumulativeTemporality
	default:
		return metricdata.DeltaTemporality
	}
}
