package config

import (
	"context"
	"errors"
	"time"

	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/version"
)

type Telemetry struct {
	mp *sdkmetric.MeterProvider
	tp *sdktrace.TracerProvider
}

// SetupTelemetry installs global meter and tracer providers.
// Data is sent to TelemetryEndpoint via OTLP/gRPC or written to stdout
// if no endpoint is configured.
func SetupTelemetry(ctx context.Context) (*Telemetry, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName("rte"),
			semconv.ServiceVersion(version.Version)))
	if err != nil {
		return nil, err
	}
	var metricExp sdkmetric.Exporter
	var traceExp sdktrace.SpanExporter
	if TelemetryEndpoint != "" {
		if metricExp, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(TelemetryEndpoint),
			otlpmetricgrpc.WithInsecure()); err != nil {
			return nil, err
		}
		if traceExp, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(TelemetryEndpoint),
			otlptracegrpc.WithInsecure()); err != nil {
			return nil, err
		}
	} else {
		if metricExp, err = stdoutmetric.New(); err != nil {
			return nil, err
		}
		if traceExp, err = stdouttrace.New(); err != nil {
			return nil, err
		}
	}
	ret := &Telemetry{
		mp: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp,
				sdkmetric.WithInterval(15*time.Second)))),
		tp: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(traceExp)),
	}
	otel.SetMeterProvider(ret.mp)
	otel.SetTracerProvider(ret.tp)

	if err := otlpruntime.Start(
		otlpruntime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		log.Warn("Could not start runtime metrics", log.ErrorField(err))
	}
	return ret, nil
}

func (t *Telemetry) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := errors.Join(t.mp.Shutdown(ctx), t.tp.Shutdown(ctx)); err != nil {
		log.Warn("telemetry shutdown", log.ErrorField(err))
	}
}
