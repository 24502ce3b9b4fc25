// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNilContext indicates a nil context was passed to InitTelemetry.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownExporter indicates an unrecognized exporter name in the
	// telemetry configuration.
	ErrUnknownExporter = errors.New("unknown exporter type")
)

// =============================================================================
// Configuration
// =============================================================================

// TelemetryConfig controls trace and metric export behavior.
//
// All fields have sensible defaults via DefaultTelemetryConfig().
type TelemetryConfig struct {
	// ServiceName identifies this service in traces and metrics.
	ServiceName string `json:"service_name"`

	// ServiceVersion is the version string for this service.
	ServiceVersion string `json:"service_version"`

	// Environment identifies the deployment environment (development, production).
	Environment string `json:"environment"`

	// TraceExporter selects the trace exporter: "otlp", "stdout", or "none".
	TraceExporter string `json:"trace_exporter"`

	// MetricExporter selects the metric exporter: "prometheus", "stdout", or "none".
	MetricExporter string `json:"metric_exporter"`

	// OTLPEndpoint is the OTLP receiver endpoint for traces.
	OTLPEndpoint string `json:"otlp_endpoint"`
}

// DefaultTelemetryConfig returns opinionated defaults for the draft
// service.
//
// Environment variables override defaults where applicable:
//   - ALEUTIAN_ENV: environment name
//   - OTEL_TRACES_EXPORTER: trace exporter type
//   - OTEL_METRICS_EXPORTER: metric exporter type
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		ServiceName:    "draft-service",
		ServiceVersion: "dev",
		Environment:    getEnvOr("ALEUTIAN_ENV", "development"),
		TraceExporter:  getEnvOr("OTEL_TRACES_EXPORTER", "otlp"),
		MetricExporter: getEnvOr("OTEL_METRICS_EXPORTER", "prometheus"),
		OTLPEndpoint:   getEnvOr("OTEL_EXPORTER_OTLP_ENDPOINT", "aleutian-otel-collector:4317"),
	}
}

// getEnvOr returns the environment variable value or the fallback.
func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// =============================================================================
// Initialization
// =============================================================================

// InitTelemetry initializes the OpenTelemetry stack for the draft
// service.
//
// # Description
//
// Sets up the global TracerProvider and MeterProvider based on the
// configuration. After InitTelemetry returns successfully, otel.Tracer()
// and otel.Meter() can be used throughout the service. The prometheus
// metric exporter bridges into the default client_golang registry, so
// the /metrics endpoint serves both metric families.
//
// # Inputs
//
//   - ctx: Context for exporter construction. Must not be nil.
//   - cfg: Telemetry configuration. Use DefaultTelemetryConfig() for
//     sensible defaults.
//
// # Outputs
//
//   - func(context.Context) error: Shutdown function to call on exit.
//     Must be called to flush pending spans.
//   - error: Non-nil if an exporter cannot be constructed or a name is
//     not recognized.
//
// # Limitations
//
//   - The OTLP path uses an insecure gRPC connection (appropriate for
//     internal networks).
//
// # Thread Safety
//
// Call once per service instance at startup. The prometheus bridge is
// process-wide and shared across instances.
func InitTelemetry(ctx context.Context, cfg TelemetryConfig) (func(context.Context) error, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var shutdownFuncs []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("telemetry shutdown errors: %v", errs)
		}
		return nil
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	if cfg.TraceExporter != "none" {
		tp, err := initTraceProvider(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{}))
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	}

	if cfg.MetricExporter != "none" {
		mp, perInstance, err := initMeterProvider(cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init meter: %w", err)
		}
		otel.SetMeterProvider(mp)
		// The prometheus bridge provider is shared process-wide and
		// must survive individual service shutdowns.
		if perInstance {
			shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
		}
	}

	return shutdown, nil
}

// initTraceProvider creates and returns a configured TracerProvider.
func initTraceProvider(ctx context.Context, cfg TelemetryConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "otlp", "jaeger":
		// Jaeger receives OTLP natively (since Jaeger 1.35)
		conn, dialErr := grpc.NewClient(cfg.OTLPEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			return nil, fmt.Errorf("create gRPC connection: %w", dialErr)
		}
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))

	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}

	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
	), nil
}

// The prometheus bridge registers a collector with the default
// client_golang registry; creating it twice would duplicate metric
// families at scrape time, so one provider is shared for the process.
var (
	promBridgeOnce     sync.Once
	promBridgeProvider *sdkmetric.MeterProvider
	promBridgeErr      error
)

// initMeterProvider creates and returns a configured MeterProvider.
//
// The boolean output reports whether the provider belongs to this
// instance and should be shut down with it.
func initMeterProvider(cfg TelemetryConfig, res *resource.Resource) (*sdkmetric.MeterProvider, bool, error) {
	switch cfg.MetricExporter {
	case "prometheus":
		promBridgeOnce.Do(func() {
			exporter, err := promexporter.New()
			if err != nil {
				promBridgeErr = fmt.Errorf("create prometheus exporter: %w", err)
				return
			}
			promBridgeProvider = sdkmetric.NewMeterProvider(
				sdkmetric.WithResource(res),
				sdkmetric.WithReader(exporter),
			)
		})
		return promBridgeProvider, false, promBridgeErr

	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, false, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		return sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		), true, nil

	default:
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
}
