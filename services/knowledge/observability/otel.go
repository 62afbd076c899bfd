// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability wires the OpenTelemetry providers for the
// codegraph binary: a Prometheus metric exporter always, plus stdout
// trace/metric exporters in debug mode. Library packages only use
// otel.Tracer/otel.Meter and never touch this package.
package observability

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Options configures Init.
type Options struct {
	// ServiceName identifies this binary in traces and metrics.
	ServiceName string

	// ServiceVersion is the build version string.
	ServiceVersion string

	// Debug adds stdout trace and metric exporters alongside
	// Prometheus.
	Debug bool
}

// Init installs the global TracerProvider, MeterProvider, and W3C
// propagator. The returned shutdown function flushes and stops every
// provider; call it on exit.
func Init(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "codegraph"
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(opts.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("building otel resource: %w", err)
	}

	var shutdownFuncs []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	// Metrics: Prometheus pull always; stdout push in debug.
	promReader, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}
	meterOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promReader),
	}
	if opts.Debug {
		stdoutMetrics, err := stdoutmetric.New()
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("creating stdout metric exporter: %w", err)
		}
		meterOpts = append(meterOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(stdoutMetrics)))
	}
	meterProvider := sdkmetric.NewMeterProvider(meterOpts...)
	shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	// Traces: stdout in debug, no-op sampler otherwise. There is no
	// collector export; spans still enrich logs and tests.
	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if opts.Debug {
		stdoutTraces, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(stdoutTraces))
	}
	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return shutdown, nil
}
