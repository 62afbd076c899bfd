// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for store operations.
var (
	tracer = otel.Tracer("codegraph.store")
	meter  = otel.Meter("codegraph.store")
)

// Metrics for store operations.
var (
	opLatency metric.Float64Histogram
	opTotal   metric.Int64Counter
	rowsWritten metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		opLatency, err = meter.Float64Histogram(
			"store_op_duration_seconds",
			metric.WithDescription("Duration of store operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		opTotal, err = meter.Int64Counter(
			"store_op_total",
			metric.WithDescription("Total number of store operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rowsWritten, err = meter.Int64Counter(
			"store_rows_written_total",
			metric.WithDescription("Total rows inserted or deleted"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordOp records latency and outcome for one store operation.
func recordOp(ctx context.Context, op string, start time.Time, success bool) {
	if err := initMetrics(); err != nil {
		return // Silently skip if metrics init failed
	}

	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", success),
	)
	opLatency.Record(ctx, time.Since(start).Seconds(), attrs)
	opTotal.Add(ctx, 1, attrs)
}

// recordRows counts rows written (inserted or deleted) by op.
func recordRows(ctx context.Context, op string, n int64) {
	if err := initMetrics(); err != nil {
		return
	}
	if n <= 0 {
		return
	}
	rowsWritten.Add(ctx, n, metric.WithAttributes(attribute.String("op", op)))
}
