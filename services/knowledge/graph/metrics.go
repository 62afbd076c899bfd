// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("codegraph.graph")
	meter  = otel.Meter("codegraph.graph")

	metricsOnce   sync.Once
	queryDuration metric.Float64Histogram
	queriesTotal  metric.Int64Counter
)

func initMetrics() {
	var err error

	queryDuration, err = meter.Float64Histogram(
		"graph_query_duration_seconds",
		metric.WithDescription("Duration of graph queries by operation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return
	}

	queriesTotal, err = meter.Int64Counter(
		"graph_queries_total",
		metric.WithDescription("Graph queries by operation and outcome"),
	)
	if err != nil {
		return
	}
}

// recordQueryMetrics records one query. Skips silently when instrument
// construction failed.
func recordQueryMetrics(ctx context.Context, operation string, start time.Time, resultCount int, err error) {
	metricsOnce.Do(initMetrics)
	if queryDuration == nil || queriesTotal == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	queriesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
	queryDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Int("result_count", resultCount),
	))
}

// startQuerySpan opens a span for one graph query.
func startQuerySpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine."+operation, trace.WithAttributes(attrs...))
}
