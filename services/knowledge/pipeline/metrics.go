// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

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
	tracer = otel.Tracer("codegraph.pipeline")
	meter  = otel.Meter("codegraph.pipeline")

	metricsOnce    sync.Once
	filesProcessed metric.Int64Counter
	indexDuration  metric.Float64Histogram
	entitiesStored metric.Int64Counter
)

func initMetrics() {
	var err error

	filesProcessed, err = meter.Int64Counter(
		"pipeline_files_processed_total",
		metric.WithDescription("Files processed by outcome"),
	)
	if err != nil {
		return
	}

	indexDuration, err = meter.Float64Histogram(
		"pipeline_index_duration_seconds",
		metric.WithDescription("Duration of directory indexing runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return
	}

	entitiesStored, err = meter.Int64Counter(
		"pipeline_entities_stored_total",
		metric.WithDescription("Entities written to the store"),
	)
	if err != nil {
		return
	}
}

// recordFileMetrics counts one processed file. Skips silently when
// instrument construction failed.
func recordFileMetrics(ctx context.Context, language, outcome string, entityCount int) {
	metricsOnce.Do(initMetrics)
	if filesProcessed == nil || entitiesStored == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.String("outcome", outcome),
	)
	filesProcessed.Add(ctx, 1, attrs)
	if entityCount > 0 {
		entitiesStored.Add(ctx, int64(entityCount),
			metric.WithAttributes(attribute.String("language", language)))
	}
}

// recordIndexMetrics records one directory indexing run.
func recordIndexMetrics(ctx context.Context, duration time.Duration, result *DirectoryResult) {
	metricsOnce.Do(initMetrics)
	if indexDuration == nil {
		return
	}

	indexDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.Int("files_processed", result.FilesProcessed),
		attribute.Int("files_skipped", result.FilesSkipped),
		attribute.Int("files_failed", result.FilesFailed),
	))
}

// startIndexSpan opens a span for a directory indexing run.
func startIndexSpan(ctx context.Context, root string, fileCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Indexer.ProcessDirectory",
		trace.WithAttributes(
			attribute.String("pipeline.root", root),
			attribute.Int("pipeline.file_count", fileCount),
		))
}
