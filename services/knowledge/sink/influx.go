// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sink

import (
	"context"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// measurement is the InfluxDB measurement name for operation events.
const measurement = "codegraph_operation"

// InfluxSink writes operation events to an InfluxDB bucket as points
// tagged by project, operation, and outcome.
//
// Thread Safety:
//
//	Safe for concurrent use; the blocking write API serializes
//	internally.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *slog.Logger
}

// NewInfluxSink connects to InfluxDB at url. The caller owns the sink
// and must Close it to release the underlying HTTP client.
func NewInfluxSink(url, token, org, bucket string, logger *slog.Logger) *InfluxSink {
	if logger == nil {
		logger = slog.Default()
	}
	client := influxdb2.NewClient(url, token)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		logger:   logger,
	}
}

// Record writes one event. Write failures are logged and swallowed: the
// sink is advisory and must never fail a graph operation.
func (s *InfluxSink) Record(ctx context.Context, ev Event) {
	outcome := "success"
	if !ev.Success {
		outcome = "error"
	}

	point := influxdb2.NewPoint(
		measurement,
		map[string]string{
			"project":   ev.Project,
			"operation": ev.Operation,
			"outcome":   outcome,
		},
		map[string]any{
			"latency_ms":    float64(ev.Latency) / float64(time.Millisecond),
			"error_type":    ev.ErrorType,
			"input_summary": ev.InputSummary,
			"output_size":   ev.OutputSize,
		},
		time.Now(),
	)

	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		s.logger.Warn("dropping operation event",
			slog.String("operation", ev.Operation),
			slog.Any("error", err),
		)
	}
}

// Close releases the underlying client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}
