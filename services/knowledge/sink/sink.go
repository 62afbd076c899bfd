// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sink records per-operation telemetry events. The graph core
// never depends on a sink for correctness: surfaces (CLI, HTTP, MCP)
// report each logical operation to whichever sink is configured, and
// failures to record are logged, never propagated.
package sink

import (
	"context"
	"time"
)

// Event is one logical operation against the graph.
type Event struct {
	// Project identifies the indexed project (usually its root path).
	Project string

	// Operation is the logical operation name, e.g. "what_calls".
	Operation string

	Latency time.Duration
	Success bool

	// ErrorType classifies the failure when Success is false, e.g.
	// "invalid_query". Empty on success.
	ErrorType string

	// InputSummary is a short, non-sensitive description of the input,
	// e.g. the queried entity name.
	InputSummary string

	// OutputSize is the result count, when the operation has one.
	OutputSize int
}

// OperationSink receives operation events.
//
// Record must be safe for concurrent use and must not block the caller
// beyond its own I/O; implementations that buffer should flush in Close.
type OperationSink interface {
	Record(ctx context.Context, ev Event)
	Close() error
}
