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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemorySinkRecords verifies buffered events round-trip, including
// under concurrent writers.
func TestMemorySinkRecords(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Record(ctx, Event{
				Project:   "/proj",
				Operation: "what_calls",
				Latency:   3 * time.Millisecond,
				Success:   true,
			})
		}()
	}
	wg.Wait()

	events := m.Events()
	require.Len(t, events, 10)
	assert.Equal(t, "what_calls", events[0].Operation)
	require.NoError(t, m.Close())
}

// TestNoopSinkDiscards verifies the noop sink satisfies the interface
// without state.
func TestNoopSinkDiscards(t *testing.T) {
	var s OperationSink = NewNoop()
	s.Record(context.Background(), Event{Operation: "stats"})
	assert.NoError(t, s.Close())
}
