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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// TestCyclesTriangle verifies A→B→C→A reports exactly one cycle of
// length 3.
func TestCyclesTriangle(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := context.Background()

	a := mustEntity(t, s, store.EntityFunction, "a", "src/a.ts", 1)
	b := mustEntity(t, s, store.EntityFunction, "b", "src/b.ts", 1)
	c := mustEntity(t, s, store.EntityFunction, "c", "src/c.ts", 1)
	mustRel(t, s, a.ID, b.ID, store.RelCalls)
	mustRel(t, s, b.ID, c.ID, store.RelCalls)
	mustRel(t, s, c.ID, a.ID, store.RelCalls)

	result, err := eng.FindCircularDependencies(ctx, CycleOptions{})
	require.NoError(t, err)

	require.Len(t, result.Cycles, 1)
	assert.Equal(t, 3, result.Cycles[0].Length)
	assert.Equal(t, 3, result.Summary.ShortestCycle)
	assert.Equal(t, 3, result.Summary.LongestCycle)
	assert.Equal(t, 3, result.Summary.DistinctEntities)
	assert.False(t, result.Truncated)
}

// TestCyclesSelfLoopExcluded verifies an entity referencing itself never
// appears as a 1-length cycle.
func TestCyclesSelfLoopExcluded(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := context.Background()

	rec := mustEntity(t, s, store.EntityFunction, "fib", "src/fib.ts", 1)
	mustRel(t, s, rec.ID, rec.ID, store.RelCalls)

	result, err := eng.FindCircularDependencies(ctx, CycleOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Cycles, "recursion is not a dependency cycle")
	assert.Zero(t, result.Summary.TotalCycles)
}

// TestCyclesDedupAcrossDuplicateEntities verifies two structurally
// identical cycles built from duplicate entities (same name+file,
// different ids, as left by repeated parses) collapse to one.
func TestCyclesDedupAcrossDuplicateEntities(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := context.Background()

	a1 := mustEntity(t, s, store.EntityFunction, "a", "src/a.ts", 1)
	b1 := mustEntity(t, s, store.EntityFunction, "b", "src/b.ts", 1)
	a2 := mustEntity(t, s, store.EntityFunction, "a", "src/a.ts", 1)
	b2 := mustEntity(t, s, store.EntityFunction, "b", "src/b.ts", 1)

	mustRel(t, s, a1.ID, b1.ID, store.RelCalls)
	mustRel(t, s, b1.ID, a1.ID, store.RelCalls)
	mustRel(t, s, a2.ID, b2.ID, store.RelCalls)
	mustRel(t, s, b2.ID, a2.ID, store.RelCalls)

	result, err := eng.FindCircularDependencies(ctx, CycleOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Cycles, 1, "logically identical cycles must dedupe")
	assert.Equal(t, 2, result.Summary.DistinctEntities)
}

// TestCyclesCanonicalRotation verifies the same cycle reached from
// different roots reports once, rotated to the smallest logical
// identity.
func TestCyclesCanonicalRotation(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := context.Background()

	x := mustEntity(t, s, store.EntityFunction, "x", "src/x.ts", 1)
	y := mustEntity(t, s, store.EntityFunction, "y", "src/y.ts", 1)
	mustRel(t, s, x.ID, y.ID, store.RelImports)
	mustRel(t, s, y.ID, x.ID, store.RelImports)

	result, err := eng.FindCircularDependencies(ctx, CycleOptions{})
	require.NoError(t, err)
	require.Len(t, result.Cycles, 1)
	assert.Equal(t, "x", result.Cycles[0].Entities[0].Name,
		"cycle should rotate to the smallest logical identity")
}

// TestCyclesStartEntityNameFilter verifies only cycles containing the
// named entity survive.
func TestCyclesStartEntityNameFilter(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := context.Background()

	// Cycle 1: a <-> b. Cycle 2: c <-> d.
	a := mustEntity(t, s, store.EntityFunction, "a", "src/a.ts", 1)
	b := mustEntity(t, s, store.EntityFunction, "b", "src/b.ts", 1)
	c := mustEntity(t, s, store.EntityFunction, "c", "src/c.ts", 1)
	d := mustEntity(t, s, store.EntityFunction, "d", "src/d.ts", 1)
	mustRel(t, s, a.ID, b.ID, store.RelCalls)
	mustRel(t, s, b.ID, a.ID, store.RelCalls)
	mustRel(t, s, c.ID, d.ID, store.RelCalls)
	mustRel(t, s, d.ID, c.ID, store.RelCalls)

	result, err := eng.FindCircularDependencies(ctx, CycleOptions{StartEntityName: "c"})
	require.NoError(t, err)
	require.Len(t, result.Cycles, 1)

	names := []string{result.Cycles[0].Entities[0].Name, result.Cycles[0].Entities[1].Name}
	assert.ElementsMatch(t, []string{"c", "d"}, names)
}

// TestCyclesMaxCyclesTruncates verifies the search stops early and says
// so.
func TestCyclesMaxCyclesTruncates(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := context.Background()

	// Three independent 2-cycles.
	for _, pair := range [][2]string{{"a", "b"}, {"c", "d"}, {"e", "f"}} {
		first := mustEntity(t, s, store.EntityFunction, pair[0], "src/"+pair[0]+".ts", 1)
		second := mustEntity(t, s, store.EntityFunction, pair[1], "src/"+pair[1]+".ts", 1)
		mustRel(t, s, first.ID, second.ID, store.RelCalls)
		mustRel(t, s, second.ID, first.ID, store.RelCalls)
	}

	result, err := eng.FindCircularDependencies(ctx, CycleOptions{MaxCycles: 2})
	require.NoError(t, err)
	assert.Len(t, result.Cycles, 2)
	assert.True(t, result.Truncated)
}

// TestCyclesAcyclicGraphIsEmpty verifies a DAG yields an empty result
// with a zeroed summary.
func TestCyclesAcyclicGraphIsEmpty(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := context.Background()

	a := mustEntity(t, s, store.EntityFunction, "a", "src/a.ts", 1)
	b := mustEntity(t, s, store.EntityFunction, "b", "src/b.ts", 1)
	c := mustEntity(t, s, store.EntityFunction, "c", "src/c.ts", 1)
	mustRel(t, s, a.ID, b.ID, store.RelCalls)
	mustRel(t, s, b.ID, c.ID, store.RelCalls)

	result, err := eng.FindCircularDependencies(ctx, CycleOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Cycles)
	assert.Zero(t, result.Summary.ShortestCycle)
	assert.Zero(t, result.Summary.LongestCycle)
}

// TestCyclesRejectsBadLimits verifies parameter validation fires before
// any graph load.
func TestCyclesRejectsBadLimits(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.FindCircularDependencies(ctx, CycleOptions{MaxCycles: -1})
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = eng.FindCircularDependencies(ctx, CycleOptions{MaxCycles: MaxCycleLimit + 1})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}
