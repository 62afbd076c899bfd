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
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// Cycle search limits.
const (
	// DefaultMaxCycles is used when CycleOptions.MaxCycles is 0.
	DefaultMaxCycles = 100

	// MaxCycleLimit is the largest accepted MaxCycles value.
	MaxCycleLimit = 1000
)

// CycleOptions configures FindCircularDependencies.
type CycleOptions struct {
	// StartEntityName restricts the search to cycles containing an
	// entity with this name. Empty searches the whole graph.
	StartEntityName string `json:"start_entity_name,omitempty"`

	// MaxCycles stops the search after this many distinct cycles.
	// 0 means DefaultMaxCycles.
	MaxCycles int `json:"max_cycles,omitempty"`
}

// Cycle is one circular dependency. Entities holds the cycle in
// traversal order, rotated so the lexicographically smallest logical
// identity comes first; the closing edge back to Entities[0] is implied.
type Cycle struct {
	Entities []*store.Entity `json:"entities"`
	Length   int             `json:"length"`
}

// CycleSummary aggregates a cycle search. Shortest/Longest are 0 when no
// cycles were found.
type CycleSummary struct {
	TotalCycles      int `json:"total_cycles"`
	DistinctEntities int `json:"distinct_entities"`
	ShortestCycle    int `json:"shortest_cycle"`
	LongestCycle     int `json:"longest_cycle"`
}

// CyclesResult reports the circular dependencies found.
type CyclesResult struct {
	Cycles  []Cycle      `json:"cycles"`
	Summary CycleSummary `json:"summary"`

	// Truncated is true when the search stopped at MaxCycles before
	// exhausting the graph.
	Truncated bool `json:"truncated,omitempty"`
}

// cycleGraph is the in-memory adjacency view the DFS runs over. Loading
// it once up front keeps the traversal off the database.
type cycleGraph struct {
	entities map[string]*store.Entity
	adjacent map[string][]string
}

// FindCircularDependencies enumerates dependency cycles by iterative DFS
// over outgoing calls, imports, extends, and implements edges.
//
// A back-edge to an entity still on the DFS path denotes a cycle.
// Self-loops are excluded: an entity referencing itself (recursion) is
// not a dependency cycle. Each cycle is canonicalized by rotating its
// entity sequence to start at the lexicographically smallest logical
// identity, so the same logical cycle reached from different roots, or
// through duplicate entities left by re-parses, is reported exactly
// once. The search stops once MaxCycles distinct cycles exist.
func (e *Engine) FindCircularDependencies(ctx context.Context, opts CycleOptions) (*CyclesResult, error) {
	start := time.Now()
	switch {
	case opts.MaxCycles == 0:
		opts.MaxCycles = DefaultMaxCycles
	case opts.MaxCycles < 0:
		return nil, fmt.Errorf("%w: max cycles %d is negative", ErrInvalidLimit, opts.MaxCycles)
	case opts.MaxCycles > MaxCycleLimit:
		return nil, fmt.Errorf("%w: max cycles %d exceeds maximum %d", ErrInvalidLimit, opts.MaxCycles, MaxCycleLimit)
	}

	ctx, span := startQuerySpan(ctx, "FindCircularDependencies",
		attribute.String("graph.start_entity", opts.StartEntityName),
		attribute.Int("graph.max_cycles", opts.MaxCycles),
	)
	defer span.End()

	cg, err := e.loadCycleGraph(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	roots := make([]string, 0, len(cg.entities))
	if opts.StartEntityName != "" {
		for id, ent := range cg.entities {
			if ent.Name == opts.StartEntityName {
				roots = append(roots, id)
			}
		}
	} else {
		for id := range cg.entities {
			roots = append(roots, id)
		}
	}

	result := &CyclesResult{Cycles: make([]Cycle, 0)}
	seen := make(map[string]bool)
	visited := make(map[string]bool, len(cg.entities))

	for _, root := range roots {
		if visited[root] {
			continue
		}
		if e.searchFrom(cg, root, visited, seen, opts, result) {
			result.Truncated = true
			break
		}
	}

	result.Summary = summarizeCycles(result.Cycles)
	span.SetAttributes(attribute.Int("graph.cycles_found", result.Summary.TotalCycles))
	recordQueryMetrics(ctx, "FindCircularDependencies", start, result.Summary.TotalCycles, nil)
	return result, nil
}

// loadCycleGraph materializes every entity and every cycle-relevant edge.
// Self-loops are dropped here so the DFS never sees them.
func (e *Engine) loadCycleGraph(ctx context.Context) (*cycleGraph, error) {
	cg := &cycleGraph{
		entities: make(map[string]*store.Entity),
		adjacent: make(map[string][]string),
	}

	for _, t := range store.AllEntityTypes {
		ents, err := e.store.Entities().FindByType(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("loading %s entities: %w", t, err)
		}
		for _, ent := range ents {
			cg.entities[ent.ID] = ent
		}
	}

	for _, t := range cycleTypes {
		rels, err := e.store.Relationships().FindByType(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("loading %s relationships: %w", t, err)
		}
		for _, rel := range rels {
			if rel.SourceID == rel.TargetID {
				continue
			}
			cg.adjacent[rel.SourceID] = append(cg.adjacent[rel.SourceID], rel.TargetID)
		}
	}

	return cg, nil
}

// dfsFrame is one explicit-stack DFS frame: a node and the index of the
// next neighbor to expand.
type dfsFrame struct {
	id   string
	next int
}

// searchFrom runs one iterative DFS rooted at root, appending
// canonicalized cycles to result. Returns true once the MaxCycles limit
// is hit.
func (e *Engine) searchFrom(cg *cycleGraph, root string, visited, seen map[string]bool, opts CycleOptions, result *CyclesResult) bool {
	stack := []dfsFrame{{id: root}}
	path := []string{root}
	onPath := map[string]bool{root: true}
	visited[root] = true

	for len(stack) > 0 {
		frame := &stack[len(stack)-1]
		neighbors := cg.adjacent[frame.id]

		if frame.next >= len(neighbors) {
			stack = stack[:len(stack)-1]
			path = path[:len(path)-1]
			delete(onPath, frame.id)
			continue
		}

		neighbor := neighbors[frame.next]
		frame.next++

		if onPath[neighbor] {
			// Back-edge: the path from neighbor to the top of the stack
			// plus this edge is a cycle.
			idx := 0
			for i, id := range path {
				if id == neighbor {
					idx = i
					break
				}
			}
			if cycle, ok := canonicalCycle(cg, path[idx:], seen); ok {
				if keepCycle(cycle, opts.StartEntityName) {
					result.Cycles = append(result.Cycles, cycle)
					if len(result.Cycles) >= opts.MaxCycles {
						return true
					}
				}
			}
			continue
		}

		if visited[neighbor] {
			continue
		}
		visited[neighbor] = true
		onPath[neighbor] = true
		path = append(path, neighbor)
		stack = append(stack, dfsFrame{id: neighbor})
	}

	return false
}

// canonicalCycle rotates ids so the lexicographically smallest logical
// identity leads, then checks the resulting signature against seen.
// Using logical identity rather than raw ids collapses cycles that
// differ only through duplicate entities from repeated parses.
func canonicalCycle(cg *cycleGraph, ids []string, seen map[string]bool) (Cycle, bool) {
	n := len(ids)
	if n == 0 {
		return Cycle{}, false
	}

	keys := make([]string, n)
	for i, id := range ids {
		ent := cg.entities[id]
		if ent == nil {
			return Cycle{}, false
		}
		keys[i] = ent.LogicalKey()
	}

	best := 0
	bestSig := rotatedSignature(keys, 0)
	for i := 1; i < n; i++ {
		if sig := rotatedSignature(keys, i); sig < bestSig {
			bestSig = sig
			best = i
		}
	}

	if seen[bestSig] {
		return Cycle{}, false
	}
	seen[bestSig] = true

	entities := make([]*store.Entity, n)
	for i := 0; i < n; i++ {
		entities[i] = cg.entities[ids[(best+i)%n]]
	}
	return Cycle{Entities: entities, Length: n}, true
}

// rotatedSignature joins keys starting at offset, wrapping around.
func rotatedSignature(keys []string, offset int) string {
	n := len(keys)
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(" -> ")
		}
		sb.WriteString(keys[(offset+i)%n])
	}
	return sb.String()
}

// keepCycle applies the StartEntityName filter.
func keepCycle(c Cycle, name string) bool {
	if name == "" {
		return true
	}
	for _, ent := range c.Entities {
		if ent.Name == name {
			return true
		}
	}
	return false
}

func summarizeCycles(cycles []Cycle) CycleSummary {
	s := CycleSummary{TotalCycles: len(cycles)}
	distinct := make(map[string]bool)
	for _, c := range cycles {
		for _, ent := range c.Entities {
			distinct[ent.LogicalKey()] = true
		}
		if s.ShortestCycle == 0 || c.Length < s.ShortestCycle {
			s.ShortestCycle = c.Length
		}
		if c.Length > s.LongestCycle {
			s.LongestCycle = c.Length
		}
	}
	s.DistinctEntities = len(distinct)
	return s
}
