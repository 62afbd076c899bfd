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
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// Blast radius depth bounds.
const (
	// DefaultBlastDepth is used when BlastRadius is called with depth 0.
	DefaultBlastDepth = 5

	// MaxBlastDepth is the largest accepted traversal depth.
	MaxBlastDepth = 50
)

// AffectedEntity is one entity reached by the blast radius traversal.
type AffectedEntity struct {
	Entity *store.Entity `json:"entity"`

	// Depth is 1-based: immediate dependents of the changed file are
	// depth 1. The same convention is used on every surface (CLI, HTTP,
	// MCP).
	Depth int `json:"depth"`
}

// BlastRadiusSummary aggregates a blast radius result.
type BlastRadiusSummary struct {
	TotalAffected    int `json:"total_affected"`
	MaxDepth         int `json:"max_depth"`
	DirectDependents int `json:"direct_dependents"`
}

// BlastRadiusResult reports what would be affected by changing a file.
type BlastRadiusResult struct {
	FilePath string             `json:"file_path"`
	Sources  []*store.Entity    `json:"sources"`
	Affected []AffectedEntity   `json:"affected"`
	Summary  BlastRadiusSummary `json:"summary"`
}

// BlastRadius computes the set of entities transitively dependent on the
// entities defined in filePath, by BFS over incoming relationships of
// every type (an importer is affected by a change even though the import
// edge does not count as usage elsewhere).
//
// The source entities seed the visited set, so a file whose entities
// reference each other never reports itself. Each affected entity is
// recorded once, at the shallowest depth it was reached; cycles terminate
// through the visited set. maxDepth 0 means DefaultBlastDepth; negative
// or > MaxBlastDepth values are rejected. Summary.MaxDepth is the deepest
// layer that produced a discovery, which is below the requested depth
// when the traversal exhausts the graph first.
func (e *Engine) BlastRadius(ctx context.Context, filePath string, maxDepth int) (*BlastRadiusResult, error) {
	start := time.Now()
	if filePath == "" {
		return nil, fmt.Errorf("%w: file path must not be empty", ErrInvalidQuery)
	}
	switch {
	case maxDepth == 0:
		maxDepth = DefaultBlastDepth
	case maxDepth < 0:
		return nil, fmt.Errorf("%w: depth %d is negative", ErrInvalidDepth, maxDepth)
	case maxDepth > MaxBlastDepth:
		return nil, fmt.Errorf("%w: depth %d exceeds maximum %d", ErrInvalidDepth, maxDepth, MaxBlastDepth)
	}

	ctx, span := startQuerySpan(ctx, "BlastRadius",
		attribute.String("graph.file_path", filePath),
		attribute.Int("graph.max_depth", maxDepth),
	)
	defer span.End()

	sources, err := e.store.Entities().FindByFile(ctx, filePath)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("loading entities of %s: %w", filePath, err)
	}

	result := &BlastRadiusResult{
		FilePath: filePath,
		Sources:  sources,
		Affected: make([]AffectedEntity, 0),
	}

	visited := make(map[string]bool, len(sources))
	frontier := make([]string, 0, len(sources))
	for _, src := range sources {
		visited[src.ID] = true
		frontier = append(frontier, src.ID)
	}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			incoming, err := e.store.Relationships().FindByTarget(ctx, id)
			if err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("loading dependents: %w", err)
			}
			for _, rel := range incoming {
				if visited[rel.SourceID] {
					continue
				}
				visited[rel.SourceID] = true

				dependent, err := e.store.Entities().FindByID(ctx, rel.SourceID)
				if err != nil {
					span.RecordError(err)
					return nil, fmt.Errorf("resolving dependent: %w", err)
				}
				if dependent == nil {
					continue
				}
				result.Affected = append(result.Affected, AffectedEntity{
					Entity: dependent,
					Depth:  depth,
				})
				result.Summary.MaxDepth = depth
				next = append(next, rel.SourceID)
			}
		}
		frontier = next
	}

	result.Summary.TotalAffected = len(result.Affected)
	for _, a := range result.Affected {
		if a.Depth == 1 {
			result.Summary.DirectDependents++
		}
	}

	span.SetAttributes(
		attribute.Int("graph.sources", len(sources)),
		attribute.Int("graph.affected", result.Summary.TotalAffected),
	)
	recordQueryMetrics(ctx, "BlastRadius", start, result.Summary.TotalAffected, nil)
	return result, nil
}
