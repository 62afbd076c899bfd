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

// Stats is a point-in-time summary of the stored graph.
type Stats struct {
	Entities            int                              `json:"entities"`
	EntitiesByType      map[store.EntityType]int         `json:"entities_by_type"`
	Relationships       int                              `json:"relationships"`
	RelationshipsByType map[store.RelationshipType]int   `json:"relationships_by_type"`
	Files               int                              `json:"files"`
	RecentFiles         []store.RecentFile               `json:"recent_files"`
}

// Stats reports entity, relationship, and file counts plus the most
// recently updated files. recentLimit 0 means 10.
func (e *Engine) Stats(ctx context.Context, recentLimit int) (*Stats, error) {
	start := time.Now()
	if recentLimit == 0 {
		recentLimit = 10
	}
	if recentLimit < 0 {
		return nil, fmt.Errorf("%w: recent limit %d is negative", ErrInvalidLimit, recentLimit)
	}

	ctx, span := startQuerySpan(ctx, "Stats")
	defer span.End()

	stats := &Stats{}
	var err error

	if stats.Entities, err = e.store.Entities().Count(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("counting entities: %w", err)
	}
	if stats.EntitiesByType, err = e.store.Entities().CountByType(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("counting entities by type: %w", err)
	}
	if stats.Relationships, err = e.store.Relationships().Count(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("counting relationships: %w", err)
	}
	if stats.RelationshipsByType, err = e.store.Relationships().CountByType(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("counting relationships by type: %w", err)
	}
	if stats.Files, err = e.store.Files().Count(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("counting files: %w", err)
	}
	if stats.RecentFiles, err = e.store.Entities().RecentFiles(ctx, recentLimit); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("loading recent files: %w", err)
	}

	span.SetAttributes(
		attribute.Int("graph.entities", stats.Entities),
		attribute.Int("graph.relationships", stats.Relationships),
	)
	recordQueryMetrics(ctx, "Stats", start, stats.Entities, nil)
	return stats, nil
}
