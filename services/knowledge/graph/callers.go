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

// WhatCalls returns every entity that depends on an entity named name:
// the sources of incoming calls, extends, and implements relationships.
// Imports are excluded; importing a module is not using it.
//
// Name is not unique, so every matching entity contributes its callers.
// Results are deduplicated by logical identity (name+file+start line),
// which tolerates duplicate entities left behind by re-parses. An
// unknown name yields an empty slice, never an error.
func (e *Engine) WhatCalls(ctx context.Context, name string) ([]*store.Entity, error) {
	return e.neighbors(ctx, "WhatCalls", name, directionIncoming)
}

// WhatDoesCall returns every entity that an entity named name depends
// on: the targets of outgoing calls, extends, and implements
// relationships. Deduplication and the empty-result contract match
// WhatCalls.
func (e *Engine) WhatDoesCall(ctx context.Context, name string) ([]*store.Entity, error) {
	return e.neighbors(ctx, "WhatDoesCall", name, directionOutgoing)
}

type direction int

const (
	directionIncoming direction = iota
	directionOutgoing
)

// neighbors implements both caller and callee lookup; the two differ
// only in which endpoint of each relationship is matched and which is
// resolved.
func (e *Engine) neighbors(ctx context.Context, operation, name string, dir direction) ([]*store.Entity, error) {
	start := time.Now()
	if name == "" {
		return nil, fmt.Errorf("%w: entity name must not be empty", ErrInvalidQuery)
	}

	ctx, span := startQuerySpan(ctx, operation, attribute.String("graph.entity_name", name))
	defer span.End()

	matches, err := e.store.Entities().FindByName(ctx, name)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("looking up %q: %w", name, err)
	}

	seen := make(map[string]bool)
	results := make([]*store.Entity, 0)
	for _, match := range matches {
		var rels []*store.Relationship
		if dir == directionIncoming {
			rels, err = e.store.Relationships().FindByTarget(ctx, match.ID)
		} else {
			rels, err = e.store.Relationships().FindBySource(ctx, match.ID)
		}
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("loading relationships of %q: %w", name, err)
		}

		for _, rel := range rels {
			if !isUsageType(rel.Type) {
				continue
			}
			otherID := rel.SourceID
			if dir == directionOutgoing {
				otherID = rel.TargetID
			}
			other, err := e.store.Entities().FindByID(ctx, otherID)
			if err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("resolving relationship endpoint: %w", err)
			}
			if other == nil {
				// Cascade delete raced the query; the edge is already gone.
				continue
			}
			key := other.LogicalKey()
			if !seen[key] {
				seen[key] = true
				results = append(results, other)
			}
		}
	}

	span.SetAttributes(attribute.Int("graph.result_count", len(results)))
	recordQueryMetrics(ctx, operation, start, len(results), nil)
	return results, nil
}
