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
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// Export is one exported entity of a file.
type Export struct {
	Name       string           `json:"name"`
	EntityType store.EntityType `json:"entity_type"`

	// ExportType is "default" or "named"; entities marked exported
	// without an explicit export type are named.
	ExportType string `json:"export_type"`

	Signature string `json:"signature,omitempty"`
	StartLine int    `json:"start_line"`
}

// Exports lists the entities of filePath whose metadata marks them
// exported, in source order. An unknown file yields an empty slice.
func (e *Engine) Exports(ctx context.Context, filePath string) ([]Export, error) {
	start := time.Now()
	if filePath == "" {
		return nil, fmt.Errorf("%w: file path must not be empty", ErrInvalidQuery)
	}

	ctx, span := startQuerySpan(ctx, "Exports", attribute.String("graph.file_path", filePath))
	defer span.End()

	ents, err := e.store.Entities().FindByFile(ctx, filePath)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("loading entities of %s: %w", filePath, err)
	}

	exports := make([]Export, 0)
	for _, ent := range ents {
		if !ent.Exported() {
			continue
		}
		exp := Export{
			Name:       ent.Name,
			EntityType: ent.Type,
			ExportType: "named",
			StartLine:  ent.StartLine,
		}
		if ent.Meta != nil {
			if ent.Meta.ExportType != "" {
				exp.ExportType = ent.Meta.ExportType
			}
			exp.Signature = ent.Meta.Signature
		}
		exports = append(exports, exp)
	}

	sort.Slice(exports, func(i, j int) bool {
		return exports[i].StartLine < exports[j].StartLine
	})

	span.SetAttributes(attribute.Int("graph.result_count", len(exports)))
	recordQueryMetrics(ctx, "Exports", start, len(exports), nil)
	return exports, nil
}
