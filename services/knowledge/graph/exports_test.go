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

// TestExportsListsExportedOnly verifies only entities with exported
// metadata appear, with export type defaulting to named.
func TestExportsListsExportedOnly(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := context.Background()

	_, err := s.Entities().Create(ctx, store.NewEntity{
		Type: store.EntityFunction, Name: "formatDate", FilePath: "src/dates.ts",
		StartLine: 3, EndLine: 9, Language: "typescript",
		Meta: &store.EntityMeta{Exported: true, Signature: "formatDate(d: Date): string"},
	})
	require.NoError(t, err)

	_, err = s.Entities().Create(ctx, store.NewEntity{
		Type: store.EntityClass, Name: "DateFormatter", FilePath: "src/dates.ts",
		StartLine: 12, EndLine: 40, Language: "typescript",
		Meta: &store.EntityMeta{Exported: true, ExportType: "default"},
	})
	require.NoError(t, err)

	mustEntity(t, s, store.EntityFunction, "internalHelper", "src/dates.ts", 45)

	exports, err := eng.Exports(ctx, "src/dates.ts")
	require.NoError(t, err)
	require.Len(t, exports, 2)

	assert.Equal(t, "formatDate", exports[0].Name, "exports are in source order")
	assert.Equal(t, "named", exports[0].ExportType)
	assert.Equal(t, "formatDate(d: Date): string", exports[0].Signature)

	assert.Equal(t, "DateFormatter", exports[1].Name)
	assert.Equal(t, "default", exports[1].ExportType)
}

// TestExportsUnknownFileIsEmpty verifies the empty-not-error contract.
func TestExportsUnknownFileIsEmpty(t *testing.T) {
	eng, _ := newTestEngine(t)

	exports, err := eng.Exports(context.Background(), "src/ghost.ts")
	require.NoError(t, err)
	assert.Empty(t, exports)
}

// TestExportsRejectsEmptyPath verifies the boundary check.
func TestExportsRejectsEmptyPath(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.Exports(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

// TestStatsCountsEverything verifies the stats roll-up over both stores
// and the file ledger.
func TestStatsCountsEverything(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := context.Background()

	a := mustEntity(t, s, store.EntityFunction, "a", "src/a.ts", 1)
	b := mustEntity(t, s, store.EntityClass, "B", "src/b.ts", 1)
	mustRel(t, s, a.ID, b.ID, store.RelCalls)

	_, err := s.Files().Upsert(ctx, "src/a.ts", "hash-a", "typescript")
	require.NoError(t, err)

	stats, err := eng.Stats(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 1, stats.EntitiesByType[store.EntityFunction])
	assert.Equal(t, 1, stats.Relationships)
	assert.Equal(t, 1, stats.RelationshipsByType[store.RelCalls])
	assert.Zero(t, stats.RelationshipsByType[store.RelImports], "zero counts are present")
	assert.Equal(t, 1, stats.Files)
	require.NotEmpty(t, stats.RecentFiles)
}
