// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEntityCreateRoundTrip verifies Create assigns identity and
// timestamps and FindByID returns the stored row including metadata.
func TestEntityCreateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Entities().Create(ctx, NewEntity{
		Type:      EntityFunction,
		Name:      "calculateTotal",
		FilePath:  "src/billing.ts",
		StartLine: 12,
		EndLine:   40,
		Language:  "typescript",
		Meta: &EntityMeta{
			Exported:   true,
			ExportType: "named",
			Signature:  "calculateTotal(items: Item[]): number",
			Parameters: []string{"items"},
			ReturnType: "number",
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID, "store should assign an ID")
	assert.Positive(t, created.CreatedAtMilli)
	assert.Equal(t, created.CreatedAtMilli, created.UpdatedAtMilli)

	got, err := s.Entities().FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "calculateTotal", got.Name)
	assert.Equal(t, EntityFunction, got.Type)
	assert.Equal(t, 12, got.StartLine)
	require.NotNil(t, got.Meta, "metadata should round-trip")
	assert.True(t, got.Meta.Exported)
	assert.Equal(t, []string{"items"}, got.Meta.Parameters)
}

// TestEntityCreateValidation verifies malformed input gets a typed
// validation error and no row.
func TestEntityCreateValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   NewEntity
		want error
	}{
		{"unknown type", NewEntity{Type: "widget", Name: "x", FilePath: "a.ts", StartLine: 1, EndLine: 1}, ErrInvalidEntityType},
		{"empty name", NewEntity{Type: EntityFunction, FilePath: "a.ts", StartLine: 1, EndLine: 1}, ErrInvalidEntity},
		{"empty path", NewEntity{Type: EntityFunction, Name: "x", StartLine: 1, EndLine: 1}, ErrInvalidEntity},
		{"zero start line", NewEntity{Type: EntityFunction, Name: "x", FilePath: "a.ts", StartLine: 0, EndLine: 1}, ErrInvalidEntity},
		{"end before start", NewEntity{Type: EntityFunction, Name: "x", FilePath: "a.ts", StartLine: 5, EndLine: 2}, ErrInvalidEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Entities().Create(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	n, err := s.Entities().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "failed creates should not persist rows")
}

// TestEntityAbsenceIsNotAnError verifies lookups for missing data return
// nil or empty, never an error.
func TestEntityAbsenceIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.Entities().FindByID(ctx, "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, got)

	byName, err := s.Entities().FindByName(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, byName)

	byFile, err := s.Entities().FindByFile(ctx, "src/ghost.ts")
	require.NoError(t, err)
	assert.Empty(t, byFile)

	deleted, err := s.Entities().Delete(ctx, "no-such-id")
	require.NoError(t, err)
	assert.False(t, deleted)
}

// TestEntityFindByName verifies same-named entities in different files
// all come back.
func TestEntityFindByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustEntity(t, s, EntityFunction, "render", "src/button.tsx", 5)
	mustEntity(t, s, EntityFunction, "render", "src/modal.tsx", 8)
	mustEntity(t, s, EntityFunction, "paint", "src/canvas.tsx", 3)

	got, err := s.Entities().FindByName(ctx, "render")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "src/button.tsx", got[0].FilePath)
	assert.Equal(t, "src/modal.tsx", got[1].FilePath)
}

// TestEntityFindByFileAndType covers the two filtered listings.
func TestEntityFindByFileAndType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustEntity(t, s, EntityClass, "Cart", "src/cart.ts", 1)
	mustEntity(t, s, EntityMethod, "addItem", "src/cart.ts", 10)
	mustEntity(t, s, EntityFunction, "format", "src/util.ts", 1)

	inFile, err := s.Entities().FindByFile(ctx, "src/cart.ts")
	require.NoError(t, err)
	require.Len(t, inFile, 2)
	assert.Equal(t, "Cart", inFile[0].Name, "results ordered by start line")

	classes, err := s.Entities().FindByType(ctx, EntityClass)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "Cart", classes[0].Name)

	_, err = s.Entities().FindByType(ctx, "gadget")
	assert.ErrorIs(t, err, ErrInvalidEntityType)
}

// TestEntityDeleteByFile verifies bulk deletion returns the removed count
// and cascades to relationships touching the removed entities.
func TestEntityDeleteByFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustEntity(t, s, EntityFunction, "a", "src/old.ts", 1)
	b := mustEntity(t, s, EntityFunction, "b", "src/old.ts", 10)
	keep := mustEntity(t, s, EntityFunction, "keep", "src/new.ts", 1)

	_, err := s.Relationships().Create(ctx, NewRelationship{SourceID: a.ID, TargetID: b.ID, Type: RelCalls})
	require.NoError(t, err)
	_, err = s.Relationships().Create(ctx, NewRelationship{SourceID: keep.ID, TargetID: a.ID, Type: RelCalls})
	require.NoError(t, err)

	n, err := s.Entities().DeleteByFile(ctx, "src/old.ts")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	relCount, err := s.Relationships().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, relCount, "relationships touching deleted entities should cascade")

	survivor, err := s.Entities().FindByID(ctx, keep.ID)
	require.NoError(t, err)
	assert.NotNil(t, survivor)

	n, err = s.Entities().DeleteByFile(ctx, "src/old.ts")
	require.NoError(t, err)
	assert.Zero(t, n, "second delete finds nothing")
}

// TestEntityCounts covers Count and CountByType.
func TestEntityCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustEntity(t, s, EntityFunction, "a", "src/a.ts", 1)
	mustEntity(t, s, EntityFunction, "b", "src/a.ts", 5)
	mustEntity(t, s, EntityClass, "C", "src/c.ts", 1)

	total, err := s.Entities().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	byType, err := s.Entities().CountByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, byType[EntityFunction])
	assert.Equal(t, 1, byType[EntityClass])
	_, present := byType[EntityModule]
	assert.False(t, present, "types with no rows are omitted")
}

// TestRecentFiles verifies ordering by latest update and the limit.
func TestRecentFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustEntity(t, s, EntityFunction, "a", "src/first.ts", 1)
	time.Sleep(2 * time.Millisecond)
	mustEntity(t, s, EntityFunction, "b", "src/second.ts", 1)
	mustEntity(t, s, EntityFunction, "c", "src/second.ts", 10)
	time.Sleep(2 * time.Millisecond)
	mustEntity(t, s, EntityFunction, "d", "src/third.ts", 1)

	recent, err := s.Entities().RecentFiles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "src/third.ts", recent[0].FilePath)
	assert.Equal(t, 1, recent[0].EntityCount)
	assert.Equal(t, "src/second.ts", recent[1].FilePath)
	assert.Equal(t, 2, recent[1].EntityCount)

	all, err := s.Entities().RecentFiles(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3, "non-positive limit falls back to default")
}
