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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRelationshipCreateRoundTrip verifies Create persists the edge with
// its metadata.
func TestRelationshipCreateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	caller := mustEntity(t, s, EntityFunction, "handleClick", "src/ui.ts", 4)
	callee := mustEntity(t, s, EntityFunction, "submitForm", "src/api.ts", 9)

	created, err := s.Relationships().Create(ctx, NewRelationship{
		SourceID: caller.ID,
		TargetID: callee.ID,
		Type:     RelCalls,
		Meta:     &RelationshipMeta{Line: 7, SourceName: "handleClick", TargetName: "submitForm"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Positive(t, created.CreatedAtMilli)

	got, err := s.Relationships().FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, caller.ID, got.SourceID)
	assert.Equal(t, RelCalls, got.Type)
	require.NotNil(t, got.Meta)
	assert.Equal(t, 7, got.Meta.Line)
}

// TestRelationshipCreateRejectsDuplicate verifies the second identical
// (source, target, type) triple fails loudly while a different type on
// the same pair succeeds.
func TestRelationshipCreateRejectsDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustEntity(t, s, EntityClass, "Child", "src/child.ts", 1)
	b := mustEntity(t, s, EntityClass, "Base", "src/base.ts", 1)

	_, err := s.Relationships().Create(ctx, NewRelationship{SourceID: a.ID, TargetID: b.ID, Type: RelExtends})
	require.NoError(t, err)

	_, err = s.Relationships().Create(ctx, NewRelationship{SourceID: a.ID, TargetID: b.ID, Type: RelExtends})
	assert.ErrorIs(t, err, ErrDuplicateRelationship)

	_, err = s.Relationships().Create(ctx, NewRelationship{SourceID: a.ID, TargetID: b.ID, Type: RelCalls})
	assert.NoError(t, err, "same pair with a different type is a distinct edge")

	n, err := s.Relationships().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// TestRelationshipCreateRejectsMissingEndpoint verifies both endpoints
// must exist before an edge is written.
func TestRelationshipCreateRejectsMissingEndpoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustEntity(t, s, EntityFunction, "a", "src/a.ts", 1)

	_, err := s.Relationships().Create(ctx, NewRelationship{SourceID: a.ID, TargetID: "ghost", Type: RelCalls})
	assert.ErrorIs(t, err, ErrEntityNotFound)

	_, err = s.Relationships().Create(ctx, NewRelationship{SourceID: "ghost", TargetID: a.ID, Type: RelCalls})
	assert.ErrorIs(t, err, ErrEntityNotFound)

	n, err := s.Relationships().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// TestRelationshipCreateValidation verifies malformed input is rejected
// before any database work.
func TestRelationshipCreateValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Relationships().Create(ctx, NewRelationship{SourceID: "", TargetID: "x", Type: RelCalls})
	assert.ErrorIs(t, err, ErrInvalidRelationship)

	_, err = s.Relationships().Create(ctx, NewRelationship{SourceID: "x", TargetID: "y", Type: "tickles"})
	assert.ErrorIs(t, err, ErrInvalidRelationshipType)
}

// TestCreateBatchDropsDuplicatesSilently verifies batch ingestion skips
// duplicates within the batch and against stored rows, returning only
// what was inserted.
func TestCreateBatchDropsDuplicatesSilently(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustEntity(t, s, EntityFunction, "a", "src/a.ts", 1)
	b := mustEntity(t, s, EntityFunction, "b", "src/b.ts", 1)
	c := mustEntity(t, s, EntityFunction, "c", "src/c.ts", 1)

	_, err := s.Relationships().Create(ctx, NewRelationship{SourceID: a.ID, TargetID: b.ID, Type: RelCalls})
	require.NoError(t, err)

	inserted, err := s.Relationships().CreateBatch(ctx, []NewRelationship{
		{SourceID: a.ID, TargetID: b.ID, Type: RelCalls}, // already stored
		{SourceID: a.ID, TargetID: c.ID, Type: RelCalls}, // new
		{SourceID: a.ID, TargetID: c.ID, Type: RelCalls}, // duplicate within batch
	})
	require.NoError(t, err)
	require.Len(t, inserted, 1, "only the new triple should insert")
	assert.Equal(t, c.ID, inserted[0].TargetID)

	n, err := s.Relationships().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// TestCreateBatchPreservesInputOrder verifies returned rows follow the
// order of the input slice.
func TestCreateBatchPreservesInputOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustEntity(t, s, EntityFunction, "a", "src/a.ts", 1)
	b := mustEntity(t, s, EntityFunction, "b", "src/b.ts", 1)
	c := mustEntity(t, s, EntityFunction, "c", "src/c.ts", 1)

	inserted, err := s.Relationships().CreateBatch(ctx, []NewRelationship{
		{SourceID: c.ID, TargetID: a.ID, Type: RelCalls},
		{SourceID: a.ID, TargetID: b.ID, Type: RelImports},
		{SourceID: b.ID, TargetID: c.ID, Type: RelCalls},
	})
	require.NoError(t, err)
	require.Len(t, inserted, 3)
	assert.Equal(t, c.ID, inserted[0].SourceID)
	assert.Equal(t, RelImports, inserted[1].Type)
	assert.Equal(t, b.ID, inserted[2].SourceID)
}

// TestCreateBatchAbortsOnMissingEndpoint verifies a dangling reference
// fails the whole batch and nothing is written.
func TestCreateBatchAbortsOnMissingEndpoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustEntity(t, s, EntityFunction, "a", "src/a.ts", 1)
	b := mustEntity(t, s, EntityFunction, "b", "src/b.ts", 1)

	_, err := s.Relationships().CreateBatch(ctx, []NewRelationship{
		{SourceID: a.ID, TargetID: b.ID, Type: RelCalls},
		{SourceID: a.ID, TargetID: "ghost", Type: RelCalls},
	})
	assert.ErrorIs(t, err, ErrEntityNotFound)

	n, err := s.Relationships().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "aborted batch must not leave partial rows")
}

// TestCreateBatchEmpty verifies an empty batch is a no-op.
func TestCreateBatchEmpty(t *testing.T) {
	s := newTestStore(t)

	inserted, err := s.Relationships().CreateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, inserted)
}

// TestRelationshipLookups covers the directional and typed finders.
func TestRelationshipLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustEntity(t, s, EntityFunction, "a", "src/a.ts", 1)
	b := mustEntity(t, s, EntityFunction, "b", "src/b.ts", 1)
	c := mustEntity(t, s, EntityFunction, "c", "src/c.ts", 1)

	_, err := s.Relationships().CreateBatch(ctx, []NewRelationship{
		{SourceID: a.ID, TargetID: b.ID, Type: RelCalls},
		{SourceID: a.ID, TargetID: c.ID, Type: RelCalls},
		{SourceID: c.ID, TargetID: b.ID, Type: RelImports},
	})
	require.NoError(t, err)

	fromA, err := s.Relationships().FindBySource(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, fromA, 2)

	intoB, err := s.Relationships().FindByTarget(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, intoB, 2)

	imports, err := s.Relationships().FindByType(ctx, RelImports)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, c.ID, imports[0].SourceID)

	_, err = s.Relationships().FindByType(ctx, "borrows")
	assert.ErrorIs(t, err, ErrInvalidRelationshipType)
}

// TestFindBetweenIsDirectional verifies FindBetween matches one direction
// only.
func TestFindBetweenIsDirectional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustEntity(t, s, EntityFunction, "a", "src/a.ts", 1)
	b := mustEntity(t, s, EntityFunction, "b", "src/b.ts", 1)

	_, err := s.Relationships().CreateBatch(ctx, []NewRelationship{
		{SourceID: a.ID, TargetID: b.ID, Type: RelCalls},
		{SourceID: a.ID, TargetID: b.ID, Type: RelImports},
	})
	require.NoError(t, err)

	forward, err := s.Relationships().FindBetween(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Len(t, forward, 2)

	reverse, err := s.Relationships().FindBetween(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Empty(t, reverse)
}

// TestRelationshipDelete covers single delete and DeleteByEntity in both
// directions.
func TestRelationshipDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustEntity(t, s, EntityFunction, "a", "src/a.ts", 1)
	b := mustEntity(t, s, EntityFunction, "b", "src/b.ts", 1)
	c := mustEntity(t, s, EntityFunction, "c", "src/c.ts", 1)

	r1, err := s.Relationships().Create(ctx, NewRelationship{SourceID: a.ID, TargetID: b.ID, Type: RelCalls})
	require.NoError(t, err)
	_, err = s.Relationships().Create(ctx, NewRelationship{SourceID: b.ID, TargetID: c.ID, Type: RelCalls})
	require.NoError(t, err)
	_, err = s.Relationships().Create(ctx, NewRelationship{SourceID: c.ID, TargetID: b.ID, Type: RelImports})
	require.NoError(t, err)

	ok, err := s.Relationships().Delete(ctx, r1.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Relationships().Delete(ctx, r1.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second delete finds nothing")

	removed, err := s.Relationships().DeleteByEntity(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed, "removes edges where b is source or target")

	n, err := s.Relationships().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// TestRelationshipCountByTypeCoversFullSet verifies zero counts are
// reported for every known type.
func TestRelationshipCountByTypeCoversFullSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	counts, err := s.Relationships().CountByType(ctx)
	require.NoError(t, err)
	require.Len(t, counts, len(AllRelationshipTypes), "empty store still reports every type")
	for _, typ := range AllRelationshipTypes {
		n, present := counts[typ]
		assert.True(t, present, "type %s should be present", typ)
		assert.Zero(t, n)
	}

	a := mustEntity(t, s, EntityFunction, "a", "src/a.ts", 1)
	b := mustEntity(t, s, EntityFunction, "b", "src/b.ts", 1)
	_, err = s.Relationships().Create(ctx, NewRelationship{SourceID: a.ID, TargetID: b.ID, Type: RelCalls})
	require.NoError(t, err)

	counts, err = s.Relationships().CountByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[RelCalls])
	assert.Zero(t, counts[RelExtends])
}
