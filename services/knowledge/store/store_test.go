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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore opens an in-memory store that closes with the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(MemoryPath)
	require.NoError(t, err, "opening in-memory store should succeed")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// mustEntity creates an entity and fails the test on error.
func mustEntity(t *testing.T, s *Store, typ EntityType, name, filePath string, startLine int) *Entity {
	t.Helper()
	e, err := s.Entities().Create(context.Background(), NewEntity{
		Type:      typ,
		Name:      name,
		FilePath:  filePath,
		StartLine: startLine,
		EndLine:   startLine + 3,
		Language:  "typescript",
	})
	require.NoError(t, err, "creating entity %s should succeed", name)
	return e
}

// TestOpenFile verifies a store opens against a real file path and
// persists across handles.
func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")

	s, err := Open(path)
	require.NoError(t, err)

	e := mustEntity(t, s, EntityFunction, "add", "src/calc.ts", 1)
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Entities().FindByID(context.Background(), e.ID)
	require.NoError(t, err)
	require.NotNil(t, got, "entity should survive reopen")
	assert.Equal(t, "add", got.Name)
}

// TestClosedStoreRejectsOperations verifies every sub-store reports
// ErrStoreClosed once the handle is closed.
func TestClosedStoreRejectsOperations(t *testing.T) {
	s, err := Open(MemoryPath)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ctx := context.Background()

	_, err = s.Entities().Count(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = s.Relationships().Count(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = s.Files().Count(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)

	assert.ErrorIs(t, s.Close(), ErrStoreClosed, "double close should report closed")
}

// TestReset verifies Reset clears all three tables but keeps the handle
// usable.
func TestReset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustEntity(t, s, EntityFunction, "a", "src/a.ts", 1)
	b := mustEntity(t, s, EntityFunction, "b", "src/a.ts", 10)

	_, err := s.Relationships().Create(ctx, NewRelationship{
		SourceID: a.ID, TargetID: b.ID, Type: RelCalls,
	})
	require.NoError(t, err)

	_, err = s.Files().Upsert(ctx, "src/a.ts", "hash-1", "typescript")
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	entityCount, err := s.Entities().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, entityCount)

	relCount, err := s.Relationships().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, relCount)

	fileCount, err := s.Files().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, fileCount)

	// Still usable after reset.
	mustEntity(t, s, EntityClass, "Calculator", "src/calc.ts", 1)
}
