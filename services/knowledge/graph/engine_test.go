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

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// newTestEngine opens an in-memory store with an engine over it.
func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err, "opening in-memory store should succeed")
	t.Cleanup(func() { _ = s.Close() })
	return NewEngine(s), s
}

// mustEntity creates an entity and fails the test on error.
func mustEntity(t *testing.T, s *store.Store, typ store.EntityType, name, filePath string, startLine int) *store.Entity {
	t.Helper()
	e, err := s.Entities().Create(context.Background(), store.NewEntity{
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

// mustExported creates an entity carrying exported metadata.
func mustExported(t *testing.T, s *store.Store, typ store.EntityType, name, filePath string, startLine int) *store.Entity {
	t.Helper()
	e, err := s.Entities().Create(context.Background(), store.NewEntity{
		Type:      typ,
		Name:      name,
		FilePath:  filePath,
		StartLine: startLine,
		EndLine:   startLine + 3,
		Language:  "typescript",
		Meta:      &store.EntityMeta{Exported: true},
	})
	require.NoError(t, err, "creating exported entity %s should succeed", name)
	return e
}

// mustRel creates a relationship and fails the test on error.
func mustRel(t *testing.T, s *store.Store, sourceID, targetID string, typ store.RelationshipType) {
	t.Helper()
	_, err := s.Relationships().Create(context.Background(), store.NewRelationship{
		SourceID: sourceID,
		TargetID: targetID,
		Type:     typ,
	})
	require.NoError(t, err, "creating %s relationship should succeed", typ)
}
