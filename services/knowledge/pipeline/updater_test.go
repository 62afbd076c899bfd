// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// newPipelineStore opens an in-memory store that closes with the test.
func newPipelineStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err, "open in-memory store")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// trackFile registers a file record plus n entities for it.
func trackFile(t *testing.T, s *store.Store, filePath string, n int) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Files().Upsert(ctx, filePath, ComputeFileHash([]byte(filePath)), "typescript")
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		_, err := s.Entities().Create(ctx, store.NewEntity{
			Type:      store.EntityFunction,
			Name:      filepath.Base(filePath) + "_fn",
			FilePath:  filePath,
			StartLine: 1 + i*10,
			EndLine:   5 + i*10,
			Language:  "typescript",
		})
		require.NoError(t, err)
	}
}

func TestComputeFileHash(t *testing.T) {
	a := ComputeFileHash([]byte("const x = 1;"))
	b := ComputeFileHash([]byte("const x = 1;"))
	c := ComputeFileHash([]byte("const x = 2;"))

	assert.Len(t, a, 64, "sha256 hex digest")
	assert.Equal(t, a, b, "equal content must hash equally")
	assert.NotEqual(t, a, c, "different content must hash differently")
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	content := []byte("export function a() {}")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	hash, found, err := HashFile(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, ComputeFileHash(content), hash)
}

func TestHashFileAbsenceIsNotAnError(t *testing.T) {
	hash, found, err := HashFile(filepath.Join(t.TempDir(), "missing.ts"))

	require.NoError(t, err, "absence must not be an error")
	assert.False(t, found)
	assert.Empty(t, hash)
}

func TestShouldReparse(t *testing.T) {
	s := newPipelineStore(t)
	u := NewUpdater(s)
	ctx := context.Background()

	hash := ComputeFileHash([]byte("v1"))

	// Untracked files always need parsing.
	reparse, err := u.ShouldReparse(ctx, "src/a.ts", hash)
	require.NoError(t, err)
	assert.True(t, reparse, "untracked file must be parsed")

	_, err = u.MarkFileUpdated(ctx, "src/a.ts", hash, "typescript")
	require.NoError(t, err)

	reparse, err = u.ShouldReparse(ctx, "src/a.ts", hash)
	require.NoError(t, err)
	assert.False(t, reparse, "unchanged hash must be skipped")

	reparse, err = u.ShouldReparse(ctx, "src/a.ts", ComputeFileHash([]byte("v2")))
	require.NoError(t, err)
	assert.True(t, reparse, "changed hash must trigger reparse")
}

func TestDeleteFile(t *testing.T) {
	s := newPipelineStore(t)
	u := NewUpdater(s)
	ctx := context.Background()

	trackFile(t, s, "src/a.ts", 2)

	res, err := u.DeleteFile(ctx, "src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, ActionDeleted, res.Action)
	assert.Equal(t, 2, res.EntitiesAffected)

	rec, err := s.Files().Get(ctx, "src/a.ts")
	require.NoError(t, err)
	assert.Nil(t, rec, "file record must be gone")

	entities, err := s.Entities().FindByFile(ctx, "src/a.ts")
	require.NoError(t, err)
	assert.Empty(t, entities)

	// Nothing to do is communicated, not raised.
	res, err = u.DeleteFile(ctx, "src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, res.Action)
	assert.Zero(t, res.EntitiesAffected)
}

func TestRemoveStaleFiles(t *testing.T) {
	s := newPipelineStore(t)
	u := NewUpdater(s)
	ctx := context.Background()

	trackFile(t, s, "/a.ts", 1)
	trackFile(t, s, "/b.ts", 1)
	trackFile(t, s, "/c.ts", 2)

	results, err := u.RemoveStaleFiles(ctx, []string{"/a.ts"})
	require.NoError(t, err)
	require.Len(t, results, 2, "b and c are stale")

	for _, res := range results {
		assert.Equal(t, ActionDeleted, res.Action)
	}
	assert.Equal(t, "/b.ts", results[0].FilePath)
	assert.Equal(t, "/c.ts", results[1].FilePath)
	assert.Equal(t, 2, results[1].EntitiesAffected)

	surviving, err := s.Entities().FindByFile(ctx, "/a.ts")
	require.NoError(t, err)
	assert.Len(t, surviving, 1, "current file must survive the sweep")

	gone, err := s.Entities().FindByFile(ctx, "/c.ts")
	require.NoError(t, err)
	assert.Empty(t, gone)
}

func TestRemoveStaleFilesEmptyCurrentMeansAllStale(t *testing.T) {
	s := newPipelineStore(t)
	u := NewUpdater(s)
	ctx := context.Background()

	trackFile(t, s, "/a.ts", 1)
	trackFile(t, s, "/b.ts", 1)

	results, err := u.RemoveStaleFiles(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2, "empty current set makes every tracked file stale")

	count, err := s.Files().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
