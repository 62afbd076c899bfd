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

// fileResultFor finds the result entry for one path.
func fileResultFor(res *DirectoryResult, path string) *FileResult {
	for _, fr := range res.Files {
		if fr.FilePath == path {
			return fr
		}
	}
	return nil
}

// findStoredEntity returns the single entity with the given name.
func findStoredEntity(t *testing.T, s *store.Store, name string) *store.Entity {
	t.Helper()
	matches, err := s.Entities().FindByName(context.Background(), name)
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected exactly one entity named %s", name)
	return matches[0]
}

func TestProcessDirectoryResolvesAcrossFiles(t *testing.T) {
	s := newPipelineStore(t)
	ix := NewIndexer(s)
	ctx := context.Background()
	dir := t.TempDir()

	libPath := writeSource(t, dir, "lib.ts", `
export function helper(): number {
    return 7;
}
`)
	appPath := writeSource(t, dir, "app.ts", `
import { helper } from './lib';

export function caller(): number {
    return helper();
}
`)

	res, err := ix.ProcessDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesProcessed)
	assert.Zero(t, res.FilesFailed)

	// The call edge crosses files because both files share one unit.
	caller := findStoredEntity(t, s, "caller")
	helper := findStoredEntity(t, s, "helper")

	outgoing, err := s.Relationships().FindBySource(ctx, caller.ID)
	require.NoError(t, err)

	var sawCall bool
	for _, rel := range outgoing {
		if rel.Type == store.RelCalls && rel.TargetID == helper.ID {
			sawCall = true
		}
	}
	assert.True(t, sawCall, "cross-file call must resolve inside the project unit")

	// The import edge links the two file entities.
	appFile := findStoredEntity(t, s, appPath)
	libFile := findStoredEntity(t, s, libPath)

	imports, err := s.Relationships().FindBetween(ctx, appFile.ID, libFile.ID)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, store.RelImports, imports[0].Type)
}

func TestProcessDirectorySkipsUnchanged(t *testing.T) {
	s := newPipelineStore(t)
	ix := NewIndexer(s)
	ctx := context.Background()
	dir := t.TempDir()

	writeSource(t, dir, "a.ts", `export function a(): void {}`)
	writeSource(t, dir, "b.ts", `export function b(): void {}`)

	first, err := ix.ProcessDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, first.FilesProcessed)
	assert.Zero(t, first.FilesSkipped)

	second, err := ix.ProcessDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Zero(t, second.FilesProcessed, "unchanged files must not be reparsed")
	assert.Equal(t, 2, second.FilesSkipped)

	count, err := s.Entities().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count, "two file entities and two functions, no duplicates")
}

func TestProcessDirectoryReindexesChangedFile(t *testing.T) {
	s := newPipelineStore(t)
	ix := NewIndexer(s)
	ctx := context.Background()
	dir := t.TempDir()

	writeSource(t, dir, "lib.ts", `
export function helper(): number {
    return 7;
}
`)
	writeSource(t, dir, "app.ts", `export function caller(): number { return 0; }`)

	_, err := ix.ProcessDirectory(ctx, dir)
	require.NoError(t, err)

	// app.ts changes to call into the unchanged lib.ts.
	writeSource(t, dir, "app.ts", `
import { helper } from './lib';

export function caller(): number {
    return helper();
}
`)

	second, err := ix.ProcessDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, second.FilesProcessed)
	assert.Equal(t, 1, second.FilesSkipped)

	// The skipped file's entities still resolve as edge targets.
	caller := findStoredEntity(t, s, "caller")
	helper := findStoredEntity(t, s, "helper")

	outgoing, err := s.Relationships().FindBySource(ctx, caller.ID)
	require.NoError(t, err)

	var sawCall bool
	for _, rel := range outgoing {
		if rel.Type == store.RelCalls && rel.TargetID == helper.ID {
			sawCall = true
		}
	}
	assert.True(t, sawCall, "changed file must link against skipped files' entities")
}

func TestProcessDirectoryRemovesStaleFiles(t *testing.T) {
	s := newPipelineStore(t)
	ix := NewIndexer(s)
	ctx := context.Background()
	dir := t.TempDir()

	writeSource(t, dir, "keep.ts", `export function keep(): void {}`)
	gonePath := writeSource(t, dir, "gone.ts", `export function gone(): void {}`)

	_, err := ix.ProcessDirectory(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.Remove(gonePath))

	second, err := ix.ProcessDirectory(ctx, dir)
	require.NoError(t, err)
	require.Len(t, second.Removed, 1)
	assert.Equal(t, gonePath, second.Removed[0].FilePath)
	assert.Equal(t, ActionDeleted, second.Removed[0].Action)

	entities, err := s.Entities().FindByFile(ctx, gonePath)
	require.NoError(t, err)
	assert.Empty(t, entities, "stale file's entities must be gone")

	matches, err := s.Entities().FindByName(ctx, "keep")
	require.NoError(t, err)
	assert.Len(t, matches, 1, "current file survives")
}

func TestProcessDirectoryCollectsFailures(t *testing.T) {
	s := newPipelineStore(t)
	ix := NewIndexer(s)
	ctx := context.Background()
	dir := t.TempDir()

	writeSource(t, dir, "good.ts", `export function good(): void {}`)
	binPath := filepath.Join(dir, "bad.ts")
	require.NoError(t, os.WriteFile(binPath, []byte{0xff, 0xfe, 0x00}, 0o644))

	res, err := ix.ProcessDirectory(ctx, dir)
	require.NoError(t, err, "one bad file must not abort the run")
	assert.Equal(t, 1, res.FilesProcessed)
	assert.Equal(t, 1, res.FilesFailed)

	bad := fileResultFor(res, binPath)
	require.NotNil(t, bad)
	assert.False(t, bad.Success)
	assert.NotEmpty(t, bad.Error)

	good := fileResultFor(res, filepath.Join(dir, "good.ts"))
	require.NotNil(t, good)
	assert.True(t, good.Success)
}

func TestProcessDirectoryIteratesRubySerially(t *testing.T) {
	s := newPipelineStore(t)
	ix := NewIndexer(s)
	ctx := context.Background()
	dir := t.TempDir()

	writeSource(t, dir, "cart.rb", `
class Cart
  def total
    items.sum()
  end
end
`)
	writeSource(t, dir, "shop.rb", `
class Shop
  def open?
    true
  end
end
`)

	res, err := ix.ProcessDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesProcessed)

	cart := findStoredEntity(t, s, "Cart")
	assert.Equal(t, store.EntityClass, cart.Type)

	total := findStoredEntity(t, s, "total")
	assert.Equal(t, store.EntityMethod, total.Type)
}

func TestProcessDirectorySkipsIgnoredDirs(t *testing.T) {
	s := newPipelineStore(t)
	ix := NewIndexer(s)
	ctx := context.Background()
	dir := t.TempDir()

	writeSource(t, dir, "app.ts", `export function app(): void {}`)
	writeSource(t, dir, filepath.Join("node_modules", "pkg", "index.ts"),
		`export function vendored(): void {}`)

	res, err := ix.ProcessDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, res.Files, 1, "node_modules must be skipped")

	matches, err := s.Entities().FindByName(ctx, "vendored")
	require.NoError(t, err)
	assert.Empty(t, matches)
}
