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

	"github.com/AleutianAI/codegraph/services/knowledge/ast"
	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// writeSource drops a source file into dir and returns its path.
func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// entityByName finds one entity in a result by name.
func entityByName(res *FileResult, name string) *store.Entity {
	for _, ent := range res.Entities {
		if ent.Name == name {
			return ent
		}
	}
	return nil
}

// relsOfType filters a result's relationships by type.
func relsOfType(res *FileResult, typ store.RelationshipType) []*store.Relationship {
	var out []*store.Relationship
	for _, rel := range res.Relationships {
		if rel.Type == typ {
			out = append(out, rel)
		}
	}
	return out
}

func TestProcessFile(t *testing.T) {
	s := newPipelineStore(t)
	p := NewProcessor(s)
	ctx := context.Background()

	path := writeSource(t, t.TempDir(), "math.ts", `
export function add(a: number, b: number): number {
    return a + b;
}

export function calc(): number {
    return add(1, 2);
}
`)

	res, err := p.ProcessFile(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, "typescript", res.Language)
	assert.Len(t, res.FileHash, 64)

	// File entity plus the two functions.
	require.Len(t, res.Entities, 3)

	fileEnt := entityByName(res, path)
	require.NotNil(t, fileEnt, "file entity named by path")
	assert.Equal(t, store.EntityFile, fileEnt.Type)

	add := entityByName(res, "add")
	require.NotNil(t, add)
	require.NotNil(t, add.Meta)
	assert.True(t, add.Meta.Exported)
	assert.Equal(t, []string{"a", "b"}, add.Meta.Parameters)

	contains := relsOfType(res, store.RelContains)
	assert.Len(t, contains, 2, "file contains both functions")

	calls := relsOfType(res, store.RelCalls)
	require.Len(t, calls, 1)
	calc := entityByName(res, "calc")
	require.NotNil(t, calc)
	assert.Equal(t, calc.ID, calls[0].SourceID)
	assert.Equal(t, add.ID, calls[0].TargetID)

	// The file record tracks the parsed hash.
	rec, err := s.Files().Get(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, res.FileHash, rec.ContentHash)
}

func TestProcessFileReplacesPriorRows(t *testing.T) {
	s := newPipelineStore(t)
	p := NewProcessor(s)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeSource(t, dir, "svc.ts", `export function run(): void {}`)

	first, err := p.ProcessFile(ctx, path)
	require.NoError(t, err)
	require.True(t, first.Success)

	firstRec, err := s.Files().Get(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, firstRec)

	// Same path, new content: old rows must be replaced, not added to.
	path = writeSource(t, dir, "svc.ts", `
export function run(): void {}
export function stop(): void {}
`)

	second, err := p.ProcessFile(ctx, path)
	require.NoError(t, err)
	require.True(t, second.Success)
	assert.Len(t, second.Entities, 3, "file entity plus run and stop")

	stored, err := s.Entities().FindByFile(ctx, path)
	require.NoError(t, err)
	assert.Len(t, stored, 3, "no duplicate rows from the first pass")

	secondRec, err := s.Files().Get(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, secondRec)
	assert.Equal(t, firstRec.ID, secondRec.ID, "file record id survives reparse")
	assert.NotEqual(t, firstRec.ContentHash, secondRec.ContentHash)
}

func TestProcessFileAbsenceIsNotAnError(t *testing.T) {
	s := newPipelineStore(t)
	p := NewProcessor(s)

	res, err := p.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.ts"))
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestProcessFileUnknownExtensionRejected(t *testing.T) {
	s := newPipelineStore(t)
	p := NewProcessor(s)

	path := writeSource(t, t.TempDir(), "script.py", `def f(): pass`)

	_, err := p.ProcessFile(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ast.ErrNoParser)
}

func TestProcessFileDropsUnresolvedCandidates(t *testing.T) {
	s := newPipelineStore(t)
	p := NewProcessor(s)
	ctx := context.Background()

	// console.log and JSON.parse resolve to nothing in this file.
	path := writeSource(t, t.TempDir(), "log.ts", `
export function report(data: object): void {
    console.log(JSON.parse(render(data)));
}

function render(data: object): string {
    return "";
}
`)

	res, err := p.ProcessFile(ctx, path)
	require.NoError(t, err)
	require.True(t, res.Success, "unresolved references are not errors")

	calls := relsOfType(res, store.RelCalls)
	require.Len(t, calls, 1, "only the local call survives resolution")

	report := entityByName(res, "report")
	render := entityByName(res, "render")
	require.NotNil(t, report)
	require.NotNil(t, render)
	assert.Equal(t, report.ID, calls[0].SourceID)
	assert.Equal(t, render.ID, calls[0].TargetID)
}

func TestProcessFileFlagsNameCollisions(t *testing.T) {
	s := newPipelineStore(t)
	p := NewProcessor(s)
	ctx := context.Background()

	// Two declarations share a name; the most recently stored id wins.
	path := writeSource(t, t.TempDir(), "dup.ts", `
function setup(): void {}
const setup = () => {};
`)

	res, err := p.ProcessFile(ctx, path)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Contains(t, res.Collisions, "setup", "collision is flagged, not fatal")
}

func TestProcessFileRubyMethodsAndMixins(t *testing.T) {
	s := newPipelineStore(t)
	p := NewProcessor(s)
	ctx := context.Background()

	path := writeSource(t, t.TempDir(), "order.rb", `
module Checkout
end

class Order
  include Checkout

  def total
    subtotal()
  end

  def subtotal
    42
  end
end
`)

	res, err := p.ProcessFile(ctx, path)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "ruby", res.Language)

	order := entityByName(res, "Order")
	require.NotNil(t, order)
	assert.Equal(t, store.EntityClass, order.Type)

	implements := relsOfType(res, store.RelImplements)
	require.Len(t, implements, 1, "include becomes an implements edge")

	checkout := entityByName(res, "Checkout")
	require.NotNil(t, checkout)
	assert.Equal(t, order.ID, implements[0].SourceID)
	assert.Equal(t, checkout.ID, implements[0].TargetID)

	calls := relsOfType(res, store.RelCalls)
	require.Len(t, calls, 1, "total calls subtotal")
}

func TestNameIndex(t *testing.T) {
	idx := make(NameIndex)

	assert.False(t, idx.Put("add", "id-1"))
	assert.True(t, idx.Put("add", "id-2"), "second id for the same name is a collision")
	assert.False(t, idx.Put("add", "id-2"), "re-putting the same id is not a collision")

	id, ok := idx.Resolve("add")
	require.True(t, ok)
	assert.Equal(t, "id-2", id, "last write wins")

	_, ok = idx.Resolve("unknown")
	assert.False(t, ok)
}

func TestImportTargets(t *testing.T) {
	tests := []struct {
		name       string
		imp        ast.Import
		wantFirst  string
		wantInAlts string
		wantEmpty  bool
	}{
		{
			name:      "package import never resolves",
			imp:       ast.Import{Path: "react"},
			wantEmpty: true,
		},
		{
			name:       "bare relative tries source extensions",
			imp:        ast.Import{Path: "./util", IsRelative: true},
			wantFirst:  filepath.Join("src", "util.ts"),
			wantInAlts: filepath.Join("src", "util", "index.ts"),
		},
		{
			name:       "emitted js name falls back to ts",
			imp:        ast.Import{Path: "./util.js", IsRelative: true},
			wantFirst:  filepath.Join("src", "util.js"),
			wantInAlts: filepath.Join("src", "util.ts"),
		},
		{
			name:      "explicit ts resolves as written",
			imp:       ast.Import{Path: "./util.ts", IsRelative: true},
			wantFirst: filepath.Join("src", "util.ts"),
		},
		{
			name:       "dotted non-extension stays in the name",
			imp:        ast.Import{Path: "./user.service", IsRelative: true},
			wantFirst:  filepath.Join("src", "user.service.ts"),
			wantInAlts: filepath.Join("src", "user.service.rb"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			first, alts := importTargets(filepath.Join("src", "main.ts"), tc.imp)
			if tc.wantEmpty {
				assert.Empty(t, first)
				return
			}
			assert.Equal(t, tc.wantFirst, first)
			if tc.wantInAlts != "" {
				assert.Contains(t, alts, tc.wantInAlts)
			}
		})
	}
}
