// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mcptools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codegraph/services/knowledge"
	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

func newTestTools(t *testing.T) (*GraphTools, *store.Store) {
	t.Helper()
	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err, "opening in-memory store should succeed")
	t.Cleanup(func() { _ = s.Close() })
	return &GraphTools{Svc: knowledge.NewService(s)}, s
}

// textOf extracts the single text payload of a tool result.
func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "tool results are text content")
	return text.Text
}

// TestWhatCallsTool verifies the caller tool returns JSON entities.
func TestWhatCallsTool(t *testing.T) {
	tools, s := newTestTools(t)
	ctx := context.Background()

	callee, err := s.Entities().Create(ctx, store.NewEntity{
		Type: store.EntityFunction, Name: "add", FilePath: "src/math.ts",
		StartLine: 1, EndLine: 3, Language: "typescript",
	})
	require.NoError(t, err)
	caller, err := s.Entities().Create(ctx, store.NewEntity{
		Type: store.EntityFunction, Name: "calc", FilePath: "src/calc.ts",
		StartLine: 1, EndLine: 5, Language: "typescript",
	})
	require.NoError(t, err)
	_, err = s.Relationships().Create(ctx, store.NewRelationship{
		SourceID: caller.ID, TargetID: callee.ID, Type: store.RelCalls,
	})
	require.NoError(t, err)

	result, _, err := tools.WhatCalls(ctx, nil, EntityNameInput{Name: "add"})
	require.NoError(t, err)
	require.False(t, result.IsError, "payload: %s", textOf(t, result))

	var entities []*store.Entity
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &entities))
	require.Len(t, entities, 1)
	assert.Equal(t, "calc", entities[0].Name)
}

// TestWhatCallsToolRejectsEmptyName verifies validation surfaces as a
// tool error, not a protocol error.
func TestWhatCallsToolRejectsEmptyName(t *testing.T) {
	tools, _ := newTestTools(t)

	result, _, err := tools.WhatCalls(context.Background(), nil, EntityNameInput{})
	require.NoError(t, err, "validation failures are in-band tool errors")
	assert.True(t, result.IsError)
}

// TestIndexProjectToolRequiresRoot verifies the empty-root guard.
func TestIndexProjectToolRequiresRoot(t *testing.T) {
	tools, _ := newTestTools(t)

	result, _, err := tools.IndexProject(context.Background(), nil, IndexProjectInput{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// TestGraphStatsTool verifies the stats tool round-trips counts.
func TestGraphStatsTool(t *testing.T) {
	tools, s := newTestTools(t)
	ctx := context.Background()

	_, err := s.Entities().Create(ctx, store.NewEntity{
		Type: store.EntityClass, Name: "Widget", FilePath: "src/widget.ts",
		StartLine: 1, EndLine: 20, Language: "typescript",
	})
	require.NoError(t, err)

	result, _, err := tools.GraphStats(ctx, nil, StatsInput{})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var stats struct {
		Entities int `json:"entities"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &stats))
	assert.Equal(t, 1, stats.Entities)
}

// TestNewServerRegistersTools verifies construction succeeds with a
// live service.
func TestNewServerRegistersTools(t *testing.T) {
	_, s := newTestTools(t)
	srv := NewServer(knowledge.NewService(s), "test")
	assert.NotNil(t, srv)
}
