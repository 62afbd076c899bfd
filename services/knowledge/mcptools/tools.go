// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mcptools exposes the code knowledge graph as MCP tools so
// agent runtimes can index and query code without the HTTP API.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AleutianAI/codegraph/services/knowledge"
	"github.com/AleutianAI/codegraph/services/knowledge/graph"
	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// GraphTools holds the service every tool handler dispatches to.
type GraphTools struct {
	Svc *knowledge.Service
}

// --- Input types ---

type IndexProjectInput struct {
	Root string `json:"root" jsonschema:"Absolute path of the directory to index"`
}

type EntityNameInput struct {
	Name string `json:"name" jsonschema:"Entity name, e.g. a function or class name"`
}

type BlastRadiusInput struct {
	FilePath string `json:"file_path" jsonschema:"File path as stored in the graph"`
	MaxDepth int    `json:"max_depth,omitempty" jsonschema:"Transitive depth bound; 0 uses the default of 5"`
}

type CyclesInput struct {
	StartEntityName string `json:"start_entity_name,omitempty" jsonschema:"Only report cycles passing through this entity"`
	MaxCycles       int    `json:"max_cycles,omitempty" jsonschema:"Cap on reported cycles; 0 uses the default of 100"`
}

type DeadCodeInput struct {
	Types         []string `json:"types,omitempty" jsonschema:"Entity types to scan (function, class, method); empty scans all three"`
	IncludeTests  bool     `json:"include_tests,omitempty" jsonschema:"Also scan entities in test files"`
	MinConfidence string   `json:"min_confidence,omitempty" jsonschema:"Minimum confidence to report: high or medium"`
	MaxResults    int      `json:"max_results,omitempty" jsonschema:"Cap on reported entities; 0 uses the default of 100"`
}

type ExportsInput struct {
	FilePath string `json:"file_path" jsonschema:"File path as stored in the graph"`
}

type StatsInput struct {
	RecentLimit int `json:"recent_limit,omitempty" jsonschema:"How many recently indexed files to include; 0 uses 10"`
}

// --- Handlers ---

func (t *GraphTools) IndexProject(ctx context.Context, _ *mcp.CallToolRequest, input IndexProjectInput) (*mcp.CallToolResult, any, error) {
	if input.Root == "" {
		return toolError("root is required"), nil, nil
	}
	result, err := t.Svc.Index(ctx, input.Root)
	if err != nil {
		return toolError("Indexing failed: %v", err), nil, nil
	}
	return toolJSON(map[string]any{
		"root":            result.Root,
		"files_processed": result.FilesProcessed,
		"files_skipped":   result.FilesSkipped,
		"files_failed":    result.FilesFailed,
		"entities":        result.EntityCount,
		"relationships":   result.RelCount,
		"duration_milli":  result.DurationMilli,
	})
}

func (t *GraphTools) WhatCalls(ctx context.Context, _ *mcp.CallToolRequest, input EntityNameInput) (*mcp.CallToolResult, any, error) {
	entities, err := t.Svc.WhatCalls(ctx, input.Name)
	if err != nil {
		return toolError("Caller lookup failed: %v", err), nil, nil
	}
	return toolJSON(entities)
}

func (t *GraphTools) WhatDoesCall(ctx context.Context, _ *mcp.CallToolRequest, input EntityNameInput) (*mcp.CallToolResult, any, error) {
	entities, err := t.Svc.WhatDoesCall(ctx, input.Name)
	if err != nil {
		return toolError("Callee lookup failed: %v", err), nil, nil
	}
	return toolJSON(entities)
}

func (t *GraphTools) BlastRadius(ctx context.Context, _ *mcp.CallToolRequest, input BlastRadiusInput) (*mcp.CallToolResult, any, error) {
	result, err := t.Svc.BlastRadius(ctx, input.FilePath, input.MaxDepth)
	if err != nil {
		return toolError("Blast radius failed: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (t *GraphTools) FindCircularDependencies(ctx context.Context, _ *mcp.CallToolRequest, input CyclesInput) (*mcp.CallToolResult, any, error) {
	result, err := t.Svc.FindCircularDependencies(ctx, graph.CycleOptions{
		StartEntityName: input.StartEntityName,
		MaxCycles:       input.MaxCycles,
	})
	if err != nil {
		return toolError("Cycle search failed: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (t *GraphTools) FindDeadCode(ctx context.Context, _ *mcp.CallToolRequest, input DeadCodeInput) (*mcp.CallToolResult, any, error) {
	types := make([]store.EntityType, 0, len(input.Types))
	for _, typ := range input.Types {
		types = append(types, store.EntityType(typ))
	}
	result, err := t.Svc.FindDeadCode(ctx, graph.DeadCodeOptions{
		Types:         types,
		IncludeTests:  input.IncludeTests,
		MinConfidence: graph.Confidence(input.MinConfidence),
		MaxResults:    input.MaxResults,
	})
	if err != nil {
		return toolError("Dead code scan failed: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (t *GraphTools) GetExports(ctx context.Context, _ *mcp.CallToolRequest, input ExportsInput) (*mcp.CallToolResult, any, error) {
	exports, err := t.Svc.Exports(ctx, input.FilePath)
	if err != nil {
		return toolError("Export lookup failed: %v", err), nil, nil
	}
	return toolJSON(exports)
}

func (t *GraphTools) GraphStats(ctx context.Context, _ *mcp.CallToolRequest, input StatsInput) (*mcp.CallToolResult, any, error) {
	stats, err := t.Svc.Stats(ctx, input.RecentLimit)
	if err != nil {
		return toolError("Stats failed: %v", err), nil, nil
	}
	return toolJSON(stats)
}

// --- Result helpers ---

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
