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
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AleutianAI/codegraph/services/knowledge"
)

// NewServer creates an MCP server with every graph tool registered.
func NewServer(svc *knowledge.Service, version string) *mcp.Server {
	gt := &GraphTools{Svc: svc}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "codegraph",
		Version: version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "index_project",
		Description: "Index a directory tree into the code knowledge graph; re-indexing skips unchanged files",
	}, gt.IndexProject)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "what_calls",
		Description: "List the entities that call, extend, or implement the named entity",
	}, gt.WhatCalls)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "what_does_call",
		Description: "List the entities the named entity calls, extends, or implements",
	}, gt.WhatDoesCall)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "blast_radius",
		Description: "Compute the transitive dependents of a file change, grouped by depth",
	}, gt.BlastRadius)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "find_circular_dependencies",
		Description: "Enumerate dependency cycles in the graph, optionally through one entity",
	}, gt.FindCircularDependencies)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "find_dead_code",
		Description: "Report entities with no incoming usage relationships, with confidence levels",
	}, gt.FindDeadCode)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_exports",
		Description: "List the exported entities of a file in source order",
	}, gt.GetExports)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "graph_stats",
		Description: "Summarize the stored graph: entity, relationship, and file counts",
	}, gt.GraphStats)

	return srv
}
