// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package knowledge

import (
	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// ErrorResponse is the JSON error body for every endpoint.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeUnavailable    = "SERVICE_UNAVAILABLE"
	CodeInternal       = "INTERNAL_ERROR"
)

// IndexRequest asks the service to index a directory tree.
type IndexRequest struct {
	// Root is the directory to index.
	Root string `json:"root" binding:"required"`
}

// BlastRadiusRequest asks for the blast radius of a file change.
type BlastRadiusRequest struct {
	FilePath string `json:"file_path" binding:"required"`

	// MaxDepth bounds the traversal; 0 uses the engine default. Depths
	// are 1-based: immediate dependents are depth 1.
	MaxDepth int `json:"max_depth,omitempty"`
}

// CyclesRequest asks for circular dependencies.
type CyclesRequest struct {
	StartEntityName string `json:"start_entity_name,omitempty"`
	MaxCycles       int    `json:"max_cycles,omitempty"`
}

// DeadCodeRequest asks for apparently unused entities.
type DeadCodeRequest struct {
	Types         []store.EntityType `json:"types,omitempty"`
	IncludeTests  bool               `json:"include_tests,omitempty"`
	MinConfidence string             `json:"min_confidence,omitempty"`
	MaxResults    int                `json:"max_results,omitempty"`
}

// SaveSnapshotRequest asks to snapshot the current graph.
type SaveSnapshotRequest struct {
	// ProjectRoot labels the snapshot's project; defaults to the last
	// indexed root when empty.
	ProjectRoot string `json:"project_root,omitempty"`
	Label       string `json:"label,omitempty"`
}

// EntityListResponse wraps caller/callee query results.
type EntityListResponse struct {
	Name     string          `json:"name"`
	Entities []*store.Entity `json:"entities"`
	Count    int             `json:"count"`
}
