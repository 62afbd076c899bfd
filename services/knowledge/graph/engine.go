// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph answers structural questions over the stored code
// knowledge graph: who calls X, what does X call, the blast radius of a
// file change, circular dependencies, dead code, and exports.
//
// Every query is read-only and never fails for "no results": empty
// slices and zeroed summaries are the contract. Malformed parameters
// (negative depth, absurd limits, empty names) are rejected at the call
// boundary before any traversal begins.
//
// Queries are safe to run concurrently with unrelated writes but may
// observe a file mid-reindex; there is no snapshot isolation.
package graph

import (
	"log/slog"

	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// usageTypes are the relationship types that indicate the target entity
// is actually used by the source. Imports are deliberately absent:
// importing a module does not mean any of its entities are used.
var usageTypes = []store.RelationshipType{
	store.RelCalls,
	store.RelExtends,
	store.RelImplements,
}

// cycleTypes are the relationship types the cycle search follows. Unlike
// usageTypes this includes imports: an import loop is a real structural
// cycle even when no entity inside it is called.
var cycleTypes = []store.RelationshipType{
	store.RelCalls,
	store.RelImports,
	store.RelExtends,
	store.RelImplements,
}

func isUsageType(t store.RelationshipType) bool {
	for _, u := range usageTypes {
		if t == u {
			return true
		}
	}
	return false
}

// Engine runs read-only graph queries against a Store.
//
// Thread Safety:
//
//	Engine holds no mutable state; one instance may serve concurrent
//	queries.
type Engine struct {
	store  *store.Store
	logger *slog.Logger
}

// EngineOption is a functional option for NewEngine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger used for query events.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a query engine over s. The caller retains ownership
// of the store and its lifecycle.
func NewEngine(s *store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
