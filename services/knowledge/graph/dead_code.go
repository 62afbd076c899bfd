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
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// Dead code result limits.
const (
	// DefaultDeadCodeResults is used when DeadCodeOptions.MaxResults is 0.
	DefaultDeadCodeResults = 100

	// MaxDeadCodeResults is the largest accepted MaxResults value.
	MaxDeadCodeResults = 1000
)

// Confidence grades how likely an unused entity is genuinely dead.
type Confidence string

// Confidence levels. High means the entity is file-private and nothing
// in the graph uses it; medium means it is exported and may be consumed
// outside the indexed tree.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// rank orders confidence levels for filtering and sorting; higher is
// more confident.
func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	}
	return 0
}

// Valid reports whether c is a known confidence level.
func (c Confidence) Valid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium
}

// DeadCodeOptions configures FindDeadCode. The zero value scans
// functions, classes, and methods, skips test files, includes medium
// confidence, and returns up to DefaultDeadCodeResults entries.
type DeadCodeOptions struct {
	// Types are the entity types to scan. Empty means function, class,
	// and method.
	Types []store.EntityType `json:"types,omitempty"`

	// IncludeTests scans test files too. Default false: test helpers
	// are wired up by runners the graph cannot see.
	IncludeTests bool `json:"include_tests,omitempty"`

	// MinConfidence drops results below this level. Empty means medium
	// (i.e. everything).
	MinConfidence Confidence `json:"min_confidence,omitempty"`

	// MaxResults caps the reported entries. The summary still reflects
	// everything found. 0 means DefaultDeadCodeResults.
	MaxResults int `json:"max_results,omitempty"`
}

// DeadEntity is one entity with no incoming usage relationship.
type DeadEntity struct {
	Entity     *store.Entity `json:"entity"`
	Confidence Confidence    `json:"confidence"`
	Reason     string        `json:"reason"`
}

// DeadCodeSummary tallies a dead code scan before the MaxResults cap.
type DeadCodeSummary struct {
	TotalScanned int                     `json:"total_scanned"`
	TotalUnused  int                     `json:"total_unused"`
	ByType       map[store.EntityType]int `json:"by_type"`
	ByConfidence map[Confidence]int       `json:"by_confidence"`
}

// DeadCodeResult reports entities that appear unused.
type DeadCodeResult struct {
	Unused  []DeadEntity    `json:"unused"`
	Summary DeadCodeSummary `json:"summary"`
}

// entryPointNames are base file names (extension stripped, lowercased)
// whose entities are never dead: they are invoked by runtimes and
// frameworks, not by indexed code.
var entryPointNames = map[string]bool{
	"index":    true,
	"main":     true,
	"app":      true,
	"server":   true,
	"__init__": true,
	"cli":      true,
}

// lifecycleNames are method names invoked by language runtimes or
// frameworks without a visible call site.
var lifecycleNames = map[string]bool{
	"constructor":            true,
	"initialize":             true, // Ruby
	"method_missing":         true,
	"respond_to_missing?":    true,
	"to_s":                   true,
	"render":                 true, // React
	"componentDidMount":      true,
	"componentDidUpdate":     true,
	"componentWillUnmount":   true,
	"getDerivedStateFromProps": true,
	"connectedCallback":      true, // custom elements
	"disconnectedCallback":   true,
	"attributeChangedCallback": true,
	"ngOnInit":               true, // Angular
	"ngOnDestroy":            true,
	"ngOnChanges":            true,
	"setup":                  true, // Vue
	"mounted":                true,
	"created":                true,
	"beforeDestroy":          true,
	"destroyed":              true,
}

// FindDeadCode reports entities of the configured types with zero
// incoming usage relationships (calls, extends, implements; imports do
// not count as usage).
//
// Entities in entry-point files, test files (unless IncludeTests), and
// entities with lifecycle names are excluded regardless of their edge
// count: their callers live outside the graph. Results are sorted by
// confidence (high first) then file path then line, and capped at
// MaxResults; the summary always covers the full scan.
func (e *Engine) FindDeadCode(ctx context.Context, opts DeadCodeOptions) (*DeadCodeResult, error) {
	start := time.Now()
	if len(opts.Types) == 0 {
		opts.Types = []store.EntityType{store.EntityFunction, store.EntityClass, store.EntityMethod}
	}
	for _, t := range opts.Types {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidQuery, t)
		}
	}
	if opts.MinConfidence == "" {
		opts.MinConfidence = ConfidenceMedium
	}
	if !opts.MinConfidence.Valid() {
		return nil, fmt.Errorf("%w: unknown confidence %q", ErrInvalidQuery, opts.MinConfidence)
	}
	switch {
	case opts.MaxResults == 0:
		opts.MaxResults = DefaultDeadCodeResults
	case opts.MaxResults < 0:
		return nil, fmt.Errorf("%w: max results %d is negative", ErrInvalidLimit, opts.MaxResults)
	case opts.MaxResults > MaxDeadCodeResults:
		return nil, fmt.Errorf("%w: max results %d exceeds maximum %d", ErrInvalidLimit, opts.MaxResults, MaxDeadCodeResults)
	}

	ctx, span := startQuerySpan(ctx, "FindDeadCode",
		attribute.Int("graph.max_results", opts.MaxResults),
		attribute.Bool("graph.include_tests", opts.IncludeTests),
	)
	defer span.End()

	used, err := e.usedTargets(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &DeadCodeResult{
		Unused: make([]DeadEntity, 0),
		Summary: DeadCodeSummary{
			ByType:       make(map[store.EntityType]int),
			ByConfidence: make(map[Confidence]int),
		},
	}

	for _, t := range opts.Types {
		ents, err := e.store.Entities().FindByType(ctx, t)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("loading %s entities: %w", t, err)
		}
		for _, ent := range ents {
			result.Summary.TotalScanned++
			if isEntryPointFile(ent.FilePath) {
				continue
			}
			if !opts.IncludeTests && isTestFile(ent.FilePath) {
				continue
			}
			if lifecycleNames[ent.Name] {
				continue
			}
			if used[ent.ID] {
				continue
			}

			dead := DeadEntity{
				Entity:     ent,
				Confidence: ConfidenceHigh,
				Reason:     "no incoming calls, extends, or implements",
			}
			if ent.Exported() {
				dead.Confidence = ConfidenceMedium
				dead.Reason = "no incoming usage in the indexed tree, but exported; may be used externally"
			}
			if dead.Confidence.rank() < opts.MinConfidence.rank() {
				continue
			}

			result.Summary.TotalUnused++
			result.Summary.ByType[ent.Type]++
			result.Summary.ByConfidence[dead.Confidence]++
			result.Unused = append(result.Unused, dead)
		}
	}

	sort.SliceStable(result.Unused, func(i, j int) bool {
		a, b := result.Unused[i], result.Unused[j]
		if a.Confidence.rank() != b.Confidence.rank() {
			return a.Confidence.rank() > b.Confidence.rank()
		}
		if a.Entity.FilePath != b.Entity.FilePath {
			return a.Entity.FilePath < b.Entity.FilePath
		}
		return a.Entity.StartLine < b.Entity.StartLine
	})
	if len(result.Unused) > opts.MaxResults {
		result.Unused = result.Unused[:opts.MaxResults]
	}

	span.SetAttributes(
		attribute.Int("graph.scanned", result.Summary.TotalScanned),
		attribute.Int("graph.unused", result.Summary.TotalUnused),
	)
	recordQueryMetrics(ctx, "FindDeadCode", start, result.Summary.TotalUnused, nil)
	return result, nil
}

// usedTargets returns the set of entity IDs with at least one incoming
// usage relationship, loaded in one pass per usage type.
func (e *Engine) usedTargets(ctx context.Context) (map[string]bool, error) {
	used := make(map[string]bool)
	for _, t := range usageTypes {
		rels, err := e.store.Relationships().FindByType(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("loading %s relationships: %w", t, err)
		}
		for _, rel := range rels {
			used[rel.TargetID] = true
		}
	}
	return used, nil
}

// isEntryPointFile reports whether path names a file whose entities are
// invoked by a runtime or framework rather than by indexed code.
func isEntryPointFile(path string) bool {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return entryPointNames[strings.ToLower(base)]
}

// isTestFile reports whether path looks like a test or spec file in any
// of the indexed languages' conventions.
func isTestFile(path string) bool {
	lower := strings.ToLower(filepath.ToSlash(path))
	base := filepath.Base(lower)

	for _, marker := range []string{".test.", ".spec.", "_test.", "_spec."} {
		if strings.Contains(base, marker) {
			return true
		}
	}
	for _, dir := range []string{"/test/", "/tests/", "/spec/", "/__tests__/", "/__mocks__/"} {
		if strings.Contains(lower, dir) {
			return true
		}
	}
	return false
}
