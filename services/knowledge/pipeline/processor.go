// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline turns parsed source files into graph rows and keeps
// the graph consistent as files change.
//
// Relationship endpoints are extracted by name before any entity ids
// exist, so persistence is a two-phase protocol: store entities while
// building a NameIndex, then resolve candidate relationships through
// the index and batch-insert the survivors. Candidates whose endpoints
// never resolve are dropped silently; cross-file references are
// expected and not fatal at this layer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/codegraph/services/knowledge/ast"
	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// NameIndex maps entity names to stored entity ids during relationship
// resolution. It is plain local state passed through the two-phase
// store protocol, never shared across processing units.
type NameIndex map[string]string

// Put records name -> id. On collision the newest id wins and Put
// reports the collision so callers can flag it.
func (idx NameIndex) Put(name, id string) (collision bool) {
	prev, existed := idx[name]
	idx[name] = id
	return existed && prev != id
}

// Resolve looks up the id stored for name.
func (idx NameIndex) Resolve(name string) (string, bool) {
	id, ok := idx[name]
	return id, ok
}

// CandidateRelationship references its endpoints by name because entity
// ids do not exist until the entity phase has run. AltTargets are tried
// in order when TargetName does not resolve; the first hit wins.
type CandidateRelationship struct {
	SourceName string
	TargetName string
	AltTargets []string
	Type       store.RelationshipType
	Meta       *store.RelationshipMeta
}

// Processor runs the per-file pipeline: read, hash, parse, replace the
// file's entities, resolve candidate relationships, update the file
// record.
type Processor struct {
	store    *store.Store
	registry *ast.Registry
	updater  *Updater
	logger   *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorLogger sets the logger. Defaults to slog.Default().
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRegistry swaps the parser registry. Defaults to
// ast.NewDefaultRegistry().
func WithRegistry(registry *ast.Registry) ProcessorOption {
	return func(p *Processor) {
		if registry != nil {
			p.registry = registry
		}
	}
}

// NewProcessor creates a Processor bound to the given store.
func NewProcessor(s *store.Store, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:    s,
		registry: ast.NewDefaultRegistry(),
		updater:  NewUpdater(s),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessFile reindexes one file: existing entities for the path are
// replaced, relationships are re-resolved against a fresh per-file
// NameIndex, and the file record is updated.
//
// Description:
//
//	Skip-if-unchanged belongs to directory orchestration; calling
//	ProcessFile always reparses. Cross-file references resolve only
//	when the Indexer processes a whole project unit with a shared
//	index.
//
// Outputs:
//   - *FileResult: Nil when filePath does not exist (absence is not an
//     error). Success false with Error set for per-file parse failures.
//   - error: Store failures, non-absence read failures, context
//     cancellation, or an unregistered file extension.
func (p *Processor) ProcessFile(ctx context.Context, filePath string) (*FileResult, error) {
	ctx, span := tracer.Start(ctx, "Processor.ProcessFile",
		trace.WithAttributes(attribute.String("pipeline.file", filePath)))
	defer span.End()

	content, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}

	parser, err := p.parserFor(filePath)
	if err != nil {
		return nil, err
	}

	result := &FileResult{
		FilePath: filePath,
		FileHash: ComputeFileHash(content),
		Language: parser.Language(),
	}

	parsed, err := parser.Parse(ctx, content, filePath)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		result.Error = err.Error()
		recordFileMetrics(ctx, result.Language, "failed", 0)
		return result, nil
	}

	plan := newFilePlan(parsed, result)
	index := make(NameIndex)
	if err := p.storeEntities(ctx, plan, index); err != nil {
		return nil, err
	}
	if err := p.storeRelationships(ctx, plan, index); err != nil {
		return nil, err
	}

	recordFileMetrics(ctx, result.Language, "processed", len(result.Entities))
	return result, nil
}

// filePlan carries one file's staged writes between the two store
// phases. The indexer runs the entity phase for a whole project unit
// before any relationship phase so cross-file candidates can resolve.
type filePlan struct {
	parsed     *ast.ParseResult
	entities   []store.NewEntity
	candidates []CandidateRelationship
	result     *FileResult
}

// newFilePlan stages the writes for one parse result.
func newFilePlan(parsed *ast.ParseResult, result *FileResult) *filePlan {
	entities, candidates := buildPlan(parsed)
	return &filePlan{
		parsed:     parsed,
		entities:   entities,
		candidates: candidates,
		result:     result,
	}
}

// storeEntities replaces the file's entities (phase one). Old entities
// are deleted first, cascading their relationships; new ids land in
// index for the relationship phase.
func (p *Processor) storeEntities(ctx context.Context, plan *filePlan, index NameIndex) error {
	if _, err := p.store.Entities().DeleteByFile(ctx, plan.parsed.FilePath); err != nil {
		return err
	}

	plan.result.Entities = make([]*store.Entity, 0, len(plan.entities))
	for _, in := range plan.entities {
		ent, err := p.store.Entities().Create(ctx, in)
		if err != nil {
			return fmt.Errorf("store entity %q in %s: %w", in.Name, plan.parsed.FilePath, err)
		}
		if index.Put(ent.Name, ent.ID) {
			plan.result.Collisions = append(plan.result.Collisions, ent.Name)
			p.logger.Warn("name collision, keeping most recent entity",
				slog.String("name", ent.Name),
				slog.String("file", plan.parsed.FilePath))
		}
		plan.result.Entities = append(plan.result.Entities, ent)
	}
	return nil
}

// storeRelationships resolves the staged candidates through index and
// records the file as up to date (phase two).
func (p *Processor) storeRelationships(ctx context.Context, plan *filePlan, index NameIndex) error {
	rels, err := p.resolveAndStore(ctx, plan.candidates, index)
	if err != nil {
		return err
	}
	plan.result.Relationships = rels

	if _, err := p.updater.MarkFileUpdated(ctx, plan.parsed.FilePath, plan.parsed.Hash, plan.parsed.Language); err != nil {
		return err
	}

	plan.result.Success = true
	return nil
}

// resolveAndStore resolves candidate endpoints through index and
// batch-inserts the survivors. Unresolvable candidates are dropped
// silently; duplicates collapse inside the batch insert.
func (p *Processor) resolveAndStore(ctx context.Context, candidates []CandidateRelationship, index NameIndex) ([]*store.Relationship, error) {
	resolved := make([]store.NewRelationship, 0, len(candidates))
	dropped := 0

	for _, cand := range candidates {
		sourceID, ok := index.Resolve(cand.SourceName)
		if !ok {
			dropped++
			continue
		}

		targetID, ok := index.Resolve(cand.TargetName)
		if !ok {
			for _, alt := range cand.AltTargets {
				if targetID, ok = index.Resolve(alt); ok {
					break
				}
			}
		}
		if !ok {
			dropped++
			continue
		}

		meta := cand.Meta
		if meta == nil {
			meta = &store.RelationshipMeta{}
		}
		meta.SourceName = cand.SourceName
		meta.TargetName = cand.TargetName

		resolved = append(resolved, store.NewRelationship{
			SourceID: sourceID,
			TargetID: targetID,
			Type:     cand.Type,
			Meta:     meta,
		})
	}

	if dropped > 0 {
		p.logger.Debug("dropped unresolvable relationship candidates",
			slog.Int("dropped", dropped),
			slog.Int("resolved", len(resolved)))
	}

	return p.store.Relationships().CreateBatch(ctx, resolved)
}

// parserFor picks the parser for a file by extension.
func (p *Processor) parserFor(filePath string) (ast.Parser, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	parser, ok := p.registry.ForExtension(ext)
	if !ok {
		return nil, fmt.Errorf("%w: no parser registered for %q", ast.ErrNoParser, ext)
	}
	return parser, nil
}

// planEntry tracks a symbol with the name of its container while the
// plan walk runs.
type planEntry struct {
	sym    *ast.Symbol
	parent string
}

// buildPlan converts a parse result into entity inputs plus candidate
// relationships. The file itself becomes an entity named by its path,
// which is what import edges and contains edges attach to.
func buildPlan(parsed *ast.ParseResult) ([]store.NewEntity, []CandidateRelationship) {
	entities := make([]store.NewEntity, 0, parsed.TotalSymbols()+1)
	candidates := make([]CandidateRelationship, 0)

	fileEnd := 1
	parsed.Walk(func(sym *ast.Symbol) {
		if sym.EndLine > fileEnd {
			fileEnd = sym.EndLine
		}
	})

	entities = append(entities, store.NewEntity{
		Type:      store.EntityFile,
		Name:      parsed.FilePath,
		FilePath:  parsed.FilePath,
		StartLine: 1,
		EndLine:   fileEnd,
		Language:  parsed.Language,
	})

	for _, imp := range parsed.Imports {
		target, alts := importTargets(parsed.FilePath, imp)
		if target == "" {
			continue
		}
		candidates = append(candidates, CandidateRelationship{
			SourceName: parsed.FilePath,
			TargetName: target,
			AltTargets: alts,
			Type:       store.RelImports,
			Meta:       &store.RelationshipMeta{Line: imp.Location.StartLine},
		})
	}

	stack := make([]planEntry, 0, len(parsed.Symbols))
	for i := len(parsed.Symbols) - 1; i >= 0; i-- {
		stack = append(stack, planEntry{sym: parsed.Symbols[i], parent: parsed.FilePath})
	}

	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		sym := entry.sym
		if sym == nil {
			continue
		}

		entities = append(entities, symbolEntity(sym))

		candidates = append(candidates, CandidateRelationship{
			SourceName: entry.parent,
			TargetName: sym.Name,
			Type:       store.RelContains,
			Meta:       &store.RelationshipMeta{Line: sym.StartLine},
		})

		if sym.Extends != "" {
			candidates = append(candidates, CandidateRelationship{
				SourceName: sym.Name,
				TargetName: sym.Extends,
				Type:       store.RelExtends,
				Meta:       &store.RelationshipMeta{Line: sym.StartLine},
			})
		}
		for _, iface := range sym.Implements {
			candidates = append(candidates, CandidateRelationship{
				SourceName: sym.Name,
				TargetName: iface,
				Type:       store.RelImplements,
				Meta:       &store.RelationshipMeta{Line: sym.StartLine},
			})
		}
		for _, call := range sym.Calls {
			candidates = append(candidates, CandidateRelationship{
				SourceName: sym.Name,
				TargetName: call.Target,
				Type:       store.RelCalls,
				Meta:       &store.RelationshipMeta{Line: call.Location.StartLine},
			})
		}

		for i := len(sym.Children) - 1; i >= 0; i-- {
			stack = append(stack, planEntry{sym: sym.Children[i], parent: sym.Name})
		}
	}

	return entities, candidates
}

// symbolEntity maps one symbol to an entity input.
func symbolEntity(sym *ast.Symbol) store.NewEntity {
	endLine := sym.EndLine
	if endLine < sym.StartLine {
		endLine = sym.StartLine
	}

	return store.NewEntity{
		Type:      symbolEntityType(sym.Kind),
		Name:      sym.Name,
		FilePath:  sym.FilePath,
		StartLine: sym.StartLine,
		EndLine:   endLine,
		Language:  sym.Language,
		Meta: &store.EntityMeta{
			Exported:   sym.Exported,
			ExportType: sym.ExportType,
			Signature:  sym.Signature,
			Parameters: sym.Parameters,
			ReturnType: sym.ReturnType,
			IsAsync:    sym.IsAsync,
			IsStatic:   sym.IsStatic,
			Receiver:   sym.Receiver,
			Extends:    sym.Extends,
			Implements: sym.Implements,
		},
	}
}

// symbolEntityType maps symbol kinds to entity types. The enums share
// their string values; the switch keeps the mapping explicit.
func symbolEntityType(kind ast.SymbolKind) store.EntityType {
	switch kind {
	case ast.KindFunction:
		return store.EntityFunction
	case ast.KindClass:
		return store.EntityClass
	case ast.KindMethod:
		return store.EntityMethod
	case ast.KindModule:
		return store.EntityModule
	case ast.KindType:
		return store.EntityTypeDecl
	case ast.KindVariable:
		return store.EntityVariable
	default:
		return store.EntityType(kind)
	}
}

// sourceExtensions are the forms a bare import specifier may resolve to,
// in resolution order.
var sourceExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".rb"}

// importTargets resolves an import specifier to file-entity name
// candidates. Only relative specifiers resolve; package imports return
// empty and the candidate is skipped. Paths are joined against the
// importing file's directory, so they match file-entity names exactly
// when the indexer walked both files with the same root.
//
// A suffix counts as an extension only when it is a source extension:
// './user.service' keeps its dotted name and resolves through the
// extension-less candidates to user.service.ts.
func importTargets(fromFile string, imp ast.Import) (string, []string) {
	if !imp.IsRelative {
		return "", nil
	}

	base := filepath.Join(filepath.Dir(fromFile), imp.Path)

	switch ext := filepath.Ext(base); ext {
	case ".js", ".jsx", ".mjs", ".cjs":
		// TypeScript sources import sibling .ts files using the
		// emitted .js name; try the TS spellings as fallbacks.
		trimmed := strings.TrimSuffix(base, ext)
		return base, []string{trimmed + ".ts", trimmed + ".tsx"}
	case ".ts", ".tsx", ".rb":
		return base, nil
	}

	alts := make([]string, 0, len(sourceExtensions)+2)
	for _, known := range sourceExtensions[1:] {
		alts = append(alts, base+known)
	}
	alts = append(alts,
		filepath.Join(base, "index.ts"),
		filepath.Join(base, "index.js"),
	)
	return base + sourceExtensions[0], alts
}
