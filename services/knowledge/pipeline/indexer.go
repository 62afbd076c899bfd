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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/codegraph/services/knowledge/ast"
	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// defaultSkipDirs are directory names never worth indexing.
var defaultSkipDirs = []string{
	"node_modules", ".git", "vendor", "dist", "build", "coverage", "tmp",
}

// Indexer walks a directory tree and keeps the graph in sync with it.
//
// Description:
//
//	TypeScript and JavaScript files are processed as one project-wide
//	unit: every file's entities are stored before any file's
//	relationships resolve, so cross-file calls and imports land as
//	edges. Ruby files are processed one at a time with per-file
//	resolution. Unchanged files (by content hash) are skipped but still
//	contribute their stored entities to the shared name index.
//
// Thread Safety:
//
//	Parsing runs on a bounded worker pool; all store writes happen on
//	the calling goroutine. Do not run two ProcessDirectory calls over
//	overlapping trees concurrently.
type Indexer struct {
	store       *store.Store
	processor   *Processor
	updater     *Updater
	registry    *ast.Registry
	workers     int
	removeStale bool
	skipDirs    map[string]bool
	logger      *slog.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithWorkers bounds parse concurrency. Defaults to runtime.NumCPU().
func WithWorkers(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithRemoveStale controls whether tracked files absent from the walked
// tree are deleted after indexing. Defaults to true.
func WithRemoveStale(enabled bool) IndexerOption {
	return func(ix *Indexer) {
		ix.removeStale = enabled
	}
}

// WithSkipDirs replaces the default list of directory names to skip.
func WithSkipDirs(names ...string) IndexerOption {
	return func(ix *Indexer) {
		ix.skipDirs = make(map[string]bool, len(names))
		for _, name := range names {
			ix.skipDirs[name] = true
		}
	}
}

// WithIndexerRegistry swaps the parser registry used for walking and
// parsing. Defaults to ast.NewDefaultRegistry().
func WithIndexerRegistry(registry *ast.Registry) IndexerOption {
	return func(ix *Indexer) {
		if registry != nil {
			ix.registry = registry
			ix.processor = NewProcessor(ix.store, WithRegistry(registry), WithProcessorLogger(ix.logger))
		}
	}
}

// WithIndexerLogger sets the logger. Defaults to slog.Default().
func WithIndexerLogger(logger *slog.Logger) IndexerOption {
	return func(ix *Indexer) {
		if logger != nil {
			ix.logger = logger
			ix.processor = NewProcessor(ix.store, WithRegistry(ix.registry), WithProcessorLogger(logger))
			ix.updater = NewUpdater(ix.store, WithUpdaterLogger(logger))
		}
	}
}

// NewIndexer creates an Indexer bound to the given store.
func NewIndexer(s *store.Store, opts ...IndexerOption) *Indexer {
	registry := ast.NewDefaultRegistry()
	ix := &Indexer{
		store:       s,
		registry:    registry,
		processor:   NewProcessor(s, WithRegistry(registry)),
		updater:     NewUpdater(s),
		workers:     runtime.NumCPU(),
		removeStale: true,
		logger:      slog.Default(),
	}
	ix.skipDirs = make(map[string]bool, len(defaultSkipDirs))
	for _, name := range defaultSkipDirs {
		ix.skipDirs[name] = true
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// ProcessDirectory indexes every recognized source file under root.
//
// Description:
//
//	Per-file parse failures are collected into the result, never
//	aborting the run. After processing, tracked files that no longer
//	exist under root are removed from the graph unless
//	WithRemoveStale(false) was set.
//
// Outputs:
//   - *DirectoryResult: Per-file outcomes, stale-file deletions, and
//     summary counters.
//   - error: Walk failures, store failures, or context cancellation.
func (ix *Indexer) ProcessDirectory(ctx context.Context, root string) (*DirectoryResult, error) {
	start := time.Now()

	projectFiles, rubyFiles, err := ix.collectFiles(root)
	if err != nil {
		return nil, err
	}

	ctx, span := startIndexSpan(ctx, root, len(projectFiles)+len(rubyFiles))
	defer span.End()

	result := &DirectoryResult{
		Root:  root,
		Files: make([]*FileResult, 0, len(projectFiles)+len(rubyFiles)),
	}

	if err := ix.processProjectUnit(ctx, projectFiles, result); err != nil {
		return nil, err
	}

	for _, path := range rubyFiles {
		if err := ix.processSerial(ctx, path, result); err != nil {
			return nil, err
		}
	}

	if ix.removeStale {
		current := make([]string, 0, len(projectFiles)+len(rubyFiles))
		current = append(current, projectFiles...)
		current = append(current, rubyFiles...)
		removed, err := ix.updater.RemoveStaleFiles(ctx, current)
		if err != nil {
			return nil, err
		}
		result.Removed = removed
	}

	result.DurationMilli = time.Since(start).Milliseconds()
	recordIndexMetrics(ctx, time.Since(start), result)

	ix.logger.Info("directory indexed",
		slog.String("root", root),
		slog.Int("processed", result.FilesProcessed),
		slog.Int("skipped", result.FilesSkipped),
		slog.Int("failed", result.FilesFailed),
		slog.Int("entities", result.EntityCount),
		slog.Int("relationships", result.RelCount),
		slog.Int64("duration_ms", result.DurationMilli))

	return result, nil
}

// collectFiles walks root and groups recognized files into the
// project-wide unit (TypeScript/JavaScript) and the serial unit (Ruby).
func (ix *Indexer) collectFiles(root string) (projectFiles, rubyFiles []string, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if ix.skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		parser, ok := ix.registry.ForExtension(ext)
		if !ok {
			return nil
		}

		switch parser.Language() {
		case "ruby":
			rubyFiles = append(rubyFiles, path)
		default:
			projectFiles = append(projectFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return projectFiles, rubyFiles, nil
}

// parseOutcome is one worker's product: a parse to store, a skip, or a
// per-file failure.
type parseOutcome struct {
	path     string
	hash     string
	language string
	parsed   *ast.ParseResult
	skipped  bool
	failure  string
}

// processProjectUnit indexes TypeScript/JavaScript files as one unit.
// Parsing is concurrent; storage is two serial phases over a shared
// name index so relationships resolve across files.
func (ix *Indexer) processProjectUnit(ctx context.Context, files []string, result *DirectoryResult) error {
	if len(files) == 0 {
		return nil
	}

	outcomes := make([]parseOutcome, len(files))

	workers := ix.workers
	if workers > len(files) {
		workers = len(files)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			outcome, err := ix.parseOne(gctx, path)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Phase one: entities. Skipped files contribute their stored
	// entities so changed files can still resolve edges into them.
	index := make(NameIndex)
	plans := make([]*filePlan, 0, len(outcomes))
	for i := range outcomes {
		outcome := &outcomes[i]
		switch {
		case outcome.failure != "":
			result.tally(&FileResult{
				FilePath: outcome.path,
				FileHash: outcome.hash,
				Language: outcome.language,
				Error:    outcome.failure,
			})
			recordFileMetrics(ctx, outcome.language, "failed", 0)
		case outcome.skipped:
			if err := ix.indexExisting(ctx, outcome.path, index); err != nil {
				return err
			}
			result.tally(&FileResult{
				FilePath: outcome.path,
				FileHash: outcome.hash,
				Language: outcome.language,
				Skipped:  true,
				Success:  true,
			})
			recordFileMetrics(ctx, outcome.language, "skipped", 0)
		default:
			plan := newFilePlan(outcome.parsed, &FileResult{
				FilePath: outcome.path,
				FileHash: outcome.hash,
				Language: outcome.language,
			})
			if err := ix.processor.storeEntities(ctx, plan, index); err != nil {
				return err
			}
			plans = append(plans, plan)
		}
	}

	// Phase two: relationships, once every entity id is known.
	for _, plan := range plans {
		if err := ix.processor.storeRelationships(ctx, plan, index); err != nil {
			return err
		}
		result.tally(plan.result)
		recordFileMetrics(ctx, plan.result.Language, "processed", len(plan.result.Entities))
	}

	return nil
}

// parseOne reads, hashes and parses one file for the project unit.
// Per-file problems land in the outcome; infrastructure failures and
// cancellation return errors.
func (ix *Indexer) parseOne(ctx context.Context, path string) (parseOutcome, error) {
	outcome := parseOutcome{path: path}

	parser, err := ix.processor.parserFor(path)
	if err != nil {
		return outcome, err
	}
	outcome.language = parser.Language()

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Deleted between walk and read; the stale sweep handles it.
			outcome.skipped = true
			return outcome, nil
		}
		outcome.failure = err.Error()
		return outcome, nil
	}
	outcome.hash = ComputeFileHash(content)

	reparse, err := ix.updater.ShouldReparse(ctx, path, outcome.hash)
	if err != nil {
		return outcome, err
	}
	if !reparse {
		outcome.skipped = true
		return outcome, nil
	}

	parsed, err := parser.Parse(ctx, content, path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return outcome, err
		}
		outcome.failure = err.Error()
		return outcome, nil
	}
	outcome.parsed = parsed
	return outcome, nil
}

// indexExisting loads a skipped file's stored entities into index.
func (ix *Indexer) indexExisting(ctx context.Context, path string, index NameIndex) error {
	entities, err := ix.store.Entities().FindByFile(ctx, path)
	if err != nil {
		return err
	}
	for _, ent := range entities {
		index.Put(ent.Name, ent.ID)
	}
	return nil
}

// processSerial indexes one file with per-file resolution, skipping it
// when the content hash is unchanged.
func (ix *Indexer) processSerial(ctx context.Context, path string, result *DirectoryResult) error {
	outcome, err := ix.parseOne(ctx, path)
	if err != nil {
		return err
	}

	switch {
	case outcome.failure != "":
		result.tally(&FileResult{
			FilePath: path,
			FileHash: outcome.hash,
			Language: outcome.language,
			Error:    outcome.failure,
		})
		recordFileMetrics(ctx, outcome.language, "failed", 0)
	case outcome.skipped:
		result.tally(&FileResult{
			FilePath: path,
			FileHash: outcome.hash,
			Language: outcome.language,
			Skipped:  true,
			Success:  true,
		})
		recordFileMetrics(ctx, outcome.language, "skipped", 0)
	default:
		plan := newFilePlan(outcome.parsed, &FileResult{
			FilePath: path,
			FileHash: outcome.hash,
			Language: outcome.language,
		})
		index := make(NameIndex)
		if err := ix.processor.storeEntities(ctx, plan, index); err != nil {
			return err
		}
		if err := ix.processor.storeRelationships(ctx, plan, index); err != nil {
			return err
		}
		result.tally(plan.result)
		recordFileMetrics(ctx, plan.result.Language, "processed", len(plan.result.Entities))
	}
	return nil
}
