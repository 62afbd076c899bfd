// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package knowledge composes the code knowledge graph service: the
// store, the indexing pipeline, the query engine, snapshots, and the
// operation sink, behind one Service type that every surface (CLI,
// HTTP, MCP) shares.
package knowledge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
	"github.com/AleutianAI/codegraph/services/knowledge/pipeline"
	"github.com/AleutianAI/codegraph/services/knowledge/sink"
	"github.com/AleutianAI/codegraph/services/knowledge/snapshot"
	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// Service owns one graph: its store handle, query engine, indexing
// pipeline, and optional snapshot manager. Every logical operation is
// reported to the configured sink; the sink never affects the result.
//
// Thread Safety:
//
//	Queries may run concurrently. Index serializes itself: two
//	concurrent Index calls run one after the other.
type Service struct {
	store     *store.Store
	engine    *graph.Engine
	indexer   *pipeline.Indexer
	updater   *pipeline.Updater
	snapshots *snapshot.Manager
	sink      sink.OperationSink
	logger    *slog.Logger

	indexMu sync.Mutex

	mu          sync.RWMutex
	projectRoot string
}

// ServiceOption is a functional option for NewService.
type ServiceOption func(*Service)

// WithSnapshotManager enables snapshot operations.
func WithSnapshotManager(m *snapshot.Manager) ServiceOption {
	return func(s *Service) { s.snapshots = m }
}

// WithSink sets the operation sink. Defaults to the no-op sink.
func WithSink(sk sink.OperationSink) ServiceOption {
	return func(s *Service) {
		if sk != nil {
			s.sink = sk
		}
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIndexerOptions forwards options to the directory indexer.
func WithIndexerOptions(opts ...pipeline.IndexerOption) ServiceOption {
	return func(s *Service) {
		s.indexer = pipeline.NewIndexer(s.store, opts...)
	}
}

// NewService wires a service over an opened store. The caller owns the
// store's lifecycle.
func NewService(st *store.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:   st,
		engine:  graph.NewEngine(st),
		indexer: pipeline.NewIndexer(st),
		updater: pipeline.NewUpdater(st),
		sink:    sink.NewNoop(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying store to surfaces that need raw access
// (the MCP tools and tests).
func (s *Service) Store() *store.Store { return s.store }

// ProjectRoot returns the most recently indexed root, or "".
func (s *Service) ProjectRoot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectRoot
}

// SnapshotsEnabled reports whether a snapshot manager is configured.
func (s *Service) SnapshotsEnabled() bool { return s.snapshots != nil }

// Index walks root and brings the graph in sync with it.
func (s *Service) Index(ctx context.Context, root string) (*pipeline.DirectoryResult, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	start := time.Now()
	result, err := s.indexer.ProcessDirectory(ctx, root)
	s.report(ctx, "index_project", start, err, root, resultSize(result))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.projectRoot = root
	s.mu.Unlock()
	return result, nil
}

// RemoveFile deletes one file's entities and record from the graph.
func (s *Service) RemoveFile(ctx context.Context, filePath string) (pipeline.DeleteResult, error) {
	start := time.Now()
	result, err := s.updater.DeleteFile(ctx, filePath)
	s.report(ctx, "remove_file", start, err, filePath, result.EntitiesAffected)
	return result, err
}

// WhatCalls lists the entities depending on name.
func (s *Service) WhatCalls(ctx context.Context, name string) ([]*store.Entity, error) {
	start := time.Now()
	entities, err := s.engine.WhatCalls(ctx, name)
	s.report(ctx, "what_calls", start, err, name, len(entities))
	return entities, err
}

// WhatDoesCall lists the entities name depends on.
func (s *Service) WhatDoesCall(ctx context.Context, name string) ([]*store.Entity, error) {
	start := time.Now()
	entities, err := s.engine.WhatDoesCall(ctx, name)
	s.report(ctx, "what_does_call", start, err, name, len(entities))
	return entities, err
}

// BlastRadius computes the dependents of a file change.
func (s *Service) BlastRadius(ctx context.Context, filePath string, maxDepth int) (*graph.BlastRadiusResult, error) {
	start := time.Now()
	result, err := s.engine.BlastRadius(ctx, filePath, maxDepth)
	size := 0
	if result != nil {
		size = result.Summary.TotalAffected
	}
	s.report(ctx, "blast_radius", start, err, filePath, size)
	return result, err
}

// FindCircularDependencies enumerates dependency cycles.
func (s *Service) FindCircularDependencies(ctx context.Context, opts graph.CycleOptions) (*graph.CyclesResult, error) {
	start := time.Now()
	result, err := s.engine.FindCircularDependencies(ctx, opts)
	size := 0
	if result != nil {
		size = result.Summary.TotalCycles
	}
	s.report(ctx, "find_circular_dependencies", start, err, opts.StartEntityName, size)
	return result, err
}

// FindDeadCode reports apparently unused entities.
func (s *Service) FindDeadCode(ctx context.Context, opts graph.DeadCodeOptions) (*graph.DeadCodeResult, error) {
	start := time.Now()
	result, err := s.engine.FindDeadCode(ctx, opts)
	size := 0
	if result != nil {
		size = result.Summary.TotalUnused
	}
	s.report(ctx, "find_dead_code", start, err, "", size)
	return result, err
}

// Exports lists a file's exported entities.
func (s *Service) Exports(ctx context.Context, filePath string) ([]graph.Export, error) {
	start := time.Now()
	exports, err := s.engine.Exports(ctx, filePath)
	s.report(ctx, "get_exports", start, err, filePath, len(exports))
	return exports, err
}

// Stats summarizes the stored graph.
func (s *Service) Stats(ctx context.Context, recentLimit int) (*graph.Stats, error) {
	start := time.Now()
	stats, err := s.engine.Stats(ctx, recentLimit)
	size := 0
	if stats != nil {
		size = stats.Entities
	}
	s.report(ctx, "graph_stats", start, err, "", size)
	return stats, err
}

// ErrSnapshotsDisabled is returned by snapshot operations when no
// manager is configured.
var ErrSnapshotsDisabled = errors.New("snapshots are not configured")

// SaveSnapshot archives the current graph.
func (s *Service) SaveSnapshot(ctx context.Context, projectRoot, label string) (*snapshot.Metadata, error) {
	if s.snapshots == nil {
		return nil, ErrSnapshotsDisabled
	}
	if projectRoot == "" {
		projectRoot = s.ProjectRoot()
	}

	start := time.Now()
	meta, err := s.snapshots.Save(ctx, s.store, projectRoot, label)
	size := 0
	if meta != nil {
		size = meta.EntityCount
	}
	s.report(ctx, "save_snapshot", start, err, projectRoot, size)
	return meta, err
}

// ListSnapshots lists snapshot metadata, newest first.
func (s *Service) ListSnapshots(ctx context.Context, projectRoot string, limit int) ([]*snapshot.Metadata, error) {
	if s.snapshots == nil {
		return nil, ErrSnapshotsDisabled
	}
	return s.snapshots.List(ctx, projectRoot, limit)
}

// RestoreSnapshot replaces the graph with a saved snapshot.
func (s *Service) RestoreSnapshot(ctx context.Context, snapshotID string) (*snapshot.Metadata, error) {
	if s.snapshots == nil {
		return nil, ErrSnapshotsDisabled
	}

	start := time.Now()
	archive, meta, err := s.snapshots.Load(ctx, snapshotID)
	if err == nil {
		err = s.snapshots.Restore(ctx, s.store, archive)
	}
	size := 0
	if meta != nil {
		size = meta.EntityCount
	}
	s.report(ctx, "restore_snapshot", start, err, snapshotID, size)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.projectRoot = archive.ProjectRoot
	s.mu.Unlock()
	return meta, nil
}

// DeleteSnapshot removes a saved snapshot.
func (s *Service) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	if s.snapshots == nil {
		return ErrSnapshotsDisabled
	}

	start := time.Now()
	err := s.snapshots.Delete(ctx, snapshotID)
	s.report(ctx, "delete_snapshot", start, err, snapshotID, 0)
	return err
}

// report sends one operation event to the sink.
func (s *Service) report(ctx context.Context, operation string, start time.Time, err error, inputSummary string, outputSize int) {
	ev := sink.Event{
		Project:      s.ProjectRoot(),
		Operation:    operation,
		Latency:      time.Since(start),
		Success:      err == nil,
		InputSummary: inputSummary,
		OutputSize:   outputSize,
	}
	if err != nil {
		ev.ErrorType = classifyError(err)
	}
	s.sink.Record(ctx, ev)
}

// classifyError maps an error to a coarse sink error type.
func classifyError(err error) string {
	switch {
	case errors.Is(err, graph.ErrInvalidQuery),
		errors.Is(err, graph.ErrInvalidDepth),
		errors.Is(err, graph.ErrInvalidLimit):
		return "invalid_request"
	case errors.Is(err, snapshot.ErrSnapshotNotFound):
		return "not_found"
	case errors.Is(err, store.ErrStoreClosed), errors.Is(err, ErrSnapshotsDisabled):
		return "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

func resultSize(r *pipeline.DirectoryResult) int {
	if r == nil {
		return 0
	}
	return r.EntityCount
}
