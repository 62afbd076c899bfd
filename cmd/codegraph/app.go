// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/codegraph/services/knowledge"
	"github.com/AleutianAI/codegraph/services/knowledge/config"
	"github.com/AleutianAI/codegraph/services/knowledge/pipeline"
	"github.com/AleutianAI/codegraph/services/knowledge/sink"
	"github.com/AleutianAI/codegraph/services/knowledge/snapshot"
	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// app bundles the wired service with everything that must be closed
// on exit, in close order.
type app struct {
	svc      *knowledge.Service
	store    *store.Store
	badgerDB *badger.DB
	sink     sink.OperationSink
}

// openApp wires a service from the loaded config. Snapshots and the
// Influx sink are optional: an empty snapshot dir or Influx URL just
// leaves them off.
func openApp(cfg config.Config) (*app, error) {
	logger := slog.Default()

	st, err := store.Open(cfg.Store.Path,
		store.WithLogger(logger),
		store.WithBusyTimeout(cfg.Store.BusyTimeoutMillis),
	)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", cfg.Store.Path, err)
	}

	a := &app{store: st}
	indexerOpts := []pipeline.IndexerOption{
		pipeline.WithWorkers(cfg.Index.Workers),
		pipeline.WithRemoveStale(cfg.Index.RemoveStale),
		pipeline.WithIndexerLogger(logger),
	}
	if len(cfg.Index.SkipDirs) > 0 {
		indexerOpts = append(indexerOpts, pipeline.WithSkipDirs(cfg.Index.SkipDirs...))
	}
	opts := []knowledge.ServiceOption{
		knowledge.WithServiceLogger(logger),
		knowledge.WithIndexerOptions(indexerOpts...),
	}

	if cfg.Snapshot.Dir != "" {
		db, err := badger.Open(badger.DefaultOptions(cfg.Snapshot.Dir).WithLogger(nil))
		if err != nil {
			a.close()
			return nil, fmt.Errorf("opening snapshot db at %s: %w", cfg.Snapshot.Dir, err)
		}
		a.badgerDB = db

		mgr, err := snapshot.NewManager(db, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("creating snapshot manager: %w", err)
		}
		opts = append(opts, knowledge.WithSnapshotManager(mgr))
	}

	if cfg.Influx.URL != "" {
		a.sink = sink.NewInfluxSink(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket, logger)
		opts = append(opts, knowledge.WithSink(a.sink))
	}

	a.svc = knowledge.NewService(st, opts...)
	return a, nil
}

func (a *app) close() {
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			slog.Warn("closing sink", slog.Any("error", err))
		}
	}
	if a.badgerDB != nil {
		if err := a.badgerDB.Close(); err != nil {
			slog.Warn("closing snapshot db", slog.Any("error", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("closing store", slog.Any("error", err))
		}
	}
}
