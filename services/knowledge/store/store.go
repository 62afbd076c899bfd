// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists the code knowledge graph: entities, relationships,
// and the file records that drive incremental updates.
//
// The store is an explicitly constructed handle (no package-level
// singleton): callers Open it, pass it by reference, and Close it. Reset
// exists for test isolation and for rebuilding a project graph in place.
//
// Backed by SQLite via the CGO-free ncruces driver. Foreign keys are
// enforced with ON DELETE CASCADE so deleting an entity atomically removes
// every relationship referencing it as source or target.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// schema is applied on Open. Every statement is idempotent so reopening an
// existing database is safe.
const schema = `
CREATE TABLE IF NOT EXISTS entities (
    id         TEXT PRIMARY KEY,
    type       TEXT NOT NULL CHECK (type IN ('function','class','method','module','type','variable','file')),
    name       TEXT NOT NULL,
    file_path  TEXT NOT NULL,
    start_line INTEGER NOT NULL DEFAULT 1,
    end_line   INTEGER NOT NULL DEFAULT 1,
    language   TEXT NOT NULL DEFAULT '',
    metadata   TEXT NOT NULL DEFAULT '{}',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
CREATE INDEX IF NOT EXISTS idx_entities_file ON entities(file_path);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);

CREATE TABLE IF NOT EXISTS relationships (
    id         TEXT PRIMARY KEY,
    source_id  TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    target_id  TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    type       TEXT NOT NULL CHECK (type IN ('calls','extends','implements','imports','contains')),
    metadata   TEXT NOT NULL DEFAULT '{}',
    created_at INTEGER NOT NULL,
    UNIQUE (source_id, target_id, type)
);

CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);
CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(type);

CREATE TABLE IF NOT EXISTS files (
    id           TEXT PRIMARY KEY,
    file_path    TEXT NOT NULL UNIQUE,
    content_hash TEXT NOT NULL,
    language     TEXT NOT NULL DEFAULT '',
    updated_at   INTEGER NOT NULL
);
`

// MemoryPath opens an in-memory database. Each Open gets a private
// instance; used by tests and by callers that never persist.
const MemoryPath = ":memory:"

// Options configures a Store.
type Options struct {
	// Logger receives structured store events. Defaults to slog.Default().
	Logger *slog.Logger

	// BusyTimeoutMillis is the SQLite busy handler timeout.
	// Default: 5000.
	BusyTimeoutMillis int
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		Logger:            slog.Default(),
		BusyTimeoutMillis: 5000,
	}
}

// Option is a functional option for Open.
type Option func(*Options)

// WithLogger sets the logger used for store events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithBusyTimeout sets the SQLite busy handler timeout in milliseconds.
func WithBusyTimeout(millis int) Option {
	return func(o *Options) {
		if millis > 0 {
			o.BusyTimeoutMillis = millis
		}
	}
}

// Store owns the database handle and hands out the three typed stores.
//
// Thread Safety:
//
//	Store and its sub-stores are safe for concurrent use. Writers touching
//	the same file's entities must still be serialized by the caller (the
//	pipeline package does this); interleaved writes to the same file can
//	produce an entity set mixing two parses.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	entities      *EntityStore
	relationships *RelationshipStore
	files         *FileStore
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use MemoryPath for an ephemeral store.
//
// Inputs:
//   - path: Filesystem path of the database, or MemoryPath.
//   - opts: Optional configuration (WithLogger, WithBusyTimeout).
//
// Outputs:
//   - *Store: Ready-to-use handle. Callers own it and must Close it.
//   - error: Non-nil if the database cannot be opened or the schema fails.
func Open(path string, opts ...Option) (*Store, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path, options.BusyTimeoutMillis,
	)
	if path == MemoryPath {
		// WAL is meaningless in memory; keep the shared cache off so each
		// Open is isolated.
		dsn = fmt.Sprintf("file::memory:?_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)", options.BusyTimeoutMillis)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", path, err)
	}

	// A single in-memory connection must never be duplicated: each pool
	// connection would otherwise see its own empty database.
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	s := &Store{
		db:     db,
		logger: options.Logger,
	}
	s.entities = &EntityStore{s: s}
	s.relationships = &RelationshipStore{s: s}
	s.files = &FileStore{s: s}

	s.logger.Debug("store opened", slog.String("path", path))
	return s, nil
}

// Entities returns the entity store view.
func (s *Store) Entities() *EntityStore { return s.entities }

// Relationships returns the relationship store view.
func (s *Store) Relationships() *RelationshipStore { return s.relationships }

// Files returns the file record store view.
func (s *Store) Files() *FileStore { return s.files }

// Close releases the database handle. Safe to call once; the Store is
// unusable afterwards.
func (s *Store) Close() error {
	if s.db == nil {
		return ErrStoreClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Reset removes every row from every table, preserving the schema. Used
// for test isolation and full re-indexing.
func (s *Store) Reset(ctx context.Context) error {
	if s.db == nil {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reset: %w", err)
	}
	defer tx.Rollback()

	// Relationships first: rows reference entities.
	for _, table := range []string{"relationships", "entities", "files"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reset: %w", err)
	}

	s.logger.Debug("store reset")
	return nil
}

// conn returns the live handle or ErrStoreClosed.
func (s *Store) conn() (*sql.DB, error) {
	if s.db == nil {
		return nil, ErrStoreClosed
	}
	return s.db, nil
}
