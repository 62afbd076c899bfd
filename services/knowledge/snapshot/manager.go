// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot saves and restores whole graphs (entities,
// relationships, and file records) as gzip-compressed JSON blobs in
// BadgerDB, with SHA-256 content integrity and a per-project "latest"
// pointer.
package snapshot

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// SchemaVersion identifies the archive layout. Bump on incompatible
// changes; Load rejects archives with a different version.
const SchemaVersion = "1"

// Badger key layout:
//
//	codegraph:snap:{projectHash}:{snapshotID}:data → gzip(JSON(Archive))
//	codegraph:snap:{projectHash}:{snapshotID}:meta → JSON(Metadata)
//	codegraph:snap:{projectHash}:latest            → snapshotID
//	codegraph:snap:index:{snapshotID}              → projectHash
const (
	keyPrefixSnap      = "codegraph:snap:"
	keyPrefixSnapIndex = "codegraph:snap:index:"
	keySuffixData      = ":data"
	keySuffixMeta      = ":meta"
	keySuffixLatest    = ":latest"
)

// ErrSnapshotNotFound is returned when the requested snapshot, or the
// latest pointer for a project, does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Archive is the serialized form of one graph.
type Archive struct {
	SchemaVersion  string                `json:"schema_version"`
	ProjectRoot    string                `json:"project_root"`
	CreatedAtMilli int64                 `json:"created_at_milli"`
	Entities       []*store.Entity       `json:"entities"`
	Relationships  []*store.Relationship `json:"relationships"`
	Files          []*store.FileRecord   `json:"files"`
}

// Metadata describes a saved snapshot without its payload.
type Metadata struct {
	// SnapshotID is derived from SHA256(projectRoot + createdAt)[:16].
	SnapshotID string `json:"snapshot_id"`

	ProjectRoot string `json:"project_root"`

	// ProjectHash is SHA256(ProjectRoot)[:16], used for key grouping.
	ProjectHash string `json:"project_hash"`

	// Label is an optional human-readable label.
	Label string `json:"label,omitempty"`

	CreatedAtMilli    int64  `json:"created_at_milli"`
	EntityCount       int    `json:"entity_count"`
	RelationshipCount int    `json:"relationship_count"`
	FileCount         int    `json:"file_count"`
	SchemaVersion     string `json:"schema_version"`

	// CompressedSize and ContentHash describe the stored payload; Load
	// verifies the hash before decompressing.
	CompressedSize int64  `json:"compressed_size"`
	ContentHash    string `json:"content_hash"`
}

// Manager persists graph snapshots in a BadgerDB the caller owns.
//
// Thread Safety:
//
//	Safe for concurrent use; Badger handles its own locking.
type Manager struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewManager wraps an opened Badger handle. The caller keeps ownership
// of db and closes it after the manager is no longer used.
func NewManager(db *badger.DB, logger *slog.Logger) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{db: db, logger: logger}, nil
}

// ProjectHash returns the key-grouping hash for a project root.
func ProjectHash(projectRoot string) string {
	return hashString(projectRoot)[:16]
}

// Save exports the entire store into a new snapshot and updates the
// project's latest pointer.
func (m *Manager) Save(ctx context.Context, s *store.Store, projectRoot, label string) (*Metadata, error) {
	if s == nil {
		return nil, fmt.Errorf("store must not be nil")
	}
	if projectRoot == "" {
		return nil, fmt.Errorf("project root must not be empty")
	}

	archive, err := exportArchive(ctx, s, projectRoot)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(archive)
	if err != nil {
		return nil, fmt.Errorf("marshaling archive: %w", err)
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing archive: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	payload := compressed.Bytes()

	projectHash := ProjectHash(projectRoot)
	snapshotID := hashString(fmt.Sprintf("%s:%d", projectRoot, archive.CreatedAtMilli))[:16]

	meta := &Metadata{
		SnapshotID:        snapshotID,
		ProjectRoot:       projectRoot,
		ProjectHash:       projectHash,
		Label:             label,
		CreatedAtMilli:    archive.CreatedAtMilli,
		EntityCount:       len(archive.Entities),
		RelationshipCount: len(archive.Relationships),
		FileCount:         len(archive.Files),
		SchemaVersion:     SchemaVersion,
		CompressedSize:    int64(len(payload)),
		ContentHash:       hashBytes(payload),
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	dataKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixMeta
	latestKey := keyPrefixSnap + projectHash + keySuffixLatest
	indexKey := keyPrefixSnapIndex + snapshotID

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataKey), payload); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set([]byte(metaKey), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set([]byte(latestKey), []byte(snapshotID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		if err := txn.Set([]byte(indexKey), []byte(projectHash)); err != nil {
			return fmt.Errorf("storing reverse index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing snapshot to badger: %w", err)
	}

	m.logger.Info("snapshot saved",
		slog.String("snapshot_id", snapshotID),
		slog.String("project_root", projectRoot),
		slog.Int("entities", meta.EntityCount),
		slog.Int("relationships", meta.RelationshipCount),
		slog.Int64("compressed_size", meta.CompressedSize),
	)
	return meta, nil
}

// Load retrieves a snapshot by ID, verifying content integrity.
func (m *Manager) Load(ctx context.Context, snapshotID string) (*Archive, *Metadata, error) {
	if snapshotID == "" {
		return nil, nil, fmt.Errorf("snapshot id must not be empty")
	}

	projectHash, err := m.projectHashFor(snapshotID)
	if err != nil {
		return nil, nil, err
	}
	return m.loadByKeys(projectHash, snapshotID)
}

// LoadLatest loads the most recent snapshot for a project root.
func (m *Manager) LoadLatest(ctx context.Context, projectRoot string) (*Archive, *Metadata, error) {
	if projectRoot == "" {
		return nil, nil, fmt.Errorf("project root must not be empty")
	}

	projectHash := ProjectHash(projectRoot)
	latestKey := keyPrefixSnap + projectHash + keySuffixLatest

	var snapshotID string
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			snapshotID = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, fmt.Errorf("%w: no snapshots for %s", ErrSnapshotNotFound, projectRoot)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading latest pointer: %w", err)
	}

	return m.loadByKeys(projectHash, snapshotID)
}

// List returns snapshot metadata, newest first, optionally filtered to
// one project root. limit <= 0 means 100.
func (m *Manager) List(ctx context.Context, projectRoot string, limit int) ([]*Metadata, error) {
	if limit <= 0 {
		limit = 100
	}

	prefix := keyPrefixSnap
	if projectRoot != "" {
		prefix = keyPrefixSnap + ProjectHash(projectRoot) + ":"
	}

	var results []*Metadata
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !strings.HasSuffix(key, keySuffixMeta) {
				continue
			}

			var meta Metadata
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				m.logger.Warn("skipping corrupt snapshot metadata",
					slog.String("key", key), slog.Any("error", err))
				continue
			}
			results = append(results, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAtMilli > results[j].CreatedAtMilli
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a snapshot's data, metadata, and index entries. The
// latest pointer is cleared when it referenced the deleted snapshot.
func (m *Manager) Delete(ctx context.Context, snapshotID string) error {
	if snapshotID == "" {
		return fmt.Errorf("snapshot id must not be empty")
	}

	projectHash, err := m.projectHashFor(snapshotID)
	if err != nil {
		return err
	}

	dataKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixMeta
	latestKey := keyPrefixSnap + projectHash + keySuffixLatest
	indexKey := keyPrefixSnapIndex + snapshotID

	err = m.db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{dataKey, metaKey, indexKey} {
			if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("deleting %s: %w", key, err)
			}
		}

		item, err := txn.Get([]byte(latestKey))
		if err == nil {
			var currentLatest string
			_ = item.Value(func(val []byte) error {
				currentLatest = string(val)
				return nil
			})
			if currentLatest == snapshotID {
				if err := txn.Delete([]byte(latestKey)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("deleting latest pointer: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", snapshotID, err)
	}

	m.logger.Info("snapshot deleted", slog.String("snapshot_id", snapshotID))
	return nil
}

// Restore replaces the store's contents with the archive. Entity and
// relationship IDs are reassigned on insert; relationship endpoints are
// remapped through the old→new ID table, so the restored graph is
// structurally identical with fresh identities.
func (m *Manager) Restore(ctx context.Context, s *store.Store, archive *Archive) error {
	if s == nil {
		return fmt.Errorf("store must not be nil")
	}
	if archive == nil {
		return fmt.Errorf("archive must not be nil")
	}
	if archive.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported archive schema version %q (want %q)",
			archive.SchemaVersion, SchemaVersion)
	}

	if err := s.Reset(ctx); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}

	idMap := make(map[string]string, len(archive.Entities))
	for _, ent := range archive.Entities {
		created, err := s.Entities().Create(ctx, store.NewEntity{
			Type:      ent.Type,
			Name:      ent.Name,
			FilePath:  ent.FilePath,
			StartLine: ent.StartLine,
			EndLine:   ent.EndLine,
			Language:  ent.Language,
			Meta:      ent.Meta,
		})
		if err != nil {
			return fmt.Errorf("restoring entity %s: %w", ent.Name, err)
		}
		idMap[ent.ID] = created.ID
	}

	batch := make([]store.NewRelationship, 0, len(archive.Relationships))
	for _, rel := range archive.Relationships {
		sourceID, okS := idMap[rel.SourceID]
		targetID, okT := idMap[rel.TargetID]
		if !okS || !okT {
			// The archive referenced an entity it does not contain;
			// skip rather than fail the whole restore.
			m.logger.Warn("skipping relationship with unknown endpoint",
				slog.String("relationship_id", rel.ID))
			continue
		}
		batch = append(batch, store.NewRelationship{
			SourceID: sourceID,
			TargetID: targetID,
			Type:     rel.Type,
			Meta:     rel.Meta,
		})
	}
	if _, err := s.Relationships().CreateBatch(ctx, batch); err != nil {
		return fmt.Errorf("restoring relationships: %w", err)
	}

	for _, f := range archive.Files {
		if _, err := s.Files().Upsert(ctx, f.FilePath, f.ContentHash, f.Language); err != nil {
			return fmt.Errorf("restoring file record %s: %w", f.FilePath, err)
		}
	}

	m.logger.Info("snapshot restored",
		slog.String("project_root", archive.ProjectRoot),
		slog.Int("entities", len(archive.Entities)),
		slog.Int("relationships", len(batch)),
	)
	return nil
}

// loadByKeys reads and verifies one snapshot.
func (m *Manager) loadByKeys(projectHash, snapshotID string) (*Archive, *Metadata, error) {
	dataKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixData
	metaKey := keyPrefixSnap + projectHash + ":" + snapshotID + keySuffixMeta

	var payload []byte
	var meta Metadata
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dataKey))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			payload = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}

		item, err = txn.Get([]byte(metaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshotID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading snapshot %s: %w", snapshotID, err)
	}

	if got := hashBytes(payload); got != meta.ContentHash {
		return nil, nil, fmt.Errorf("snapshot %s content hash mismatch: stored %s, computed %s",
			snapshotID, meta.ContentHash, got)
	}

	gr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("opening gzip reader: %w", err)
	}
	defer gr.Close()

	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing snapshot: %w", err)
	}

	var archive Archive
	if err := json.Unmarshal(jsonData, &archive); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling archive: %w", err)
	}
	if archive.SchemaVersion != SchemaVersion {
		return nil, nil, fmt.Errorf("unsupported archive schema version %q (want %q)",
			archive.SchemaVersion, SchemaVersion)
	}

	return &archive, &meta, nil
}

// projectHashFor resolves a snapshot ID through the reverse index.
func (m *Manager) projectHashFor(snapshotID string) (string, error) {
	indexKey := keyPrefixSnapIndex + snapshotID

	var projectHash string
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(indexKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			projectHash = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshotID)
	}
	if err != nil {
		return "", fmt.Errorf("looking up snapshot %s: %w", snapshotID, err)
	}
	return projectHash, nil
}

// exportArchive reads the full store contents.
func exportArchive(ctx context.Context, s *store.Store, projectRoot string) (*Archive, error) {
	archive := &Archive{
		SchemaVersion:  SchemaVersion,
		ProjectRoot:    projectRoot,
		CreatedAtMilli: time.Now().UnixMilli(),
	}

	for _, t := range store.AllEntityTypes {
		ents, err := s.Entities().FindByType(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("exporting %s entities: %w", t, err)
		}
		archive.Entities = append(archive.Entities, ents...)
	}

	for _, t := range store.AllRelationshipTypes {
		rels, err := s.Relationships().FindByType(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("exporting %s relationships: %w", t, err)
		}
		archive.Relationships = append(archive.Relationships, rels...)
	}

	files, err := s.Files().All(ctx)
	if err != nil {
		return nil, fmt.Errorf("exporting file records: %w", err)
	}
	archive.Files = files

	return archive, nil
}

// hashString returns the hex-encoded SHA-256 of a string.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// hashBytes returns the hex-encoded SHA-256 of a byte slice.
func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
