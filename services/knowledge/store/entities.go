// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// EntityStore is the durable table of code entities.
//
// Read operations are pure lookups: absence yields nil or an empty slice,
// never an error. Deletes cascade to relationships through the schema's
// foreign keys.
type EntityStore struct {
	s *Store
}

const entityColumns = "id, type, name, file_path, start_line, end_line, language, metadata, created_at, updated_at"

// Create validates the input, assigns an ID and timestamps, and persists
// the entity.
//
// Outputs:
//   - *Entity: The stored entity with ID, CreatedAtMilli, UpdatedAtMilli set.
//   - error: ErrInvalidEntity/ErrInvalidEntityType for malformed input,
//     otherwise the underlying database error.
func (es *EntityStore) Create(ctx context.Context, in NewEntity) (*Entity, error) {
	start := time.Now()

	if err := in.Validate(); err != nil {
		recordOp(ctx, "entity_create", start, false)
		return nil, err
	}

	db, err := es.s.conn()
	if err != nil {
		return nil, err
	}

	metaJSON, err := marshalMeta(in.Meta)
	if err != nil {
		recordOp(ctx, "entity_create", start, false)
		return nil, fmt.Errorf("encoding entity metadata: %w", err)
	}

	now := time.Now().UnixMilli()
	e := &Entity{
		ID:             uuid.New().String(),
		Type:           in.Type,
		Name:           in.Name,
		FilePath:       in.FilePath,
		StartLine:      in.StartLine,
		EndLine:        in.EndLine,
		Language:       in.Language,
		Meta:           in.Meta,
		CreatedAtMilli: now,
		UpdatedAtMilli: now,
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO entities (id, type, name, file_path, start_line, end_line, language, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.Name, e.FilePath, e.StartLine, e.EndLine, e.Language, metaJSON, now, now,
	)
	if err != nil {
		recordOp(ctx, "entity_create", start, false)
		return nil, fmt.Errorf("inserting entity %s: %w", e.Name, err)
	}

	recordOp(ctx, "entity_create", start, true)
	recordRows(ctx, "entity_create", 1)
	return e, nil
}

// FindByID returns the entity with the given ID, or nil when absent.
func (es *EntityStore) FindByID(ctx context.Context, id string) (*Entity, error) {
	db, err := es.s.conn()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE id = ?", id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// FindByName returns every entity with the given name. Names are not
// unique: overloads and same-named entities in different files all match.
func (es *EntityStore) FindByName(ctx context.Context, name string) ([]*Entity, error) {
	return es.query(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE name = ? ORDER BY file_path, start_line", name)
}

// FindByFile returns every entity defined in the given file.
func (es *EntityStore) FindByFile(ctx context.Context, filePath string) ([]*Entity, error) {
	return es.query(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE file_path = ? ORDER BY start_line", filePath)
}

// FindByType returns every entity of the given type.
func (es *EntityStore) FindByType(ctx context.Context, t EntityType) ([]*Entity, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntityType, t)
	}
	return es.query(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE type = ? ORDER BY file_path, start_line", string(t))
}

// DeleteByFile deletes every entity whose file path matches and returns
// the number removed. Relationships referencing the deleted entities go
// with them via cascade.
func (es *EntityStore) DeleteByFile(ctx context.Context, filePath string) (int, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "EntityStore.DeleteByFile",
		oteltrace.WithAttributes(attribute.String("file", filePath)))
	defer span.End()

	db, err := es.s.conn()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, "DELETE FROM entities WHERE file_path = ?", filePath)
	if err != nil {
		span.RecordError(err)
		recordOp(ctx, "entity_delete_by_file", start, false)
		return 0, fmt.Errorf("deleting entities for %s: %w", filePath, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading delete count for %s: %w", filePath, err)
	}

	span.SetAttributes(attribute.Int64("deleted", n))
	recordOp(ctx, "entity_delete_by_file", start, true)
	recordRows(ctx, "entity_delete_by_file", n)

	if n > 0 {
		es.s.logger.Debug("entities removed",
			slog.String("file", filePath),
			slog.Int64("count", n))
	}
	return int(n), nil
}

// Delete removes the entity with the given ID, cascading its
// relationships. Returns false when the ID was absent; deletion is
// idempotent and never errors on absence.
func (es *EntityStore) Delete(ctx context.Context, id string) (bool, error) {
	start := time.Now()

	db, err := es.s.conn()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", id)
	if err != nil {
		recordOp(ctx, "entity_delete", start, false)
		return false, fmt.Errorf("deleting entity %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading delete count for %s: %w", id, err)
	}

	recordOp(ctx, "entity_delete", start, true)
	recordRows(ctx, "entity_delete", n)
	return n > 0, nil
}

// Count returns the total number of entities.
func (es *EntityStore) Count(ctx context.Context) (int, error) {
	db, err := es.s.conn()
	if err != nil {
		return 0, err
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entities: %w", err)
	}
	return n, nil
}

// CountByType returns per-type entity counts. Types with no rows are
// omitted.
func (es *EntityStore) CountByType(ctx context.Context) (map[EntityType]int, error) {
	db, err := es.s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT type, COUNT(*) FROM entities GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("counting entities by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[EntityType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scanning type count: %w", err)
		}
		counts[EntityType(t)] = n
	}
	return counts, rows.Err()
}

// RecentFiles returns up to limit files ordered by most recent entity
// update, with per-file entity counts.
func (es *EntityStore) RecentFiles(ctx context.Context, limit int) ([]RecentFile, error) {
	if limit <= 0 {
		limit = 10
	}

	db, err := es.s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT file_path, COUNT(*) AS entity_count, MAX(updated_at) AS last_updated
		FROM entities
		GROUP BY file_path
		ORDER BY last_updated DESC, file_path
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent files: %w", err)
	}
	defer rows.Close()

	recent := make([]RecentFile, 0, limit)
	for rows.Next() {
		var rf RecentFile
		if err := rows.Scan(&rf.FilePath, &rf.EntityCount, &rf.LastUpdatedMilli); err != nil {
			return nil, fmt.Errorf("scanning recent file: %w", err)
		}
		recent = append(recent, rf)
	}
	return recent, rows.Err()
}

// query runs a multi-row entity select.
func (es *EntityStore) query(ctx context.Context, q string, args ...any) ([]*Entity, error) {
	db, err := es.s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	entities := make([]*Entity, 0, 16)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntity decodes one entity row, including its metadata JSON.
func scanEntity(row rowScanner) (*Entity, error) {
	var e Entity
	var typ, metaJSON string

	err := row.Scan(&e.ID, &typ, &e.Name, &e.FilePath, &e.StartLine, &e.EndLine,
		&e.Language, &metaJSON, &e.CreatedAtMilli, &e.UpdatedAtMilli)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning entity: %w", err)
	}

	e.Type = EntityType(typ)
	meta, err := unmarshalEntityMeta(metaJSON)
	if err != nil {
		return nil, fmt.Errorf("decoding metadata for entity %s: %w", e.ID, err)
	}
	e.Meta = meta
	return &e, nil
}

// marshalMeta encodes metadata for storage. Nil metadata becomes "{}".
func marshalMeta(m any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	// Typed nil pointers also encode as "{}".
	switch v := m.(type) {
	case *EntityMeta:
		if v == nil {
			return "{}", nil
		}
	case *RelationshipMeta:
		if v == nil {
			return "{}", nil
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalEntityMeta decodes a metadata column; "{}" yields nil so empty
// metadata never allocates.
func unmarshalEntityMeta(s string) (*EntityMeta, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m EntityMeta
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return &m, nil
}
