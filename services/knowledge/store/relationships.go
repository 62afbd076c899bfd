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

// RelationshipStore is the durable table of directed edges between
// entities.
//
// The (source, target, type) triple is unique. Create enforces that
// loudly; CreateBatch drops duplicates silently so re-parsing a file is
// idempotent. Both verify endpoints exist before writing, giving typed
// errors instead of leaking constraint text from the driver.
type RelationshipStore struct {
	s *Store
}

const relationshipColumns = "id, source_id, target_id, type, metadata, created_at"

// Create validates and persists a single relationship.
//
// Outputs:
//   - *Relationship: The stored relationship with ID and CreatedAtMilli set.
//   - error: ErrEntityNotFound when either endpoint is absent,
//     ErrDuplicateRelationship when the (source, target, type) triple
//     already exists, validation sentinels for malformed input.
func (rs *RelationshipStore) Create(ctx context.Context, in NewRelationship) (*Relationship, error) {
	start := time.Now()

	if err := in.Validate(); err != nil {
		recordOp(ctx, "relationship_create", start, false)
		return nil, err
	}

	db, err := rs.s.conn()
	if err != nil {
		return nil, err
	}

	metaJSON, err := marshalMeta(in.Meta)
	if err != nil {
		recordOp(ctx, "relationship_create", start, false)
		return nil, fmt.Errorf("encoding relationship metadata: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		recordOp(ctx, "relationship_create", start, false)
		return nil, fmt.Errorf("beginning relationship insert: %w", err)
	}
	defer tx.Rollback()

	if err := checkEndpoints(ctx, tx, in.SourceID, in.TargetID); err != nil {
		recordOp(ctx, "relationship_create", start, false)
		return nil, err
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM relationships WHERE source_id = ? AND target_id = ? AND type = ?)`,
		in.SourceID, in.TargetID, string(in.Type)).Scan(&exists)
	if err != nil {
		recordOp(ctx, "relationship_create", start, false)
		return nil, fmt.Errorf("checking relationship uniqueness: %w", err)
	}
	if exists {
		recordOp(ctx, "relationship_create", start, false)
		return nil, fmt.Errorf("%w: %s -[%s]-> %s",
			ErrDuplicateRelationship, in.SourceID, in.Type, in.TargetID)
	}

	now := time.Now().UnixMilli()
	r := &Relationship{
		ID:             uuid.New().String(),
		SourceID:       in.SourceID,
		TargetID:       in.TargetID,
		Type:           in.Type,
		Meta:           in.Meta,
		CreatedAtMilli: now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO relationships (id, source_id, target_id, type, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.SourceID, r.TargetID, string(r.Type), metaJSON, now,
	)
	if err != nil {
		recordOp(ctx, "relationship_create", start, false)
		return nil, fmt.Errorf("inserting relationship: %w", err)
	}

	if err := tx.Commit(); err != nil {
		recordOp(ctx, "relationship_create", start, false)
		return nil, fmt.Errorf("committing relationship insert: %w", err)
	}

	recordOp(ctx, "relationship_create", start, true)
	recordRows(ctx, "relationship_create", 1)
	return r, nil
}

// CreateBatch persists many relationships in one transaction.
//
// Duplicates, both within the batch and against rows already stored, are
// dropped silently: bulk ingestion after a re-parse must not fail because
// an edge was seen twice. A missing endpoint is a real error and aborts
// the whole batch.
//
// Outputs:
//   - []*Relationship: The rows actually inserted, in input order.
//   - error: ErrEntityNotFound when any input references an absent entity;
//     validation sentinels for malformed input. Either aborts the batch.
func (rs *RelationshipStore) CreateBatch(ctx context.Context, ins []NewRelationship) ([]*Relationship, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "RelationshipStore.CreateBatch",
		oteltrace.WithAttributes(attribute.Int("batch_size", len(ins))))
	defer span.End()

	if len(ins) == 0 {
		recordOp(ctx, "relationship_create_batch", start, true)
		return []*Relationship{}, nil
	}

	db, err := rs.s.conn()
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		recordOp(ctx, "relationship_create_batch", start, false)
		return nil, fmt.Errorf("beginning batch insert: %w", err)
	}
	defer tx.Rollback()

	insertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO relationships (id, source_id, target_id, type, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		recordOp(ctx, "relationship_create_batch", start, false)
		return nil, fmt.Errorf("preparing batch insert: %w", err)
	}
	defer insertStmt.Close()

	existsStmt, err := tx.PrepareContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM relationships WHERE source_id = ? AND target_id = ? AND type = ?)`)
	if err != nil {
		recordOp(ctx, "relationship_create_batch", start, false)
		return nil, fmt.Errorf("preparing uniqueness check: %w", err)
	}
	defer existsStmt.Close()

	now := time.Now().UnixMilli()
	seen := make(map[string]struct{}, len(ins))
	inserted := make([]*Relationship, 0, len(ins))
	var dropped int

	for i, in := range ins {
		if err := in.Validate(); err != nil {
			recordOp(ctx, "relationship_create_batch", start, false)
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}

		key := in.tripleKey()
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}
		seen[key] = struct{}{}

		if err := checkEndpoints(ctx, tx, in.SourceID, in.TargetID); err != nil {
			span.RecordError(err)
			recordOp(ctx, "relationship_create_batch", start, false)
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}

		var exists bool
		if err := existsStmt.QueryRowContext(ctx, in.SourceID, in.TargetID, string(in.Type)).Scan(&exists); err != nil {
			recordOp(ctx, "relationship_create_batch", start, false)
			return nil, fmt.Errorf("batch item %d uniqueness check: %w", i, err)
		}
		if exists {
			dropped++
			continue
		}

		metaJSON, err := marshalMeta(in.Meta)
		if err != nil {
			recordOp(ctx, "relationship_create_batch", start, false)
			return nil, fmt.Errorf("batch item %d metadata: %w", i, err)
		}

		r := &Relationship{
			ID:             uuid.New().String(),
			SourceID:       in.SourceID,
			TargetID:       in.TargetID,
			Type:           in.Type,
			Meta:           in.Meta,
			CreatedAtMilli: now,
		}
		if _, err := insertStmt.ExecContext(ctx, r.ID, r.SourceID, r.TargetID, string(r.Type), metaJSON, now); err != nil {
			recordOp(ctx, "relationship_create_batch", start, false)
			return nil, fmt.Errorf("batch item %d insert: %w", i, err)
		}
		inserted = append(inserted, r)
	}

	if err := tx.Commit(); err != nil {
		recordOp(ctx, "relationship_create_batch", start, false)
		return nil, fmt.Errorf("committing batch insert: %w", err)
	}

	span.SetAttributes(
		attribute.Int("inserted", len(inserted)),
		attribute.Int("dropped", dropped),
	)
	recordOp(ctx, "relationship_create_batch", start, true)
	recordRows(ctx, "relationship_create_batch", int64(len(inserted)))

	if dropped > 0 {
		rs.s.logger.Debug("batch dropped duplicate relationships",
			slog.Int("dropped", dropped),
			slog.Int("inserted", len(inserted)))
	}
	return inserted, nil
}

// FindByID returns the relationship with the given ID, or nil when absent.
func (rs *RelationshipStore) FindByID(ctx context.Context, id string) (*Relationship, error) {
	db, err := rs.s.conn()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx,
		"SELECT "+relationshipColumns+" FROM relationships WHERE id = ?", id)
	r, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// FindBySource returns every relationship originating at the given entity.
func (rs *RelationshipStore) FindBySource(ctx context.Context, sourceID string) ([]*Relationship, error) {
	return rs.query(ctx,
		"SELECT "+relationshipColumns+" FROM relationships WHERE source_id = ? ORDER BY created_at, id", sourceID)
}

// FindByTarget returns every relationship pointing at the given entity.
func (rs *RelationshipStore) FindByTarget(ctx context.Context, targetID string) ([]*Relationship, error) {
	return rs.query(ctx,
		"SELECT "+relationshipColumns+" FROM relationships WHERE target_id = ? ORDER BY created_at, id", targetID)
}

// FindByType returns every relationship of the given type.
func (rs *RelationshipStore) FindByType(ctx context.Context, t RelationshipType) ([]*Relationship, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRelationshipType, t)
	}
	return rs.query(ctx,
		"SELECT "+relationshipColumns+" FROM relationships WHERE type = ? ORDER BY created_at, id", string(t))
}

// FindBetween returns every relationship from sourceID to targetID
// regardless of type, in that direction only.
func (rs *RelationshipStore) FindBetween(ctx context.Context, sourceID, targetID string) ([]*Relationship, error) {
	return rs.query(ctx,
		"SELECT "+relationshipColumns+" FROM relationships WHERE source_id = ? AND target_id = ? ORDER BY type",
		sourceID, targetID)
}

// Delete removes the relationship with the given ID. Returns false when
// the ID was absent.
func (rs *RelationshipStore) Delete(ctx context.Context, id string) (bool, error) {
	start := time.Now()

	db, err := rs.s.conn()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx, "DELETE FROM relationships WHERE id = ?", id)
	if err != nil {
		recordOp(ctx, "relationship_delete", start, false)
		return false, fmt.Errorf("deleting relationship %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading delete count for %s: %w", id, err)
	}

	recordOp(ctx, "relationship_delete", start, true)
	recordRows(ctx, "relationship_delete", n)
	return n > 0, nil
}

// DeleteByEntity removes every relationship touching the given entity,
// as source or as target, and returns the number removed.
func (rs *RelationshipStore) DeleteByEntity(ctx context.Context, entityID string) (int, error) {
	start := time.Now()

	db, err := rs.s.conn()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx,
		"DELETE FROM relationships WHERE source_id = ? OR target_id = ?", entityID, entityID)
	if err != nil {
		recordOp(ctx, "relationship_delete_by_entity", start, false)
		return 0, fmt.Errorf("deleting relationships for entity %s: %w", entityID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading delete count for entity %s: %w", entityID, err)
	}

	recordOp(ctx, "relationship_delete_by_entity", start, true)
	recordRows(ctx, "relationship_delete_by_entity", n)
	return int(n), nil
}

// Count returns the total number of relationships.
func (rs *RelationshipStore) Count(ctx context.Context) (int, error) {
	db, err := rs.s.conn()
	if err != nil {
		return 0, err
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM relationships").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting relationships: %w", err)
	}
	return n, nil
}

// CountByType returns counts for every relationship type. Unlike entity
// counts, the map always covers the full type set: a type with no rows
// reports zero, so callers can chart totals without key checks.
func (rs *RelationshipStore) CountByType(ctx context.Context) (map[RelationshipType]int, error) {
	db, err := rs.s.conn()
	if err != nil {
		return nil, err
	}

	counts := make(map[RelationshipType]int, len(AllRelationshipTypes))
	for _, t := range AllRelationshipTypes {
		counts[t] = 0
	}

	rows, err := db.QueryContext(ctx, "SELECT type, COUNT(*) FROM relationships GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("counting relationships by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scanning type count: %w", err)
		}
		counts[RelationshipType(t)] = n
	}
	return counts, rows.Err()
}

// query runs a multi-row relationship select.
func (rs *RelationshipStore) query(ctx context.Context, q string, args ...any) ([]*Relationship, error) {
	db, err := rs.s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	rels := make([]*Relationship, 0, 16)
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// checkEndpoints verifies both endpoint entities exist inside the caller's
// transaction so the typed error, not the foreign key, reports absence.
func checkEndpoints(ctx context.Context, tx *sql.Tx, sourceID, targetID string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM entities WHERE id = ?)", sourceID).Scan(&exists); err != nil {
		return fmt.Errorf("checking source entity: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: source entity %s", ErrEntityNotFound, sourceID)
	}
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM entities WHERE id = ?)", targetID).Scan(&exists); err != nil {
		return fmt.Errorf("checking target entity: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: target entity %s", ErrEntityNotFound, targetID)
	}
	return nil
}

// scanRelationship decodes one relationship row.
func scanRelationship(row rowScanner) (*Relationship, error) {
	var r Relationship
	var typ, metaJSON string

	err := row.Scan(&r.ID, &r.SourceID, &r.TargetID, &typ, &metaJSON, &r.CreatedAtMilli)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning relationship: %w", err)
	}

	r.Type = RelationshipType(typ)
	if metaJSON != "" && metaJSON != "{}" {
		var m RelationshipMeta
		if err := json.Unmarshal([]byte(metaJSON), &m); err != nil {
			return nil, fmt.Errorf("decoding metadata for relationship %s: %w", r.ID, err)
		}
		r.Meta = &m
	}
	return &r, nil
}
