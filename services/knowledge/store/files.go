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
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FileStore tracks the content hash of every indexed file. The
// incremental updater compares these hashes against disk to decide
// whether a file needs re-parsing.
type FileStore struct {
	s *Store
}

// Upsert records the current hash for a file path. An existing row keeps
// its ID and gains a new hash and timestamp; a new path gets a fresh row.
func (fs *FileStore) Upsert(ctx context.Context, filePath, contentHash, language string) (*FileRecord, error) {
	start := time.Now()

	if filePath == "" {
		return nil, fmt.Errorf("%w: file path is required", ErrInvalidEntity)
	}
	if contentHash == "" {
		return nil, fmt.Errorf("%w: content hash is required", ErrInvalidEntity)
	}

	db, err := fs.s.conn()
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	rec := &FileRecord{
		ID:             uuid.New().String(),
		FilePath:       filePath,
		ContentHash:    contentHash,
		Language:       language,
		UpdatedAtMilli: now,
	}

	// ON CONFLICT keeps the original row ID so external references to the
	// file record survive re-indexing.
	err = db.QueryRowContext(ctx, `
		INSERT INTO files (id, file_path, content_hash, language, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			language = excluded.language,
			updated_at = excluded.updated_at
		RETURNING id`,
		rec.ID, filePath, contentHash, language, now,
	).Scan(&rec.ID)
	if err != nil {
		recordOp(ctx, "file_upsert", start, false)
		return nil, fmt.Errorf("upserting file %s: %w", filePath, err)
	}

	recordOp(ctx, "file_upsert", start, true)
	recordRows(ctx, "file_upsert", 1)
	return rec, nil
}

// Get returns the tracked record for a file path, or nil when the path
// has never been indexed.
func (fs *FileStore) Get(ctx context.Context, filePath string) (*FileRecord, error) {
	db, err := fs.s.conn()
	if err != nil {
		return nil, err
	}

	var rec FileRecord
	err = db.QueryRowContext(ctx, `
		SELECT id, file_path, content_hash, language, updated_at
		FROM files WHERE file_path = ?`, filePath).
		Scan(&rec.ID, &rec.FilePath, &rec.ContentHash, &rec.Language, &rec.UpdatedAtMilli)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading file record %s: %w", filePath, err)
	}
	return &rec, nil
}

// Delete removes the tracked record for a file path. Returns false when
// the path was not tracked.
func (fs *FileStore) Delete(ctx context.Context, filePath string) (bool, error) {
	start := time.Now()

	db, err := fs.s.conn()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx, "DELETE FROM files WHERE file_path = ?", filePath)
	if err != nil {
		recordOp(ctx, "file_delete", start, false)
		return false, fmt.Errorf("deleting file record %s: %w", filePath, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading delete count for %s: %w", filePath, err)
	}

	recordOp(ctx, "file_delete", start, true)
	return n > 0, nil
}

// All returns every tracked file record ordered by path.
func (fs *FileStore) All(ctx context.Context) ([]*FileRecord, error) {
	db, err := fs.s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, file_path, content_hash, language, updated_at
		FROM files ORDER BY file_path`)
	if err != nil {
		return nil, fmt.Errorf("listing file records: %w", err)
	}
	defer rows.Close()

	records := make([]*FileRecord, 0, 32)
	for rows.Next() {
		var rec FileRecord
		if err := rows.Scan(&rec.ID, &rec.FilePath, &rec.ContentHash, &rec.Language, &rec.UpdatedAtMilli); err != nil {
			return nil, fmt.Errorf("scanning file record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Count returns the number of tracked files.
func (fs *FileStore) Count(ctx context.Context) (int, error) {
	db, err := fs.s.conn()
	if err != nil {
		return 0, err
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting file records: %w", err)
	}
	return n, nil
}
