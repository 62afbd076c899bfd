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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// Updater keeps the graph consistent as files change. It owns the
// hash-compare protocol that decides whether a file needs reparsing and
// the delete cycle that removes a file's entities together with its
// tracking record.
type Updater struct {
	store  *store.Store
	logger *slog.Logger
}

// UpdaterOption configures an Updater.
type UpdaterOption func(*Updater)

// WithUpdaterLogger sets the logger. Defaults to slog.Default().
func WithUpdaterLogger(logger *slog.Logger) UpdaterOption {
	return func(u *Updater) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// NewUpdater creates an Updater bound to the given store.
func NewUpdater(s *store.Store, opts ...UpdaterOption) *Updater {
	u := &Updater{
		store:  s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ComputeFileHash returns the SHA-256 hex digest of content. Equal
// content always hashes equally; the digest is what the updater compares
// to decide whether a reparse is needed.
func ComputeFileHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashFile hashes the file at path.
//
// Outputs:
//   - string: SHA-256 hex digest of the file content.
//   - bool: False when the file does not exist. Absence is an expected
//     outcome, not an error.
//   - error: Read failures other than absence.
func HashFile(path string) (string, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}
	return ComputeFileHash(content), true, nil
}

// ShouldReparse reports whether the file at filePath must be (re)parsed
// given its current content hash.
//
// Description:
//
//	Untracked files always need parsing. Tracked files need reparsing
//	only when the stored hash differs from contentHash.
func (u *Updater) ShouldReparse(ctx context.Context, filePath, contentHash string) (bool, error) {
	rec, err := u.store.Files().Get(ctx, filePath)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return true, nil
	}
	return rec.ContentHash != contentHash, nil
}

// MarkFileUpdated records that filePath was parsed with the given
// content hash. The underlying upsert preserves the record's id across
// re-indexing.
func (u *Updater) MarkFileUpdated(ctx context.Context, filePath, contentHash, language string) (*store.FileRecord, error) {
	return u.store.Files().Upsert(ctx, filePath, contentHash, language)
}

// DeleteFile removes every entity belonging to filePath (relationships
// cascade) and drops its tracking record.
//
// Outputs:
//   - DeleteResult: Action is skipped when the file was not tracked;
//     nothing to do is not an error.
//   - error: Store failures only.
func (u *Updater) DeleteFile(ctx context.Context, filePath string) (DeleteResult, error) {
	result := DeleteResult{FilePath: filePath, Action: ActionSkipped}

	rec, err := u.store.Files().Get(ctx, filePath)
	if err != nil {
		return result, err
	}
	if rec == nil {
		return result, nil
	}

	affected, err := u.store.Entities().DeleteByFile(ctx, filePath)
	if err != nil {
		return result, err
	}
	if _, err := u.store.Files().Delete(ctx, filePath); err != nil {
		return result, err
	}

	result.Action = ActionDeleted
	result.EntitiesAffected = affected

	u.logger.Debug("deleted file from graph",
		slog.String("file", filePath),
		slog.Int("entities_affected", affected))
	return result, nil
}

// RemoveStaleFiles deletes every tracked file that is absent from
// currentPaths. An empty currentPaths means nothing on disk survived,
// so every tracked file is stale.
//
// Outputs:
//   - []DeleteResult: One entry per stale file, in tracked-path order.
//   - error: Store failures; the sweep stops at the first one.
func (u *Updater) RemoveStaleFiles(ctx context.Context, currentPaths []string) ([]DeleteResult, error) {
	current := make(map[string]bool, len(currentPaths))
	for _, p := range currentPaths {
		current[p] = true
	}

	tracked, err := u.store.Files().All(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]DeleteResult, 0)
	for _, rec := range tracked {
		if current[rec.FilePath] {
			continue
		}
		res, err := u.DeleteFile(ctx, rec.FilePath)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}

	if len(results) > 0 {
		u.logger.Info("removed stale files",
			slog.Int("count", len(results)))
	}
	return results, nil
}
