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
	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

// FileAction reports what a delete-style operation did to one file.
type FileAction string

// File actions.
const (
	ActionDeleted FileAction = "deleted"
	ActionSkipped FileAction = "skipped"
)

// DeleteResult reports the outcome of removing one file from the graph.
// Action is skipped when no file record existed, which is not an error.
type DeleteResult struct {
	FilePath         string     `json:"file_path"`
	Action           FileAction `json:"action"`
	EntitiesAffected int        `json:"entities_affected"`
}

// FileResult is the outcome of processing one source file.
//
// Success false with a populated Error means the file itself could not
// be processed (unreadable, unparseable); infrastructure failures are
// returned as Go errors instead. Skipped true means the content hash
// matched the tracked record and the stored graph was left untouched.
type FileResult struct {
	FilePath      string                `json:"file_path"`
	FileHash      string                `json:"file_hash"`
	Language      string                `json:"language"`
	Entities      []*store.Entity       `json:"entities"`
	Relationships []*store.Relationship `json:"relationships"`
	Skipped       bool                  `json:"skipped,omitempty"`
	Collisions    []string              `json:"collisions,omitempty"`
	Success       bool                  `json:"success"`
	Error         string                `json:"error,omitempty"`
}

// DirectoryResult aggregates the per-file outcomes of indexing a
// directory tree.
type DirectoryResult struct {
	Root           string         `json:"root"`
	Files          []*FileResult  `json:"files"`
	Removed        []DeleteResult `json:"removed"`
	FilesProcessed int            `json:"files_processed"`
	FilesSkipped   int            `json:"files_skipped"`
	FilesFailed    int            `json:"files_failed"`
	EntityCount    int            `json:"entity_count"`
	RelCount       int            `json:"relationship_count"`
	DurationMilli  int64          `json:"duration_milli"`
}

// tally folds one file result into the directory summary counters.
func (dr *DirectoryResult) tally(fr *FileResult) {
	dr.Files = append(dr.Files, fr)
	switch {
	case !fr.Success:
		dr.FilesFailed++
	case fr.Skipped:
		dr.FilesSkipped++
	default:
		dr.FilesProcessed++
	}
	dr.EntityCount += len(fr.Entities)
	dr.RelCount += len(fr.Relationships)
}
