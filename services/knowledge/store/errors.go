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

import "errors"

// Sentinel errors for the store layer. Callers match with errors.Is.
//
// Absence is not an error anywhere in this package: lookups return nil or
// empty slices, deletes return false/zero. The sentinels below cover
// constraint violations and malformed input only.
var (
	// ErrInvalidEntity indicates a NewEntity that fails validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidEntityType indicates a type outside the closed entity set.
	ErrInvalidEntityType = errors.New("invalid entity type")

	// ErrInvalidRelationship indicates a NewRelationship that fails validation.
	ErrInvalidRelationship = errors.New("invalid relationship")

	// ErrInvalidRelationshipType indicates a type outside the closed
	// relationship set.
	ErrInvalidRelationshipType = errors.New("invalid relationship type")

	// ErrDuplicateRelationship indicates a single Create hit an existing
	// (source, target, type) triple. CreateBatch drops duplicates silently
	// instead of returning this.
	ErrDuplicateRelationship = errors.New("duplicate relationship")

	// ErrEntityNotFound indicates a relationship endpoint that does not
	// reference an existing entity at creation time.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrStoreClosed indicates use of a Store after Close.
	ErrStoreClosed = errors.New("store is closed")
)
