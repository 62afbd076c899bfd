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
	"fmt"
)

// EntityType classifies a code entity. The set is closed: rows with any
// other value are rejected at the call boundary and by a schema CHECK.
type EntityType string

// Entity types.
const (
	EntityFunction EntityType = "function"
	EntityClass    EntityType = "class"
	EntityMethod   EntityType = "method"
	EntityModule   EntityType = "module"
	EntityTypeDecl EntityType = "type"
	EntityVariable EntityType = "variable"
	EntityFile     EntityType = "file"
)

// AllEntityTypes lists every valid EntityType in canonical order.
var AllEntityTypes = []EntityType{
	EntityFunction,
	EntityClass,
	EntityMethod,
	EntityModule,
	EntityTypeDecl,
	EntityVariable,
	EntityFile,
}

// Valid reports whether t is a member of the closed entity type set.
func (t EntityType) Valid() bool {
	switch t {
	case EntityFunction, EntityClass, EntityMethod, EntityModule,
		EntityTypeDecl, EntityVariable, EntityFile:
		return true
	}
	return false
}

func (t EntityType) String() string { return string(t) }

// RelationshipType classifies a directed edge between two entities.
// The set is closed, mirroring EntityType.
type RelationshipType string

// Relationship types.
const (
	RelCalls      RelationshipType = "calls"
	RelExtends    RelationshipType = "extends"
	RelImplements RelationshipType = "implements"
	RelImports    RelationshipType = "imports"
	RelContains   RelationshipType = "contains"
)

// AllRelationshipTypes lists every valid RelationshipType in canonical order.
var AllRelationshipTypes = []RelationshipType{
	RelCalls,
	RelExtends,
	RelImplements,
	RelImports,
	RelContains,
}

// Valid reports whether t is a member of the closed relationship type set.
func (t RelationshipType) Valid() bool {
	switch t {
	case RelCalls, RelExtends, RelImplements, RelImports, RelContains:
		return true
	}
	return false
}

func (t RelationshipType) String() string { return string(t) }

// EntityMeta carries the optional, extractor-supplied attributes of an
// entity. Well-known fields are typed; anything extractor-specific that is
// not yet modeled goes in Extra.
//
// Persisted as a JSON column; all fields are omitempty so unset metadata
// round-trips as "{}".
type EntityMeta struct {
	// Exported indicates the entity is visible outside its file/module.
	Exported bool `json:"exported,omitempty"`

	// ExportType is "default" or "named". Empty means named when Exported.
	ExportType string `json:"export_type,omitempty"`

	// Signature is the declaration text, e.g. "add(a: number, b: number)".
	Signature string `json:"signature,omitempty"`

	// Parameters lists declared parameter names in order.
	Parameters []string `json:"parameters,omitempty"`

	// ReturnType is the declared return type when the language has one.
	ReturnType string `json:"return_type,omitempty"`

	// IsAsync marks async functions/methods.
	IsAsync bool `json:"is_async,omitempty"`

	// IsStatic marks static members.
	IsStatic bool `json:"is_static,omitempty"`

	// Receiver is the enclosing class/module name for methods.
	Receiver string `json:"receiver,omitempty"`

	// Extends is the parent class name for inheritance.
	Extends string `json:"extends,omitempty"`

	// Implements lists implemented interface names.
	Implements []string `json:"implements,omitempty"`

	// Extra holds extractor-specific fields not yet modeled above.
	Extra map[string]string `json:"extra,omitempty"`
}

// RelationshipMeta carries optional edge attributes.
type RelationshipMeta struct {
	// Line is the 1-based source line where the relationship is expressed.
	Line int `json:"line,omitempty"`

	// SourceName and TargetName preserve the names the extractor resolved,
	// useful when the endpoint entities are later replaced by a reparse.
	SourceName string `json:"source_name,omitempty"`
	TargetName string `json:"target_name,omitempty"`

	// Extra holds extractor-specific fields not yet modeled above.
	Extra map[string]string `json:"extra,omitempty"`
}

// Entity is a named code construct with a source location.
//
// An entity's identity (ID) is distinct from its logical identity
// (Name+FilePath+StartLine): re-parses produce new IDs for the same
// logical entity, and consumers must tolerate both.
type Entity struct {
	ID             string      `json:"id"`
	Type           EntityType  `json:"type"`
	Name           string      `json:"name"`
	FilePath       string      `json:"file_path"`
	StartLine      int         `json:"start_line"`
	EndLine        int         `json:"end_line"`
	Language       string      `json:"language"`
	Meta           *EntityMeta `json:"metadata,omitempty"`
	CreatedAtMilli int64       `json:"created_at_milli"`
	UpdatedAtMilli int64       `json:"updated_at_milli"`
}

// LogicalKey returns the logical identity of the entity, stable across
// re-parses that assign fresh IDs.
func (e *Entity) LogicalKey() string {
	return fmt.Sprintf("%s:%s:%d", e.Name, e.FilePath, e.StartLine)
}

// Exported reports whether the entity's metadata marks it exported.
func (e *Entity) Exported() bool {
	return e.Meta != nil && e.Meta.Exported
}

// NewEntity is the input shape for EntityStore.Create. The store assigns
// ID and timestamps.
type NewEntity struct {
	Type      EntityType  `json:"type"`
	Name      string      `json:"name"`
	FilePath  string      `json:"file_path"`
	StartLine int         `json:"start_line"`
	EndLine   int         `json:"end_line"`
	Language  string      `json:"language"`
	Meta      *EntityMeta `json:"metadata,omitempty"`
}

// Validate rejects entities that would violate the data model before any
// SQL runs.
func (n NewEntity) Validate() error {
	if !n.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntityType, n.Type)
	}
	if n.Name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidEntity)
	}
	if n.FilePath == "" {
		return fmt.Errorf("%w: file path must not be empty", ErrInvalidEntity)
	}
	if n.StartLine < 1 {
		return fmt.Errorf("%w: start line %d is not 1-based", ErrInvalidEntity, n.StartLine)
	}
	if n.EndLine < n.StartLine {
		return fmt.Errorf("%w: end line %d precedes start line %d", ErrInvalidEntity, n.EndLine, n.StartLine)
	}
	return nil
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	ID             string            `json:"id"`
	SourceID       string            `json:"source_id"`
	TargetID       string            `json:"target_id"`
	Type           RelationshipType  `json:"type"`
	Meta           *RelationshipMeta `json:"metadata,omitempty"`
	CreatedAtMilli int64             `json:"created_at_milli"`
}

// NewRelationship is the input shape for RelationshipStore.Create and
// CreateBatch. The store assigns ID and timestamp.
type NewRelationship struct {
	SourceID string            `json:"source_id"`
	TargetID string            `json:"target_id"`
	Type     RelationshipType  `json:"type"`
	Meta     *RelationshipMeta `json:"metadata,omitempty"`
}

// Validate rejects malformed relationships before any SQL runs.
func (n NewRelationship) Validate() error {
	if !n.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRelationshipType, n.Type)
	}
	if n.SourceID == "" {
		return fmt.Errorf("%w: source id must not be empty", ErrInvalidRelationship)
	}
	if n.TargetID == "" {
		return fmt.Errorf("%w: target id must not be empty", ErrInvalidRelationship)
	}
	return nil
}

// tripleKey identifies a (source, target, type) triple for duplicate
// detection inside batch inserts.
func (n NewRelationship) tripleKey() string {
	return n.SourceID + "\x00" + n.TargetID + "\x00" + string(n.Type)
}

// FileRecord tracks a parsed file for incremental updates. It is separate
// from the entity of type "file": the record exists purely so the updater
// can compare content hashes without touching entities.
type FileRecord struct {
	ID             string `json:"id"`
	FilePath       string `json:"file_path"`
	ContentHash    string `json:"content_hash"`
	Language       string `json:"language"`
	UpdatedAtMilli int64  `json:"updated_at_milli"`
}

// RecentFile is one row of EntityStore.RecentFiles output.
type RecentFile struct {
	FilePath         string `json:"file_path"`
	EntityCount      int    `json:"entity_count"`
	LastUpdatedMilli int64  `json:"last_updated_milli"`
}
