// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast extracts symbols and reference candidates from source code.
//
// Each supported language has a Parser implementation backed by its
// tree-sitter grammar. Parsers emit a common ParseResult: a tree of
// Symbols (declarations with their call sites) plus file-level Imports.
// Everything here is name-based; identity assignment and name resolution
// happen downstream in the pipeline.
package ast

import (
	"fmt"
)

const (
	// DefaultMaxFileSize is the maximum file size a parser will accept (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold at which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024

	// MaxCallExpressionDepth bounds AST traversal depth during call site
	// extraction.
	MaxCallExpressionDepth = 50

	// MaxCallSitesPerSymbol caps call sites recorded per symbol body to
	// prevent memory exhaustion on generated code.
	MaxCallSitesPerSymbol = 1000
)

// SymbolKind classifies an extracted declaration.
type SymbolKind string

const (
	KindFunction SymbolKind = "function"
	KindClass    SymbolKind = "class"
	KindMethod   SymbolKind = "method"
	KindModule   SymbolKind = "module"
	KindType     SymbolKind = "type"
	KindVariable SymbolKind = "variable"
)

// Valid reports whether k is one of the known kinds.
func (k SymbolKind) Valid() bool {
	switch k {
	case KindFunction, KindClass, KindMethod, KindModule, KindType, KindVariable:
		return true
	}
	return false
}

// Location identifies a source range. Lines are 1-based inclusive,
// columns 0-based.
type Location struct {
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	StartCol  int    `json:"start_col"`
	EndCol    int    `json:"end_col"`
}

// CallSite records one call expression found inside a symbol body.
//
// Target is the called name as written. For method calls the receiver
// expression text is kept separately; resolution downstream is by Target
// name only.
type CallSite struct {
	Target   string   `json:"target"`
	Receiver string   `json:"receiver,omitempty"`
	IsMethod bool     `json:"is_method"`
	Location Location `json:"location"`
}

// Import records one import/require directive in a file.
type Import struct {
	// Path is the module specifier as written ("./utils", "json").
	Path string `json:"path"`

	// Names lists named bindings for ES imports ("a", "b as c").
	Names []string `json:"names,omitempty"`

	// Alias is the default or namespace binding name.
	Alias string `json:"alias,omitempty"`

	IsDefault   bool `json:"is_default,omitempty"`
	IsNamespace bool `json:"is_namespace,omitempty"`

	// IsRequire marks CommonJS require() and Ruby require/require_relative.
	IsRequire bool `json:"is_require,omitempty"`

	// IsRelative marks specifiers that resolve relative to the importing
	// file ("./x", "../y", require_relative).
	IsRelative bool `json:"is_relative,omitempty"`

	Location Location `json:"location"`
}

// Symbol is one extracted declaration. Container symbols (classes,
// modules) carry their members in Children.
type Symbol struct {
	Name     string     `json:"name"`
	Kind     SymbolKind `json:"kind"`
	FilePath string     `json:"file_path"`
	Language string     `json:"language"`

	// Exported reports language-level visibility: ES export for TS/JS,
	// public visibility for Ruby.
	Exported bool `json:"exported"`

	// ExportType is "named" or "default" when Exported is set.
	ExportType string `json:"export_type,omitempty"`

	Signature  string   `json:"signature,omitempty"`
	DocComment string   `json:"doc_comment,omitempty"`
	Parameters []string `json:"parameters,omitempty"`
	ReturnType string   `json:"return_type,omitempty"`
	IsAsync    bool     `json:"is_async,omitempty"`
	IsStatic   bool     `json:"is_static,omitempty"`

	// Receiver is the enclosing class or module name for methods.
	Receiver string `json:"receiver,omitempty"`

	// Extends is the parent class or interface name, when declared.
	Extends string `json:"extends,omitempty"`

	// Implements lists implemented interfaces (TS) or mixed-in modules
	// (Ruby include/extend/prepend).
	Implements []string `json:"implements,omitempty"`

	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	StartCol  int `json:"start_col"`
	EndCol    int `json:"end_col"`

	// Calls are the call sites found in this symbol's body.
	Calls []CallSite `json:"calls,omitempty"`

	// Children are member symbols (methods of a class, declarations
	// nested in a Ruby module).
	Children []*Symbol `json:"children,omitempty"`
}

// ParseResult is the complete output of parsing one file.
type ParseResult struct {
	FilePath      string    `json:"file_path"`
	Language      string    `json:"language"`
	Hash          string    `json:"hash"`
	ParsedAtMilli int64     `json:"parsed_at_milli"`
	Symbols       []*Symbol `json:"symbols"`
	Imports       []Import  `json:"imports"`

	// Errors holds non-fatal extraction problems (syntax errors in the
	// source, truncated traversals). A result with errors is still usable.
	Errors []string `json:"errors,omitempty"`
}

// ValidationError reports a structurally invalid parse result.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parse result: %s: %s", e.Field, e.Message)
}

// Validate checks structural invariants before the result is handed to
// the pipeline.
func (r *ParseResult) Validate() error {
	if r.FilePath == "" {
		return &ValidationError{Field: "FilePath", Message: "must not be empty"}
	}
	if r.Language == "" {
		return &ValidationError{Field: "Language", Message: "must not be empty"}
	}
	if r.Hash == "" {
		return &ValidationError{Field: "Hash", Message: "must not be empty"}
	}
	for _, sym := range r.Symbols {
		if err := validateSymbol(sym); err != nil {
			return err
		}
	}
	return nil
}

func validateSymbol(s *Symbol) error {
	if s == nil {
		return &ValidationError{Field: "Symbols", Message: "contains nil symbol"}
	}
	if s.Name == "" {
		return &ValidationError{Field: "Name", Message: "symbol name must not be empty"}
	}
	if !s.Kind.Valid() {
		return &ValidationError{Field: "Kind", Message: fmt.Sprintf("unknown kind %q for %s", s.Kind, s.Name)}
	}
	if s.StartLine < 1 {
		return &ValidationError{Field: "StartLine", Message: fmt.Sprintf("must be >= 1 for %s", s.Name)}
	}
	if s.EndLine < s.StartLine {
		return &ValidationError{Field: "EndLine", Message: fmt.Sprintf("must be >= StartLine for %s", s.Name)}
	}
	for _, child := range s.Children {
		if err := validateSymbol(child); err != nil {
			return err
		}
	}
	return nil
}

// Walk visits every symbol in the result depth-first, parents before
// children.
func (r *ParseResult) Walk(visit func(*Symbol)) {
	stack := make([]*Symbol, 0, len(r.Symbols))
	for i := len(r.Symbols) - 1; i >= 0; i-- {
		stack = append(stack, r.Symbols[i])
	}
	for len(stack) > 0 {
		sym := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if sym == nil {
			continue
		}
		visit(sym)
		for i := len(sym.Children) - 1; i >= 0; i-- {
			stack = append(stack, sym.Children[i])
		}
	}
}

// TotalSymbols counts all symbols including nested children.
func (r *ParseResult) TotalSymbols() int {
	n := 0
	r.Walk(func(*Symbol) { n++ })
	return n
}
