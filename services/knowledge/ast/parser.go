// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"sync"
)

// Parser defines the contract for language-specific symbol extraction.
//
// Description:
//
//	Parser implementations turn raw source bytes into the common
//	ParseResult format. Each implementation handles one language family
//	(TypeScript, JavaScript, Ruby) via its tree-sitter grammar.
//
//	Implementations are error-tolerant: syntactically invalid source
//	still yields partial results, with problems reported in
//	ParseResult.Errors rather than as a returned error.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use; each Parse call
//	creates its own tree-sitter parser instance internally.
type Parser interface {
	// Parse extracts symbols and imports from source code.
	//
	// Parameters:
	//   - ctx: Context for cancellation. Checked before and after the
	//     tree-sitter pass and periodically during extraction.
	//   - content: Raw source bytes. Must be valid UTF-8.
	//   - filePath: Path of the file, used for locations and grammar
	//     selection (.tsx vs .ts).
	//
	// Returns:
	//   - *ParseResult: Never nil on success; may carry partial results
	//     with Errors populated.
	//   - error: Non-nil only for complete failures (ErrFileTooLarge,
	//     ErrInvalidContent, context cancellation).
	Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error)

	// Language returns the canonical lowercase language name
	// ("typescript", "javascript", "ruby").
	Language() string

	// Extensions returns the file extensions this parser handles,
	// including the leading dot, lowercase.
	Extensions() []string
}

// ParseOptions configures parser behavior. Not every option applies to
// every language.
type ParseOptions struct {
	// IncludePrivate includes non-exported symbols in results.
	// Default: true.
	IncludePrivate bool

	// IncludeDocComments attaches preceding doc comments to symbols.
	// Default: true.
	IncludeDocComments bool
}

// DefaultParseOptions returns the options parsers start from.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		IncludePrivate:     true,
		IncludeDocComments: true,
	}
}

// Registry maps languages and file extensions to parser instances.
//
// Thread Safety: fully thread-safe; registration takes a write lock,
// lookups a read lock.
type Registry struct {
	mu sync.RWMutex

	byLanguage  map[string]Parser
	byExtension map[string]Parser
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byLanguage:  make(map[string]Parser),
		byExtension: make(map[string]Parser),
	}
}

// NewDefaultRegistry returns a Registry with every built-in parser
// registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewTypeScriptParser())
	r.Register(NewJavaScriptParser())
	r.Register(NewRubyParser())
	return r
}

// Register adds a parser under its language name and all its extensions,
// overwriting prior entries.
func (r *Registry) Register(parser Parser) {
	if parser == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[parser.Language()] = parser
	for _, ext := range parser.Extensions() {
		r.byExtension[ext] = parser
	}
}

// ForLanguage returns the parser registered for a language name.
func (r *Registry) ForLanguage(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byLanguage[language]
	return p, ok
}

// ForExtension returns the parser registered for a file extension
// (including the dot).
func (r *Registry) ForExtension(ext string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byExtension[ext]
	return p, ok
}

// Languages lists all registered language names.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		langs = append(langs, lang)
	}
	return langs
}

// Extensions lists all registered file extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		exts = append(exts, ext)
	}
	return exts
}
