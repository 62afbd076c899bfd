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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// JavaScriptParserOption configures a JavaScriptParser instance.
type JavaScriptParserOption func(*JavaScriptParser)

// WithJavaScriptMaxFileSize sets the maximum file size the parser will
// accept. Non-positive values are ignored.
func WithJavaScriptMaxFileSize(bytes int64) JavaScriptParserOption {
	return func(p *JavaScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithJavaScriptParseOptions applies the given ParseOptions to the parser.
func WithJavaScriptParseOptions(opts ParseOptions) JavaScriptParserOption {
	return func(p *JavaScriptParser) {
		p.parseOptions = opts
	}
}

// JavaScriptParser implements Parser for JavaScript source code.
//
// The JavaScript grammar is a subset of the TypeScript one for the
// constructs this parser cares about, except class heritage: the JS
// grammar places the parent expression directly under class_heritage
// rather than inside an extends_clause.
//
// Thread Safety: safe for concurrent use.
type JavaScriptParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// NewJavaScriptParser creates a JavaScriptParser with the given options.
func NewJavaScriptParser(opts ...JavaScriptParserOption) *JavaScriptParser {
	p := &JavaScriptParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts symbols from JavaScript source code.
//
// Outputs:
//   - *ParseResult: Extracted symbols and imports. Never nil on success.
//   - error: ErrFileTooLarge, ErrInvalidContent, or a context error.
func (p *JavaScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "javascript", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, filePath)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "javascript",
		Hash:          hex.EncodeToString(hash[:]),
		ParsedAtMilli: time.Now().UnixMilli(),
		Symbols:       make([]*Symbol, 0),
		Imports:       make([]Import, 0),
		Errors:        make([]string, 0),
	}

	root := tree.RootNode()
	if root == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		return result, nil
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	p.extractImports(root, content, filePath, result)
	p.extractDeclarations(ctx, root, content, filePath, result)

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), result.TotalSymbols(), false)
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}

	setParseSpanResult(span, result.TotalSymbols(), len(result.Errors))
	recordParseMetrics(ctx, "javascript", time.Since(start), result.TotalSymbols(), true)

	return result, nil
}

// Language returns "javascript".
func (p *JavaScriptParser) Language() string {
	return "javascript"
}

// Extensions returns the JavaScript file extensions.
func (p *JavaScriptParser) Extensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs"}
}

// extractImports collects ES imports and CommonJS requires.
func (p *JavaScriptParser) extractImports(root *sitter.Node, content []byte, filePath string, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "import_statement":
			p.processImportStatement(child, content, filePath, result)
		case "lexical_declaration", "variable_declaration":
			result.Imports = append(result.Imports, requireImports(child, content, filePath)...)
		}
	}
}

// processImportStatement handles one ES module import statement.
func (p *JavaScriptParser) processImportStatement(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	var modulePath string
	var names []string
	var alias string
	var isDefault, isNamespace bool

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "identifier":
					alias = nodeText(gc, content)
					isDefault = true
				case "namespace_import":
					isNamespace = true
					for k := 0; k < int(gc.ChildCount()); k++ {
						if id := gc.Child(k); id.Type() == "identifier" {
							alias = nodeText(id, content)
						}
					}
				case "named_imports":
					for k := 0; k < int(gc.ChildCount()); k++ {
						spec := gc.Child(k)
						if spec.Type() == "import_specifier" {
							if name := importSpecifierName(spec, content); name != "" {
								names = append(names, name)
							}
						}
					}
				}
			}
		case "string":
			modulePath = stringContent(child, content)
		}
	}

	if modulePath == "" {
		return
	}

	result.Imports = append(result.Imports, Import{
		Path:        modulePath,
		Names:       names,
		Alias:       alias,
		IsDefault:   isDefault,
		IsNamespace: isNamespace,
		IsRelative:  strings.HasPrefix(modulePath, "."),
		Location:    nodeLocation(node, filePath),
	})
}

// extractDeclarations extracts all top-level declarations.
func (p *JavaScriptParser) extractDeclarations(ctx context.Context, root *sitter.Node, content []byte, filePath string, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "export_statement":
			p.processExportStatement(ctx, child, content, filePath, result)
		case "function_declaration", "generator_function_declaration":
			if fn := p.processFunction(ctx, child, content, filePath, false, ""); fn != nil {
				result.Symbols = append(result.Symbols, fn)
			}
		case "class_declaration":
			if cls := p.processClass(ctx, child, content, filePath, false, ""); cls != nil {
				result.Symbols = append(result.Symbols, cls)
			}
		case "lexical_declaration", "variable_declaration":
			p.processVariableStatement(ctx, child, content, filePath, result, false, "")
		case "expression_statement":
			// module.exports = ... marks CommonJS exports; the bindings
			// themselves are declared elsewhere, so nothing to extract.
		}
	}
}

// processExportStatement unwraps an export statement.
func (p *JavaScriptParser) processExportStatement(ctx context.Context, node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	exportType := "named"
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "default" {
			exportType = "default"
			break
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_declaration", "generator_function_declaration":
			if fn := p.processFunction(ctx, child, content, filePath, true, exportType); fn != nil {
				result.Symbols = append(result.Symbols, fn)
			}
		case "class_declaration":
			if cls := p.processClass(ctx, child, content, filePath, true, exportType); cls != nil {
				result.Symbols = append(result.Symbols, cls)
			}
		case "lexical_declaration", "variable_declaration":
			p.processVariableStatement(ctx, child, content, filePath, result, true, exportType)
		case "string":
			if source := stringContent(child, content); source != "" {
				result.Imports = append(result.Imports, Import{
					Path:       source,
					IsRelative: strings.HasPrefix(source, "."),
					Location:   nodeLocation(node, filePath),
				})
			}
		}
	}
}

// processFunction extracts a function declaration.
func (p *JavaScriptParser) processFunction(ctx context.Context, node *sitter.Node, content []byte, filePath string, exported bool, exportType string) *Symbol {
	var name, params string
	var isAsync bool
	var paramsNode, bodyNode *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "async":
			isAsync = true
		case "identifier":
			name = nodeText(child, content)
		case "formal_parameters":
			params = nodeText(child, content)
			paramsNode = child
		case "statement_block":
			bodyNode = child
		}
	}

	if name == "" {
		return nil
	}

	sym := &Symbol{
		Name:       name,
		Kind:       KindFunction,
		FilePath:   filePath,
		Language:   "javascript",
		Exported:   exported,
		Signature:  "function " + name + params,
		Parameters: paramNames(paramsNode, content),
		IsAsync:    isAsync,
	}
	if exported {
		sym.ExportType = exportType
	}
	if p.parseOptions.IncludeDocComments {
		sym.DocComment = precedingDocComment(node, content)
	}
	fillRange(sym, node)

	if bodyNode != nil {
		sym.Calls = extractTSCallSites(ctx, bodyNode, content, filePath)
	}
	return sym
}

// processClass extracts a class declaration with its methods.
func (p *JavaScriptParser) processClass(ctx context.Context, node *sitter.Node, content []byte, filePath string, exported bool, exportType string) *Symbol {
	var name, extends string
	var bodyNode *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			if name == "" {
				name = nodeText(child, content)
			}
		case "class_heritage":
			// JS grammar: heritage is "extends" followed by an expression.
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == "identifier" || gc.Type() == "member_expression" {
					extends = nodeText(gc, content)
				}
			}
		case "class_body":
			bodyNode = child
		}
	}

	if name == "" {
		return nil
	}

	sym := &Symbol{
		Name:     name,
		Kind:     KindClass,
		FilePath: filePath,
		Language: "javascript",
		Exported: exported,
		Extends:  extends,
		Children: make([]*Symbol, 0),
	}
	if exported {
		sym.ExportType = exportType
	}
	if p.parseOptions.IncludeDocComments {
		sym.DocComment = precedingDocComment(node, content)
	}
	fillRange(sym, node)

	if bodyNode != nil {
		for i := 0; i < int(bodyNode.ChildCount()); i++ {
			child := bodyNode.Child(i)
			if child.Type() == "method_definition" {
				if method := p.processMethod(ctx, child, content, filePath, name); method != nil {
					sym.Children = append(sym.Children, method)
				}
			}
		}
	}
	return sym
}

// processMethod extracts a method definition inside a class body.
func (p *JavaScriptParser) processMethod(ctx context.Context, node *sitter.Node, content []byte, filePath, className string) *Symbol {
	var name, params string
	var isAsync, isStatic bool
	var paramsNode, bodyNode *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "static":
			isStatic = true
		case "async":
			isAsync = true
		case "property_identifier", "private_property_identifier":
			name = nodeText(child, content)
		case "formal_parameters":
			params = nodeText(child, content)
			paramsNode = child
		case "statement_block":
			bodyNode = child
		}
	}

	if name == "" {
		return nil
	}

	// JS has no access modifiers; #-prefixed names are hard-private.
	exported := !strings.HasPrefix(name, "#")
	if !exported && !p.parseOptions.IncludePrivate {
		return nil
	}

	sym := &Symbol{
		Name:       name,
		Kind:       KindMethod,
		FilePath:   filePath,
		Language:   "javascript",
		Exported:   exported,
		Signature:  name + params,
		Parameters: paramNames(paramsNode, content),
		IsAsync:    isAsync,
		IsStatic:   isStatic,
		Receiver:   className,
	}
	fillRange(sym, node)

	if bodyNode != nil {
		sym.Calls = extractTSCallSites(ctx, bodyNode, content, filePath)
	}
	return sym
}

// processVariableStatement extracts const/let/var declarators.
func (p *JavaScriptParser) processVariableStatement(ctx context.Context, node *sitter.Node, content []byte, filePath string, result *ParseResult, exported bool, exportType string) {
	declKind := "var"
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "const", "let":
			declKind = child.Type()
		case "variable_declarator":
			if sym := p.processVariableDeclarator(ctx, child, content, filePath, declKind, exported, exportType); sym != nil {
				result.Symbols = append(result.Symbols, sym)
			}
		}
	}
}

// processVariableDeclarator extracts one declarator.
func (p *JavaScriptParser) processVariableDeclarator(ctx context.Context, node *sitter.Node, content []byte, filePath, declKind string, exported bool, exportType string) *Symbol {
	var name string
	var arrowNode *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			name = nodeText(child, content)
		case "arrow_function", "function", "function_expression":
			arrowNode = child
		case "call_expression":
			if strings.HasPrefix(nodeText(child, content), "require(") {
				return nil
			}
		}
	}

	if name == "" {
		return nil
	}

	sym := &Symbol{
		Name:      name,
		Kind:      KindVariable,
		FilePath:  filePath,
		Language:  "javascript",
		Exported:  exported,
		Signature: declKind + " " + name,
	}
	if exported {
		sym.ExportType = exportType
	}
	fillRange(sym, node)

	if arrowNode != nil {
		sym.Kind = KindFunction
		for i := 0; i < int(arrowNode.ChildCount()); i++ {
			child := arrowNode.Child(i)
			switch child.Type() {
			case "async":
				sym.IsAsync = true
			case "formal_parameters":
				sym.Parameters = paramNames(child, content)
			case "identifier":
				sym.Parameters = []string{nodeText(child, content)}
			}
		}
		if body := arrowNode.ChildByFieldName("body"); body != nil {
			sym.Calls = extractTSCallSites(ctx, body, content, filePath)
		}
	}
	return sym
}

// Compile-time interface compliance check.
var _ Parser = (*JavaScriptParser)(nil)
