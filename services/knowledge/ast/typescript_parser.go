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
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptParserOption configures a TypeScriptParser instance.
type TypeScriptParserOption func(*TypeScriptParser)

// WithTypeScriptMaxFileSize sets the maximum file size the parser will
// accept. Non-positive values are ignored.
func WithTypeScriptMaxFileSize(bytes int64) TypeScriptParserOption {
	return func(p *TypeScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithTypeScriptParseOptions applies the given ParseOptions to the parser.
func WithTypeScriptParseOptions(opts ParseOptions) TypeScriptParserOption {
	return func(p *TypeScriptParser) {
		p.parseOptions = opts
	}
}

// TypeScriptParser implements Parser for TypeScript source code.
//
// Description:
//
//	Uses the tree-sitter TypeScript grammar (TSX grammar for .tsx files)
//	to extract functions, classes, methods, interfaces, type aliases,
//	enums, variables and imports, plus the call sites inside each
//	function or method body.
//
// Thread Safety:
//
//	Safe for concurrent use. Each Parse call creates its own tree-sitter
//	parser instance.
type TypeScriptParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// NewTypeScriptParser creates a TypeScriptParser with the given options.
func NewTypeScriptParser(opts ...TypeScriptParserOption) *TypeScriptParser {
	p := &TypeScriptParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts symbols from TypeScript source code.
//
// Description:
//
//	Error-tolerant: syntactically invalid source yields partial results
//	with ParseResult.Errors populated. Tree-sitter parsing itself cannot
//	be interrupted mid-parse; the context is checked before and after.
//
// Outputs:
//   - *ParseResult: Extracted symbols and imports. Never nil on success.
//   - error: ErrFileTooLarge, ErrInvalidContent, or a context error.
func (p *TypeScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "typescript", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, filePath)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	// TSX needs its own grammar; plain TypeScript rejects JSX syntax.
	if strings.HasSuffix(filePath, ".tsx") {
		parser.SetLanguage(tsx.GetLanguage())
	} else {
		parser.SetLanguage(typescript.GetLanguage())
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "typescript",
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
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(start), result.TotalSymbols(), false)
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}

	setParseSpanResult(span, result.TotalSymbols(), len(result.Errors))
	recordParseMetrics(ctx, "typescript", time.Since(start), result.TotalSymbols(), true)

	return result, nil
}

// Language returns "typescript".
func (p *TypeScriptParser) Language() string {
	return "typescript"
}

// Extensions returns the TypeScript file extensions.
func (p *TypeScriptParser) Extensions() []string {
	return []string{".ts", ".tsx", ".mts", ".cts"}
}

// extractImports collects ES imports and CommonJS requires at the top
// level of the file.
func (p *TypeScriptParser) extractImports(root *sitter.Node, content []byte, filePath string, result *ParseResult) {
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
func (p *TypeScriptParser) processImportStatement(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	var modulePath string
	var names []string
	var alias string
	var isDefault, isNamespace bool

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_clause":
			p.processImportClause(child, content, &names, &alias, &isDefault, &isNamespace)
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

// processImportClause extracts the binding details of an import clause.
func (p *TypeScriptParser) processImportClause(node *sitter.Node, content []byte, names *[]string, alias *string, isDefault, isNamespace *bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			// Default import: import foo from 'bar'
			*alias = nodeText(child, content)
			*isDefault = true
		case "namespace_import":
			// import * as foo from 'bar'
			*isNamespace = true
			for j := 0; j < int(child.ChildCount()); j++ {
				if gc := child.Child(j); gc.Type() == "identifier" {
					*alias = nodeText(gc, content)
				}
			}
		case "named_imports":
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == "import_specifier" {
					if name := importSpecifierName(gc, content); name != "" {
						*names = append(*names, name)
					}
				}
			}
		}
	}
}

// extractDeclarations extracts all top-level declarations.
func (p *TypeScriptParser) extractDeclarations(ctx context.Context, root *sitter.Node, content []byte, filePath string, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "export_statement":
			p.processExportStatement(ctx, child, content, filePath, result)
		case "function_declaration", "generator_function_declaration":
			if fn := p.processFunction(ctx, child, content, filePath, false, ""); fn != nil {
				result.Symbols = append(result.Symbols, fn)
			}
		case "class_declaration", "abstract_class_declaration":
			if cls := p.processClass(ctx, child, content, filePath, false, ""); cls != nil {
				result.Symbols = append(result.Symbols, cls)
			}
		case "interface_declaration":
			if iface := p.processInterface(child, content, filePath, false, ""); iface != nil {
				result.Symbols = append(result.Symbols, iface)
			}
		case "type_alias_declaration":
			if ta := p.processTypeAlias(child, content, filePath, false, ""); ta != nil {
				result.Symbols = append(result.Symbols, ta)
			}
		case "enum_declaration":
			if enum := p.processEnum(child, content, filePath, false, ""); enum != nil {
				result.Symbols = append(result.Symbols, enum)
			}
		case "lexical_declaration", "variable_declaration":
			p.processVariableStatement(ctx, child, content, filePath, result, false, "")
		}
	}
}

// processExportStatement unwraps an export and marks the inner
// declaration exported. Re-exports with a source module are recorded as
// imports so module-level dependency edges survive.
func (p *TypeScriptParser) processExportStatement(ctx context.Context, node *sitter.Node, content []byte, filePath string, result *ParseResult) {
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
		case "class_declaration", "abstract_class_declaration":
			if cls := p.processClass(ctx, child, content, filePath, true, exportType); cls != nil {
				result.Symbols = append(result.Symbols, cls)
			}
		case "interface_declaration":
			if iface := p.processInterface(child, content, filePath, true, exportType); iface != nil {
				result.Symbols = append(result.Symbols, iface)
			}
		case "type_alias_declaration":
			if ta := p.processTypeAlias(child, content, filePath, true, exportType); ta != nil {
				result.Symbols = append(result.Symbols, ta)
			}
		case "enum_declaration":
			if enum := p.processEnum(child, content, filePath, true, exportType); enum != nil {
				result.Symbols = append(result.Symbols, enum)
			}
		case "lexical_declaration", "variable_declaration":
			p.processVariableStatement(ctx, child, content, filePath, result, true, exportType)
		case "string", "template_string":
			// export { Foo } from './bar'
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
func (p *TypeScriptParser) processFunction(ctx context.Context, node *sitter.Node, content []byte, filePath string, exported bool, exportType string) *Symbol {
	var name, params, returnType string
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
		case "type_annotation":
			returnType = typeAnnotationText(child, content)
		case "statement_block":
			bodyNode = child
		}
	}

	if name == "" {
		return nil
	}

	signature := "function " + name + params
	if returnType != "" {
		signature += ": " + returnType
	}

	sym := &Symbol{
		Name:       name,
		Kind:       KindFunction,
		FilePath:   filePath,
		Language:   "typescript",
		Exported:   exported,
		Signature:  signature,
		Parameters: paramNames(paramsNode, content),
		ReturnType: returnType,
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
func (p *TypeScriptParser) processClass(ctx context.Context, node *sitter.Node, content []byte, filePath string, exported bool, exportType string) *Symbol {
	var name string
	var extends string
	var implements []string
	var bodyNode *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type_identifier", "identifier":
			if name == "" {
				name = nodeText(child, content)
			}
		case "class_heritage":
			extends, implements = classHeritage(child, content)
		case "class_body":
			bodyNode = child
		}
	}

	if name == "" {
		return nil
	}

	sym := &Symbol{
		Name:       name,
		Kind:       KindClass,
		FilePath:   filePath,
		Language:   "typescript",
		Exported:   exported,
		Extends:    extends,
		Implements: implements,
		Children:   make([]*Symbol, 0),
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
func (p *TypeScriptParser) processMethod(ctx context.Context, node *sitter.Node, content []byte, filePath, className string) *Symbol {
	var name, params, returnType, accessModifier string
	var isAsync, isStatic bool
	var paramsNode, bodyNode *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "accessibility_modifier":
			accessModifier = nodeText(child, content)
		case "static":
			isStatic = true
		case "async":
			isAsync = true
		case "property_identifier", "private_property_identifier":
			name = nodeText(child, content)
		case "formal_parameters":
			params = nodeText(child, content)
			paramsNode = child
		case "type_annotation":
			returnType = typeAnnotationText(child, content)
		case "statement_block":
			bodyNode = child
		}
	}

	if name == "" {
		return nil
	}

	exported := accessModifier != "private" && !strings.HasPrefix(name, "#")
	if !exported && !p.parseOptions.IncludePrivate {
		return nil
	}

	signature := name + params
	if returnType != "" {
		signature += ": " + returnType
	}

	sym := &Symbol{
		Name:       name,
		Kind:       KindMethod,
		FilePath:   filePath,
		Language:   "typescript",
		Exported:   exported,
		Signature:  signature,
		Parameters: paramNames(paramsNode, content),
		ReturnType: returnType,
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

// processInterface extracts an interface declaration as a type symbol.
// Multi-parent inheritance maps the first parent to Extends and the rest
// to Implements.
func (p *TypeScriptParser) processInterface(node *sitter.Node, content []byte, filePath string, exported bool, exportType string) *Symbol {
	var name string
	var parents []string

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type_identifier":
			name = nodeText(child, content)
		case "extends_type_clause":
			parents = interfaceHeritage(child, content)
		}
	}

	if name == "" {
		return nil
	}

	sym := &Symbol{
		Name:      name,
		Kind:      KindType,
		FilePath:  filePath,
		Language:  "typescript",
		Exported:  exported,
		Signature: "interface " + name,
	}
	if exported {
		sym.ExportType = exportType
	}
	if len(parents) > 0 {
		sym.Extends = parents[0]
		if len(parents) > 1 {
			sym.Implements = parents[1:]
		}
	}
	if p.parseOptions.IncludeDocComments {
		sym.DocComment = precedingDocComment(node, content)
	}
	fillRange(sym, node)
	return sym
}

// processTypeAlias extracts a type alias declaration.
func (p *TypeScriptParser) processTypeAlias(node *sitter.Node, content []byte, filePath string, exported bool, exportType string) *Symbol {
	var name string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "type_identifier" {
			name = nodeText(child, content)
			break
		}
	}

	if name == "" {
		return nil
	}

	sym := &Symbol{
		Name:      name,
		Kind:      KindType,
		FilePath:  filePath,
		Language:  "typescript",
		Exported:  exported,
		Signature: "type " + name,
	}
	if exported {
		sym.ExportType = exportType
	}
	fillRange(sym, node)
	return sym
}

// processEnum extracts an enum declaration as a type symbol.
func (p *TypeScriptParser) processEnum(node *sitter.Node, content []byte, filePath string, exported bool, exportType string) *Symbol {
	var name string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "identifier" {
			name = nodeText(child, content)
			break
		}
	}

	if name == "" {
		return nil
	}

	sym := &Symbol{
		Name:      name,
		Kind:      KindType,
		FilePath:  filePath,
		Language:  "typescript",
		Exported:  exported,
		Signature: "enum " + name,
	}
	if exported {
		sym.ExportType = exportType
	}
	fillRange(sym, node)
	return sym
}

// processVariableStatement extracts const/let/var declarators. Arrow
// function initializers become function symbols with call sites; other
// declarators become variables.
func (p *TypeScriptParser) processVariableStatement(ctx context.Context, node *sitter.Node, content []byte, filePath string, result *ParseResult, exported bool, exportType string) {
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
func (p *TypeScriptParser) processVariableDeclarator(ctx context.Context, node *sitter.Node, content []byte, filePath, declKind string, exported bool, exportType string) *Symbol {
	var name, typeStr string
	var arrowNode *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			name = nodeText(child, content)
		case "type_annotation":
			typeStr = typeAnnotationText(child, content)
		case "arrow_function", "function", "function_expression":
			arrowNode = child
		case "call_expression":
			// Skip require() bindings, already recorded as imports.
			if strings.HasPrefix(nodeText(child, content), "require(") {
				return nil
			}
		}
	}

	if name == "" {
		return nil
	}

	sym := &Symbol{
		Name:     name,
		Kind:     KindVariable,
		FilePath: filePath,
		Language: "typescript",
		Exported: exported,
	}
	if exported {
		sym.ExportType = exportType
	}
	fillRange(sym, node)

	signature := declKind + " " + name
	if typeStr != "" {
		signature += ": " + typeStr
	}
	sym.Signature = signature

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
				// Single-parameter arrow without parentheses.
				sym.Parameters = []string{nodeText(child, content)}
			}
		}
		if body := arrowNode.ChildByFieldName("body"); body != nil {
			sym.Calls = extractTSCallSites(ctx, body, content, filePath)
		}
	}
	return sym
}

// classHeritage extracts extends and implements from a class_heritage
// node.
func classHeritage(node *sitter.Node, content []byte) (extends string, implements []string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "extends_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == "identifier" || gc.Type() == "type_identifier" || gc.Type() == "generic_type" {
					extends = baseTypeName(nodeText(gc, content))
				}
			}
		case "implements_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == "type_identifier" || gc.Type() == "generic_type" {
					implements = append(implements, baseTypeName(nodeText(gc, content)))
				}
			}
		}
	}
	return extends, implements
}

// interfaceHeritage extracts parent names from an extends_type_clause.
func interfaceHeritage(node *sitter.Node, content []byte) []string {
	var parents []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type_identifier":
			parents = append(parents, nodeText(child, content))
		case "generic_type":
			for j := 0; j < int(child.ChildCount()); j++ {
				if gc := child.Child(j); gc.Type() == "type_identifier" {
					parents = append(parents, nodeText(gc, content))
					break
				}
			}
		}
	}
	return parents
}

// baseTypeName strips type arguments: "Repository<User>" -> "Repository".
func baseTypeName(typeExpr string) string {
	if idx := strings.IndexByte(typeExpr, '<'); idx > 0 {
		return typeExpr[:idx]
	}
	return typeExpr
}

// typeAnnotationText returns the type after the colon of a
// type_annotation node.
func typeAnnotationText(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != ":" {
			return nodeText(child, content)
		}
	}
	return ""
}

// importSpecifierName renders "a" or "a as b" for an import_specifier.
func importSpecifierName(node *sitter.Node, content []byte) string {
	var name, alias string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "identifier" {
			if name == "" {
				name = nodeText(child, content)
			} else {
				alias = nodeText(child, content)
			}
		}
	}
	if alias != "" {
		return name + " as " + alias
	}
	return name
}

// requireImports extracts CommonJS require() bindings from a
// const/let/var statement. Shared by the TypeScript and JavaScript
// parsers.
func requireImports(node *sitter.Node, content []byte, filePath string) []Import {
	var imports []Import
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "variable_declarator" {
			continue
		}

		var name, modulePath string
		for j := 0; j < int(child.ChildCount()); j++ {
			gc := child.Child(j)
			switch gc.Type() {
			case "identifier":
				name = nodeText(gc, content)
			case "call_expression":
				modulePath = requireCallPath(gc, content)
			}
		}

		if name != "" && modulePath != "" {
			imports = append(imports, Import{
				Path:       modulePath,
				Alias:      name,
				IsRequire:  true,
				IsRelative: strings.HasPrefix(modulePath, "."),
				Location:   nodeLocation(node, filePath),
			})
		}
	}
	return imports
}

// requireCallPath returns the module path when the call is require().
func requireCallPath(node *sitter.Node, content []byte) string {
	var funcName, modulePath string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			funcName = nodeText(child, content)
		case "arguments":
			for j := 0; j < int(child.ChildCount()); j++ {
				if arg := child.Child(j); arg.Type() == "string" {
					modulePath = stringContent(arg, content)
				}
			}
		}
	}
	if funcName == "require" {
		return modulePath
	}
	return ""
}

// extractTSCallSites collects call and constructor expressions from a
// function body. Shared by the TypeScript and JavaScript parsers, whose
// grammars use the same expression node types.
func extractTSCallSites(ctx context.Context, body *sitter.Node, content []byte, filePath string) []CallSite {
	if body == nil || ctx.Err() != nil {
		return nil
	}

	calls := make([]CallSite, 0, 16)
	truncated := false

	walkSubtree(ctx, body, func(node *sitter.Node) bool {
		if truncated {
			return false
		}
		if len(calls) >= MaxCallSitesPerSymbol {
			truncated = true
			slog.Warn("max call sites per symbol reached",
				slog.String("file", filePath),
				slog.Int("limit", MaxCallSitesPerSymbol))
			return false
		}

		switch node.Type() {
		case "call_expression":
			if call := tsCallSite(node, content, filePath); call != nil {
				calls = append(calls, *call)
			}
		case "new_expression":
			if call := tsConstructorCallSite(node, content, filePath); call != nil {
				calls = append(calls, *call)
			}
		}
		return true
	})

	return calls
}

// tsCallSite extracts one call_expression.
func tsCallSite(node *sitter.Node, content []byte, filePath string) *CallSite {
	funcNode := node.ChildByFieldName("function")
	if funcNode == nil && node.ChildCount() > 0 {
		funcNode = node.Child(0)
	}
	if funcNode == nil {
		return nil
	}

	call := &CallSite{Location: nodeLocation(node, filePath)}

	switch funcNode.Type() {
	case "identifier":
		call.Target = nodeText(funcNode, content)
	case "member_expression":
		if prop := funcNode.ChildByFieldName("property"); prop != nil {
			call.Target = nodeText(prop, content)
		}
		if obj := funcNode.ChildByFieldName("object"); obj != nil {
			call.Receiver = nodeText(obj, content)
			call.IsMethod = true
		}
	default:
		text := nodeText(funcNode, content)
		if len(text) > 100 {
			text = text[:100]
		}
		call.Target = text
	}

	if call.Target == "" {
		return nil
	}
	return call
}

// tsConstructorCallSite maps new Foo() to a call on Foo so class usage
// is visible to the graph.
func tsConstructorCallSite(node *sitter.Node, content []byte, filePath string) *CallSite {
	ctor := node.ChildByFieldName("constructor")
	if ctor == nil {
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.Type() == "identifier" {
				ctor = child
				break
			}
		}
	}
	if ctor == nil {
		return nil
	}

	name := nodeText(ctor, content)
	if name == "" {
		return nil
	}
	return &CallSite{
		Target:   baseTypeName(name),
		Location: nodeLocation(node, filePath),
	}
}

// Compile-time interface compliance check.
var _ Parser = (*TypeScriptParser)(nil)
