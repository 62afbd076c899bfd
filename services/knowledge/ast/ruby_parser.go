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
	"github.com/smacker/go-tree-sitter/ruby"
)

// RubyParserOption configures a RubyParser instance.
type RubyParserOption func(*RubyParser)

// WithRubyMaxFileSize sets the maximum file size the parser will accept.
// Non-positive values are ignored.
func WithRubyMaxFileSize(bytes int64) RubyParserOption {
	return func(p *RubyParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithRubyParseOptions applies the given ParseOptions to the parser.
func WithRubyParseOptions(opts ParseOptions) RubyParserOption {
	return func(p *RubyParser) {
		p.parseOptions = opts
	}
}

// RubyParser implements Parser for Ruby source code.
//
// Description:
//
//	Extracts classes (with superclass and include/extend/prepend mixins),
//	modules, methods, singleton methods and top-level constants.
//	require and require_relative become imports; Foo.new becomes a call
//	on Foo so constructor usage reaches the graph.
//
// Thread Safety:
//
//	Safe for concurrent use. Each Parse call creates its own tree-sitter
//	parser instance.
type RubyParser struct {
	maxFileSize  int64
	parseOptions ParseOptions
}

// NewRubyParser creates a RubyParser with the given options.
func NewRubyParser(opts ...RubyParserOption) *RubyParser {
	p := &RubyParser{
		maxFileSize:  DefaultMaxFileSize,
		parseOptions: DefaultParseOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts symbols from Ruby source code.
//
// Outputs:
//   - *ParseResult: Extracted symbols and imports. Never nil on success.
//   - error: ErrFileTooLarge, ErrInvalidContent, or a context error.
func (p *RubyParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "ruby", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "ruby", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "ruby", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "ruby", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, filePath)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(ruby.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "ruby", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "ruby", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "ruby",
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

	p.extractBody(ctx, root, content, filePath, result)

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, "ruby", time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "ruby", time.Since(start), result.TotalSymbols(), false)
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}

	setParseSpanResult(span, result.TotalSymbols(), len(result.Errors))
	recordParseMetrics(ctx, "ruby", time.Since(start), result.TotalSymbols(), true)

	return result, nil
}

// Language returns "ruby".
func (p *RubyParser) Language() string {
	return "ruby"
}

// Extensions returns the Ruby file extensions.
func (p *RubyParser) Extensions() []string {
	return []string{".rb", ".rake", ".gemspec"}
}

// extractBody walks top-level statements of the program.
func (p *RubyParser) extractBody(ctx context.Context, root *sitter.Node, content []byte, filePath string, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "class":
			if cls := p.processClass(ctx, child, content, filePath); cls != nil {
				result.Symbols = append(result.Symbols, cls)
			}
		case "module":
			if mod := p.processModule(ctx, child, content, filePath); mod != nil {
				result.Symbols = append(result.Symbols, mod)
			}
		case "method":
			if fn := p.processMethod(ctx, child, content, filePath, "", KindFunction, true); fn != nil {
				result.Symbols = append(result.Symbols, fn)
			}
		case "singleton_method":
			if fn := p.processSingletonMethod(ctx, child, content, filePath, ""); fn != nil {
				result.Symbols = append(result.Symbols, fn)
			}
		case "call":
			if imp := rubyRequire(child, content, filePath); imp != nil {
				result.Imports = append(result.Imports, *imp)
			}
		case "assignment":
			if v := p.processConstantAssignment(child, content, filePath); v != nil {
				result.Symbols = append(result.Symbols, v)
			}
		}
	}
}

// processClass extracts a class with its methods and mixins.
func (p *RubyParser) processClass(ctx context.Context, node *sitter.Node, content []byte, filePath string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := rubyConstantName(nodeText(nameNode, content))
	if name == "" {
		return nil
	}

	sym := &Symbol{
		Name:     name,
		Kind:     KindClass,
		FilePath: filePath,
		Language: "ruby",
		Exported: true,
		Children: make([]*Symbol, 0),
	}
	if superclass := node.ChildByFieldName("superclass"); superclass != nil {
		for i := 0; i < int(superclass.ChildCount()); i++ {
			child := superclass.Child(i)
			if child.Type() == "constant" || child.Type() == "scope_resolution" {
				sym.Extends = rubyConstantName(nodeText(child, content))
			}
		}
	}
	if p.parseOptions.IncludeDocComments {
		sym.DocComment = precedingDocComment(node, content)
	}
	fillRange(sym, node)

	p.processContainerBody(ctx, node, content, filePath, sym)
	return sym
}

// processModule extracts a module with its methods and nested containers.
func (p *RubyParser) processModule(ctx context.Context, node *sitter.Node, content []byte, filePath string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := rubyConstantName(nodeText(nameNode, content))
	if name == "" {
		return nil
	}

	sym := &Symbol{
		Name:     name,
		Kind:     KindModule,
		FilePath: filePath,
		Language: "ruby",
		Exported: true,
		Children: make([]*Symbol, 0),
	}
	if p.parseOptions.IncludeDocComments {
		sym.DocComment = precedingDocComment(node, content)
	}
	fillRange(sym, node)

	p.processContainerBody(ctx, node, content, filePath, sym)
	return sym
}

// processContainerBody walks a class or module body. Bare private and
// protected identifiers toggle the visibility of subsequent methods,
// matching Ruby's runtime behavior.
func (p *RubyParser) processContainerBody(ctx context.Context, node *sitter.Node, content []byte, filePath string, container *Symbol) {
	body := containerBody(node)
	if body == nil {
		return
	}

	visible := true
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "method":
			if m := p.processMethod(ctx, child, content, filePath, container.Name, KindMethod, visible); m != nil {
				container.Children = append(container.Children, m)
			}
		case "singleton_method":
			if m := p.processSingletonMethod(ctx, child, content, filePath, container.Name); m != nil {
				container.Children = append(container.Children, m)
			}
		case "class":
			if nested := p.processClass(ctx, child, content, filePath); nested != nil {
				container.Children = append(container.Children, nested)
			}
		case "module":
			if nested := p.processModule(ctx, child, content, filePath); nested != nil {
				container.Children = append(container.Children, nested)
			}
		case "identifier":
			switch nodeText(child, content) {
			case "private", "protected":
				visible = false
			case "public":
				visible = true
			}
		case "call":
			p.processContainerCall(ctx, child, content, filePath, container, &visible)
		}
	}
}

// processContainerCall handles calls in a class or module body: mixins,
// requires, and inline visibility like "private def foo".
func (p *RubyParser) processContainerCall(ctx context.Context, node *sitter.Node, content []byte, filePath string, container *Symbol, visible *bool) {
	methodNode := node.ChildByFieldName("method")
	if methodNode == nil {
		return
	}
	methodName := nodeText(methodNode, content)

	switch methodName {
	case "include", "extend", "prepend":
		if args := node.ChildByFieldName("arguments"); args != nil {
			for i := 0; i < int(args.ChildCount()); i++ {
				arg := args.Child(i)
				if arg.Type() == "constant" || arg.Type() == "scope_resolution" {
					container.Implements = append(container.Implements, rubyConstantName(nodeText(arg, content)))
				}
			}
		}
	case "private", "protected", "public":
		inline := false
		if args := node.ChildByFieldName("arguments"); args != nil {
			for i := 0; i < int(args.ChildCount()); i++ {
				arg := args.Child(i)
				if arg.Type() == "method" {
					inline = true
					if m := p.processMethod(ctx, arg, content, filePath, container.Name, KindMethod, methodName == "public"); m != nil {
						container.Children = append(container.Children, m)
					}
				}
			}
		}
		if !inline {
			*visible = methodName == "public"
		}
	}
}

// processMethod extracts a def. Top-level defs are functions; defs
// inside a class or module are methods with a receiver.
func (p *RubyParser) processMethod(ctx context.Context, node *sitter.Node, content []byte, filePath, receiver string, kind SymbolKind, visible bool) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)
	if name == "" {
		return nil
	}

	if !visible && !p.parseOptions.IncludePrivate {
		return nil
	}

	paramsNode := node.ChildByFieldName("parameters")
	signature := "def " + name
	if paramsNode != nil {
		signature += nodeText(paramsNode, content)
	}

	sym := &Symbol{
		Name:       name,
		Kind:       kind,
		FilePath:   filePath,
		Language:   "ruby",
		Exported:   visible,
		Signature:  signature,
		Parameters: paramNames(paramsNode, content),
		Receiver:   receiver,
	}
	if p.parseOptions.IncludeDocComments {
		sym.DocComment = precedingDocComment(node, content)
	}
	fillRange(sym, node)

	sym.Calls = extractRubyCallSites(ctx, node, content, filePath)
	return sym
}

// processSingletonMethod extracts "def self.foo" as a static method.
func (p *RubyParser) processSingletonMethod(ctx context.Context, node *sitter.Node, content []byte, filePath, receiver string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, content)
	if name == "" {
		return nil
	}

	kind := KindMethod
	if receiver == "" {
		kind = KindFunction
	}

	paramsNode := node.ChildByFieldName("parameters")
	signature := "def self." + name
	if paramsNode != nil {
		signature += nodeText(paramsNode, content)
	}

	sym := &Symbol{
		Name:       name,
		Kind:       kind,
		FilePath:   filePath,
		Language:   "ruby",
		Exported:   true,
		Signature:  signature,
		Parameters: paramNames(paramsNode, content),
		IsStatic:   true,
		Receiver:   receiver,
	}
	if p.parseOptions.IncludeDocComments {
		sym.DocComment = precedingDocComment(node, content)
	}
	fillRange(sym, node)

	sym.Calls = extractRubyCallSites(ctx, node, content, filePath)
	return sym
}

// processConstantAssignment extracts a top-level FOO = ... constant.
func (p *RubyParser) processConstantAssignment(node *sitter.Node, content []byte, filePath string) *Symbol {
	left := node.ChildByFieldName("left")
	if left == nil || left.Type() != "constant" {
		return nil
	}
	name := nodeText(left, content)
	if name == "" {
		return nil
	}

	sym := &Symbol{
		Name:      name,
		Kind:      KindVariable,
		FilePath:  filePath,
		Language:  "ruby",
		Exported:  true,
		Signature: name + " = ...",
	}
	fillRange(sym, node)
	return sym
}

// rubyRequire converts require/require_relative calls into imports.
func rubyRequire(node *sitter.Node, content []byte, filePath string) *Import {
	methodNode := node.ChildByFieldName("method")
	if methodNode == nil {
		return nil
	}
	methodName := nodeText(methodNode, content)
	if methodName != "require" && methodName != "require_relative" {
		return nil
	}

	args := node.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var path string
	for i := 0; i < int(args.ChildCount()); i++ {
		arg := args.Child(i)
		if arg.Type() == "string" {
			path = stringContent(arg, content)
		}
	}
	if path == "" {
		return nil
	}

	return &Import{
		Path:       path,
		IsRequire:  true,
		IsRelative: methodName == "require_relative",
		Location:   nodeLocation(node, filePath),
	}
}

// extractRubyCallSites collects call expressions from a method body.
func extractRubyCallSites(ctx context.Context, body *sitter.Node, content []byte, filePath string) []CallSite {
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

		if node.Type() != "call" {
			return true
		}
		if call := rubyCallSite(node, content, filePath); call != nil {
			calls = append(calls, *call)
		}
		return true
	})

	return calls
}

// rubyCallSite extracts one call node. Foo.new maps to a call on the
// class Foo; require and visibility pseudo-calls are skipped.
func rubyCallSite(node *sitter.Node, content []byte, filePath string) *CallSite {
	methodNode := node.ChildByFieldName("method")
	if methodNode == nil {
		return nil
	}
	methodName := nodeText(methodNode, content)

	switch methodName {
	case "require", "require_relative", "include", "extend", "prepend",
		"private", "protected", "public":
		return nil
	}

	call := &CallSite{
		Target:   methodName,
		Location: nodeLocation(node, filePath),
	}

	if receiver := node.ChildByFieldName("receiver"); receiver != nil {
		receiverText := nodeText(receiver, content)
		if methodName == "new" && (receiver.Type() == "constant" || receiver.Type() == "scope_resolution") {
			call.Target = rubyConstantName(receiverText)
			return call
		}
		call.Receiver = receiverText
		call.IsMethod = true
	}

	if call.Target == "" {
		return nil
	}
	return call
}

// containerBody returns the body_statement of a class or module node.
func containerBody(node *sitter.Node) *sitter.Node {
	if body := node.ChildByFieldName("body"); body != nil {
		return body
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == "body_statement" {
			return child
		}
	}
	return nil
}

// rubyConstantName strips namespace qualifiers: "Foo::Bar" -> "Bar".
func rubyConstantName(constant string) string {
	if idx := strings.LastIndex(constant, "::"); idx >= 0 {
		return constant[idx+2:]
	}
	return constant
}

// Compile-time interface compliance check.
var _ Parser = (*RubyParser)(nil)
