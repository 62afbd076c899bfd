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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// nodeText returns the source text covered by a node.
func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}

// nodeLocation converts tree-sitter points to a Location. Rows are
// 0-based in tree-sitter and 1-based here.
func nodeLocation(node *sitter.Node, filePath string) Location {
	return Location{
		FilePath:  filePath,
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		StartCol:  int(node.StartPoint().Column),
		EndCol:    int(node.EndPoint().Column),
	}
}

// fillRange copies a node's source range onto a symbol.
func fillRange(sym *Symbol, node *sitter.Node) {
	sym.StartLine = int(node.StartPoint().Row) + 1
	sym.EndLine = int(node.EndPoint().Row) + 1
	sym.StartCol = int(node.StartPoint().Column)
	sym.EndCol = int(node.EndPoint().Column)
}

// stringContent extracts the content of a string literal node, without
// quotes.
func stringContent(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "string_fragment" || child.Type() == "string_content" {
			return nodeText(child, content)
		}
	}
	// Fallback: strip quotes from raw text.
	return strings.Trim(nodeText(node, content), `"'`)
}

// precedingDocComment returns the comment node immediately before node
// when it looks like a doc comment: JSDoc (/**) for TS/JS, any # comment
// for Ruby. A declaration wrapped in an export statement checks the
// export's preceding sibling too.
func precedingDocComment(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}

	if c := docCommentOf(node.PrevSibling(), content); c != "" {
		return c
	}

	parent := node.Parent()
	if parent != nil && parent.Type() == "export_statement" {
		return docCommentOf(parent.PrevSibling(), content)
	}
	return ""
}

func docCommentOf(node *sitter.Node, content []byte) string {
	if node == nil || node.Type() != "comment" {
		return ""
	}
	text := nodeText(node, content)
	if strings.HasPrefix(text, "/**") || strings.HasPrefix(text, "#") {
		return text
	}
	return ""
}

// walkSubtree traverses a subtree iteratively with an explicit stack,
// avoiding recursion limits on deeply nested sources. visit returns
// false to skip a node's children. The walk is depth-bounded by
// MaxCallExpressionDepth and checks ctx every 100 nodes.
func walkSubtree(ctx context.Context, root *sitter.Node, visit func(*sitter.Node) bool) {
	if root == nil {
		return
	}

	type stackEntry struct {
		node  *sitter.Node
		depth int
	}

	stack := make([]stackEntry, 0, 64)
	stack = append(stack, stackEntry{node: root, depth: 0})

	nodeCount := 0
	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := entry.node
		if node == nil || entry.depth > MaxCallExpressionDepth {
			continue
		}

		nodeCount++
		if nodeCount%100 == 0 && ctx.Err() != nil {
			return
		}

		if !visit(node) {
			continue
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			if child := node.Child(i); child != nil {
				stack = append(stack, stackEntry{node: child, depth: entry.depth + 1})
			}
		}
	}
}

// paramNames extracts parameter identifier names from a parameter-list
// node (formal_parameters in TS/JS, method_parameters in Ruby).
func paramNames(node *sitter.Node, content []byte) []string {
	if node == nil {
		return nil
	}

	var names []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "identifier":
			names = append(names, nodeText(child, content))
		case "required_parameter", "optional_parameter", "optional_parameter_with_default",
			"rest_pattern", "splat_parameter", "hash_splat_parameter",
			"keyword_parameter", "block_parameter":
			if name := firstIdentifier(child, content); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// firstIdentifier returns the text of the first identifier descendant.
func firstIdentifier(node *sitter.Node, content []byte) string {
	found := ""
	walkSubtree(context.Background(), node, func(n *sitter.Node) bool {
		if found != "" {
			return false
		}
		if n.Type() == "identifier" {
			found = nodeText(n, content)
			return false
		}
		return true
	})
	return found
}
