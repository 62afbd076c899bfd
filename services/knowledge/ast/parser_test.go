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
	"testing"
)

func TestRegistry_Defaults(t *testing.T) {
	registry := NewDefaultRegistry()

	for _, language := range []string{"typescript", "javascript", "ruby"} {
		if _, ok := registry.ForLanguage(language); !ok {
			t.Errorf("expected parser for language %q", language)
		}
	}

	cases := map[string]string{
		".ts":  "typescript",
		".tsx": "typescript",
		".js":  "javascript",
		".mjs": "javascript",
		".rb":  "ruby",
	}
	for ext, wantLanguage := range cases {
		parser, ok := registry.ForExtension(ext)
		if !ok {
			t.Errorf("expected parser for extension %q", ext)
			continue
		}
		if parser.Language() != wantLanguage {
			t.Errorf("extension %q: expected %q, got %q", ext, wantLanguage, parser.Language())
		}
	}

	if _, ok := registry.ForExtension(".py"); ok {
		t.Error("expected no parser for unregistered extension")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewDefaultRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			parser, ok := registry.ForExtension(".ts")
			if !ok {
				t.Error("expected typescript parser")
				return
			}
			if _, err := parser.Parse(context.Background(), []byte("const x = 1;"), "x.ts"); err != nil {
				t.Errorf("concurrent parse failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestWalk_VisitsParentsBeforeChildren(t *testing.T) {
	result := &ParseResult{
		Symbols: []*Symbol{
			{
				Name: "Outer",
				Kind: KindClass,
				Children: []*Symbol{
					{Name: "inner", Kind: KindMethod},
				},
			},
			{Name: "after", Kind: KindFunction},
		},
	}

	var order []string
	result.Walk(func(sym *Symbol) {
		order = append(order, sym.Name)
	})

	want := []string{"Outer", "inner", "after"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], order[i])
		}
	}

	if result.TotalSymbols() != 3 {
		t.Errorf("expected 3 total symbols, got %d", result.TotalSymbols())
	}
}
