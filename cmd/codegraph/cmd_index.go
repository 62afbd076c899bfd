// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [directory]",
	Short: "Index a directory tree into the graph (incremental on re-runs)",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving %s: %w", args[0], err)
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println(titleStyle.Render("Indexing " + root))
	result, err := a.svc.Index(cmd.Context(), root)
	if err != nil {
		return err
	}

	fmt.Println(kv("processed", result.FilesProcessed))
	fmt.Println(kv("skipped", result.FilesSkipped))
	if result.FilesFailed > 0 {
		fmt.Println(warningStyle.Render(fmt.Sprintf("  failed: %d", result.FilesFailed)))
	}
	if len(result.Removed) > 0 {
		fmt.Println(kv("removed", len(result.Removed)))
	}
	fmt.Println(kv("entities", result.EntityCount))
	fmt.Println(kv("relationships", result.RelCount))
	fmt.Println(mutedStyle.Render("  took " + (time.Duration(result.DurationMilli) * time.Millisecond).String()))
	return nil
}
