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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codegraph/services/knowledge/graph"
	"github.com/AleutianAI/codegraph/services/knowledge/store"
)

var (
	blastDepthFlag    int
	cyclesMaxFlag     int
	cyclesThroughFlag string
	deadTestsFlag     bool
	deadMaxFlag       int
	deadMinConfFlag   string
)

var callersCmd = &cobra.Command{
	Use:   "callers [entity-name]",
	Short: "List the entities that use the named entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			entities, err := a.svc.WhatCalls(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printEntityList(fmt.Sprintf("Callers of %s", args[0]), entities)
			return nil
		})
	},
}

var calleesCmd = &cobra.Command{
	Use:   "callees [entity-name]",
	Short: "List the entities the named entity uses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			entities, err := a.svc.WhatDoesCall(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printEntityList(fmt.Sprintf("Callees of %s", args[0]), entities)
			return nil
		})
	},
}

var blastRadiusCmd = &cobra.Command{
	Use:   "blast-radius [file-path]",
	Short: "Show everything affected by changing a file, grouped by depth",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			result, err := a.svc.BlastRadius(cmd.Context(), args[0], blastDepthFlag)
			if err != nil {
				return err
			}

			fmt.Println(titleStyle.Render("Blast radius of " + result.FilePath))
			fmt.Println(kv("entities in file", len(result.Sources)))
			fmt.Println(kv("total affected", result.Summary.TotalAffected))
			fmt.Println(kv("direct dependents", result.Summary.DirectDependents))
			fmt.Println(kv("max depth reached", result.Summary.MaxDepth))

			depth := 0
			for _, affected := range result.Affected {
				if affected.Depth != depth {
					depth = affected.Depth
					fmt.Println(headerStyle.Render(fmt.Sprintf("depth %d", depth)))
				}
				fmt.Printf("  %s\n", describeEntity(affected.Entity))
			}
			return nil
		})
	},
}

var cyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Find circular dependencies in the graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			result, err := a.svc.FindCircularDependencies(cmd.Context(), graph.CycleOptions{
				StartEntityName: cyclesThroughFlag,
				MaxCycles:       cyclesMaxFlag,
			})
			if err != nil {
				return err
			}

			if result.Summary.TotalCycles == 0 {
				fmt.Println(titleStyle.Render("No circular dependencies found"))
				return nil
			}

			fmt.Println(titleStyle.Render(fmt.Sprintf("%d circular dependencies", result.Summary.TotalCycles)))
			if result.Truncated {
				fmt.Println(warningStyle.Render("  (truncated; raise --max to see more)"))
			}
			for i, cycle := range result.Cycles {
				names := make([]string, 0, len(cycle.Entities))
				for _, e := range cycle.Entities {
					names = append(names, e.Name)
				}
				fmt.Printf("%s %s\n",
					headerStyle.Render(fmt.Sprintf("%d.", i+1)),
					strings.Join(names, " → ")+" → "+names[0])
			}
			return nil
		})
	},
}

var deadCodeCmd = &cobra.Command{
	Use:   "dead-code",
	Short: "Find entities nothing in the graph uses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			result, err := a.svc.FindDeadCode(cmd.Context(), graph.DeadCodeOptions{
				IncludeTests:  deadTestsFlag,
				MinConfidence: graph.Confidence(deadMinConfFlag),
				MaxResults:    deadMaxFlag,
			})
			if err != nil {
				return err
			}

			fmt.Println(titleStyle.Render(fmt.Sprintf("%d of %d scanned entities appear unused",
				result.Summary.TotalUnused, result.Summary.TotalScanned)))
			for _, dead := range result.Unused {
				marker := headerStyle.Render("●")
				if dead.Confidence == graph.ConfidenceMedium {
					marker = warningStyle.Render("◐")
				}
				fmt.Printf("%s %s %s\n", marker, describeEntity(dead.Entity), mutedStyle.Render(dead.Reason))
			}
			return nil
		})
	},
}

var exportsCmd = &cobra.Command{
	Use:   "exports [file-path]",
	Short: "List a file's exported entities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			exports, err := a.svc.Exports(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Println(titleStyle.Render("Exports of " + args[0]))
			for _, exp := range exports {
				sig := exp.Signature
				if sig == "" {
					sig = exp.Name
				}
				fmt.Printf("  %s %s %s\n",
					headerStyle.Render(string(exp.EntityType)),
					sig,
					mutedStyle.Render(fmt.Sprintf("(%s, line %d)", exp.ExportType, exp.StartLine)))
			}
			if len(exports) == 0 {
				fmt.Println(mutedStyle.Render("  (none)"))
			}
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the stored graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			stats, err := a.svc.Stats(cmd.Context(), 10)
			if err != nil {
				return err
			}

			fmt.Println(titleStyle.Render("Graph statistics"))
			fmt.Println(kv("entities", stats.Entities))
			for typ, count := range stats.EntitiesByType {
				fmt.Println(mutedStyle.Render(fmt.Sprintf("    %s: %d", typ, count)))
			}
			fmt.Println(kv("relationships", stats.Relationships))
			for typ, count := range stats.RelationshipsByType {
				fmt.Println(mutedStyle.Render(fmt.Sprintf("    %s: %d", typ, count)))
			}
			fmt.Println(kv("files", stats.Files))
			if len(stats.RecentFiles) > 0 {
				fmt.Println(headerStyle.Render("recently indexed"))
				for _, rf := range stats.RecentFiles {
					fmt.Printf("  %s %s\n", rf.FilePath, mutedStyle.Render(fmt.Sprintf("(%d entities)", rf.EntityCount)))
				}
			}
			return nil
		})
	},
}

func init() {
	blastRadiusCmd.Flags().IntVar(&blastDepthFlag, "depth", 0, "Maximum transitive depth (0 = default)")
	cyclesCmd.Flags().IntVar(&cyclesMaxFlag, "max", 0, "Maximum cycles to report (0 = default)")
	cyclesCmd.Flags().StringVar(&cyclesThroughFlag, "through", "", "Only report cycles passing through this entity")
	deadCodeCmd.Flags().BoolVar(&deadTestsFlag, "include-tests", false, "Also scan entities in test files")
	deadCodeCmd.Flags().IntVar(&deadMaxFlag, "max", 0, "Maximum entities to report (0 = default)")
	deadCodeCmd.Flags().StringVar(&deadMinConfFlag, "min-confidence", "", "Minimum confidence: high or medium")

	rootCmd.AddCommand(callersCmd, calleesCmd, blastRadiusCmd, cyclesCmd, deadCodeCmd, exportsCmd, statsCmd)
}

// withApp opens the service, runs fn, and closes everything after.
func withApp(fn func(*app) error) error {
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

func printEntityList(title string, entities []*store.Entity) {
	fmt.Println(titleStyle.Render(title))
	for _, e := range entities {
		fmt.Printf("  %s\n", describeEntity(e))
	}
	if len(entities) == 0 {
		fmt.Println(mutedStyle.Render("  (none)"))
	}
}

func describeEntity(e *store.Entity) string {
	return fmt.Sprintf("%s %s %s",
		headerStyle.Render(string(e.Type)),
		e.Name,
		mutedStyle.Render(fmt.Sprintf("%s:%d", e.FilePath, e.StartLine)))
}
