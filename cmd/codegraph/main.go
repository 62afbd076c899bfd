// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command codegraph manages the code knowledge graph: index a project,
// query it from the terminal, serve the HTTP API, or expose the graph
// as MCP tools.
//
// Usage:
//
//	codegraph index ./my-project
//	codegraph callers handleRequest
//	codegraph blast-radius src/auth/session.ts
//	codegraph serve
//	codegraph mcp
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/codegraph/services/knowledge/config"
)

// version is stamped by the build; "dev" when run from source.
var version = "dev"

var (
	cfgPath   string
	debugFlag bool

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:           "codegraph",
	Short:         "A CLI to build and query code knowledge graphs",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError(err.Error()))
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the codegraph version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("codegraph " + version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to codegraph.yaml (optional)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if debugFlag {
			loaded.Debug = true
		}
		cfg = loaded
		setupLogging(cfg.Debug)
		return nil
	}
}

// setupLogging installs the process logger: human-readable text on a
// terminal, JSON otherwise (so piped output stays machine-parseable).
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
