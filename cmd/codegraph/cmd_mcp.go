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
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/codegraph/services/knowledge/mcptools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the graph as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			srv := mcptools.NewServer(a.svc, version)
			slog.Info("codegraph MCP server starting",
				slog.String("transport", "stdio"),
				slog.String("store", cfg.Store.Path),
			)
			return srv.Run(cmd.Context(), &mcp.StdioTransport{})
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
