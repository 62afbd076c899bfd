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
	"time"

	"github.com/spf13/cobra"
)

var (
	snapshotLabelFlag   string
	snapshotProjectFlag string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save, list, restore, and delete graph snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Archive the current graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			meta, err := a.svc.SaveSnapshot(cmd.Context(), snapshotProjectFlag, snapshotLabelFlag)
			if err != nil {
				return err
			}
			fmt.Println(titleStyle.Render("Snapshot saved"))
			fmt.Println(kv("id", meta.SnapshotID))
			fmt.Println(kv("entities", meta.EntityCount))
			fmt.Println(kv("relationships", meta.RelationshipCount))
			fmt.Println(kv("compressed bytes", meta.CompressedSize))
			return nil
		})
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			metas, err := a.svc.ListSnapshots(cmd.Context(), snapshotProjectFlag, 0)
			if err != nil {
				return err
			}
			if len(metas) == 0 {
				fmt.Println(mutedStyle.Render("No snapshots saved"))
				return nil
			}
			for _, meta := range metas {
				created := time.UnixMilli(meta.CreatedAtMilli).Format(time.RFC3339)
				label := meta.Label
				if label == "" {
					label = "-"
				}
				fmt.Printf("%s  %s  %s %s\n",
					headerStyle.Render(meta.SnapshotID),
					created,
					label,
					mutedStyle.Render(fmt.Sprintf("(%d entities)", meta.EntityCount)))
			}
			return nil
		})
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore [snapshot-id]",
	Short: "Replace the current graph with a saved snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			meta, err := a.svc.RestoreSnapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(titleStyle.Render("Snapshot restored"))
			fmt.Println(kv("id", meta.SnapshotID))
			fmt.Println(kv("project", meta.ProjectRoot))
			fmt.Println(kv("entities", meta.EntityCount))
			return nil
		})
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete [snapshot-id]",
	Short: "Delete a saved snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			if err := a.svc.DeleteSnapshot(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println(titleStyle.Render("Snapshot deleted"))
			return nil
		})
	},
}

func init() {
	snapshotSaveCmd.Flags().StringVar(&snapshotLabelFlag, "label", "", "Human-readable snapshot label")
	snapshotCmd.PersistentFlags().StringVar(&snapshotProjectFlag, "project", "", "Project root the snapshot belongs to")

	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotListCmd, snapshotRestoreCmd, snapshotDeleteCmd)
	rootCmd.AddCommand(snapshotCmd)
}
