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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	flagConfigPath string
	flagServerURL  string
	flagAPIKey     string
	flagPlain      bool
	flagVerbose    bool

	rootCmd = &cobra.Command{
		Use:   "draftctl",
		Short: "A cli for drafting, fixing, and checkpointing documents on the draft service",
		Long: `Draftctl is the terminal companion to the draft service. It starts
section generation and streams progress live over the service's push
channel, runs ordered bulk-fix batches behind a confirmation step, and
inspects the snapshots the service records before destructive edits.`,
		Version: cliVersion,
	}

	// --- Generation ---
	generateCmd = &cobra.Command{
		Use:   "generate [brief]",
		Short: "Start generating a document section from a brief",
		Run:   runGenerateCommand, // Defined in cmd_generate.go
	}
	watchCmd = &cobra.Command{
		Use:   "watch [task_id]",
		Short: "Attach to a running generation task and stream its progress",
		Run:   runWatchCommand, // Defined in cmd_generate.go
	}

	// --- Bulk Fix ---
	fixCmd = &cobra.Command{
		Use:   "fix [document_id]",
		Short: "Run an ordered batch of pattern fixes against one section",
		Run:   runFixCommand, // Defined in cmd_fix.go
	}

	// --- Snapshots ---
	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect and restore the snapshots recorded for a document",
	}
	snapshotListCmd = &cobra.Command{
		Use:   "list [document_id]",
		Short: "List snapshots in commit order",
		Run:   runSnapshotList, // Defined in cmd_snapshot.go
	}
	snapshotDiffCmd = &cobra.Command{
		Use:   "diff [document_id] [snapshot_id]",
		Short: "Show changes between a snapshot and the live document",
		Run:   runSnapshotDiff, // Defined in cmd_snapshot.go
	}
	snapshotCommitCmd = &cobra.Command{
		Use:   "commit [document_id]",
		Short: "Record a manual checkpoint of a document",
		Run:   runSnapshotCommit, // Defined in cmd_snapshot.go
	}
	snapshotRestoreCmd = &cobra.Command{
		Use:   "restore [document_id] [snapshot_id]",
		Short: "Restore a document to a snapshot's recorded state",
		Run:   runSnapshotRestore, // Defined in cmd_snapshot.go
	}

	// --- Diagnostics ---
	doctorCmd = &cobra.Command{
		Use:   "doctor",
		Short: "Check connectivity and version compatibility with the draft service",
		Run:   runDoctorCommand, // Defined in cmd_doctor.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "",
		"Path to config file (default ~/.aleutiandraft/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "",
		"Draft service base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "",
		"API key sent as X-API-Key (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagPlain, "plain", false,
		"Plain line-by-line output, no live display or prompts")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Log draftctl's own activity to stderr")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(fixCmd)

	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotDiffCmd)
	snapshotCmd.AddCommand(snapshotCommitCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)

	rootCmd.AddCommand(doctorCmd)
}
