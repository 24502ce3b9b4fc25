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
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	snapshotListJSON     bool   // Print the listing as JSON
	snapshotDiffTo       string // Diff to this snapshot instead of the live document
	snapshotCommitLabel  string // Checkpoint description
	snapshotCommitAuthor string // Who committed (default from config)
	snapshotRestoreYes   bool   // Skip the confirmation prompt
)

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	snapshotListCmd.Flags().BoolVar(&snapshotListJSON, "json", false,
		"Print the listing as JSON for scripting")

	snapshotDiffCmd.Flags().StringVar(&snapshotDiffTo, "to", "",
		"Diff against this snapshot instead of the live document")

	snapshotCommitCmd.Flags().StringVarP(&snapshotCommitLabel, "label", "l", "",
		"Description of the checkpoint (required)")
	snapshotCommitCmd.Flags().StringVar(&snapshotCommitAuthor, "author", "",
		"Author recorded on the checkpoint (default from config)")
	_ = snapshotCommitCmd.MarkFlagRequired("label")

	snapshotRestoreCmd.Flags().BoolVarP(&snapshotRestoreYes, "yes", "y", false,
		"Restore without the confirmation prompt")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runSnapshotList lists a document's checkpoints in commit order.
func runSnapshotList(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: draftctl snapshot list [document_id]")
		os.Exit(1)
	}

	client := NewDraftClient(cliConfig)
	snapshots, err := client.ListSnapshots(context.Background(), args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list snapshots: %v\n", err)
		os.Exit(1)
	}

	if snapshotListJSON {
		outputJSON(snapshots)
		return
	}
	if len(snapshots) == 0 {
		fmt.Printf("No snapshots recorded for document %s.\n", args[0])
		return
	}
	outputSnapshotTable(snapshots)
}

// runSnapshotDiff shows what changed since a snapshot, or between two
// snapshots with --to.
func runSnapshotDiff(cmd *cobra.Command, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: draftctl snapshot diff [document_id] [snapshot_id]")
		os.Exit(1)
	}

	client := NewDraftClient(cliConfig)
	diffText, err := client.SnapshotDiff(context.Background(), args[0], args[1], snapshotDiffTo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to diff snapshot: %v\n", err)
		os.Exit(1)
	}

	if strings.TrimSpace(diffText) == "" {
		fmt.Println("No changes.")
		return
	}
	outputColoredDiff(diffText)
}

// runSnapshotCommit records a manual checkpoint.
func runSnapshotCommit(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: draftctl snapshot commit [document_id] --label <description>")
		os.Exit(1)
	}

	author := snapshotCommitAuthor
	if author == "" {
		author = cliConfig.Author
	}

	client := NewDraftClient(cliConfig)
	snapshotID, err := client.CommitSnapshot(context.Background(), args[0], datatypes.CommitSnapshotRequest{
		Label:  snapshotCommitLabel,
		Author: author,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to commit snapshot: %v\n", err)
		os.Exit(1)
	}
	cliLogger.Info("snapshot committed", "document_id", args[0], "snapshot_id", snapshotID)
	fmt.Printf("Snapshot %s committed.\n", snapshotID)
}

// runSnapshotRestore rolls a document back to a checkpoint's recorded
// state. Everything after that checkpoint is replaced, so the command
// confirms first unless --yes is given.
func runSnapshotRestore(cmd *cobra.Command, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: draftctl snapshot restore [document_id] [snapshot_id]")
		os.Exit(1)
	}
	documentID, snapshotID := args[0], args[1]

	if !snapshotRestoreYes {
		if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(os.Stderr, "Refusing to restore without confirmation on a non-interactive terminal. Re-run with --yes.")
			os.Exit(1)
		}
		confirmed := false
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Restore document %s to snapshot %s?", documentID, snapshotID)).
					Description("The live sections are replaced with the snapshot's recorded state.").
					Affirmative("Restore").
					Negative("Cancel").
					Value(&confirmed),
			),
		)
		if err := form.Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Println("Aborted. No changes made.")
				return
			}
			fmt.Fprintf(os.Stderr, "Confirmation failed: %v\n", err)
			os.Exit(1)
		}
		if !confirmed {
			fmt.Println("Aborted. No changes made.")
			return
		}
	}

	client := NewDraftClient(cliConfig)
	doc, err := client.RestoreSnapshot(context.Background(), documentID, snapshotID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to restore snapshot: %v\n", err)
		os.Exit(1)
	}
	cliLogger.Info("snapshot restored",
		"document_id", documentID,
		"snapshot_id", snapshotID,
		"sections", len(doc.Sections))
	fmt.Printf("Document %s restored to snapshot %s (%d sections).\n",
		doc.ID, snapshotID, len(doc.Sections))
}

// =============================================================================
// OUTPUT FORMATTING
// =============================================================================

// outputSnapshotTable prints the listing in aligned columns.
func outputSnapshotTable(snapshots []datatypes.SnapshotSummary) {
	fmt.Printf("%-22s  %-19s  %8s  %-18s  %s\n",
		"ID", "COMMITTED", "SECTIONS", "AUTHOR", "LABEL")
	for _, s := range snapshots {
		fmt.Printf("%-22s  %-19s  %8d  %-18s  %s\n",
			s.ID,
			s.Timestamp.Local().Format("2006-01-02 15:04:05"),
			s.SectionCount,
			s.Author,
			s.Label)
	}
}

// outputColoredDiff prints a unified diff with +/- coloring when stdout
// is a terminal. Header lines are checked before content lines since
// "---"/"+++" would otherwise match the content prefixes.
func outputColoredDiff(diffText string) {
	color := !cliConfig.Output.Plain &&
		(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
	if !color {
		fmt.Print(diffText)
		if !strings.HasSuffix(diffText, "\n") {
			fmt.Println()
		}
		return
	}

	for _, line := range strings.Split(strings.TrimSuffix(diffText, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "@@"):
			fmt.Printf("%s%s%s\n", colorCyan, line, colorReset)
		case strings.HasPrefix(line, "+"):
			fmt.Printf("%s%s%s\n", colorGreen, line, colorReset)
		case strings.HasPrefix(line, "-"):
			fmt.Printf("%s%s%s\n", colorRed, line, colorReset)
		default:
			fmt.Println(line)
		}
	}
}
