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

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	fixSection     string // Target section (required unless the fix file names one)
	fixAuthor      string // Author stamped on the pre-batch snapshot
	fixFile        string // YAML file with an ordered list of fixes
	fixPattern     string // Single-fix mode: phrase to find
	fixInstruction string // Single-fix mode: guidance for the resolver
	fixOccurrence  int    // Single-fix mode: which match, 0-based; -1 = all
	fixYes         bool   // Skip the confirmation prompt
	fixJSONOutput  bool   // Print the summary as JSON
)

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	fixCmd.Flags().StringVarP(&fixSection, "section", "s", "",
		"Section to fix (overrides the fix file's section)")
	fixCmd.Flags().StringVar(&fixAuthor, "author", "",
		"Author recorded on the pre-batch snapshot (default from config)")
	fixCmd.Flags().StringVarP(&fixFile, "file", "f", "",
		"YAML file describing the fix batch")
	fixCmd.Flags().StringVarP(&fixPattern, "pattern", "p", "",
		"Single fix: literal phrase to find")
	fixCmd.Flags().StringVarP(&fixInstruction, "instruction", "i", "",
		"Single fix: guidance for the replacement")
	fixCmd.Flags().IntVar(&fixOccurrence, "occurrence", -1,
		"Single fix: which match to replace, 0-based (-1 replaces all)")
	fixCmd.Flags().BoolVarP(&fixYes, "yes", "y", false,
		"Apply without the confirmation prompt")
	fixCmd.Flags().BoolVar(&fixJSONOutput, "json", false,
		"Print the batch summary as JSON for scripting")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runFixCommand runs an ordered bulk-fix batch against one section.
//
// # Description
//
// The batch comes either from a YAML file (--file) or from the
// single-fix flags (--pattern/--instruction/--occurrence). The fix file
// looks like:
//
//	section: definitions
//	author: reviewer@example.com
//	fixes:
//	  - pattern: "TBD"
//	    instruction: "Replace with the agreed effective date"
//	    occurrence: 1
//	  - pattern: "the Company"
//	    instruction: "Use the full registered legal name"
//
// Fixes run strictly in order; each sees the text as the previous one
// left it. The service commits a snapshot before the first fix, so the
// whole batch can be rolled back with `draftctl snapshot restore`.
//
// Unless --yes is given, the batch is shown and confirmed before
// anything is sent. On a non-interactive terminal --yes is required.
//
// # Limitations
//
//   - Exits with code 1 when the batch cannot run at all; individual
//     skipped fixes are a normal outcome and do not change the exit code
//
// # Assumptions
//
//   - The draft service is reachable at the configured URL
func runFixCommand(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: draftctl fix [document_id] --file <batch.yaml> | --pattern <phrase>")
		os.Exit(1)
	}
	documentID := args[0]

	request, err := buildFixRequest()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := request.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid batch: %v\n", err)
		os.Exit(1)
	}

	if !fixYes {
		if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(os.Stderr, "Refusing to run without confirmation on a non-interactive terminal. Re-run with --yes.")
			os.Exit(1)
		}
		confirmed, err := confirmFixBatch(documentID, request)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Confirmation failed: %v\n", err)
			os.Exit(1)
		}
		if !confirmed {
			fmt.Println("Aborted. No changes made.")
			return
		}
	}

	client := NewDraftClient(cliConfig)
	summary, err := client.BulkFix(context.Background(), documentID, request)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bulk fix failed: %v\n", err)
		os.Exit(1)
	}
	cliLogger.Info("bulk fix finished",
		"document_id", documentID,
		"section", summary.Section,
		"applied", summary.Applied,
		"skipped", summary.Skipped,
		"snapshot_id", summary.SnapshotID)

	if fixJSONOutput {
		outputJSON(summary)
		return
	}
	outputFixSummary(documentID, summary)
}

// buildFixRequest assembles the batch from the fix file or the
// single-fix flags. Flags override file values; the config author is
// the fallback.
func buildFixRequest() (datatypes.BulkFixRequest, error) {
	var request datatypes.BulkFixRequest

	if fixFile != "" {
		raw, err := os.ReadFile(fixFile)
		if err != nil {
			return request, fmt.Errorf("read fix file: %w", err)
		}
		var spec fixFileSpec
		if err := yaml.Unmarshal(raw, &spec); err != nil {
			return request, fmt.Errorf("parse fix file: %w", err)
		}
		request.Section = spec.Section
		request.Author = spec.Author
		for _, step := range spec.Fixes {
			request.Fixes = append(request.Fixes, datatypes.FixSpec{
				Pattern:         step.Pattern,
				OccurrenceIndex: step.Occurrence,
				Instruction:     step.Instruction,
			})
		}
	} else {
		if fixPattern == "" {
			return request, errors.New("either --file or --pattern is required")
		}
		fix := datatypes.FixSpec{
			Pattern:     fixPattern,
			Instruction: fixInstruction,
		}
		if fixOccurrence >= 0 {
			occurrence := fixOccurrence
			fix.OccurrenceIndex = &occurrence
		}
		request.Fixes = []datatypes.FixSpec{fix}
	}

	if fixSection != "" {
		request.Section = fixSection
	}
	if fixAuthor != "" {
		request.Author = fixAuthor
	}
	if request.Author == "" {
		request.Author = cliConfig.Author
	}
	if request.Section == "" {
		return request, errors.New("a target section is required (--section or the fix file's section)")
	}
	return request, nil
}

// fixFileSpec is the YAML shape of a fix batch file.
type fixFileSpec struct {
	Section string        `yaml:"section"`
	Author  string        `yaml:"author"`
	Fixes   []fixFileStep `yaml:"fixes"`
}

type fixFileStep struct {
	Pattern     string `yaml:"pattern"`
	Instruction string `yaml:"instruction"`
	Occurrence  *int   `yaml:"occurrence"`
}

// confirmFixBatch shows the batch and asks before sending it. Returns
// false on a decline or an aborted prompt.
func confirmFixBatch(documentID string, request datatypes.BulkFixRequest) (bool, error) {
	fmt.Printf("About to run %d fix(es) against section %q of document %s:\n",
		len(request.Fixes), request.Section, documentID)
	for i, fix := range request.Fixes {
		target := "all occurrences"
		if fix.OccurrenceIndex != nil {
			target = fmt.Sprintf("occurrence %d", *fix.OccurrenceIndex)
		}
		fmt.Printf("  %2d. %q (%s)\n", i+1, fix.Pattern, target)
	}
	fmt.Println()

	confirmed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Apply this batch?").
				Description("A snapshot is committed first, so the whole batch can be rolled back.").
				Affirmative("Apply").
				Negative("Cancel").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return confirmed, nil
}

// =============================================================================
// OUTPUT FORMATTING
// =============================================================================

// outputFixSummary prints the per-fix reports and the rollback hint.
func outputFixSummary(documentID string, summary *datatypes.BulkFixSummary) {
	fmt.Printf("Section %q: %d applied, %d skipped of %d.\n",
		summary.Section, summary.Applied, summary.Skipped, summary.Total)

	for _, report := range summary.Reports {
		if report.Outcome == datatypes.FixApplied {
			fmt.Printf("  %s✓%s %q\n", colorGreen, colorReset, report.Pattern)
			continue
		}
		reason := report.Reason
		if reason == "" {
			reason = "skipped"
		}
		fmt.Printf("  %s✗%s %q: %s\n", colorYellow, colorReset, report.Pattern, reason)
	}

	if summary.SnapshotID != "" {
		fmt.Printf("\nSnapshot %s was committed before the batch. Roll everything back with:\n", summary.SnapshotID)
		fmt.Printf("  draftctl snapshot restore %s %s\n", documentID, summary.SnapshotID)
	}
}
