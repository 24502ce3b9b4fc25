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
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	generateDocumentID string // Document the finished section is written into
	generateSection    string // Section name to generate
	generateWatch      bool   // Stay attached and stream progress
	generateJSONOutput bool   // Print the terminal event as JSON

	watchDocumentID string // Where finished content is stored (optional)
	watchSection    string // Section name for storing (optional)
	watchJSONOutput bool   // Print the terminal event as JSON
)

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	generateCmd.Flags().StringVarP(&generateDocumentID, "document", "d", "",
		"Document id the finished section is written into (required)")
	generateCmd.Flags().StringVarP(&generateSection, "section", "s", "",
		"Section name to generate (required)")
	generateCmd.Flags().BoolVar(&generateWatch, "watch", true,
		"Stay attached and stream progress until the task finishes")
	generateCmd.Flags().BoolVar(&generateJSONOutput, "json", false,
		"Print the terminal event as JSON for scripting")
	_ = generateCmd.MarkFlagRequired("document")
	_ = generateCmd.MarkFlagRequired("section")

	watchCmd.Flags().StringVarP(&watchDocumentID, "document", "d", "",
		"Document id to store finished content into (optional)")
	watchCmd.Flags().StringVarP(&watchSection, "section", "s", "",
		"Section name for storing finished content (optional)")
	watchCmd.Flags().BoolVar(&watchJSONOutput, "json", false,
		"Print the terminal event as JSON for scripting")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runGenerateCommand starts a generation task and, unless --watch=false,
// streams its progress to the terminal until it finishes.
//
// # Description
//
// The brief is taken from the positional arguments. On completion the
// service writes the generated text into the named section; the final
// content is also printed to stdout so it can be piped. Ctrl+C while
// watching asks the service to cancel the task rather than abandoning
// it server-side.
//
// # Limitations
//
//   - Exits with code 1 when the task fails or cannot be started
//
// # Assumptions
//
//   - The draft service is reachable at the configured URL
func runGenerateCommand(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: draftctl generate [brief] --document <id> --section <name>")
		os.Exit(1)
	}
	brief := strings.Join(args, " ")

	client := NewDraftClient(cliConfig)
	ctx := context.Background()

	resp, err := client.StartGeneration(ctx, datatypes.StartGenerationRequest{
		DocumentID: generateDocumentID,
		Section:    generateSection,
		Brief:      brief,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start generation: %v\n", err)
		os.Exit(1)
	}
	cliLogger.Info("generation started",
		"task_id", resp.TaskID,
		"document_id", resp.DocumentID,
		"section", generateSection)

	if !generateWatch {
		if generateJSONOutput {
			outputJSON(resp)
			return
		}
		fmt.Printf("Task %s started for document %s.\n", resp.TaskID, resp.DocumentID)
		fmt.Printf("Attach later with: draftctl watch %s --document %s --section %s\n",
			resp.TaskID, resp.DocumentID, generateSection)
		return
	}

	final := watchTask(client, resp.TaskID, generateDocumentID, generateSection)
	finishWatch(final, generateJSONOutput)
}

// runWatchCommand attaches to an already-running task by id.
func runWatchCommand(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: draftctl watch [task_id]")
		os.Exit(1)
	}

	client := NewDraftClient(cliConfig)
	final := watchTask(client, args[0], watchDocumentID, watchSection)
	finishWatch(final, watchJSONOutput)
}

// =============================================================================
// TRACKING
// =============================================================================

// watchTask streams task progress to the terminal and returns the
// terminal event. The live display is used on a TTY unless plain output
// is configured; otherwise events print one per line.
func watchTask(client *DraftClient, taskID, documentID, section string) datatypes.TaskStatusEvent {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := client.Track(ctx, taskID, documentID, section)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open track stream: %v\n", err)
		os.Exit(1)
	}

	plain := cliConfig.Output.Plain ||
		(!isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()))
	if plain {
		return runWatchPlain(client, taskID, events)
	}
	return runWatchTUI(client, taskID, events)
}

// runWatchPlain prints one line per event. Ctrl+C sends a cancel
// request and keeps draining; the cancellation lands as a failure event
// from the stream.
func runWatchPlain(client *DraftClient, taskID string, events <-chan datatypes.TaskStatusEvent) datatypes.TaskStatusEvent {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	var last datatypes.TaskStatusEvent
	for {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "Interrupt received; asking the service to cancel the task.")
			cancelCtx, cancelTimeout := context.WithTimeout(context.Background(), 10*time.Second)
			if err := client.CancelTask(cancelCtx, taskID); err != nil {
				fmt.Fprintf(os.Stderr, "Cancel request failed: %v\n", err)
			}
			cancelTimeout()
		case ev, ok := <-events:
			if !ok {
				if last.Kind == "" || !last.Kind.Terminal() {
					return datatypes.TaskStatusEvent{
						TaskID:  taskID,
						Kind:    datatypes.EventFailed,
						Message: "track stream closed before the task finished",
					}
				}
				return last
			}
			last = ev
			switch ev.Kind {
			case datatypes.EventProgress:
				if ev.Message != "" {
					fmt.Printf("[%3.0f%%] %s\n", ev.ProgressPercent, ev.Message)
				} else {
					fmt.Printf("[%3.0f%%]\n", ev.ProgressPercent)
				}
			case datatypes.EventCompleted, datatypes.EventFailed:
				return ev
			}
		}
	}
}

// =============================================================================
// OUTPUT FORMATTING
// =============================================================================

// finishWatch renders the terminal event and sets the exit code.
func finishWatch(final datatypes.TaskStatusEvent, jsonOutput bool) {
	cliLogger.Info("tracking finished",
		"task_id", final.TaskID,
		"kind", string(final.Kind),
		"content_len", len(final.Content))

	if jsonOutput {
		outputJSON(final)
		if final.Kind == datatypes.EventFailed {
			os.Exit(1)
		}
		return
	}

	switch final.Kind {
	case datatypes.EventCompleted:
		fmt.Fprintf(os.Stderr, "%s✓ Generation complete.%s\n", colorGreen, colorReset)
		if final.Content != "" {
			fmt.Println(final.Content)
		}
	case datatypes.EventFailed:
		fmt.Fprintf(os.Stderr, "%s✗ Generation failed: %s%s\n", colorRed, final.Message, colorReset)
		os.Exit(1)
	}
}
