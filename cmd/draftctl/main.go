// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command draftctl is the terminal client for the draft service.
//
// It starts section generation and watches progress live over the
// service's push channel, runs ordered bulk-fix batches with a
// confirmation step, inspects and restores snapshots, and checks that
// client and service versions are compatible.
//
// Configuration resolves in order: built-in defaults, then
// ~/.aleutiandraft/config.yaml (or --config), then DRAFTCTL_*
// environment variables, then flags.
package main

import (
	"fmt"
	"os"

	"github.com/AleutianAI/AleutianDraft/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	cliConfig Config
	cliLogger *logging.Logger
)

func main() {
	err := rootCmd.Execute()
	if cliLogger != nil {
		_ = cliLogger.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		config, err := loadCLIConfig(flagConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cliConfig = config
		applyOverrides()

		cliLogger = logging.New(logging.Config{
			Level:   logging.LevelFromString(cliConfig.Logging.Level),
			LogDir:  cliConfig.Logging.Dir,
			Service: "draftctl",
			// Stderr stays quiet unless -v so prompts and the live
			// display are not interleaved with log lines.
			Quiet: !flagVerbose,
		})
	}
}

// applyOverrides layers environment variables and then flags over the
// file-loaded config.
func applyOverrides() {
	if v := os.Getenv("DRAFTCTL_SERVER_URL"); v != "" {
		cliConfig.Server.URL = v
	}
	if v := os.Getenv("DRAFTCTL_API_KEY"); v != "" {
		cliConfig.Server.APIKey = v
	}
	if v := os.Getenv("DRAFTCTL_AUTHOR"); v != "" {
		cliConfig.Author = v
	}

	if flagServerURL != "" {
		cliConfig.Server.URL = flagServerURL
	}
	if flagAPIKey != "" {
		cliConfig.Server.APIKey = flagAPIKey
	}
	if flagPlain {
		cliConfig.Output.Plain = true
	}
}
