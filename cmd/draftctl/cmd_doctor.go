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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

// =============================================================================
// VERSIONS
// =============================================================================

const (
	// cliVersion is the draftctl release version.
	cliVersion = "v0.3.0"

	// minServerVersion is the oldest draft service release this client
	// speaks to. The snapshot diff "to" parameter appeared in v0.2.0.
	minServerVersion = "v0.2.0"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	doctorJSONOutput bool // Output the report as JSON
)

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSONOutput, "json", false,
		"Output as JSON for scripting")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runDoctorCommand checks that the configured service is reachable,
// accepts the API key, and runs a compatible version.
//
// # Description
//
// Three probes run in order: the health endpoint (connectivity and
// version), an authenticated route with an impossible document id (a
// 404 proves the key was accepted), and a semantic version comparison
// against this client.
//
// # Limitations
//
//   - Exits with code 1 when any probe fails
//
// # Assumptions
//
//   - The health endpoint reports the service's release version
func runDoctorCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := NewDraftClient(cliConfig)
	report := diagnose(ctx, client)

	if doctorJSONOutput {
		outputJSON(report)
	} else {
		outputDoctorReport(report)
	}

	if !report.Reachable || !report.AuthOK || !report.Compatible {
		os.Exit(1)
	}
}

// doctorReport is the outcome of the connectivity, auth, and
// compatibility probes.
type doctorReport struct {
	ServerURL     string   `json:"server_url"`
	Reachable     bool     `json:"reachable"`
	ReachableErr  string   `json:"reachable_error,omitempty"`
	LatencyMillis int64    `json:"latency_ms"`
	ServiceName   string   `json:"service_name,omitempty"`
	ServerVersion string   `json:"server_version,omitempty"`
	ClientVersion string   `json:"client_version"`
	AuthOK        bool     `json:"auth_ok"`
	AuthNote      string   `json:"auth_note,omitempty"`
	Compatible    bool     `json:"compatible"`
	Notes         []string `json:"notes,omitempty"`
}

// diagnose runs the three probes and assembles the report. When the
// service is unreachable the remaining probes are skipped.
func diagnose(ctx context.Context, client *DraftClient) *doctorReport {
	report := &doctorReport{
		ServerURL:     client.BaseURL(),
		ClientVersion: cliVersion,
	}

	start := time.Now()
	health, err := client.Health(ctx)
	report.LatencyMillis = time.Since(start).Milliseconds()
	if err != nil {
		report.ReachableErr = err.Error()
		return report
	}
	report.Reachable = true
	report.ServiceName = health.Service
	report.ServerVersion = health.Version

	report.AuthOK, report.AuthNote = checkAuth(ctx, client)
	report.Compatible, report.Notes = evaluateCompatibility(cliVersion, health.Version)
	return report
}

// checkAuth probes an authenticated route. The probe document id cannot
// exist, so a 404 proves the key passed the auth gate.
func checkAuth(ctx context.Context, client *DraftClient) (bool, string) {
	err := client.ProbeAuth(ctx)
	if err == nil {
		return true, ""
	}
	var statusErr *APIStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusNotFound:
			return true, ""
		case http.StatusUnauthorized:
			return false, "the service rejected the configured API key"
		}
		return false, fmt.Sprintf("auth probe returned HTTP %d", statusErr.StatusCode)
	}
	return false, fmt.Sprintf("auth probe failed: %v", err)
}

// evaluateCompatibility decides whether this client should talk to a
// service reporting the given version.
//
// Development builds report "dev"; those pass with a note, since local
// stacks run unreleased builds all the time. Release versions must
// share the client's major version and be at least minServerVersion.
func evaluateCompatibility(clientVersion, serverVersion string) (bool, []string) {
	var notes []string

	normalized := normalizeVersion(serverVersion)
	if normalized == "" {
		notes = append(notes,
			fmt.Sprintf("service reports unversioned build %q; skipping the version check", serverVersion))
		return true, notes
	}

	if semver.Major(normalized) != semver.Major(normalizeVersion(clientVersion)) {
		notes = append(notes,
			fmt.Sprintf("major version mismatch: client %s, service %s", clientVersion, serverVersion))
		return false, notes
	}
	if semver.Compare(normalized, minServerVersion) < 0 {
		notes = append(notes,
			fmt.Sprintf("service %s is older than the oldest supported release %s", serverVersion, minServerVersion))
		return false, notes
	}
	return true, notes
}

// normalizeVersion maps a reported version to canonical "v"-prefixed
// semver, or "" when it is not a release version.
func normalizeVersion(version string) string {
	version = strings.TrimSpace(version)
	if version == "" || version == "dev" {
		return ""
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if !semver.IsValid(version) {
		return ""
	}
	return version
}

// =============================================================================
// OUTPUT FORMATTING
// =============================================================================

// outputJSON writes v to stdout as indented JSON. Shared by every
// command's --json mode.
func outputJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
}

// outputDoctorReport renders the report as a boxed summary.
func outputDoctorReport(report *doctorReport) {
	width := 70

	printBoxTop(width)
	printBoxCenter("DRAFTCTL DOCTOR", width)
	printBoxCenter(report.ServerURL, width)
	printBoxSeparator(width)

	if !report.Reachable {
		printBoxLine(fmt.Sprintf("Connectivity:  %s✗ unreachable%s", colorRed, colorReset), width)
		for _, line := range wrapText(report.ReachableErr, width-10) {
			printBoxLine("    "+line, width)
		}
		printBoxBottom(width)
		return
	}
	printBoxLine(fmt.Sprintf("Connectivity:  %s✓ reachable%s (%d ms)",
		colorGreen, colorReset, report.LatencyMillis), width)
	printBoxLine(fmt.Sprintf("Service:       %s %s", report.ServiceName, report.ServerVersion), width)

	if report.AuthOK {
		printBoxLine(fmt.Sprintf("Auth:          %s✓ API key accepted%s", colorGreen, colorReset), width)
	} else {
		printBoxLine(fmt.Sprintf("Auth:          %s✗ rejected%s", colorRed, colorReset), width)
		for _, line := range wrapText(report.AuthNote, width-10) {
			printBoxLine("    "+line, width)
		}
	}

	if report.Compatible {
		printBoxLine(fmt.Sprintf("Compatibility: %s✓ client %s, service %s%s",
			colorGreen, report.ClientVersion, report.ServerVersion, colorReset), width)
	} else {
		printBoxLine(fmt.Sprintf("Compatibility: %s✗ incompatible%s", colorRed, colorReset), width)
	}
	for _, note := range report.Notes {
		for _, line := range wrapText(note, width-10) {
			printBoxLine(fmt.Sprintf("    %s%s%s", colorYellow, line, colorReset), width)
		}
	}

	printBoxBottom(width)
}

// =============================================================================
// BOX DRAWING HELPERS
// =============================================================================

const (
	boxTopLeft     = "╔"
	boxTopRight    = "╗"
	boxBottomLeft  = "╚"
	boxBottomRight = "╝"
	boxHorizontal  = "═"
	boxVertical    = "║"
	boxLeftT       = "╠"
	boxRightT      = "╣"

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func printBoxTop(width int) {
	fmt.Print(boxTopLeft)
	for i := 0; i < width-2; i++ {
		fmt.Print(boxHorizontal)
	}
	fmt.Println(boxTopRight)
}

func printBoxBottom(width int) {
	fmt.Print(boxBottomLeft)
	for i := 0; i < width-2; i++ {
		fmt.Print(boxHorizontal)
	}
	fmt.Println(boxBottomRight)
}

func printBoxSeparator(width int) {
	fmt.Print(boxLeftT)
	for i := 0; i < width-2; i++ {
		fmt.Print(boxHorizontal)
	}
	fmt.Println(boxRightT)
}

func printBoxLine(content string, width int) {
	// Pad against the visible length so ANSI codes don't skew the box.
	visibleLen := visibleLength(content)
	padding := width - 4 - visibleLen
	if padding < 0 {
		padding = 0
	}
	fmt.Printf("%s %s%s %s\n", boxVertical, content, strings.Repeat(" ", padding), boxVertical)
}

func printBoxCenter(content string, width int) {
	visibleLen := visibleLength(content)
	totalPadding := width - 4 - visibleLen
	leftPad := totalPadding / 2
	rightPad := totalPadding - leftPad

	fmt.Printf("%s %s%s%s %s\n", boxVertical,
		strings.Repeat(" ", leftPad), content, strings.Repeat(" ", rightPad), boxVertical)
}

// visibleLength returns the visible length of a string, excluding ANSI escape codes.
func visibleLength(s string) int {
	inEscape := false
	visible := 0
	for _, r := range s {
		if r == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if r == 'm' {
				inEscape = false
			}
			continue
		}
		visible++
	}
	return visible
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	var lines []string
	words := strings.Fields(text)
	if len(words) == 0 {
		return lines
	}

	currentLine := words[0]
	for _, word := range words[1:] {
		if len(currentLine)+1+len(word) <= width {
			currentLine += " " + word
		} else {
			lines = append(lines, currentLine)
			currentLine = word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}
	return lines
}
