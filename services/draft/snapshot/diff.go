// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sourcegraph/go-diff/diff"
)

// DiffSections renders a unified diff between two section maps, one
// file stanza per changed section, section names sorted. Unchanged
// sections are omitted; an empty result means the states are equal.
//
// Description:
//
//	Differences are computed line-wise per section and rendered as a
//	single whole-section hunk, which reads well for the short sections
//	a contract document carries. "from" is the older state (usually a
//	stored snapshot) and "to" the newer one (usually the live text).
//
// Inputs:
//
//	from, to - Section maps to compare; nil maps are treated as empty
//
// Outputs:
//
//	string - Unified diff text, empty when nothing changed
//	error - Non-nil if rendering fails
func DiffSections(from, to map[string]string) (string, error) {
	names := make(map[string]struct{}, len(from)+len(to))
	for name := range from {
		names[name] = struct{}{}
	}
	for name := range to {
		names[name] = struct{}{}
	}
	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	var b strings.Builder
	for _, name := range ordered {
		before, after := from[name], to[name]
		if before == after {
			continue
		}
		stanza, err := sectionDiff(name, before, after)
		if err != nil {
			return "", fmt.Errorf("diff section %q: %w", name, err)
		}
		b.Write(stanza)
	}
	return b.String(), nil
}

// sectionDiff renders one section's change as a file diff stanza.
func sectionDiff(name, before, after string) ([]byte, error) {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lines := dmp.DiffLinesToChars(
		ensureTrailingNewline(before), ensureTrailingNewline(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(beforeChars, afterChars, false), lines)

	var body strings.Builder
	for _, d := range diffs {
		var prefix byte
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = '-'
		case diffmatchpatch.DiffInsert:
			prefix = '+'
		default:
			prefix = ' '
		}
		for _, line := range splitKeepingNewlines(d.Text) {
			body.WriteByte(prefix)
			body.WriteString(line)
		}
	}

	origLines := countLines(before)
	newLines := countLines(after)
	fd := &diff.FileDiff{
		OrigName: "a/" + name,
		NewName:  "b/" + name,
		Hunks: []*diff.Hunk{{
			OrigStartLine: hunkStart(origLines),
			OrigLines:     int32(origLines),
			NewStartLine:  hunkStart(newLines),
			NewLines:      int32(newLines),
			Body:          []byte(body.String()),
		}},
	}
	return diff.PrintFileDiff(fd)
}

func hunkStart(lines int) int32 {
	if lines == 0 {
		return 0
	}
	return 1
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func ensureTrailingNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// splitKeepingNewlines splits text into lines that retain their
// trailing newline, so diff prefixes can be prepended directly.
func splitKeepingNewlines(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			out = append(out, text+"\n")
			break
		}
		out = append(out, text[:i+1])
		text = text[i+1:]
		if text == "" {
			break
		}
	}
	return out
}
