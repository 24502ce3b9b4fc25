// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patch applies occurrence-indexed text replacements to rich
// document content.
//
// Matching is case-insensitive and word-boundary aware, and runs over
// the plain-text projection of the content so phrases are found even
// when inline markup or entities interrupt them in the source. The
// replacement is spliced back into the source without disturbing the
// surrounding structure.
package patch

import (
	"context"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

// Result reports the outcome of one Apply call. Replaced is zero when
// the pattern or the requested occurrence was absent; that is a normal
// no-op outcome, not an error.
type Result struct {
	Text     string
	Replaced int
}

// Apply performs one occurrence-indexed replacement.
//
// Description:
//
//	Finds the descriptor's pattern in the plain-text projection of text,
//	case-insensitively and bounded by word edges where the pattern edges
//	are word characters. With OccurrenceIndex set, only the 0-based
//	occurrence at that index (in document order) is replaced; an index
//	beyond the number of matches leaves the text unchanged. With
//	OccurrenceIndex nil, every occurrence is replaced. An empty pattern
//	or empty text is a no-op.
//
//	Pure function: no side effects, no shared state.
//
// Inputs:
//
//	ctx - Context for parse cancellation
//	text - Current document content, rich or plain
//	p - The edit to perform
//
// Outputs:
//
//	Result - New text and the number of occurrences replaced
//	error - Non-nil only if parsing was cancelled
//
// Thread Safety: Safe for concurrent use. Parser created per-call.
func Apply(ctx context.Context, text string, p datatypes.PatchDescriptor) (Result, error) {
	if text == "" || p.Pattern == "" {
		return Result{Text: text}, nil
	}

	re, err := compilePattern(p.Pattern)
	if err != nil {
		return Result{Text: text}, err
	}

	proj, err := project(ctx, text)
	if err != nil {
		return Result{Text: text}, err
	}

	matches := re.FindAllStringIndex(proj.plain, -1)
	if len(matches) == 0 {
		return Result{Text: text}, nil
	}
	if p.OccurrenceIndex != nil {
		idx := *p.OccurrenceIndex
		if idx < 0 || idx >= len(matches) {
			return Result{Text: text}, nil
		}
		matches = matches[idx : idx+1]
	}

	replacement := p.Replacement
	if proj.rich {
		replacement = html.EscapeString(replacement)
	}

	// Matches arrive in document order and projection offsets increase
	// monotonically with source offsets, so the edit list is already
	// ordered and disjoint.
	var edits []edit
	for _, m := range matches {
		spans := proj.spansFor(m[0], m[1])
		if len(spans) == 0 {
			continue
		}
		edits = append(edits, edit{spans[0].start, spans[0].end, replacement})
		for _, sp := range spans[1:] {
			edits = append(edits, edit{sp.start, sp.end, ""})
		}
	}
	if len(edits) == 0 {
		return Result{Text: text}, nil
	}

	var b strings.Builder
	b.Grow(len(text) + len(replacement)*len(matches))
	last := 0
	for _, e := range edits {
		b.WriteString(text[last:e.start])
		b.WriteString(e.text)
		last = e.end
	}
	b.WriteString(text[last:])

	return Result{Text: b.String(), Replaced: len(matches)}, nil
}

// Count reports how many occurrences of pattern are present in text.
//
// Description:
//
//	Uses the same projection and matching rules as Apply, so a count of
//	N here means indices 0 through N-1 are valid occurrence targets.
//
// Inputs:
//
//	ctx - Context for parse cancellation
//	text - Current document content
//	pattern - Literal phrase to count
//
// Outputs:
//
//	int - Number of matches; zero for empty inputs
//	error - Non-nil only if parsing was cancelled
func Count(ctx context.Context, text, pattern string) (int, error) {
	if text == "" || pattern == "" {
		return 0, nil
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return 0, err
	}
	proj, err := project(ctx, text)
	if err != nil {
		return 0, err
	}
	return len(re.FindAllStringIndex(proj.plain, -1)), nil
}

// Excerpt returns the plain-text neighborhood of one occurrence.
//
// Description:
//
//	Locates the pattern with the same projection and matching rules as
//	Apply, then returns up to radius bytes of plain text on either side
//	of the selected occurrence. With occurrenceIndex nil the first
//	occurrence anchors the window. The window is clamped to rune
//	boundaries so multi-byte characters are never split.
//
//	The excerpt is drawn from the plain-text projection, not the raw
//	source, so callers showing it to a person or a model see readable
//	prose rather than markup.
//
// Outputs:
//
//	string - The surrounding plain text, including the match itself
//	bool - False when the pattern or the requested occurrence is absent
//	error - Non-nil only if parsing was cancelled
func Excerpt(ctx context.Context, text, pattern string, occurrenceIndex *int, radius int) (string, bool, error) {
	if text == "" || pattern == "" {
		return "", false, nil
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return "", false, err
	}
	proj, err := project(ctx, text)
	if err != nil {
		return "", false, err
	}

	matches := re.FindAllStringIndex(proj.plain, -1)
	if len(matches) == 0 {
		return "", false, nil
	}
	idx := 0
	if occurrenceIndex != nil {
		idx = *occurrenceIndex
		if idx < 0 || idx >= len(matches) {
			return "", false, nil
		}
	}
	m := matches[idx]

	start := m[0] - radius
	if start < 0 {
		start = 0
	}
	end := m[1] + radius
	if end > len(proj.plain) {
		end = len(proj.plain)
	}
	for start > 0 && !utf8.RuneStart(proj.plain[start]) {
		start--
	}
	for end < len(proj.plain) && !utf8.RuneStart(proj.plain[end]) {
		end++
	}
	return proj.plain[start:end], true, nil
}

// Plain returns the plain-text projection of rich content.
//
// Description:
//
//	Exposes the projection Apply matches against. Plain text comes back
//	unchanged; rich content loses its markup and keeps decoded entity
//	text. Callers that index or display section prose use this instead
//	of re-deriving the stripping rules.
//
// Outputs:
//
//	string - The plain-text projection
//	error - Non-nil only if parsing was cancelled
func Plain(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	proj, err := project(ctx, text)
	if err != nil {
		return "", err
	}
	return proj.plain, nil
}

// edit is one pending splice into the source text.
type edit struct {
	start int
	end   int
	text  string
}

// compilePattern builds the case-insensitive matcher for a literal
// pattern. Word boundaries are asserted only on edges that are word
// characters, so phrases ending in punctuation still match.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)")
	if isWordByte(pattern[0]) {
		b.WriteString(`\b`)
	}
	b.WriteString(regexp.QuoteMeta(pattern))
	if isWordByte(pattern[len(pattern)-1]) {
		b.WriteString(`\b`)
	}
	return regexp.Compile(b.String())
}

func isWordByte(c byte) bool {
	return c == '_' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}
