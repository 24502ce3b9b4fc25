// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// SECTION_CHUNK_SIZE caps how much text lands in one section during
	// import. Bodies beyond this split into continuation sections.
	SECTION_CHUNK_SIZE = 1000

	// maxHeadingLen is the longest first line still treated as a
	// section heading.
	maxHeadingLen = 80

	// preambleSection names content that appears before any heading.
	preambleSection = "Preamble"
)

// sectionSeparators prefers paragraph breaks, then line breaks. Sections
// must not share text, so the splitter always runs with zero overlap.
var sectionSeparators = []string{"\n\n", "\n", " ", ""}

func getSectionSplitter() textsplitter.TextSplitter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(SECTION_CHUNK_SIZE),
		textsplitter.WithChunkOverlap(0),
		textsplitter.WithSeparators(sectionSeparators),
	)
}

type rawSection struct {
	name       string
	paragraphs []string
}

// SplitIntoSections breaks imported raw text into named sections.
//
// # Description
//
// Paragraph blocks are grouped under the nearest preceding heading
// line; content before the first heading lands in a "Preamble" section.
// Bodies that exceed SECTION_CHUNK_SIZE are sub-split into continuation
// sections. Returns the section map and the section names in document
// order.
func SplitIntoSections(rawText string) (map[string]string, []string, error) {
	grouped := groupByHeading(rawText)

	sections := make(map[string]string, len(grouped))
	order := make([]string, 0, len(grouped))
	used := make(map[string]int, len(grouped))
	for _, raw := range grouped {
		name := raw.name
		used[name]++
		if n := used[name]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}

		body := strings.Join(raw.paragraphs, "\n\n")
		if len(body) <= SECTION_CHUNK_SIZE {
			sections[name] = body
			order = append(order, name)
			continue
		}

		parts, err := getSectionSplitter().SplitText(body)
		if err != nil {
			return nil, nil, fmt.Errorf("split section %q: %w", name, err)
		}
		for i, part := range parts {
			partName := name
			if i > 0 {
				partName = fmt.Sprintf("%s (cont. %d)", name, i+1)
			}
			sections[partName] = part
			order = append(order, partName)
		}
	}
	return sections, order, nil
}

// groupByHeading walks the text paragraph by paragraph, starting a new
// section whenever a block opens with a heading-shaped line.
func groupByHeading(rawText string) []*rawSection {
	text := strings.ReplaceAll(rawText, "\r\n", "\n")

	var out []*rawSection
	var cur *rawSection
	appendTo := func(sec *rawSection) *rawSection {
		out = append(out, sec)
		return sec
	}

	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		line, rest, _ := strings.Cut(block, "\n")
		if name, ok := headingName(line); ok {
			cur = appendTo(&rawSection{name: name})
			if rest = strings.TrimSpace(rest); rest != "" {
				cur.paragraphs = append(cur.paragraphs, rest)
			}
			continue
		}
		if cur == nil {
			cur = appendTo(&rawSection{name: preambleSection})
		}
		cur.paragraphs = append(cur.paragraphs, block)
	}
	return out
}

// headingName reports whether a line looks like a section heading and
// returns the cleaned heading text. Short lines without sentence
// punctuation qualify; markdown hash markers and trailing colons are
// stripped.
func headingName(line string) (string, bool) {
	name := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "# "))
	name = strings.TrimSuffix(name, ":")
	if name == "" || len(name) > maxHeadingLen {
		return "", false
	}
	last, _ := utf8.DecodeLastRuneInString(name)
	switch last {
	case '.', ',', ';', '!', '?':
		return "", false
	}
	return name, true
}
