// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patch

import (
	"context"
	"html"

	sitter "github.com/smacker/go-tree-sitter"
	treehtml "github.com/smacker/go-tree-sitter/html"
)

// segment is one run of visible text in the source content. plainStart
// is the segment's offset in the projection string; srcStart and srcEnd
// bound its bytes in the source. For entity segments atomic is true: an
// entity's source bytes cannot be split, so any match that cuts into one
// consumes the whole entity.
type segment struct {
	text       string
	plainStart int
	srcStart   int
	srcEnd     int
	atomic     bool
}

// projection is the plain-text view of rich content together with the
// mapping needed to carry edits back to the source.
//
// Thread Safety: Immutable after construction.
type projection struct {
	plain    string
	segments []segment
	rich     bool
}

// srcSpan is a byte range in the source content.
type srcSpan struct {
	start int
	end   int
}

// Markup node types claimed out of the projection. Grammar versions
// without the entity or erroneous_end_tag tokens simply never produce
// them.
const (
	markupNodeStartTag     = "start_tag"
	markupNodeEndTag       = "end_tag"
	markupNodeSelfClosing  = "self_closing_tag"
	markupNodeErroneousEnd = "erroneous_end_tag"
	markupNodeComment      = "comment"
	markupNodeDoctype      = "doctype"
	markupNodeScript       = "script_element"
	markupNodeStyle        = "style_element"
	markupNodeEntity       = "entity"
)

// markupRange is a source range claimed by markup. Entity ranges are
// decoded into the projection; all other claimed ranges are dropped.
type markupRange struct {
	start  int
	end    int
	entity bool
}

// project builds the plain-text projection of rich content.
//
// Description:
//
//	Parses the content as an HTML fragment and subtracts the ranges
//	claimed by markup: tags, comments, doctypes, and whole script/style
//	elements are dropped; entities are decoded in place. Every byte the
//	parse does not claim stays in the projection verbatim, so plain
//	input with no markup projects to itself, byte for byte.
//
// Inputs:
//
//	ctx - Context for parse cancellation
//	content - Rich or plain source content
//
// Outputs:
//
//	*projection - The projection with its source mapping
//	error - Non-nil only if parsing was cancelled
//
// Thread Safety: Safe for concurrent use. Parser created per-call.
func project(ctx context.Context, content string) (*projection, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(treehtml.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, []byte(content))
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var claimed []markupRange
	collectMarkup(tree.RootNode(), &claimed)

	p := &projection{rich: len(claimed) > 0}
	pos := 0
	for _, r := range claimed {
		// Error recovery can yield overlapping claims; keep the first.
		if r.start < pos {
			continue
		}
		if r.start > pos {
			appendSegment(p, content[pos:r.start], pos, r.start, false)
		}
		if r.entity {
			appendSegment(p, html.UnescapeString(content[r.start:r.end]),
				r.start, r.end, true)
		}
		pos = r.end
	}
	if pos < len(content) {
		appendSegment(p, content[pos:], pos, len(content), false)
	}
	return p, nil
}

// collectMarkup walks the parse tree appending claimed ranges in
// document order.
func collectMarkup(n *sitter.Node, out *[]markupRange) {
	if n == nil {
		return
	}
	switch n.Type() {
	case markupNodeStartTag, markupNodeEndTag, markupNodeSelfClosing,
		markupNodeErroneousEnd, markupNodeComment, markupNodeDoctype,
		markupNodeScript, markupNodeStyle:
		*out = append(*out, markupRange{int(n.StartByte()), int(n.EndByte()), false})
		return
	case markupNodeEntity:
		*out = append(*out, markupRange{int(n.StartByte()), int(n.EndByte()), true})
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		collectMarkup(n.Child(i), out)
	}
}

func appendSegment(p *projection, text string, srcStart, srcEnd int, atomic bool) {
	if text == "" {
		return
	}
	p.segments = append(p.segments, segment{
		text:       text,
		plainStart: len(p.plain),
		srcStart:   srcStart,
		srcEnd:     srcEnd,
		atomic:     atomic,
	})
	p.plain += text
}

// spansFor maps a projection byte range back to the source byte ranges
// it covers, in document order.
//
// Description:
//
//	A range confined to one text segment maps to exactly one source
//	span. A range crossing segments maps to one span per touched
//	segment, with the markup between them excluded. Partial overlap
//	with an atomic (entity) segment widens to the entity's full source
//	range.
//
// Inputs:
//
//	start, end - Byte offsets into the projection string
//
// Outputs:
//
//	[]srcSpan - Ordered, disjoint source ranges; empty if the range
//	touches no segment
func (p *projection) spansFor(start, end int) []srcSpan {
	var spans []srcSpan
	for _, seg := range p.segments {
		segEnd := seg.plainStart + len(seg.text)
		if segEnd <= start || seg.plainStart >= end {
			continue
		}
		if seg.atomic {
			spans = append(spans, srcSpan{seg.srcStart, seg.srcEnd})
			continue
		}
		from := seg.srcStart
		if start > seg.plainStart {
			from += start - seg.plainStart
		}
		to := seg.srcEnd
		if end < segEnd {
			to -= segEnd - end
		}
		spans = append(spans, srcSpan{from, to})
	}
	return spans
}
