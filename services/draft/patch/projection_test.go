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
	"testing"
)

// =============================================================================
// Projection Tests
// =============================================================================

func TestProject_PlainTextProjectsToItself(t *testing.T) {
	text := "  The date is TBD. Submit by TBD for details.  "

	p, err := project(context.Background(), text)
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}

	if p.plain != text {
		t.Errorf("expected projection to equal input, got %q", p.plain)
	}
	if p.rich {
		t.Error("expected plain input to not be flagged rich")
	}
}

func TestProject_StripsTags(t *testing.T) {
	p, err := project(context.Background(), "<p>The fee is <b>tbd</b> now.</p>")
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}

	want := "The fee is tbd now."
	if p.plain != want {
		t.Errorf("expected %q, got %q", want, p.plain)
	}
	if !p.rich {
		t.Error("expected markup input to be flagged rich")
	}
}

func TestProject_DropsComments(t *testing.T) {
	p, err := project(context.Background(), "before <!-- note --> after")
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}

	want := "before  after"
	if p.plain != want {
		t.Errorf("expected %q, got %q", want, p.plain)
	}
}

func TestProject_DropsScriptBodies(t *testing.T) {
	p, err := project(context.Background(), "<script>var TBD = 1;</script>visible")
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}

	want := "visible"
	if p.plain != want {
		t.Errorf("expected script body excluded, got %q", p.plain)
	}
}

func TestProject_DropsStyleBodies(t *testing.T) {
	p, err := project(context.Background(), "<style>.tbd { color: red }</style>visible")
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}

	want := "visible"
	if p.plain != want {
		t.Errorf("expected style body excluded, got %q", p.plain)
	}
}

// =============================================================================
// Span Mapping Tests
// =============================================================================

func TestSpansFor_SingleSegment(t *testing.T) {
	text := "plain text only"

	p, err := project(context.Background(), text)
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}

	spans := p.spansFor(6, 10)
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].start != 6 || spans[0].end != 10 {
		t.Errorf("expected span [6,10), got [%d,%d)", spans[0].start, spans[0].end)
	}
	if text[spans[0].start:spans[0].end] != "text" {
		t.Errorf("expected span to cover 'text', got %q",
			text[spans[0].start:spans[0].end])
	}
}

func TestSpansFor_CrossesMarkup(t *testing.T) {
	text := "Submit by <b>TBD</b> today."

	p, err := project(context.Background(), text)
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}

	// "by TBD" in the projection "Submit by TBD today."
	spans := p.spansFor(7, 13)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if text[spans[0].start:spans[0].end] != "by " {
		t.Errorf("expected first span 'by ', got %q",
			text[spans[0].start:spans[0].end])
	}
	if text[spans[1].start:spans[1].end] != "TBD" {
		t.Errorf("expected second span 'TBD', got %q",
			text[spans[1].start:spans[1].end])
	}
}

func TestSpansFor_OutsideSegments(t *testing.T) {
	p, err := project(context.Background(), "<p>abc</p>")
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}

	// Projection is "abc"; a range past its end touches nothing.
	if spans := p.spansFor(10, 12); len(spans) != 0 {
		t.Errorf("expected no spans, got %d", len(spans))
	}
}
