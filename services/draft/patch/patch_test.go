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

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

func intPtr(i int) *int { return &i }

// =============================================================================
// Occurrence Selection Tests
// =============================================================================

func TestApply_SecondOccurrenceOnly(t *testing.T) {
	text := "The date is TBD. Submit by TBD for details."

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:         "TBD",
		OccurrenceIndex: intPtr(1),
		Replacement:     "March 3",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	want := "The date is TBD. Submit by March 3 for details."
	if res.Text != want {
		t.Errorf("expected %q, got %q", want, res.Text)
	}
	if res.Replaced != 1 {
		t.Errorf("expected 1 replacement, got %d", res.Replaced)
	}
}

func TestApply_FirstOccurrence(t *testing.T) {
	text := "The date is TBD. Submit by TBD for details."

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:         "TBD",
		OccurrenceIndex: intPtr(0),
		Replacement:     "March 3",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	want := "The date is March 3. Submit by TBD for details."
	if res.Text != want {
		t.Errorf("expected %q, got %q", want, res.Text)
	}
}

func TestApply_IndexBeyondMatches(t *testing.T) {
	text := "The date is TBD."

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:         "TBD",
		OccurrenceIndex: intPtr(5),
		Replacement:     "March 3",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if res.Text != text {
		t.Errorf("expected text unchanged, got %q", res.Text)
	}
	if res.Replaced != 0 {
		t.Errorf("expected 0 replacements, got %d", res.Replaced)
	}
}

func TestApply_NegativeIndex(t *testing.T) {
	text := "The date is TBD."

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:         "TBD",
		OccurrenceIndex: intPtr(-1),
		Replacement:     "March 3",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if res.Text != text || res.Replaced != 0 {
		t.Errorf("expected no-op for negative index, got %q (%d replaced)",
			res.Text, res.Replaced)
	}
}

func TestApply_OmittedIndexReplacesAll(t *testing.T) {
	text := "TBD here, TBD there, and TBD everywhere."

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:     "TBD",
		Replacement: "final",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if res.Replaced != 3 {
		t.Errorf("expected 3 replacements, got %d", res.Replaced)
	}

	remaining, err := Count(context.Background(), res.Text, "TBD")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected no remaining matches, got %d in %q", remaining, res.Text)
	}
}

// =============================================================================
// Matching Rule Tests
// =============================================================================

func TestApply_CaseInsensitive(t *testing.T) {
	text := "the deadline is tbd."

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:     "TBD",
		Replacement: "June 1",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	want := "the deadline is June 1."
	if res.Text != want {
		t.Errorf("expected %q, got %q", want, res.Text)
	}
}

func TestApply_WordBoundaryBlocksPartialMatch(t *testing.T) {
	text := "See TBDX for the full list."

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:     "TBD",
		Replacement: "March 3",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if res.Replaced != 0 {
		t.Errorf("expected no match inside a larger word, got %d in %q",
			res.Replaced, res.Text)
	}
}

func TestApply_BoundaryAtPunctuation(t *testing.T) {
	text := "Deadline: TBD."

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:     "TBD",
		Replacement: "March 3",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	want := "Deadline: March 3."
	if res.Text != want {
		t.Errorf("expected %q, got %q", want, res.Text)
	}
}

func TestApply_PatternWithRegexMetacharacters(t *testing.T) {
	text := "Fee (estimated) applies. Fee (estimated) waived."

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:         "Fee (estimated)",
		OccurrenceIndex: intPtr(1),
		Replacement:     "Fee (final)",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	want := "Fee (estimated) applies. Fee (final) waived."
	if res.Text != want {
		t.Errorf("expected %q, got %q", want, res.Text)
	}
}

// =============================================================================
// No-op Input Tests
// =============================================================================

func TestApply_EmptyPattern(t *testing.T) {
	text := "Some content."

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:     "",
		Replacement: "anything",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if res.Text != text || res.Replaced != 0 {
		t.Errorf("expected no-op for empty pattern, got %q", res.Text)
	}
}

func TestApply_EmptyText(t *testing.T) {
	res, err := Apply(context.Background(), "", datatypes.PatchDescriptor{
		Pattern:     "TBD",
		Replacement: "March 3",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if res.Text != "" || res.Replaced != 0 {
		t.Errorf("expected no-op for empty text, got %q", res.Text)
	}
}

func TestApply_PatternAbsent(t *testing.T) {
	text := "Everything is already final."

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:     "TBD",
		Replacement: "March 3",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if res.Text != text || res.Replaced != 0 {
		t.Errorf("expected no-op for absent pattern, got %q", res.Text)
	}
}

// =============================================================================
// Rich Content Tests
// =============================================================================

func TestApply_InsideInlineMarkup(t *testing.T) {
	text := "<p>The fee is <b>tbd</b> now.</p>"

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:     "TBD",
		Replacement: "$500",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	want := "<p>The fee is <b>$500</b> now.</p>"
	if res.Text != want {
		t.Errorf("expected %q, got %q", want, res.Text)
	}
	if res.Replaced != 1 {
		t.Errorf("expected 1 replacement, got %d", res.Replaced)
	}
}

func TestApply_MatchSpanningMarkup(t *testing.T) {
	// The phrase crosses a tag boundary. The replacement lands in the
	// first text run; the remainder is removed and the markup survives.
	text := "Submit by <b>TBD</b> today."

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:     "by TBD",
		Replacement: "by March 3",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	want := "Submit by March 3<b></b> today."
	if res.Text != want {
		t.Errorf("expected %q, got %q", want, res.Text)
	}
}

func TestApply_AttributeValuesNotMatched(t *testing.T) {
	text := `<a href="TBD">see TBD</a>`

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:     "TBD",
		Replacement: "March 3",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	want := `<a href="TBD">see March 3</a>`
	if res.Text != want {
		t.Errorf("expected attribute untouched, got %q", res.Text)
	}
	if res.Replaced != 1 {
		t.Errorf("expected 1 replacement, got %d", res.Replaced)
	}
}

func TestApply_ReplacementEscapedInRichContent(t *testing.T) {
	text := "<p>Vendor: TBD</p>"

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:     "TBD",
		Replacement: "Smith & Sons",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	want := "<p>Vendor: Smith &amp; Sons</p>"
	if res.Text != want {
		t.Errorf("expected escaped replacement, got %q", res.Text)
	}
}

func TestApply_ReplacementNotEscapedInPlainText(t *testing.T) {
	text := "Vendor: TBD"

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:     "TBD",
		Replacement: "Smith & Sons",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	want := "Vendor: Smith & Sons"
	if res.Text != want {
		t.Errorf("expected literal replacement, got %q", res.Text)
	}
}

func TestApply_OccurrenceOrderSpansMarkup(t *testing.T) {
	// Occurrences are numbered in document order across markup, so
	// index 1 is the one inside the tags.
	text := "TBD first, <i>TBD second</i>, TBD third."

	res, err := Apply(context.Background(), text, datatypes.PatchDescriptor{
		Pattern:         "TBD",
		OccurrenceIndex: intPtr(1),
		Replacement:     "DONE",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	want := "TBD first, <i>DONE second</i>, TBD third."
	if res.Text != want {
		t.Errorf("expected %q, got %q", want, res.Text)
	}
}

// =============================================================================
// Count Tests
// =============================================================================

func TestCount_PlainText(t *testing.T) {
	n, err := Count(context.Background(), "TBD and TBD and tbd.", "TBD")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 matches, got %d", n)
	}
}

func TestCount_EmptyInputs(t *testing.T) {
	if n, _ := Count(context.Background(), "", "TBD"); n != 0 {
		t.Errorf("expected 0 for empty text, got %d", n)
	}
	if n, _ := Count(context.Background(), "text", ""); n != 0 {
		t.Errorf("expected 0 for empty pattern, got %d", n)
	}
}

// =============================================================================
// Excerpt Tests
// =============================================================================

func TestExcerpt_WindowAroundOccurrence(t *testing.T) {
	text := "Alpha bravo charlie TBD delta echo foxtrot."

	window, found, err := Excerpt(context.Background(), text, "TBD", nil, 10)
	if err != nil {
		t.Fatalf("excerpt failed: %v", err)
	}
	if !found {
		t.Fatal("expected pattern to be found")
	}
	want := "o charlie TBD delta ech"
	if window != want {
		t.Errorf("expected %q, got %q", want, window)
	}
}

func TestExcerpt_ClampsToTextBounds(t *testing.T) {
	text := "TBD at the very start."

	window, found, err := Excerpt(context.Background(), text, "TBD", nil, 500)
	if err != nil {
		t.Fatalf("excerpt failed: %v", err)
	}
	if !found {
		t.Fatal("expected pattern to be found")
	}
	if window != text {
		t.Errorf("expected whole text %q, got %q", text, window)
	}
}

func TestExcerpt_SelectsRequestedOccurrence(t *testing.T) {
	text := "First TBD here. Second TBD there."

	window, found, err := Excerpt(context.Background(), text, "TBD", intPtr(1), 6)
	if err != nil {
		t.Fatalf("excerpt failed: %v", err)
	}
	if !found {
		t.Fatal("expected second occurrence to be found")
	}
	want := "econd TBD there"
	if window != want {
		t.Errorf("expected %q, got %q", want, window)
	}
}

func TestExcerpt_IndexBeyondMatches(t *testing.T) {
	_, found, err := Excerpt(context.Background(), "Only one TBD.", "TBD", intPtr(3), 20)
	if err != nil {
		t.Fatalf("excerpt failed: %v", err)
	}
	if found {
		t.Error("expected not found for out-of-range occurrence index")
	}
}

func TestExcerpt_UsesPlainProjection(t *testing.T) {
	text := "<p>Payment is <b>TBD</b> pending review.</p>"

	window, found, err := Excerpt(context.Background(), text, "TBD", nil, 12)
	if err != nil {
		t.Fatalf("excerpt failed: %v", err)
	}
	if !found {
		t.Fatal("expected pattern to be found")
	}
	want := "Payment is TBD pending rev"
	if window != want {
		t.Errorf("expected %q, got %q", want, window)
	}
}

func TestExcerpt_RuneBoundaries(t *testing.T) {
	text := "Prix fixé à TBD € par mois."

	window, found, err := Excerpt(context.Background(), text, "TBD", nil, 3)
	if err != nil {
		t.Fatalf("excerpt failed: %v", err)
	}
	if !found {
		t.Fatal("expected pattern to be found")
	}
	for _, r := range window {
		if r == '�' {
			t.Fatalf("window %q split a multi-byte rune", window)
		}
	}
}

func TestExcerpt_EmptyInputs(t *testing.T) {
	if _, found, _ := Excerpt(context.Background(), "", "TBD", nil, 10); found {
		t.Error("expected not found for empty text")
	}
	if _, found, _ := Excerpt(context.Background(), "text", "", nil, 10); found {
		t.Error("expected not found for empty pattern")
	}
}

// =============================================================================
// Plain Tests
// =============================================================================

func TestPlain_StripsMarkup(t *testing.T) {
	got, err := Plain(context.Background(), "<p>Payment is <b>due</b> on receipt.</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Payment is due on receipt." {
		t.Errorf("expected stripped prose, got %q", got)
	}
}

func TestPlain_PassesThroughPlainText(t *testing.T) {
	text := "No markup at all, just a sentence."
	got, err := Plain(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != text {
		t.Errorf("expected identity projection, got %q", got)
	}
}

func TestPlain_Empty(t *testing.T) {
	got, err := Plain(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty projection, got %q", got)
	}
}
