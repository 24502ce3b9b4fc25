// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"errors"
	"testing"
)

// =============================================================================
// PatchDescriptor Validation Tests
// =============================================================================

func TestPatchDescriptor_Validate_Success(t *testing.T) {
	idx := 1
	p := &PatchDescriptor{
		Pattern:         "TBD",
		OccurrenceIndex: &idx,
		Replacement:     "March 3",
	}

	if err := p.Validate(); err != nil {
		t.Errorf("expected valid descriptor, got error: %v", err)
	}
}

func TestPatchDescriptor_Validate_MissingPattern(t *testing.T) {
	p := &PatchDescriptor{Replacement: "March 3"}

	if err := p.Validate(); err == nil {
		t.Error("expected error for missing pattern, got nil")
	}
}

func TestPatchDescriptor_Validate_NegativeOccurrenceIndex(t *testing.T) {
	idx := -1
	p := &PatchDescriptor{
		Pattern:         "TBD",
		OccurrenceIndex: &idx,
		Replacement:     "March 3",
	}

	if err := p.Validate(); err == nil {
		t.Error("expected error for negative occurrence_index, got nil")
	}
}

func TestPatchDescriptor_Validate_OmittedOccurrenceIndex(t *testing.T) {
	// nil index means replace all occurrences.
	p := &PatchDescriptor{Pattern: "TBD", Replacement: "March 3"}

	if err := p.Validate(); err != nil {
		t.Errorf("expected valid descriptor without index, got error: %v", err)
	}
}

func TestPatchDescriptor_Validate_EmptyReplacementAllowed(t *testing.T) {
	// Replacing with nothing deletes the matched phrase.
	p := &PatchDescriptor{Pattern: "DRAFT ONLY - "}

	if err := p.Validate(); err != nil {
		t.Errorf("expected empty replacement to be valid, got error: %v", err)
	}
}

// =============================================================================
// BulkFixRequest Validation Tests
// =============================================================================

func TestBulkFixRequest_Validate_Success(t *testing.T) {
	req := &BulkFixRequest{
		Section: "Scope",
		Fixes: []FixSpec{
			{Pattern: "TBD", Instruction: "Fill in the submission date."},
		},
	}

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}
}

func TestBulkFixRequest_Validate_EmptyFixes(t *testing.T) {
	req := &BulkFixRequest{Section: "Scope", Fixes: []FixSpec{}}

	if err := req.Validate(); err == nil {
		t.Error("expected error for empty fixes, got nil")
	}
}

func TestBulkFixRequest_Validate_BatchTooLarge(t *testing.T) {
	fixes := make([]FixSpec, MaxBatchSize+1)
	for i := range fixes {
		fixes[i] = FixSpec{Pattern: "TBD"}
	}

	req := &BulkFixRequest{Section: "Scope", Fixes: fixes}

	err := req.Validate()
	if err == nil {
		t.Fatalf("expected error for %d fixes (max is %d), got nil",
			len(fixes), MaxBatchSize)
	}
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("expected ErrBatchTooLarge, got %v", err)
	}
}

func TestBulkFixRequest_Validate_ExactlyMaxBatch(t *testing.T) {
	fixes := make([]FixSpec, MaxBatchSize)
	for i := range fixes {
		fixes[i] = FixSpec{Pattern: "TBD"}
	}

	req := &BulkFixRequest{Section: "Scope", Fixes: fixes}

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request with exactly %d fixes, got error: %v",
			MaxBatchSize, err)
	}
}

func TestBulkFixRequest_Validate_FixMissingPattern(t *testing.T) {
	req := &BulkFixRequest{
		Section: "Scope",
		Fixes:   []FixSpec{{Instruction: "fix it"}},
	}

	if err := req.Validate(); err == nil {
		t.Error("expected error for fix without pattern, got nil")
	}
}
