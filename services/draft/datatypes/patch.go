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

// =============================================================================
// Patch Descriptor
// =============================================================================

// PatchDescriptor describes one textual edit.
//
// # Description
//
// Pattern is matched case-insensitively as a whole phrase against the
// plain-text projection of rich content. OccurrenceIndex selects which
// match to replace, 0-based in document order; nil means replace every
// occurrence. Immutable once constructed.
//
// # Fields
//
//   - Pattern: Literal phrase to find. Not a regular expression.
//   - OccurrenceIndex: Which match to replace; nil replaces all.
//   - Replacement: Text substituted for each selected match.
type PatchDescriptor struct {
	Pattern         string `json:"pattern" validate:"required,patternbytes"`
	OccurrenceIndex *int   `json:"occurrence_index,omitempty" validate:"omitempty,gte=0"`
	Replacement     string `json:"replacement" validate:"maxbytes"`
}

// Validate validates the PatchDescriptor fields.
func (p *PatchDescriptor) Validate() error {
	return draftValidate.Struct(p)
}

// =============================================================================
// Patch API Types
// =============================================================================

// ApplyPatchRequest applies one patch to a named section of a document.
type ApplyPatchRequest struct {
	Section string          `json:"section" validate:"required,max=256"`
	Patch   PatchDescriptor `json:"patch" validate:"required"`
}

// Validate validates the request and its embedded descriptor.
func (r *ApplyPatchRequest) Validate() error {
	if err := draftValidate.Struct(r); err != nil {
		return err
	}
	return r.Patch.Validate()
}

// ApplyPatchResponse reports the outcome of a patch application.
// Replaced is zero when the pattern or occurrence was not present; that
// is a normal outcome, not an error.
type ApplyPatchResponse struct {
	Section  string `json:"section"`
	Replaced int    `json:"replaced"`
	Content  string `json:"content"`
}

// =============================================================================
// Bulk Fix API Types
// =============================================================================

// FixSpec is the wire form of one bulk-fix step. The service builds the
// resolver for each spec server-side; Instruction is passed to it as
// guidance alongside the surrounding document context.
type FixSpec struct {
	Pattern         string `json:"pattern" validate:"required,patternbytes"`
	OccurrenceIndex *int   `json:"occurrence_index,omitempty" validate:"omitempty,gte=0"`
	Instruction     string `json:"instruction" validate:"omitempty,maxbytes"`
}

// BulkFixRequest runs a batch of fixes against one section, strictly in
// order, with a snapshot committed before the first fix.
type BulkFixRequest struct {
	Section string    `json:"section" validate:"required,max=256"`
	Author  string    `json:"author" validate:"omitempty,max=256"`
	Fixes   []FixSpec `json:"fixes" validate:"required,min=1,dive"`
}

// Validate validates the BulkFixRequest fields, including batch size.
func (r *BulkFixRequest) Validate() error {
	if err := draftValidate.Struct(r); err != nil {
		return err
	}
	if len(r.Fixes) > MaxBatchSize {
		return ErrBatchTooLarge
	}
	return nil
}

// FixOutcome describes what happened to a single fix in a batch.
type FixOutcome string

const (
	// FixApplied means the resolver produced a replacement and the
	// patch changed at least one occurrence.
	FixApplied FixOutcome = "applied"

	// FixSkipped means the resolver failed or the pattern/occurrence
	// was absent from the current text; the batch continued.
	FixSkipped FixOutcome = "skipped"
)

// FixReport is the per-step record in a bulk-fix summary.
type FixReport struct {
	Pattern string     `json:"pattern"`
	Outcome FixOutcome `json:"outcome"`
	Reason  string     `json:"reason,omitempty"`
}

// BulkFixSummary reports how a batch went: how many of the requested
// fixes were applied versus skipped, plus the final section content.
type BulkFixSummary struct {
	Section    string      `json:"section"`
	SnapshotID string      `json:"snapshot_id,omitempty"`
	Total      int         `json:"total"`
	Applied    int         `json:"applied"`
	Skipped    int         `json:"skipped"`
	Reports    []FixReport `json:"reports"`
	Content    string      `json:"content"`
}
