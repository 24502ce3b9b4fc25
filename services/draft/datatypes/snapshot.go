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
	"time"
)

// =============================================================================
// Snapshot Record
// =============================================================================

// Snapshot is an immutable deep copy of full document state.
//
// # Description
//
// Created on manual commit or automatically before a destructive batch.
// Never mutated after creation; retained for the session lifetime. Every
// path into and out of storage deep-copies the section map so no snapshot
// ever aliases live document state.
//
// # Fields
//
//   - ID: Service-assigned identifier.
//   - Timestamp: Creation time; serialized as RFC 3339.
//   - Label: Caller-supplied description of the checkpoint.
//   - Sections: Full section content at commit time, keyed by name.
//   - Author: Who committed, or "system" for automatic checkpoints.
type Snapshot struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Label     string            `json:"label"`
	Sections  map[string]string `json:"sections"`
	Author    string            `json:"author"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{
		ID:        s.ID,
		Timestamp: s.Timestamp,
		Label:     s.Label,
		Sections:  CloneSections(s.Sections),
		Author:    s.Author,
	}
}

// =============================================================================
// Snapshot API Types
// =============================================================================

// CommitSnapshotRequest records a manual checkpoint of a document.
type CommitSnapshotRequest struct {
	Label  string `json:"label" validate:"required,max=512"`
	Author string `json:"author" validate:"omitempty,max=256"`
}

// Validate validates the CommitSnapshotRequest fields.
func (r *CommitSnapshotRequest) Validate() error {
	return draftValidate.Struct(r)
}

// SnapshotSummary is the listing projection of a snapshot. Section
// content is omitted; fetch the full record by id to read it.
type SnapshotSummary struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Label        string    `json:"label"`
	Author       string    `json:"author"`
	SectionCount int       `json:"section_count"`
}

// NewSnapshotSummary builds a SnapshotSummary from a snapshot.
func NewSnapshotSummary(s *Snapshot) SnapshotSummary {
	return SnapshotSummary{
		ID:           s.ID,
		Timestamp:    s.Timestamp,
		Label:        s.Label,
		Author:       s.Author,
		SectionCount: len(s.Sections),
	}
}
