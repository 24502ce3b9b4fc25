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
// Document Model
// =============================================================================

// Document is one regulatory or contracting document under edit.
//
// # Description
//
// Sections hold rich content keyed by section name. SectionOrder records
// the order sections appear in the document; iteration that needs
// document order must walk SectionOrder, never range over the map.
//
// # Thread Safety
//
// Not safe for concurrent use. The document store serializes all access;
// callers receive deep copies, never the live struct.
type Document struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Author       string            `json:"author,omitempty"`
	SectionOrder []string          `json:"section_order"`
	Sections     map[string]string `json:"sections"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Clone returns a deep copy of the document. The copy shares no mutable
// state with the receiver.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		ID:        d.ID,
		Title:     d.Title,
		Author:    d.Author,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.SectionOrder != nil {
		out.SectionOrder = make([]string, len(d.SectionOrder))
		copy(out.SectionOrder, d.SectionOrder)
	}
	out.Sections = CloneSections(d.Sections)
	return out
}

// CloneSections deep-copies a section map. A nil input returns an empty
// non-nil map so callers can write into the result unconditionally.
func CloneSections(sections map[string]string) map[string]string {
	out := make(map[string]string, len(sections))
	for name, content := range sections {
		out[name] = content
	}
	return out
}

// =============================================================================
// Document API Types
// =============================================================================

// CreateDocumentRequest creates a new document, optionally seeding it
// from raw pasted text that the service splits into sections.
type CreateDocumentRequest struct {
	Title   string `json:"title" validate:"required,max=512"`
	Author  string `json:"author" validate:"omitempty,max=256"`
	RawText string `json:"raw_text" validate:"omitempty,maxbytes"`
}

// Validate validates the CreateDocumentRequest fields.
func (r *CreateDocumentRequest) Validate() error {
	return draftValidate.Struct(r)
}

// UpdateSectionRequest replaces the content of one section.
type UpdateSectionRequest struct {
	Content string `json:"content" validate:"maxbytes"`
}

// Validate validates the UpdateSectionRequest fields.
func (r *UpdateSectionRequest) Validate() error {
	return draftValidate.Struct(r)
}

// DocumentResponse is the API projection of a document.
type DocumentResponse struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Author       string            `json:"author,omitempty"`
	SectionOrder []string          `json:"section_order"`
	Sections     map[string]string `json:"sections"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewDocumentResponse builds a DocumentResponse from a document copy.
func NewDocumentResponse(d *Document) *DocumentResponse {
	if d == nil {
		return nil
	}
	return &DocumentResponse{
		ID:           d.ID,
		Title:        d.Title,
		Author:       d.Author,
		SectionOrder: d.SectionOrder,
		Sections:     d.Sections,
		UpdatedAt:    d.UpdatedAt,
	}
}
