// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package document owns the live section content of documents under
// edit.
//
// The store is the single serialization point for text mutation: every
// write, whether a direct user edit or one step of an automated fix
// batch, passes through one lock, so two writers can never interleave
// inside a single edit. Reads hand out deep copies only.
package document

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

// ErrDocumentNotFound is returned when no document exists for an id.
var ErrDocumentNotFound = errors.New("document not found")

// ErrSectionNotFound is returned when a named section does not exist in
// the document.
var ErrSectionNotFound = errors.New("section not found")

// Store holds the live documents for the service instance.
//
// # Thread Safety
//
// Safe for concurrent use. All mutation runs under one write lock per
// store, and every returned document or section map is a deep copy.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*datatypes.Document
}

// NewStore creates an empty document store.
func NewStore() *Store {
	return &Store{docs: make(map[string]*datatypes.Document)}
}

// Create adds a new document.
//
// # Description
//
// With raw text supplied, the text is split into named sections before
// storing; otherwise the document starts empty and sections are added
// through UpdateSection.
func (s *Store) Create(ctx context.Context, title, author, rawText string) (*datatypes.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &datatypes.Document{
		ID:        datatypes.NewID(),
		Title:     title,
		Author:    author,
		Sections:  make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if rawText != "" {
		sections, order, err := SplitIntoSections(rawText)
		if err != nil {
			return nil, fmt.Errorf("split raw text: %w", err)
		}
		doc.Sections = sections
		doc.SectionOrder = order
	}

	s.mu.Lock()
	s.docs[doc.ID] = doc
	s.mu.Unlock()
	return doc.Clone(), nil
}

// Get returns a deep copy of a document.
func (s *Store) Get(ctx context.Context, id string) (*datatypes.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return doc.Clone(), nil
}

// Sections returns a deep copy of a document's section map, for
// checkpointing.
func (s *Store) Sections(ctx context.Context, id string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return datatypes.CloneSections(doc.Sections), nil
}

// UpdateSection replaces one section's content, creating the section if
// it does not exist yet.
func (s *Store) UpdateSection(ctx context.Context, id, section, content string) (*datatypes.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}

	if _, exists := doc.Sections[section]; !exists {
		doc.SectionOrder = append(doc.SectionOrder, section)
	}
	doc.Sections[section] = content
	doc.UpdatedAt = time.Now().UTC()
	return doc.Clone(), nil
}

// MutateSection applies fn to one section's current content under the
// write lock.
//
// # Description
//
// This is the serialized mutation entry point: fn observes the current
// text and returns the new text, and no other writer can run between
// the read and the write. The section must already exist; writing a new
// section goes through UpdateSection with direct content.
//
// Unlike UpdateSection, an unknown section name is an error here, since
// fn-based edits target text the caller has already seen.
func (s *Store) MutateSection(ctx context.Context, id, section string, fn func(current string) (string, error)) (*datatypes.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}

	current, exists := doc.Sections[section]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, section)
	}
	updated, err := fn(current)
	if err != nil {
		return nil, err
	}

	doc.Sections[section] = updated
	doc.UpdatedAt = time.Now().UTC()
	return doc.Clone(), nil
}

// Section returns one section's current content.
func (s *Store) Section(ctx context.Context, id, section string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	content, ok := doc.Sections[section]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSectionNotFound, section)
	}
	return content, nil
}

// Restore replaces a document's sections wholesale from a checkpoint.
//
// # Description
//
// Used for undo: the snapshot's sections become the live state. The
// incoming map is deep-copied, so the snapshot record stays isolated
// from later edits.
func (s *Store) Restore(ctx context.Context, id string, sections map[string]string, order []string) (*datatypes.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}

	doc.Sections = datatypes.CloneSections(sections)
	if order != nil {
		doc.SectionOrder = append([]string(nil), order...)
	} else {
		// Keep names that survived, in their old order, then any new
		// ones in name order.
		doc.SectionOrder = restoredOrder(doc.SectionOrder, doc.Sections)
	}
	doc.UpdatedAt = time.Now().UTC()
	return doc.Clone(), nil
}

func restoredOrder(oldOrder []string, sections map[string]string) []string {
	out := make([]string, 0, len(sections))
	seen := make(map[string]bool, len(sections))
	for _, name := range oldOrder {
		if _, ok := sections[name]; ok && !seen[name] {
			out = append(out, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range sections {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
