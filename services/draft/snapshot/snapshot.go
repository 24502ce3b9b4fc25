// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot provides the append-only history of full-document
// checkpoints used for undo and commit.
//
// Every store and every retrieval deep-copies the section map, so no
// snapshot ever aliases live document state in either direction. Each
// record carries a content digest computed at commit time; a digest
// mismatch on read means stored state was mutated after commit, which
// is a programming error, not a recoverable condition.
//
// Two implementations are provided: MemoryLog for session-scoped
// history and BadgerLog for history that survives restarts.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

// ErrSnapshotNotFound is returned when no snapshot exists for an id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrSnapshotIntegrity indicates a stored snapshot's content no longer
// matches the digest computed at commit time. Snapshots are immutable
// after commit, so this only occurs if something aliased and mutated
// stored state.
var ErrSnapshotIntegrity = errors.New("snapshot corrupted: digest mismatch")

// Log is the append-only checkpoint history.
//
// Implementations must deep-copy section maps on both commit and
// retrieval, and must never delete or mutate an existing entry.
type Log interface {
	// Commit stores a checkpoint and returns its id.
	Commit(ctx context.Context, label, author string, sections map[string]string) (string, error)

	// List returns summaries of all snapshots in commit order.
	List(ctx context.Context) ([]datatypes.SnapshotSummary, error)

	// Get returns a deep copy of the snapshot with the given id.
	Get(ctx context.Context, id string) (*datatypes.Snapshot, error)
}

// sectionsDigest computes a deterministic digest of a section map.
// Names are visited in sorted order with length prefixes so distinct
// maps can never collide through concatenation.
func sectionsDigest(sections map[string]string) string {
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		fmt.Fprintf(h, "%d:%s:%d:%s;", len(name), name, len(sections[name]), sections[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryLog is the in-memory Log used for session-scoped history.
//
// Thread Safety: Safe for concurrent use.
type MemoryLog struct {
	mu      sync.RWMutex
	snaps   []*datatypes.Snapshot
	index   map[string]int
	digests map[string]string
}

var _ Log = (*MemoryLog)(nil)

// NewMemoryLog creates an empty in-memory checkpoint history.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		index:   make(map[string]int),
		digests: make(map[string]string),
	}
}

// Commit stores a checkpoint and returns its id.
//
// Description:
//
//	Deep-copies the caller's section map before storing, so later
//	edits to the live document never reach the stored record. The
//	content digest is computed over the stored copy.
//
// Thread Safety: Safe for concurrent use.
func (l *MemoryLog) Commit(ctx context.Context, label, author string, sections map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	snap := &datatypes.Snapshot{
		ID:        datatypes.NewID(),
		Timestamp: time.Now().UTC(),
		Label:     label,
		Sections:  datatypes.CloneSections(sections),
		Author:    author,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.index[snap.ID] = len(l.snaps)
	l.snaps = append(l.snaps, snap)
	l.digests[snap.ID] = sectionsDigest(snap.Sections)
	return snap.ID, nil
}

// List returns summaries of all snapshots in commit order.
//
// Thread Safety: Safe for concurrent use.
func (l *MemoryLog) List(ctx context.Context) ([]datatypes.SnapshotSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]datatypes.SnapshotSummary, 0, len(l.snaps))
	for _, snap := range l.snaps {
		out = append(out, datatypes.NewSnapshotSummary(snap))
	}
	return out, nil
}

// Get returns a deep copy of the snapshot with the given id.
//
// Description:
//
//	Verifies the stored record against its commit-time digest before
//	returning. A mismatch returns ErrSnapshotIntegrity.
//
// Thread Safety: Safe for concurrent use.
func (l *MemoryLog) Get(ctx context.Context, id string) (*datatypes.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	snap := l.snaps[pos]

	if computed := sectionsDigest(snap.Sections); computed != l.digests[id] {
		return nil, fmt.Errorf("%w: expected=%s, computed=%s",
			ErrSnapshotIntegrity, l.digests[id], computed)
	}
	return snap.Clone(), nil
}

// Len returns the number of stored snapshots.
func (l *MemoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.snaps)
}
