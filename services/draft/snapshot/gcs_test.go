// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

// fakeArchiver records archived snapshots for assertions.
type fakeArchiver struct {
	mu       sync.Mutex
	archived []*datatypes.Snapshot
	err      error
}

func (f *fakeArchiver) Archive(ctx context.Context, snap *datatypes.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.archived = append(f.archived, snap)
	return nil
}

func (f *fakeArchiver) snapshots() []*datatypes.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*datatypes.Snapshot, len(f.archived))
	copy(out, f.archived)
	return out
}

// TestArchivingLog_CommitArchives verifies a committed snapshot reaches
// the sink.
func TestArchivingLog_CommitArchives(t *testing.T) {
	sink := &fakeArchiver{}
	log := NewArchivingLog(NewMemoryLog(), sink, nil)
	ctx := context.Background()

	id, err := log.Commit(ctx, "manual commit", "j.smith",
		map[string]string{"Scope": "Text."})
	require.NoError(t, err)
	log.Wait()

	archived := sink.snapshots()
	require.Len(t, archived, 1)
	assert.Equal(t, id, archived[0].ID)
	assert.Equal(t, "Text.", archived[0].Sections["Scope"])
}

// TestArchivingLog_SinkFailureDoesNotAffectCommit verifies archive
// errors stay in the background.
func TestArchivingLog_SinkFailureDoesNotAffectCommit(t *testing.T) {
	sink := &fakeArchiver{err: errors.New("bucket unavailable")}
	log := NewArchivingLog(NewMemoryLog(), sink, nil)
	ctx := context.Background()

	id, err := log.Commit(ctx, "manual commit", "j.smith",
		map[string]string{"Scope": "Text."})
	require.NoError(t, err)
	log.Wait()

	// The commit itself is intact and readable.
	snap, err := log.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Text.", snap.Sections["Scope"])
}

// TestArchivingLog_DelegatesListAndGet verifies reads pass through to
// the inner log.
func TestArchivingLog_DelegatesListAndGet(t *testing.T) {
	inner := NewMemoryLog()
	log := NewArchivingLog(inner, &fakeArchiver{}, nil)
	ctx := context.Background()

	id, err := log.Commit(ctx, "one", "a", map[string]string{"S": "1"})
	require.NoError(t, err)
	log.Wait()

	summaries, err := log.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, id, summaries[0].ID)
}
