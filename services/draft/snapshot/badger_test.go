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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBadgerLog(t *testing.T) *BadgerLog {
	t.Helper()
	log, err := OpenBadgerLog(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

// TestBadgerLog_CommitAndGet verifies the basic round trip.
func TestBadgerLog_CommitAndGet(t *testing.T) {
	log := openTestBadgerLog(t)
	ctx := context.Background()

	id, err := log.Commit(ctx, "before bulk fix", "system",
		map[string]string{"Scope": "The contractor shall pave Main St."})
	require.NoError(t, err)

	snap, err := log.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "before bulk fix", snap.Label)
	assert.Equal(t, "The contractor shall pave Main St.", snap.Sections["Scope"])
}

// TestBadgerLog_ListOrder verifies snapshots list in commit order.
func TestBadgerLog_ListOrder(t *testing.T) {
	log := openTestBadgerLog(t)
	ctx := context.Background()

	var ids []string
	for _, label := range []string{"first", "second", "third"} {
		id, err := log.Commit(ctx, label, "a", map[string]string{"S": label})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	summaries, err := log.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	for i, summary := range summaries {
		assert.Equal(t, ids[i], summary.ID)
	}
}

// TestBadgerLog_GetUnknownID verifies the not-found error.
func TestBadgerLog_GetUnknownID(t *testing.T) {
	log := openTestBadgerLog(t)

	_, err := log.Get(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

// TestBadgerLog_CommitCopiesInput verifies stored state is decoupled
// from the caller's map.
func TestBadgerLog_CommitCopiesInput(t *testing.T) {
	log := openTestBadgerLog(t)
	ctx := context.Background()

	live := map[string]string{"Scope": "Original."}
	id, err := log.Commit(ctx, "checkpoint", "j.smith", live)
	require.NoError(t, err)

	live["Scope"] = "Mutated after commit."

	snap, err := log.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Original.", snap.Sections["Scope"])
}

// TestBadgerLog_SequenceSurvivesReopen verifies commit order is kept
// across close and reopen of a persistent store.
func TestBadgerLog_SequenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	log, err := OpenBadgerLog(BadgerConfig{Path: dir})
	require.NoError(t, err)

	first, err := log.Commit(ctx, "first", "a", map[string]string{"S": "1"})
	require.NoError(t, err)
	require.NoError(t, log.Close())

	reopened, err := OpenBadgerLog(BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	second, err := reopened.Commit(ctx, "second", "b", map[string]string{"S": "2"})
	require.NoError(t, err)

	summaries, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, first, summaries[0].ID)
	assert.Equal(t, second, summaries[1].ID)
}

// TestOpenBadgerLog_RequiresPath verifies persistent mode needs a path.
func TestOpenBadgerLog_RequiresPath(t *testing.T) {
	_, err := OpenBadgerLog(BadgerConfig{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}
