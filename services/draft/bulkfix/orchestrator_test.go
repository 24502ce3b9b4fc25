// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bulkfix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
	"github.com/AleutianAI/AleutianDraft/services/draft/snapshot"
)

// =============================================================================
// Test Fakes
// =============================================================================

type resolverCall struct {
	Pattern string
	Context string
}

// scriptedResolver returns canned replacements per pattern and records
// every call in invocation order.
type scriptedResolver struct {
	mu           sync.Mutex
	replacements map[string]string
	errs         map[string]error
	delays       map[string]time.Duration
	hooks        map[string]func()
	calls        []resolverCall
}

func newScriptedResolver() *scriptedResolver {
	return &scriptedResolver{
		replacements: map[string]string{},
		errs:         map[string]error{},
		delays:       map[string]time.Duration{},
		hooks:        map[string]func(){},
	}
}

func (r *scriptedResolver) Resolve(ctx context.Context, pattern, contextText string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, resolverCall{Pattern: pattern, Context: contextText})
	delay := r.delays[pattern]
	hook := r.hooks[pattern]
	scriptedErr := r.errs[pattern]
	replacement, ok := r.replacements[pattern]
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if hook != nil {
		hook()
	}
	if scriptedErr != nil {
		return "", scriptedErr
	}
	if !ok {
		return "", fmt.Errorf("no replacement scripted for %q", pattern)
	}
	return replacement, nil
}

func (r *scriptedResolver) callList() []resolverCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]resolverCall(nil), r.calls...)
}

type stepRecord struct {
	Step    int
	Total   int
	Report  datatypes.FixReport
	Working string
}

// recordingObserver captures the full observer callback sequence.
type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	steps    []stepRecord
	finished []*datatypes.BulkFixSummary
}

func (obs *recordingObserver) BatchStarted(section string, total int) {
	obs.mu.Lock()
	defer obs.mu.Unlock()
	obs.started = append(obs.started, fmt.Sprintf("%s/%d", section, total))
}

func (obs *recordingObserver) StepCompleted(step, total int, report datatypes.FixReport, workingText string) {
	obs.mu.Lock()
	defer obs.mu.Unlock()
	obs.steps = append(obs.steps, stepRecord{Step: step, Total: total, Report: report, Working: workingText})
}

func (obs *recordingObserver) BatchFinished(summary *datatypes.BulkFixSummary) {
	obs.mu.Lock()
	defer obs.mu.Unlock()
	obs.finished = append(obs.finished, summary)
}

func (obs *recordingObserver) snapshotSteps() []stepRecord {
	obs.mu.Lock()
	defer obs.mu.Unlock()
	return append([]stepRecord(nil), obs.steps...)
}

// countingPacer counts waits and optionally fails them.
type countingPacer struct {
	mu    sync.Mutex
	waits int
	err   error
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits++
	return p.err
}

func (p *countingPacer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waits
}

// failingLog rejects every commit.
type failingLog struct{}

func (failingLog) Commit(context.Context, string, string, map[string]string) (string, error) {
	return "", errors.New("disk full")
}
func (failingLog) List(context.Context) ([]datatypes.SnapshotSummary, error) { return nil, nil }
func (failingLog) Get(context.Context, string) (*datatypes.Snapshot, error) { return nil, nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(i int) *int { return &i }

func newTestOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Snapshots == nil {
		cfg.Snapshots = snapshot.NewMemoryLog()
	}
	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	o, err := New(cfg)
	require.NoError(t, err)
	return o
}

// =============================================================================
// Orchestrator Tests
// =============================================================================

// TestRunAppliesFixesInOrder verifies a clean batch applies every fix
// and reports the final text.
func TestRunAppliesFixesInOrder(t *testing.T) {
	resolver := newScriptedResolver()
	resolver.replacements["TBD"] = "March 3, 2026"
	resolver.replacements["ACME Corp"] = "Aleutian Dynamics"

	o := newTestOrchestrator(t, Config{})
	summary, err := o.Run(context.Background(), Batch{
		Section: "Terms",
		Sections: map[string]string{
			"Terms": "Delivery is due TBD. Contact ACME Corp to schedule.",
		},
		Fixes: []Fix{
			{Pattern: "TBD", Resolver: resolver},
			{Pattern: "ACME Corp", Resolver: resolver},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Applied)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, "Delivery is due March 3, 2026. Contact Aleutian Dynamics to schedule.", summary.Content)
	require.Len(t, summary.Reports, 2)
	assert.Equal(t, datatypes.FixApplied, summary.Reports[0].Outcome)
	assert.Equal(t, datatypes.FixApplied, summary.Reports[1].Outcome)
}

// TestLaterFixSeesEarlierResult verifies strict sequencing: a slow
// first resolver still runs to completion before the second is
// consulted, and the second's context window reflects the first's
// replacement.
func TestLaterFixSeesEarlierResult(t *testing.T) {
	resolver := newScriptedResolver()
	resolver.replacements["TBD"] = "1 May 2026"
	resolver.delays["TBD"] = 60 * time.Millisecond
	resolver.replacements["review window"] = "inspection period"

	o := newTestOrchestrator(t, Config{})
	summary, err := o.Run(context.Background(), Batch{
		Section: "Schedule",
		Sections: map[string]string{
			"Schedule": "The start date is TBD and the review window follows.",
		},
		Fixes: []Fix{
			{Pattern: "TBD", Resolver: resolver},
			{Pattern: "review window", Resolver: resolver},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Applied)

	calls := resolver.callList()
	require.Len(t, calls, 2)
	assert.Equal(t, "TBD", calls[0].Pattern)
	assert.Equal(t, "review window", calls[1].Pattern)
	assert.Contains(t, calls[1].Context, "1 May 2026",
		"second fix should see the first fix's replacement in its context window")
	assert.Equal(t, "The start date is 1 May 2026 and the inspection period follows.", summary.Content)
}

// TestSnapshotCommittedBeforeFirstFix verifies the checkpoint holds
// pre-batch state for every section, not just the one under repair.
func TestSnapshotCommittedBeforeFirstFix(t *testing.T) {
	log := snapshot.NewMemoryLog()
	resolver := newScriptedResolver()
	resolver.replacements["TBD"] = "fixed"

	o := newTestOrchestrator(t, Config{Snapshots: log})
	summary, err := o.Run(context.Background(), Batch{
		Section: "Terms",
		Sections: map[string]string{
			"Terms": "Value is TBD.",
			"Scope": "Everything.",
		},
		Author: "reviewer",
		Label:  "Pre-fix checkpoint",
		Fixes:  []Fix{{Pattern: "TBD", Resolver: resolver}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, summary.SnapshotID)

	snap, err := log.Get(context.Background(), summary.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, "Value is TBD.", snap.Sections["Terms"],
		"checkpoint must hold the text before any fix ran")
	assert.Equal(t, "Everything.", snap.Sections["Scope"])
	assert.Equal(t, "Pre-fix checkpoint", snap.Label)
	assert.Equal(t, "reviewer", snap.Author)
}

// TestDefaultCheckpointLabel verifies the label fallback when the
// caller names none.
func TestDefaultCheckpointLabel(t *testing.T) {
	log := snapshot.NewMemoryLog()
	resolver := newScriptedResolver()
	resolver.replacements["TBD"] = "fixed"

	o := newTestOrchestrator(t, Config{Snapshots: log})
	_, err := o.Run(context.Background(), Batch{
		Section:  "Terms",
		Sections: map[string]string{"Terms": "Value is TBD."},
		Fixes:    []Fix{{Pattern: "TBD", Resolver: resolver}},
	})
	require.NoError(t, err)

	summaries, err := log.List(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Before bulk fix", summaries[0].Label)
}

// TestResolverFailureSkipsAndContinues verifies one failing resolver
// does not stop the fixes after it.
func TestResolverFailureSkipsAndContinues(t *testing.T) {
	resolver := newScriptedResolver()
	resolver.errs["TBD"] = errors.New("model unavailable")
	resolver.replacements["Net 60"] = "Net 30"

	o := newTestOrchestrator(t, Config{})
	summary, err := o.Run(context.Background(), Batch{
		Section: "Payment",
		Sections: map[string]string{
			"Payment": "Rate is TBD. Invoices payable Net 60.",
		},
		Fixes: []Fix{
			{Pattern: "TBD", Resolver: resolver},
			{Pattern: "Net 60", Resolver: resolver},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Reports, 2)
	assert.Equal(t, datatypes.FixSkipped, summary.Reports[0].Outcome)
	assert.Contains(t, summary.Reports[0].Reason, "model unavailable")
	assert.Equal(t, datatypes.FixApplied, summary.Reports[1].Outcome)
	assert.Equal(t, "Rate is TBD. Invoices payable Net 30.", summary.Content)
}

// TestMissingOccurrenceSkipsWithoutResolverCall verifies an absent
// occurrence is detected before the resolver is consulted.
func TestMissingOccurrenceSkipsWithoutResolverCall(t *testing.T) {
	resolver := newScriptedResolver()
	resolver.replacements["Net 60"] = "Net 30"

	o := newTestOrchestrator(t, Config{})
	summary, err := o.Run(context.Background(), Batch{
		Section: "Payment",
		Sections: map[string]string{
			"Payment": "Rate is TBD. Invoices payable Net 60.",
		},
		Fixes: []Fix{
			{Pattern: "TBD", OccurrenceIndex: intPtr(4), Resolver: resolver},
			{Pattern: "Net 60", Resolver: resolver},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, ReasonNotPresent, summary.Reports[0].Reason)

	calls := resolver.callList()
	require.Len(t, calls, 1, "resolver must not be consulted for an absent occurrence")
	assert.Equal(t, "Net 60", calls[0].Pattern)
}

// TestPatternConsumedByEarlierFix verifies a fix whose target was
// rewritten by an earlier step reports as skipped.
func TestPatternConsumedByEarlierFix(t *testing.T) {
	resolver := newScriptedResolver()
	resolver.replacements["TBD"] = "100 USD"

	o := newTestOrchestrator(t, Config{})
	summary, err := o.Run(context.Background(), Batch{
		Section:  "Fees",
		Sections: map[string]string{"Fees": "Fee TBD. Deposit TBD."},
		Fixes: []Fix{
			{Pattern: "TBD", Resolver: resolver},
			{Pattern: "TBD", OccurrenceIndex: intPtr(0), Resolver: resolver},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Fee 100 USD. Deposit 100 USD.", summary.Content,
		"first fix with no index replaces every occurrence")
	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, ReasonNotPresent, summary.Reports[1].Reason)
}

// TestCancellationBetweenStepsKeepsAppliedPrefix verifies cooperative
// cancellation: fixes applied before it remain, later fixes report as
// skipped without running.
func TestCancellationBetweenStepsKeepsAppliedPrefix(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver := newScriptedResolver()
	resolver.replacements["TBD"] = "March 3"
	resolver.errs["FIXME"] = errors.New("operator aborted")
	resolver.hooks["FIXME"] = cancel

	o := newTestOrchestrator(t, Config{})
	summary, err := o.Run(ctx, Batch{
		Section:  "Terms",
		Sections: map[string]string{"Terms": "Price TBD. Also FIXME remains."},
		Fixes: []Fix{
			{Pattern: "TBD", Resolver: resolver},
			{Pattern: "FIXME", Resolver: resolver},
			{Pattern: "absent pattern", Resolver: resolver},
		},
	})
	require.NoError(t, err)

	require.Len(t, summary.Reports, 3)
	assert.Equal(t, datatypes.FixApplied, summary.Reports[0].Outcome)
	assert.Contains(t, summary.Reports[1].Reason, "operator aborted")
	assert.Equal(t, ReasonCancelled, summary.Reports[2].Reason,
		"fixes after cancellation must not run at all")
	assert.Contains(t, summary.Content, "March 3")
	assert.Contains(t, summary.Content, "FIXME")
}

// TestPacerGatesOnlyResolverCalls verifies skipped fixes consume no
// pacing tokens.
func TestPacerGatesOnlyResolverCalls(t *testing.T) {
	pacer := &countingPacer{}
	resolver := newScriptedResolver()
	resolver.replacements["TBD"] = "a"
	resolver.replacements["FIXME"] = "b"

	o := newTestOrchestrator(t, Config{Pacer: pacer})
	_, err := o.Run(context.Background(), Batch{
		Section:  "Terms",
		Sections: map[string]string{"Terms": "TBD and FIXME."},
		Fixes: []Fix{
			{Pattern: "TBD", Resolver: resolver},
			{Pattern: "not in the text", Resolver: resolver},
			{Pattern: "FIXME", Resolver: resolver},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, pacer.count())
}

// TestPacerErrorSkipsFix verifies an abandoned pacer wait skips the
// fix instead of failing the batch.
func TestPacerErrorSkipsFix(t *testing.T) {
	pacer := &countingPacer{err: errors.New("rate limited")}
	resolver := newScriptedResolver()
	resolver.replacements["TBD"] = "never used"

	o := newTestOrchestrator(t, Config{Pacer: pacer})
	summary, err := o.Run(context.Background(), Batch{
		Section:  "Terms",
		Sections: map[string]string{"Terms": "Value is TBD."},
		Fixes:    []Fix{{Pattern: "TBD", Resolver: resolver}},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Applied)
	assert.Equal(t, 1, summary.Skipped)
	assert.Contains(t, summary.Reports[0].Reason, "rate limited")
	assert.Empty(t, resolver.callList())
}

// TestBatchValidation covers the rejections before any fix runs.
func TestBatchValidation(t *testing.T) {
	o := newTestOrchestrator(t, Config{})

	_, err := o.Run(context.Background(), Batch{
		Section:  "Terms",
		Sections: map[string]string{"Terms": "text"},
	})
	assert.ErrorIs(t, err, ErrNoFixes)

	oversized := make([]Fix, datatypes.MaxBatchSize+1)
	for i := range oversized {
		oversized[i] = Fix{Pattern: "x"}
	}
	_, err = o.Run(context.Background(), Batch{
		Section:  "Terms",
		Sections: map[string]string{"Terms": "text"},
		Fixes:    oversized,
	})
	assert.ErrorIs(t, err, datatypes.ErrBatchTooLarge)

	_, err = o.Run(context.Background(), Batch{
		Section:  "Missing",
		Sections: map[string]string{"Terms": "text"},
		Fixes:    []Fix{{Pattern: "x"}},
	})
	assert.ErrorIs(t, err, ErrUnknownSection)
}

// TestSnapshotFailureAborts verifies a failed checkpoint stops the
// batch before any resolver runs.
func TestSnapshotFailureAborts(t *testing.T) {
	resolver := newScriptedResolver()
	resolver.replacements["TBD"] = "never used"

	o := newTestOrchestrator(t, Config{Snapshots: failingLog{}})
	_, err := o.Run(context.Background(), Batch{
		Section:  "Terms",
		Sections: map[string]string{"Terms": "Value is TBD."},
		Fixes:    []Fix{{Pattern: "TBD", Resolver: resolver}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot")
	assert.Empty(t, resolver.callList())
}

// TestObserverLifecycle verifies the observer sees start, every step
// with progressive working text, and the final summary.
func TestObserverLifecycle(t *testing.T) {
	obs := &recordingObserver{}
	resolver := newScriptedResolver()
	resolver.replacements["TBD"] = "March 3"
	resolver.replacements["FIXME"] = "resolved"

	o := newTestOrchestrator(t, Config{Observer: obs})
	summary, err := o.Run(context.Background(), Batch{
		Section:  "Terms",
		Sections: map[string]string{"Terms": "TBD then FIXME."},
		Fixes: []Fix{
			{Pattern: "TBD", Resolver: resolver},
			{Pattern: "FIXME", Resolver: resolver},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Terms/2"}, obs.started)
	steps := obs.snapshotSteps()
	require.Len(t, steps, 2)
	assert.Equal(t, 0, steps[0].Step)
	assert.Equal(t, "March 3 then FIXME.", steps[0].Working)
	assert.Equal(t, "March 3 then resolved.", steps[1].Working)
	require.Len(t, obs.finished, 1)
	assert.Same(t, summary, obs.finished[0])
}

// TestContextRadiusBoundsWindow verifies the resolver's context window
// honors the configured radius.
func TestContextRadiusBoundsWindow(t *testing.T) {
	resolver := newScriptedResolver()
	resolver.replacements["TBD"] = "done"

	text := strings.Repeat("lorem ipsum ", 30) + "TBD" + strings.Repeat(" dolor sit amet", 30)
	o := newTestOrchestrator(t, Config{ContextRadius: 15})
	_, err := o.Run(context.Background(), Batch{
		Section:  "Body",
		Sections: map[string]string{"Body": text},
		Fixes:    []Fix{{Pattern: "TBD", Resolver: resolver}},
	})
	require.NoError(t, err)

	calls := resolver.callList()
	require.Len(t, calls, 1)
	assert.LessOrEqual(t, len(calls[0].Context), 15+len("TBD")+15)
	assert.Contains(t, calls[0].Context, "TBD")
}

// TestBatchNeverFailsWholesale verifies a batch of all-failing fixes
// still returns a summary rather than an error.
func TestBatchNeverFailsWholesale(t *testing.T) {
	resolver := newScriptedResolver()
	resolver.errs["a"] = errors.New("down")
	resolver.errs["b"] = errors.New("down")

	o := newTestOrchestrator(t, Config{})
	summary, err := o.Run(context.Background(), Batch{
		Section:  "Terms",
		Sections: map[string]string{"Terms": "a and b."},
		Fixes: []Fix{
			{Pattern: "a", Resolver: resolver},
			{Pattern: "b", Resolver: resolver},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Applied)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, "a and b.", summary.Content)
}

// TestNewRequiresSnapshots verifies the constructor contract.
func TestNewRequiresSnapshots(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}
