// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bulkfix runs ordered batches of flagged-pattern fixes
// against a document section.
//
// A batch checkpoints the whole document, then walks its fixes
// strictly in order: locate the pattern in the current working text,
// hand the resolver a window of surrounding prose, splice the
// resolution back over the occurrence. One fix failing never aborts
// the batch, and cancellation between steps leaves the already-applied
// prefix intact.
package bulkfix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
	"github.com/AleutianAI/AleutianDraft/services/draft/patch"
	"github.com/AleutianAI/AleutianDraft/services/draft/snapshot"
)

const (
	// DefaultContextRadius is how much plain text on each side of an
	// occurrence the resolver gets to see.
	DefaultContextRadius = 200

	// defaultSnapshotLabel names the pre-batch checkpoint when the
	// caller does not.
	defaultSnapshotLabel = "Before bulk fix"
)

// Skip reasons surfaced in FixReport.Reason.
const (
	ReasonCancelled  = "batch cancelled before this fix"
	ReasonNotPresent = "pattern or occurrence not present in current text"
	ReasonNoResolver = "fix has no resolver bound"
)

var (
	// ErrNoFixes is returned for a batch with no fix entries.
	ErrNoFixes = errors.New("bulk fix batch has no fixes")

	// ErrUnknownSection is returned when the batch names a section
	// absent from the supplied document state.
	ErrUnknownSection = errors.New("bulk fix section not found")
)

// Fix is one executable step of a batch.
//
// # Fields
//
//   - Pattern: Literal phrase to find. Not a regular expression.
//   - OccurrenceIndex: Which match to touch, 0-based in document
//     order; nil touches every occurrence.
//   - Resolver: Produces the replacement from (pattern, context).
//     A fix without one is skipped.
type Fix struct {
	Pattern         string
	OccurrenceIndex *int
	Resolver        Resolver
}

// Batch is one bulk-fix run against a single section.
//
// # Fields
//
//   - Section: Name of the section under repair. Must be a key of
//     Sections.
//   - Sections: Full current document state. Checkpointed before the
//     first fix so the whole batch can be undone in one step.
//   - Author: Recorded on the checkpoint.
//   - Label: Checkpoint label. Default: "Before bulk fix".
//   - Fixes: Run strictly in order.
type Batch struct {
	Section  string
	Sections map[string]string
	Author   string
	Label    string
	Fixes    []Fix
}

// Observer receives batch progress.
//
// # Description
//
// All methods are called synchronously from the batch loop, so
// implementations must return quickly. The working text passed to
// StepCompleted is the text as of that step, letting callers publish
// live progress while the batch runs.
type Observer interface {
	// BatchStarted fires once, after the pre-batch checkpoint commits.
	BatchStarted(section string, total int)

	// StepCompleted fires after every fix, applied or skipped.
	StepCompleted(step, total int, report datatypes.FixReport, workingText string)

	// BatchFinished fires once with the final summary.
	BatchFinished(summary *datatypes.BulkFixSummary)
}

// nopObserver stands in when no Observer is configured.
type nopObserver struct{}

func (nopObserver) BatchStarted(string, int)                            {}
func (nopObserver) StepCompleted(int, int, datatypes.FixReport, string) {}
func (nopObserver) BatchFinished(*datatypes.BulkFixSummary)             {}

// Config configures an Orchestrator.
type Config struct {
	// Snapshots receives the pre-batch checkpoint. Required.
	Snapshots snapshot.Log

	// Pacer spaces resolver calls. Default: NopPacer.
	Pacer Pacer

	// ContextRadius bounds the plain-text window handed to resolvers,
	// on each side of the occurrence. Default: DefaultContextRadius.
	ContextRadius int

	// Logger receives batch diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// Observer receives progress callbacks. Optional.
	Observer Observer
}

// Orchestrator runs bulk-fix batches.
//
// # Description
//
// Executes each batch strictly sequentially: a later fix sees the text
// produced by every earlier fix, both in its context window and in
// occurrence numbering. Resolver failures and vanished patterns skip
// the single fix; the batch itself never fails once its checkpoint is
// committed.
//
// # Thread Safety
//
// Safe for concurrent use. Each Run operates on its own working copy.
type Orchestrator struct {
	snapshots snapshot.Log
	pacer     Pacer
	radius    int
	logger    *slog.Logger
	observer  Observer
}

// New creates an Orchestrator, applying defaults for zero config
// values.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Snapshots == nil {
		return nil, errors.New("bulkfix: snapshot log is required")
	}

	pacer := cfg.Pacer
	if pacer == nil {
		pacer = NopPacer{}
	}
	radius := cfg.ContextRadius
	if radius <= 0 {
		radius = DefaultContextRadius
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &Orchestrator{
		snapshots: cfg.Snapshots,
		pacer:     pacer,
		radius:    radius,
		logger:    logger,
		observer:  observer,
	}, nil
}

// Run executes one batch.
//
// # Description
//
// Commits a checkpoint of the full document state, then applies the
// fixes in order against a working copy of the named section. Every
// fix produces exactly one report: applied, or skipped with a reason.
// Cancellation is honored between steps; fixes applied before it stay
// applied and the remaining ones report as skipped.
//
// # Inputs
//
//   - ctx: Context checked between steps and passed to resolvers.
//   - batch: The section, document state, and ordered fixes.
//
// # Outputs
//
//   - *datatypes.BulkFixSummary: Counts, per-fix reports, and the
//     final section content.
//   - error: Non-nil only before any fix runs: an empty or oversized
//     batch, an unknown section, or a failed checkpoint.
func (o *Orchestrator) Run(ctx context.Context, batch Batch) (*datatypes.BulkFixSummary, error) {
	if len(batch.Fixes) == 0 {
		return nil, ErrNoFixes
	}
	if len(batch.Fixes) > datatypes.MaxBatchSize {
		return nil, datatypes.ErrBatchTooLarge
	}
	working, ok := batch.Sections[batch.Section]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, batch.Section)
	}

	label := batch.Label
	if label == "" {
		label = defaultSnapshotLabel
	}
	snapID, err := o.snapshots.Commit(ctx, label, batch.Author, batch.Sections)
	if err != nil {
		return nil, fmt.Errorf("commit pre-batch snapshot: %w", err)
	}

	total := len(batch.Fixes)
	summary := &datatypes.BulkFixSummary{
		Section:    batch.Section,
		SnapshotID: snapID,
		Total:      total,
		Reports:    make([]datatypes.FixReport, 0, total),
	}

	o.logger.Info("Starting bulk fix batch",
		"section", batch.Section,
		"fixes", total,
		"snapshot_id", snapID)
	o.observer.BatchStarted(batch.Section, total)

	for i, fix := range batch.Fixes {
		if ctx.Err() != nil {
			o.record(summary, i, working, datatypes.FixReport{
				Pattern: fix.Pattern,
				Outcome: datatypes.FixSkipped,
				Reason:  ReasonCancelled,
			})
			continue
		}

		var report datatypes.FixReport
		working, report = o.step(ctx, fix, working)
		o.record(summary, i, working, report)
	}

	summary.Content = working
	o.observer.BatchFinished(summary)
	o.logger.Info("Bulk fix batch finished",
		"section", batch.Section,
		"applied", summary.Applied,
		"skipped", summary.Skipped)
	return summary, nil
}

// step runs one fix against the working text, returning the new text
// and the step's report. Failures skip the fix; they never error.
func (o *Orchestrator) step(ctx context.Context, fix Fix, working string) (string, datatypes.FixReport) {
	report := datatypes.FixReport{
		Pattern: fix.Pattern,
		Outcome: datatypes.FixSkipped,
	}

	window, found, err := patch.Excerpt(ctx, working, fix.Pattern, fix.OccurrenceIndex, o.radius)
	if err != nil {
		report.Reason = err.Error()
		return working, report
	}
	if !found {
		report.Reason = ReasonNotPresent
		return working, report
	}
	if fix.Resolver == nil {
		report.Reason = ReasonNoResolver
		return working, report
	}

	// The pacer gates actual resolver calls only; skipped fixes do not
	// consume tokens.
	if err := o.pacer.Wait(ctx); err != nil {
		report.Reason = err.Error()
		return working, report
	}

	replacement, err := fix.Resolver.Resolve(ctx, fix.Pattern, window)
	if err != nil {
		o.logger.Warn("Resolver failed, skipping fix",
			"pattern", fix.Pattern,
			"error", err)
		report.Reason = err.Error()
		return working, report
	}

	res, err := patch.Apply(ctx, working, datatypes.PatchDescriptor{
		Pattern:         fix.Pattern,
		OccurrenceIndex: fix.OccurrenceIndex,
		Replacement:     replacement,
	})
	if err != nil {
		report.Reason = err.Error()
		return working, report
	}
	if res.Replaced == 0 {
		report.Reason = ReasonNotPresent
		return working, report
	}

	report.Outcome = datatypes.FixApplied
	return res.Text, report
}

// record folds one report into the summary and notifies the observer.
func (o *Orchestrator) record(summary *datatypes.BulkFixSummary, step int, working string, report datatypes.FixReport) {
	if report.Outcome == datatypes.FixApplied {
		summary.Applied++
	} else {
		summary.Skipped++
	}
	summary.Reports = append(summary.Reports, report)

	o.logger.Debug("Bulk fix step finished",
		"step", step,
		"total", summary.Total,
		"pattern", report.Pattern,
		"outcome", string(report.Outcome),
		"reason", report.Reason)
	o.observer.StepCompleted(step, summary.Total, report, working)
}
