// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"github.com/AleutianAI/AleutianDraft/services/draft/bulkfix"
	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

// MetricsObserver feeds bulk-fix progress into the Prometheus metrics.
// Stateless, so one instance serves concurrent batches.
type MetricsObserver struct {
	metrics *DraftMetrics
}

var _ bulkfix.Observer = (*MetricsObserver)(nil)

// NewMetricsObserver creates an observer over an initialized metrics
// instance.
func NewMetricsObserver(metrics *DraftMetrics) *MetricsObserver {
	return &MetricsObserver{metrics: metrics}
}

// BatchStarted implements bulkfix.Observer. Batches are counted when
// they finish; nothing to record at start.
func (o *MetricsObserver) BatchStarted(section string, total int) {}

// StepCompleted counts the step by its outcome.
func (o *MetricsObserver) StepCompleted(step, total int, report datatypes.FixReport, workingText string) {
	o.metrics.BulkFixStepsTotal.WithLabelValues(string(report.Outcome)).Inc()
}

// BatchFinished counts the batch and its pre-batch checkpoint.
func (o *MetricsObserver) BatchFinished(summary *datatypes.BulkFixSummary) {
	o.metrics.BulkFixBatchesTotal.Inc()
	if summary.SnapshotID != "" {
		o.metrics.RecordSnapshotCommit()
	}
}

// FanoutObserver forwards every callback to each member in order.
// Members must keep the same return-quickly contract the orchestrator
// expects of a single observer.
type FanoutObserver []bulkfix.Observer

var _ bulkfix.Observer = FanoutObserver(nil)

// BatchStarted implements bulkfix.Observer.
func (f FanoutObserver) BatchStarted(section string, total int) {
	for _, obs := range f {
		obs.BatchStarted(section, total)
	}
}

// StepCompleted implements bulkfix.Observer.
func (f FanoutObserver) StepCompleted(step, total int, report datatypes.FixReport, workingText string) {
	for _, obs := range f {
		obs.StepCompleted(step, total, report, workingText)
	}
}

// BatchFinished implements bulkfix.Observer.
func (f FanoutObserver) BatchFinished(summary *datatypes.BulkFixSummary) {
	for _, obs := range f {
		obs.BatchFinished(summary)
	}
}
