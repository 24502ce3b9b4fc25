// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// draft service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring document
// editing operations. Metrics include:
//   - Request counters (by endpoint, status, error type)
//   - Patch and bulk-fix outcome counters
//   - Task-channel gauges and fallback counters
//   - Snapshot activity counters
//
// An optional InfluxDB sink mirrors bulk-fix telemetry for offline
// analysis of edit sessions.
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for draft editor metrics
const draftSubsystem = "draft"

// DraftMetrics holds all Prometheus metrics for the draft service.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring editing
// activity and task-channel behavior. Initialize once at startup via
// InitMetrics().
//
// # Fields
//
//   - RequestsTotal: Counter of requests by endpoint and status
//   - ErrorsTotal: Counter of errors by endpoint and type
//   - PatchOutcomesTotal: Counter of patch applications by outcome
//   - BulkFixStepsTotal: Counter of bulk-fix steps by outcome
//   - BulkFixBatchesTotal: Counter of completed bulk-fix batches
//   - SnapshotsCommittedTotal: Counter of snapshot commits
//   - SnapshotRestoresTotal: Counter of snapshot restores
//   - GenerationsStartedTotal: Counter of generation jobs started
//   - ActiveTracks: Gauge of live task-tracking websocket sessions
//   - TrackEventsTotal: Counter of status events forwarded by kind
//   - ChannelFallbacksTotal: Counter of push-to-poll failovers
//
// # Thread Safety
//
// All operations are thread-safe.
type DraftMetrics struct {
	// RequestsTotal counts requests by endpoint and status.
	// Labels: endpoint, status (success, error)
	RequestsTotal *prometheus.CounterVec

	// ErrorsTotal counts errors by type and endpoint.
	// Labels: endpoint, error_code
	ErrorsTotal *prometheus.CounterVec

	// PatchOutcomesTotal counts patch applications.
	// Labels: outcome (applied, noop)
	PatchOutcomesTotal *prometheus.CounterVec

	// BulkFixStepsTotal counts individual bulk-fix steps.
	// Labels: outcome (applied, skipped)
	BulkFixStepsTotal *prometheus.CounterVec

	// BulkFixBatchesTotal counts completed bulk-fix batches.
	BulkFixBatchesTotal prometheus.Counter

	// SnapshotsCommittedTotal counts snapshot commits, including the
	// automatic pre-batch checkpoints.
	SnapshotsCommittedTotal prometheus.Counter

	// SnapshotRestoresTotal counts rollbacks to a snapshot.
	SnapshotRestoresTotal prometheus.Counter

	// GenerationsStartedTotal counts generation jobs handed to the
	// backend.
	GenerationsStartedTotal prometheus.Counter

	// ActiveTracks tracks live task-tracking websocket sessions.
	ActiveTracks prometheus.Gauge

	// TrackEventsTotal counts normalized status events forwarded to
	// clients. Labels: kind (progress, generation_complete,
	// task_complete, error)
	TrackEventsTotal *prometheus.CounterVec

	// ChannelFallbacksTotal counts coordinator transitions from push
	// to poll.
	ChannelFallbacksTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of DraftMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *DraftMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics on the default registry.
// Idempotent: a second call returns the existing instance instead of
// re-registering.
//
// # Outputs
//
//   - *DraftMetrics: The initialized metrics instance.
//
// # Examples
//
//	func main() {
//	    observability.InitMetrics()
//	    // ... start server ...
//	}
func InitMetrics() *DraftMetrics {
	if DefaultMetrics != nil {
		return DefaultMetrics
	}

	DefaultMetrics = &DraftMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: draftSubsystem,
				Name:      "requests_total",
				Help:      "Total number of requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: draftSubsystem,
				Name:      "errors_total",
				Help:      "Total errors by type and endpoint",
			},
			[]string{"endpoint", "error_code"},
		),

		PatchOutcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: draftSubsystem,
				Name:      "patch_outcomes_total",
				Help:      "Total patch applications by outcome",
			},
			[]string{"outcome"},
		),

		BulkFixStepsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: draftSubsystem,
				Name:      "bulkfix_steps_total",
				Help:      "Total bulk-fix steps by outcome",
			},
			[]string{"outcome"},
		),

		BulkFixBatchesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: draftSubsystem,
				Name:      "bulkfix_batches_total",
				Help:      "Total completed bulk-fix batches",
			},
		),

		SnapshotsCommittedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: draftSubsystem,
				Name:      "snapshots_committed_total",
				Help:      "Total snapshots committed",
			},
		),

		SnapshotRestoresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: draftSubsystem,
				Name:      "snapshot_restores_total",
				Help:      "Total snapshot restores",
			},
		),

		GenerationsStartedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: draftSubsystem,
				Name:      "generations_started_total",
				Help:      "Total generation jobs started",
			},
		),

		ActiveTracks: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: draftSubsystem,
				Name:      "active_tracks",
				Help:      "Number of live task-tracking websocket sessions",
			},
		),

		TrackEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: draftSubsystem,
				Name:      "track_events_total",
				Help:      "Total normalized status events forwarded by kind",
			},
			[]string{"kind"},
		),

		ChannelFallbacksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: draftSubsystem,
				Name:      "channel_fallbacks_total",
				Help:      "Total coordinator transitions from push to poll",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeNotFound indicates a missing document, section, or snapshot.
	ErrorCodeNotFound ErrorCode = "not_found"

	// ErrorCodePatch indicates a patch application failure.
	ErrorCodePatch ErrorCode = "patch_error"

	// ErrorCodeResolver indicates a bulk-fix resolver failure.
	ErrorCodeResolver ErrorCode = "resolver_error"

	// ErrorCodeSnapshot indicates a snapshot store failure.
	ErrorCodeSnapshot ErrorCode = "snapshot_error"

	// ErrorCodeGeneration indicates a generation backend failure.
	ErrorCodeGeneration ErrorCode = "generation_error"

	// ErrorCodeInternal indicates internal server error.
	ErrorCodeInternal ErrorCode = "internal"
)

// =============================================================================
// Endpoint Names
// =============================================================================

// Endpoint represents a service endpoint for metrics labeling.
type Endpoint string

const (
	// EndpointDocuments is the document create/read/update surface.
	EndpointDocuments Endpoint = "documents"

	// EndpointGenerate is the generation-start endpoint.
	EndpointGenerate Endpoint = "generate"

	// EndpointTrack is the task-tracking websocket endpoint.
	EndpointTrack Endpoint = "track"

	// EndpointPatch is the single-patch endpoint.
	EndpointPatch Endpoint = "patch"

	// EndpointBulkFix is the bulk-fix endpoint.
	EndpointBulkFix Endpoint = "bulkfix"

	// EndpointSnapshots is the snapshot commit/list/restore/diff surface.
	EndpointSnapshots Endpoint = "snapshots"

	// EndpointSearch is the related-clause search endpoint.
	EndpointSearch Endpoint = "search"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed request.
//
// # Inputs
//
//   - endpoint: The endpoint that handled the request.
//   - success: Whether the request completed successfully.
func (m *DraftMetrics) RecordRequest(endpoint Endpoint, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
}

// RecordError records a categorized error.
//
// # Inputs
//
//   - endpoint: The endpoint where the error occurred.
//   - code: The error type code.
func (m *DraftMetrics) RecordError(endpoint Endpoint, code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(endpoint), string(code)).Inc()
}

// RecordPatch records one patch application. A patch that matched
// nothing counts as noop.
func (m *DraftMetrics) RecordPatch(replaced int) {
	outcome := "applied"
	if replaced == 0 {
		outcome = "noop"
	}
	m.PatchOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordSnapshotCommit increments the snapshot commit counter.
func (m *DraftMetrics) RecordSnapshotCommit() {
	m.SnapshotsCommittedTotal.Inc()
}

// RecordSnapshotRestore increments the snapshot restore counter.
func (m *DraftMetrics) RecordSnapshotRestore() {
	m.SnapshotRestoresTotal.Inc()
}

// RecordGenerationStarted increments the generation job counter.
func (m *DraftMetrics) RecordGenerationStarted() {
	m.GenerationsStartedTotal.Inc()
}

// TrackOpened increments the live tracking-session gauge.
func (m *DraftMetrics) TrackOpened() {
	m.ActiveTracks.Inc()
}

// TrackClosed decrements the live tracking-session gauge.
func (m *DraftMetrics) TrackClosed() {
	m.ActiveTracks.Dec()
}

// RecordTrackEvent counts one forwarded status event.
//
// # Inputs
//
//   - kind: The normalized event kind label.
func (m *DraftMetrics) RecordTrackEvent(kind string) {
	m.TrackEventsTotal.WithLabelValues(kind).Inc()
}

// RecordChannelFallback counts one push-to-poll failover.
func (m *DraftMetrics) RecordChannelFallback() {
	m.ChannelFallbacksTotal.Inc()
}
