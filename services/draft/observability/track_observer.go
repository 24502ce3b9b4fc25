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
	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
	"github.com/AleutianAI/AleutianDraft/services/draft/tracksync"
)

// TrackObserver mirrors coordinator lifecycle activity into Prometheus
// counters.
//
// # Thread Safety
//
// Stateless apart from the counters; safe for concurrent use.
type TrackObserver struct {
	metrics *DraftMetrics
}

var _ tracksync.Observer = (*TrackObserver)(nil)

// NewTrackObserver wires a coordinator observer onto the metrics set.
func NewTrackObserver(metrics *DraftMetrics) *TrackObserver {
	return &TrackObserver{metrics: metrics}
}

// TrackingStateChanged counts push-to-poll failovers.
func (o *TrackObserver) TrackingStateChanged(taskID string, from, to tracksync.TrackState) {
	if o.metrics == nil {
		return
	}
	if to == tracksync.TrackDegraded {
		o.metrics.RecordChannelFallback()
	}
}

// EventForwarded counts delivered events by kind.
func (o *TrackObserver) EventForwarded(ev datatypes.TaskStatusEvent) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordTrackEvent(string(ev.Kind))
}

// EventDiscarded counts stale and post-terminal events dropped by the
// epoch guard.
func (o *TrackObserver) EventDiscarded(ev datatypes.TaskStatusEvent, reason string) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordTrackEvent("discarded")
}
