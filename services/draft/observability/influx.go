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
	"errors"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/AleutianDraft/services/draft/bulkfix"
	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

// InfluxConfig configures the optional edit-telemetry sink.
type InfluxConfig struct {
	// URL is the InfluxDB server URL.
	URL string

	// Token authenticates writes.
	Token string

	// Org is the InfluxDB organization.
	Org string

	// Bucket receives the edit-telemetry points.
	Bucket string
}

// InfluxObserver mirrors bulk-fix telemetry into InfluxDB for offline
// analysis of edit sessions.
//
// # Description
//
// Uses the client's asynchronous write API so observer callbacks queue
// points without waiting on the network; the points flush in the
// background and on Close. Write failures are logged and dropped, never
// surfaced to the batch.
//
// # Thread Safety
//
// Safe for concurrent batches; the write API does its own batching.
type InfluxObserver struct {
	client influxdb2.Client
	write  api.WriteAPI
	logger *slog.Logger
}

var _ bulkfix.Observer = (*InfluxObserver)(nil)

// NewInfluxObserver connects the telemetry sink.
//
// # Inputs
//
//   - cfg: Server URL, token, org, and bucket. URL and Token required.
//   - logger: Destination for dropped-write warnings. Nil uses the default.
//
// # Outputs
//
//   - *InfluxObserver: The connected observer. Call Close on shutdown
//     to flush queued points.
//   - error: Non-nil if required config is missing.
func NewInfluxObserver(cfg InfluxConfig, logger *slog.Logger) (*InfluxObserver, error) {
	if cfg.URL == "" {
		return nil, errors.New("influx URL is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("influx token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	obs := &InfluxObserver{
		client: client,
		write:  writeAPI,
		logger: logger,
	}

	go func() {
		for err := range writeAPI.Errors() {
			logger.Warn("Dropped edit-telemetry write", "error", err)
		}
	}()

	slog.Info("InfluxDB edit telemetry enabled",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket)
	return obs, nil
}

// BatchStarted implements bulkfix.Observer.
func (o *InfluxObserver) BatchStarted(section string, total int) {
	o.write.WritePoint(batchStartPoint(section, total, time.Now()))
}

// StepCompleted implements bulkfix.Observer.
func (o *InfluxObserver) StepCompleted(step, total int, report datatypes.FixReport, workingText string) {
	o.write.WritePoint(stepPoint(step, total, report, time.Now()))
}

// BatchFinished implements bulkfix.Observer.
func (o *InfluxObserver) BatchFinished(summary *datatypes.BulkFixSummary) {
	o.write.WritePoint(batchPoint(summary, time.Now()))
}

// Close flushes queued points and releases the client.
func (o *InfluxObserver) Close() {
	o.write.Flush()
	o.client.Close()
}

// batchStartPoint shapes the batch-start measurement.
func batchStartPoint(section string, total int, ts time.Time) *write.Point {
	return influxdb2.NewPoint(
		"draft_bulkfix_start",
		map[string]string{
			"section": section,
		},
		map[string]interface{}{
			"total": total,
		},
		ts,
	)
}

// stepPoint shapes the per-step measurement.
func stepPoint(step, total int, report datatypes.FixReport, ts time.Time) *write.Point {
	return influxdb2.NewPoint(
		"draft_fix_step",
		map[string]string{
			"outcome": string(report.Outcome),
		},
		map[string]interface{}{
			"step":    step,
			"total":   total,
			"pattern": report.Pattern,
		},
		ts,
	)
}

// batchPoint shapes the batch-summary measurement.
func batchPoint(summary *datatypes.BulkFixSummary, ts time.Time) *write.Point {
	return influxdb2.NewPoint(
		"draft_bulkfix_batch",
		map[string]string{
			"section": summary.Section,
		},
		map[string]interface{}{
			"total":   summary.Total,
			"applied": summary.Applied,
			"skipped": summary.Skipped,
		},
		ts,
	)
}
