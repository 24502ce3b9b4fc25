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
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// =============================================================================
// HTTP Metrics
// =============================================================================

// HTTPMetrics holds request-level instruments for the draft service.
//
// # Description
//
// Counts, times, and gauges HTTP traffic through the OpenTelemetry
// metric API. With the prometheus exporter configured these land in
// the same /metrics endpoint as the domain metrics, under the same
// aleutian_draft prefix.
//
// # Thread Safety
//
// Safe for concurrent use after creation.
type HTTPMetrics struct {
	// RequestsTotal counts HTTP requests by method, route, and status.
	RequestsTotal metric.Int64Counter

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration metric.Float64Histogram

	// ActiveRequests tracks currently in-flight HTTP requests.
	ActiveRequests metric.Int64UpDownCounter
}

// NewHTTPMetrics creates an HTTPMetrics with all instruments registered
// on the given meter.
//
// # Inputs
//
//   - meter: The OTel meter to register instruments on.
//
// # Outputs
//
//   - *HTTPMetrics: Ready-to-use instruments.
//   - error: Non-nil if instrument registration fails.
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	m := &HTTPMetrics{}
	var err error

	m.RequestsTotal, err = meter.Int64Counter(
		"aleutian_draft_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.RequestDuration, err = meter.Float64Histogram(
		"aleutian_draft_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.ActiveRequests, err = meter.Int64UpDownCounter(
		"aleutian_draft_http_active_requests",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	return m, nil
}

// =============================================================================
// Middleware
// =============================================================================

// HTTPMetricsMiddleware returns Gin middleware recording request
// metrics on the given instruments.
//
// # Description
//
// Records request count, duration, and the in-flight gauge for every
// request. The route label uses Gin's matched route template, so
// /v1/documents/:documentId stays one series regardless of the ids
// that flow through it.
//
// # Inputs
//
//   - m: Pre-registered HTTP instruments from NewHTTPMetrics.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware to install with router.Use().
//
// # Thread Safety
//
// Safe for concurrent use.
func HTTPMetricsMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		m.ActiveRequests.Add(ctx, 1)
		defer m.ActiveRequests.Add(ctx, -1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			// No route matched (404s); one shared series keeps
			// cardinality bounded.
			route = "unmatched"
		}
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
			attribute.Int("status", c.Writer.Status()),
		)

		m.RequestsTotal.Add(ctx, 1, attrs)
		m.RequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
