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
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new span from the context using the global tracer.
//
// # Description
//
// Convenience wrapper that uses otel.Tracer() to create spans without
// explicitly managing tracer instances.
//
// # Inputs
//
//   - ctx: Parent context. May contain an existing span context.
//   - tracerName: Tracer name (typically the package path, e.g.
//     "aleutian.draft.handlers").
//   - spanName: Span name (typically an operation name).
//   - opts: Optional span start options (attributes, links).
//
// # Outputs
//
//   - context.Context: Context with the new span attached.
//   - trace.Span: The created span. Caller must call span.End().
//
// # Thread Safety
//
// Safe for concurrent use.
func StartSpan(ctx context.Context, tracerName, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, opts...)
}

// RecordError records an error on the span with Error status.
//
// # Description
//
// Records the error as a span event and sets the span status to Error.
// A nil span or nil error makes this a no-op.
//
// # Inputs
//
//   - span: The span to record the error on. May be nil.
//   - err: The error to record. May be nil.
//   - attrs: Optional attributes to record with the error event.
func RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}
	opts := make([]trace.EventOption, 0, 1)
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the trace ID from the context as a string.
//
// # Description
//
// Extracts the trace ID from the span context for log correlation.
// Returns the empty string when no valid span context is present.
//
// # Inputs
//
//   - ctx: Context potentially containing a span.
//
// # Outputs
//
//   - string: Hex-encoded trace ID, or "" if unavailable.
func TraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}
