// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
	"github.com/AleutianAI/AleutianDraft/services/draft/document"
	"github.com/AleutianAI/AleutianDraft/services/draft/observability"
	"github.com/AleutianAI/AleutianDraft/services/draft/search"
	"github.com/AleutianAI/AleutianDraft/services/draft/tracksync"
)

// TrackTask streams a generation task's normalized status events to the
// browser over a WebSocket.
//
// Each connection runs its own coordinator: push first, poll fallback,
// one terminal event. Generated content rides in the events and is held
// in a secure accumulator until the terminal frame; when the query
// names a document and section, the finished text is written into the
// store before the terminal frame goes out.
func TrackTask(push tracksync.PushTransport, poll tracksync.PollTransport,
	store *document.Store, idx *search.Index, pollInterval time.Duration) gin.HandlerFunc {

	return func(c *gin.Context) {
		taskID := c.Param("taskId")
		documentID := c.Query("document_id")
		section := c.Query("section")

		// The request span from the middleware ends when the handler
		// returns; the session span covers the whole stream.
		spanCtx, span := observability.StartSpan(c.Request.Context(),
			"aleutian.draft.handlers", "TrackTask",
			trace.WithAttributes(
				attribute.String("task.id", taskID),
				attribute.String("document.id", documentID)))
		defer span.End()

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			observability.RecordError(span, err)
			slog.Error("Failed to upgrade track websocket", "task_id", taskID, "error", err)
			return
		}
		defer ws.Close()

		if m := observability.DefaultMetrics; m != nil {
			m.TrackOpened()
			defer m.TrackClosed()
		}
		openedAttrs := []any{
			"task_id", taskID,
			"document_id", documentID,
			"section", section,
		}
		if tid := observability.TraceID(spanCtx); tid != "" {
			openedAttrs = append(openedAttrs, "trace_id", tid)
		}
		slog.Info("Track session opened", openedAttrs...)

		acc, err := NewContentAccumulator()
		if err != nil {
			observability.RecordError(span, err)
			slog.Error("Secure accumulator unavailable", "task_id", taskID, "error", err)
			_ = sendJSON(ws, gin.H{"error": err.Error()})
			return
		}
		defer acc.Destroy()

		ctx, cancel := context.WithCancel(spanCtx)
		defer cancel()

		// Read pump: the browser sends nothing meaningful, but reading
		// is what surfaces its close frame.
		go func() {
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		var observer tracksync.Observer
		if m := observability.DefaultMetrics; m != nil {
			observer = observability.NewTrackObserver(m)
		}
		coordinator := tracksync.New(tracksync.Config{
			Push:         push,
			Poll:         poll,
			PollInterval: pollInterval,
			Logger:       slog.Default(),
			Observer:     observer,
		})
		defer coordinator.Close()

		overflowed := false
		for ev := range coordinator.Track(ctx, taskID) {
			if ev.Kind == datatypes.EventProgress && ev.Content != "" && !overflowed {
				if werr := acc.Write(ev.Content); werr != nil {
					slog.Warn("Content accumulation stopped",
						"task_id", taskID,
						"accumulator_id", acc.ID(),
						"error", werr)
					overflowed = true
				}
			}

			if ev.Kind == datatypes.EventCompleted {
				ev.Content = finishContent(ctx, acc, store, idx, taskID, documentID, section, ev.Content)
			}

			if sendJSON(ws, ev) != nil {
				return
			}
			if ev.Kind.Terminal() {
				span.SetAttributes(attribute.String("event.kind", string(ev.Kind)))
				slog.Info("Track session finished", "task_id", taskID, "kind", ev.Kind)
				return
			}
		}
		slog.Info("Track session closed without terminal event", "task_id", taskID)
	}
}

// finishContent settles the final text for a completed task and writes
// it into the named section.
//
// A completion frame carrying content is authoritative; otherwise the
// accumulated stream is the result. Store failures are logged, not
// fatal: the browser still receives the content it watched arrive.
func finishContent(ctx context.Context, acc ContentAccumulator, store *document.Store,
	idx *search.Index, taskID, documentID, section, frameContent string) string {

	final := frameContent
	if final == "" {
		content, digest, err := acc.Finalize()
		if err != nil {
			slog.Warn("Accumulated content unavailable",
				"task_id", taskID,
				"accumulator_id", acc.ID(),
				"error", err)
			return ""
		}
		slog.Info("Finalized streamed content",
			"task_id", taskID,
			"content_length", len(content),
			"digest", digest[:16])
		final = content
	} else {
		acc.Destroy()
	}

	if documentID == "" || section == "" || final == "" {
		return final
	}

	doc, err := store.UpdateSection(ctx, documentID, section, final)
	if err != nil {
		slog.Error("Generated content write-back failed",
			"task_id", taskID,
			"document_id", documentID,
			"section", section,
			"error", err)
		return final
	}
	slog.Info("Wrote generated content",
		"task_id", taskID,
		"document_id", documentID,
		"section", section,
		"content_length", len(final))
	reindex(idx, doc.ID, doc.Sections)
	return final
}
