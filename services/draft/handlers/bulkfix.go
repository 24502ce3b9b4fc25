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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianDraft/services/draft/bulkfix"
	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
	"github.com/AleutianAI/AleutianDraft/services/draft/document"
	"github.com/AleutianAI/AleutianDraft/services/draft/observability"
	"github.com/AleutianAI/AleutianDraft/services/draft/search"
	"github.com/AleutianAI/AleutianDraft/services/draft/snapshot"
)

// ResolverBinder turns a per-fix instruction into a Resolver. The
// LLM-backed resolver satisfies this; tests substitute fakes.
type ResolverBinder interface {
	Bind(instruction string) bulkfix.Resolver
}

// BulkFixDeps carries everything a bulk-fix run needs. Pacer, Observer,
// and ContextRadius are shared across runs; the snapshot log is scoped
// to the request's document.
type BulkFixDeps struct {
	Store         *document.Store
	Logs          snapshot.LogProvider
	Binder        ResolverBinder
	Index         *search.Index
	Pacer         bulkfix.Pacer
	Observer      bulkfix.Observer
	ContextRadius int
	Logger        *slog.Logger
}

// RunBulkFix executes a batch of fixes against one section.
//
// The batch checkpoint commits before the first fix; individual fix
// failures skip that fix and continue, so the response is a summary,
// not an all-or-nothing result.
func RunBulkFix(deps BulkFixDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.BulkFixRequest
		if err := c.BindJSON(&req); err != nil {
			recordError(observability.EndpointBulkFix, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			recordError(observability.EndpointBulkFix, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		id := c.Param("documentId")
		ctx, span := observability.StartSpan(c.Request.Context(),
			"aleutian.draft.handlers", "RunBulkFix",
			trace.WithAttributes(
				attribute.String("document.id", id),
				attribute.String("section", req.Section),
				attribute.Int("fix.count", len(req.Fixes))))
		defer span.End()

		sections, err := deps.Store.Sections(ctx, id)
		if err != nil {
			if errors.Is(err, document.ErrDocumentNotFound) {
				recordError(observability.EndpointBulkFix, observability.ErrorCodeNotFound)
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			observability.RecordError(span, err)
			recordError(observability.EndpointBulkFix, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		log, err := deps.Logs.For(id)
		if err != nil {
			observability.RecordError(span, err)
			recordError(observability.EndpointBulkFix, observability.ErrorCodeSnapshot)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		orch, err := bulkfix.New(bulkfix.Config{
			Snapshots:     log,
			Pacer:         deps.Pacer,
			ContextRadius: deps.ContextRadius,
			Logger:        deps.Logger,
			Observer:      deps.Observer,
		})
		if err != nil {
			observability.RecordError(span, err)
			recordError(observability.EndpointBulkFix, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		fixes := make([]bulkfix.Fix, len(req.Fixes))
		for i, spec := range req.Fixes {
			fixes[i] = bulkfix.Fix{
				Pattern:         spec.Pattern,
				OccurrenceIndex: spec.OccurrenceIndex,
				Resolver:        deps.Binder.Bind(spec.Instruction),
			}
		}

		summary, err := orch.Run(ctx, bulkfix.Batch{
			Section:  req.Section,
			Sections: sections,
			Author:   req.Author,
			Fixes:    fixes,
		})
		if err != nil {
			switch {
			case errors.Is(err, bulkfix.ErrUnknownSection):
				recordError(observability.EndpointBulkFix, observability.ErrorCodeNotFound)
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, bulkfix.ErrNoFixes), errors.Is(err, datatypes.ErrBatchTooLarge):
				recordError(observability.EndpointBulkFix, observability.ErrorCodeValidation)
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				observability.RecordError(span, err)
				slog.Error("Bulk fix failed before first step",
					"document_id", id,
					"section", req.Section,
					"error", err)
				recordError(observability.EndpointBulkFix, observability.ErrorCodeSnapshot)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		// The batch ran against a point-in-time copy; the single-writer
		// session owns the document, so writing the result back is the
		// batch's final edit.
		doc, err := deps.Store.UpdateSection(ctx, id, req.Section, summary.Content)
		if err != nil {
			observability.RecordError(span, err)
			slog.Error("Bulk fix result write-back failed",
				"document_id", id,
				"section", req.Section,
				"snapshot_id", summary.SnapshotID,
				"error", err)
			recordError(observability.EndpointBulkFix, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":       err.Error(),
				"snapshot_id": summary.SnapshotID,
			})
			return
		}

		span.SetAttributes(
			attribute.Int("fix.applied", summary.Applied),
			attribute.Int("fix.skipped", summary.Skipped))
		slog.Info("Bulk fix batch finished",
			"document_id", id,
			"section", req.Section,
			"total", summary.Total,
			"applied", summary.Applied,
			"skipped", summary.Skipped,
			"snapshot_id", summary.SnapshotID)
		recordRequest(observability.EndpointBulkFix, true)
		if summary.Applied > 0 {
			reindex(deps.Index, doc.ID, doc.Sections)
		}
		c.JSON(http.StatusOK, summary)
	}
}
