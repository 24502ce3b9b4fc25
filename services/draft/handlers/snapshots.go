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

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
	"github.com/AleutianAI/AleutianDraft/services/draft/document"
	"github.com/AleutianAI/AleutianDraft/services/draft/observability"
	"github.com/AleutianAI/AleutianDraft/services/draft/search"
	"github.com/AleutianAI/AleutianDraft/services/draft/snapshot"
)

// CommitSnapshot checkpoints a document's current sections.
func CommitSnapshot(store *document.Store, logs snapshot.LogProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CommitSnapshotRequest
		if err := c.BindJSON(&req); err != nil {
			recordError(observability.EndpointSnapshots, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			recordError(observability.EndpointSnapshots, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		id := c.Param("documentId")
		sections, err := store.Sections(c.Request.Context(), id)
		if err != nil {
			respondSnapshotError(c, err)
			return
		}

		log, err := logs.For(id)
		if err != nil {
			respondSnapshotError(c, err)
			return
		}
		snapID, err := log.Commit(c.Request.Context(), req.Label, req.Author, sections)
		if err != nil {
			respondSnapshotError(c, err)
			return
		}

		slog.Info("Committed snapshot",
			"document_id", id,
			"snapshot_id", snapID,
			"label", req.Label)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordSnapshotCommit()
		}
		recordRequest(observability.EndpointSnapshots, true)
		c.JSON(http.StatusCreated, gin.H{"snapshot_id": snapID, "label": req.Label})
	}
}

// ListSnapshots returns a document's checkpoint history in commit
// order.
func ListSnapshots(logs snapshot.LogProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		log, err := logs.For(c.Param("documentId"))
		if err != nil {
			respondSnapshotError(c, err)
			return
		}
		summaries, err := log.List(c.Request.Context())
		if err != nil {
			respondSnapshotError(c, err)
			return
		}
		recordRequest(observability.EndpointSnapshots, true)
		c.JSON(http.StatusOK, gin.H{"snapshots": summaries})
	}
}

// GetSnapshot returns one full checkpoint record.
func GetSnapshot(logs snapshot.LogProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		log, err := logs.For(c.Param("documentId"))
		if err != nil {
			respondSnapshotError(c, err)
			return
		}
		snap, err := log.Get(c.Request.Context(), c.Param("snapshotId"))
		if err != nil {
			respondSnapshotError(c, err)
			return
		}
		recordRequest(observability.EndpointSnapshots, true)
		c.JSON(http.StatusOK, snap)
	}
}

// RestoreSnapshot replaces a document's live sections with a
// checkpoint's, undoing everything after it in one step.
func RestoreSnapshot(store *document.Store, logs snapshot.LogProvider, idx *search.Index) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("documentId")
		log, err := logs.For(id)
		if err != nil {
			respondSnapshotError(c, err)
			return
		}
		snap, err := log.Get(c.Request.Context(), c.Param("snapshotId"))
		if err != nil {
			respondSnapshotError(c, err)
			return
		}

		doc, err := store.Restore(c.Request.Context(), id, snap.Sections, nil)
		if err != nil {
			respondSnapshotError(c, err)
			return
		}

		slog.Info("Restored snapshot",
			"document_id", id,
			"snapshot_id", snap.ID,
			"label", snap.Label)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordSnapshotRestore()
		}
		recordRequest(observability.EndpointSnapshots, true)
		reindex(idx, doc.ID, doc.Sections)
		c.JSON(http.StatusOK, datatypes.NewDocumentResponse(doc))
	}
}

// DiffSnapshot renders the unified diff from a checkpoint to the
// document's current sections, or to another checkpoint named in the
// "to" query parameter.
func DiffSnapshot(store *document.Store, logs snapshot.LogProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("documentId")
		log, err := logs.For(id)
		if err != nil {
			respondSnapshotError(c, err)
			return
		}
		from, err := log.Get(c.Request.Context(), c.Param("snapshotId"))
		if err != nil {
			respondSnapshotError(c, err)
			return
		}

		var toSections map[string]string
		if toID := c.Query("to"); toID != "" {
			to, err := log.Get(c.Request.Context(), toID)
			if err != nil {
				respondSnapshotError(c, err)
				return
			}
			toSections = to.Sections
		} else {
			toSections, err = store.Sections(c.Request.Context(), id)
			if err != nil {
				respondSnapshotError(c, err)
				return
			}
		}

		diff, err := snapshot.DiffSections(from.Sections, toSections)
		if err != nil {
			slog.Error("Snapshot diff failed", "document_id", id, "error", err)
			recordError(observability.EndpointSnapshots, observability.ErrorCodeSnapshot)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		recordRequest(observability.EndpointSnapshots, true)
		c.String(http.StatusOK, diff)
	}
}

// respondSnapshotError maps store and log errors onto status codes.
func respondSnapshotError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, document.ErrDocumentNotFound),
		errors.Is(err, snapshot.ErrSnapshotNotFound):
		recordError(observability.EndpointSnapshots, observability.ErrorCodeNotFound)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		slog.Error("Snapshot operation failed", "error", err)
		recordError(observability.EndpointSnapshots, observability.ErrorCodeSnapshot)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
