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
	"github.com/AleutianAI/AleutianDraft/services/draft/patch"
	"github.com/AleutianAI/AleutianDraft/services/draft/search"
)

// ApplyPatch performs one occurrence-indexed replacement on a section.
//
// Zero replacements is a normal no-op outcome, reported with replaced=0
// rather than an error.
func ApplyPatch(store *document.Store, idx *search.Index) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ApplyPatchRequest
		if err := c.BindJSON(&req); err != nil {
			recordError(observability.EndpointPatch, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			recordError(observability.EndpointPatch, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		id := c.Param("documentId")
		var replaced int
		doc, err := store.MutateSection(c.Request.Context(), id, req.Section,
			func(current string) (string, error) {
				result, applyErr := patch.Apply(c.Request.Context(), current, req.Patch)
				if applyErr != nil {
					return "", applyErr
				}
				replaced = result.Replaced
				return result.Text, nil
			})
		if err != nil {
			switch {
			case errors.Is(err, document.ErrDocumentNotFound),
				errors.Is(err, document.ErrSectionNotFound):
				recordError(observability.EndpointPatch, observability.ErrorCodeNotFound)
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			default:
				slog.Error("Patch failed", "document_id", id, "section", req.Section, "error", err)
				recordError(observability.EndpointPatch, observability.ErrorCodePatch)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		slog.Info("Applied patch",
			"document_id", id,
			"section", req.Section,
			"pattern", req.Patch.Pattern,
			"replaced", replaced)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordPatch(replaced)
		}
		recordRequest(observability.EndpointPatch, true)
		if replaced > 0 {
			reindex(idx, doc.ID, doc.Sections)
		}
		c.JSON(http.StatusOK, datatypes.ApplyPatchResponse{
			Section:  req.Section,
			Replaced: replaced,
			Content:  doc.Sections[req.Section],
		})
	}
}
