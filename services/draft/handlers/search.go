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
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianDraft/services/draft/observability"
	"github.com/AleutianAI/AleutianDraft/services/draft/search"
)

// RelatedClauses looks up indexed clauses ranked against the query
// text. Optional query parameters: document_id scopes the lookup to one
// document, limit caps the result count.
func RelatedClauses(idx *search.Index) gin.HandlerFunc {
	return func(c *gin.Context) {
		if idx == nil {
			recordError(observability.EndpointSearch, observability.ErrorCodeInternal)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "search index not configured (lightweight mode)",
			})
			return
		}

		query := c.Query("q")
		if query == "" {
			recordError(observability.EndpointSearch, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
			return
		}

		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				recordError(observability.EndpointSearch, observability.ErrorCodeValidation)
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		clauses, err := idx.Related(c.Request.Context(), query, c.Query("document_id"), limit)
		if err != nil {
			slog.Error("Related-clause lookup failed", "query", query, "error", err)
			recordError(observability.EndpointSearch, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		recordRequest(observability.EndpointSearch, true)
		c.JSON(http.StatusOK, gin.H{"clauses": clauses})
	}
}
