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
	"github.com/AleutianAI/AleutianDraft/services/draft/generator"
	"github.com/AleutianAI/AleutianDraft/services/draft/observability"
)

// StartGeneration submits a section-generation job to the backend and
// returns the task id the client tracks.
func StartGeneration(store *document.Store, gen *generator.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.StartGenerationRequest
		if err := c.BindJSON(&req); err != nil {
			recordError(observability.EndpointGenerate, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			recordError(observability.EndpointGenerate, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// The job targets a live document; reject unknown ids before
		// the backend burns tokens on them.
		if _, err := store.Get(c.Request.Context(), req.DocumentID); err != nil {
			if errors.Is(err, document.ErrDocumentNotFound) {
				recordError(observability.EndpointGenerate, observability.ErrorCodeNotFound)
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			recordError(observability.EndpointGenerate, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		taskID, err := gen.Start(c.Request.Context(), req)
		if err != nil {
			slog.Error("Generation start failed",
				"document_id", req.DocumentID,
				"section", req.Section,
				"error", err)
			recordError(observability.EndpointGenerate, observability.ErrorCodeGeneration)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.RecordGenerationStarted()
		}
		recordRequest(observability.EndpointGenerate, true)
		c.JSON(http.StatusAccepted, datatypes.NewStartGenerationResponse(taskID, req.DocumentID))
	}
}

// CancelGeneration forwards a cancel request for a running task.
func CancelGeneration(gen *generator.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("taskId")
		if err := gen.Cancel(c.Request.Context(), taskID); err != nil {
			slog.Warn("Generation cancel failed", "task_id", taskID, "error", err)
			recordError(observability.EndpointGenerate, observability.ErrorCodeGeneration)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		recordRequest(observability.EndpointGenerate, true)
		c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "status": "cancelling"})
	}
}
