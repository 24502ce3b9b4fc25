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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
	"github.com/AleutianAI/AleutianDraft/services/draft/document"
	"github.com/AleutianAI/AleutianDraft/services/draft/observability"
	"github.com/AleutianAI/AleutianDraft/services/draft/search"
)

// CreateDocument creates a document, deriving sections from raw text
// when supplied.
func CreateDocument(store *document.Store, idx *search.Index) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateDocumentRequest
		if err := c.BindJSON(&req); err != nil {
			recordError(observability.EndpointDocuments, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			recordError(observability.EndpointDocuments, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		doc, err := store.Create(c.Request.Context(), req.Title, req.Author, req.RawText)
		if err != nil {
			slog.Error("Document creation failed", "title", req.Title, "error", err)
			recordError(observability.EndpointDocuments, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		slog.Info("Created document",
			"document_id", doc.ID,
			"title", doc.Title,
			"sections", len(doc.Sections))
		recordRequest(observability.EndpointDocuments, true)
		reindex(idx, doc.ID, doc.Sections)
		c.JSON(http.StatusCreated, datatypes.NewDocumentResponse(doc))
	}
}

// GetDocument returns a document by id.
func GetDocument(store *document.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := store.Get(c.Request.Context(), c.Param("documentId"))
		if err != nil {
			if errors.Is(err, document.ErrDocumentNotFound) {
				recordError(observability.EndpointDocuments, observability.ErrorCodeNotFound)
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			recordError(observability.EndpointDocuments, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		recordRequest(observability.EndpointDocuments, true)
		c.JSON(http.StatusOK, datatypes.NewDocumentResponse(doc))
	}
}

// UpdateSection replaces one section's content, creating the section if
// it does not exist yet.
func UpdateSection(store *document.Store, idx *search.Index) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.UpdateSectionRequest
		if err := c.BindJSON(&req); err != nil {
			recordError(observability.EndpointDocuments, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			recordError(observability.EndpointDocuments, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		id := c.Param("documentId")
		section := c.Param("section")
		doc, err := store.UpdateSection(c.Request.Context(), id, section, req.Content)
		if err != nil {
			if errors.Is(err, document.ErrDocumentNotFound) {
				recordError(observability.EndpointDocuments, observability.ErrorCodeNotFound)
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			recordError(observability.EndpointDocuments, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		slog.Info("Updated section", "document_id", id, "section", section)
		recordRequest(observability.EndpointDocuments, true)
		reindex(idx, doc.ID, doc.Sections)
		c.JSON(http.StatusOK, datatypes.NewDocumentResponse(doc))
	}
}

// reindex mirrors a document's sections into the search index in the
// background. A nil index means the service runs in lightweight mode.
func reindex(idx *search.Index, documentID string, sections map[string]string) {
	if idx == nil {
		return
	}
	go func() {
		if _, err := idx.IndexSections(context.Background(), documentID, sections); err != nil {
			slog.Warn("Search reindex failed", "document_id", documentID, "error", err)
		}
	}()
}
