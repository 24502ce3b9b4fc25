// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search maintains an optional Weaviate index of draft sections
// for related-clause lookup. When no Weaviate endpoint is configured the
// service runs in lightweight mode and this package is simply not wired.
package search

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/AleutianDraft/services/draft/patch"
)

// ClauseClassName is the Weaviate class holding indexed draft sections.
const ClauseClassName = "DraftClause"

// indexBatchSize is the number of objects sent per batch import.
const indexBatchSize = 100

// DEFAULT_RELATED_LIMIT caps Related results when the caller passes no limit.
const DEFAULT_RELATED_LIMIT = 5

// Clause is one indexed section returned from a related-clause lookup.
type Clause struct {
	ClauseID   string  `json:"clause_id"`
	DocumentID string  `json:"document_id"`
	Section    string  `json:"section"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// Index wraps a Weaviate client with the clause schema and queries.
type Index struct {
	client *weaviate.Client
}

// NewIndex creates an Index over an initialized Weaviate client.
func NewIndex(client *weaviate.Client) (*Index, error) {
	if client == nil {
		return nil, errors.New("client must not be nil")
	}
	return &Index{client: client}, nil
}

// clauseSchema returns the Weaviate class for indexed draft sections.
// BM25 over the inverted index does the matching; no vectorizer runs.
func clauseSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       ClauseClassName,
		Description: "A draft contract section indexed for related-clause lookup.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "clauseId",
				DataType:        []string{"text"},
				Description:     "Deterministic id derived from document and section.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "documentId",
				DataType:        []string{"text"},
				Description:     "Owning document id.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "section",
				DataType:        []string{"text"},
				Description:     "Section name within the document.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "Plain-text section prose, markup stripped.",
				Tokenization: "word",
			},
			{
				Name:            "indexedAt",
				DataType:        []string{"number"},
				Description:     "Unix ms timestamp of the last index of this section.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureSchema creates the DraftClause class if it does not exist.
// Idempotent; safe to call on every service start.
func (x *Index) EnsureSchema(ctx context.Context) error {
	_, err := x.client.Schema().ClassGetter().WithClassName(ClauseClassName).Do(ctx)
	if err == nil {
		slog.Info("DraftClause schema already exists")
		return nil
	}

	slog.Info("Creating DraftClause schema")
	if err := x.client.Schema().ClassCreator().WithClass(clauseSchema()).Do(ctx); err != nil {
		return fmt.Errorf("creating DraftClause schema: %w", err)
	}
	return nil
}

// clauseID derives the deterministic object id for one section, so
// re-indexing a document overwrites its clauses instead of duplicating
// them.
func clauseID(documentID, section string) string {
	hash := sha256.Sum256([]byte(documentID + "\x00" + section))
	id, _ := uuid.FromBytes(hash[:16])
	return id.String()
}

// IndexSections indexes the current text of a document's sections.
//
// Description:
//
//	Projects each section to plain text, then batch-imports one object
//	per non-empty section under a deterministic id. Sections whose
//	names vanished since the last index are not removed here; call
//	Remove first for a full rebuild.
//
// Inputs:
//
//	ctx - Context for cancellation
//	documentID - Owning document
//	sections - Section name to current content
//
// Outputs:
//
//	int - Number of sections successfully indexed
//	error - Non-nil if projection or batch import fails
func (x *Index) IndexSections(ctx context.Context, documentID string, sections map[string]string) (int, error) {
	objects, err := buildClauseObjects(ctx, documentID, sections)
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, nil
	}

	indexed := 0
	for i := 0; i < len(objects); i += indexBatchSize {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		end := i + indexBatchSize
		if end > len(objects) {
			end = len(objects)
		}

		result, err := x.client.Batch().ObjectsBatcher().WithObjects(objects[i:end]...).Do(ctx)
		if err != nil {
			return indexed, fmt.Errorf("batch import failed: %w", err)
		}
		for _, obj := range result {
			if obj.Result != nil && obj.Result.Errors == nil {
				indexed++
			}
		}
	}

	slog.Info("Indexed document sections",
		"document_id", documentID,
		"indexed", indexed)
	return indexed, nil
}

// buildClauseObjects projects sections to plain text and shapes the
// batch objects in section-name order.
func buildClauseObjects(ctx context.Context, documentID string, sections map[string]string) ([]*models.Object, error) {
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now().UnixMilli()
	objects := make([]*models.Object, 0, len(names))
	for _, name := range names {
		plain, err := patch.Plain(ctx, sections[name])
		if err != nil {
			return nil, fmt.Errorf("projecting section %q: %w", name, err)
		}
		if plain == "" {
			continue
		}
		objects = append(objects, &models.Object{
			Class: ClauseClassName,
			ID:    strfmt.UUID(clauseID(documentID, name)),
			Properties: map[string]interface{}{
				"clauseId":   clauseID(documentID, name),
				"documentId": documentID,
				"section":    name,
				"content":    plain,
				"indexedAt":  now,
			},
		})
	}
	return objects, nil
}

// Remove deletes every indexed clause of a document. Returns how many
// objects the filter matched.
func (x *Index) Remove(ctx context.Context, documentID string) (int, error) {
	where := filters.Where().
		WithPath([]string{"documentId"}).
		WithOperator(filters.Equal).
		WithValueText(documentID)

	resp, err := x.client.Batch().ObjectsBatchDeleter().
		WithClassName(ClauseClassName).
		WithWhere(where).
		WithOutput("minimal").
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("batch delete failed for %s: %w", documentID, err)
	}
	if resp == nil || resp.Results == nil {
		return 0, nil
	}
	return int(resp.Results.Matches), nil
}

// Related finds indexed clauses similar to the query text.
//
// Description:
//
//	BM25 keyword search over the indexed plain-text prose. An optional
//	documentID narrows results to one document; empty searches across
//	every indexed document, which is the usual related-clause flow
//	(show me how other drafts word this clause).
//
// Inputs:
//
//	ctx - Context for cancellation
//	query - Search text, typically the user's selected clause
//	documentID - Optional document filter; empty means all documents
//	limit - Maximum results; <= 0 uses DEFAULT_RELATED_LIMIT
//
// Outputs:
//
//	[]Clause - Matching clauses, best first
//	error - Non-nil if the query fails
func (x *Index) Related(ctx context.Context, query, documentID string, limit int) ([]Clause, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if limit <= 0 {
		limit = DEFAULT_RELATED_LIMIT
	}

	fields := []graphql.Field{
		{Name: "clauseId"},
		{Name: "documentId"},
		{Name: "section"},
		{Name: "content"},
		{Name: "_additional { score }"},
	}

	getBuilder := x.client.GraphQL().Get().
		WithClassName(ClauseClassName).
		WithFields(fields...).
		WithBM25(x.client.GraphQL().Bm25ArgBuilder().WithQuery(query)).
		WithLimit(limit)

	if documentID != "" {
		getBuilder = getBuilder.WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueText(documentID))
	}

	result, err := getBuilder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("related-clause search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search error: %s", result.Errors[0].Message)
	}

	return parseClauses(result), nil
}

// parseClauses unpacks the GraphQL Get response into Clause values.
// Malformed entries are skipped rather than failing the lookup.
func parseClauses(result *models.GraphQLResponse) []Clause {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return []Clause{}
	}
	objects, ok := data[ClauseClassName].([]interface{})
	if !ok {
		return []Clause{}
	}

	clauses := make([]Clause, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		clauses = append(clauses, Clause{
			ClauseID:   getString(m, "clauseId"),
			DocumentID: getString(m, "documentId"),
			Section:    getString(m, "section"),
			Content:    getString(m, "content"),
			Score:      getScore(m),
		})
	}
	return clauses
}

// getString safely extracts a string from a map.
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// getScore reads _additional.score, which Weaviate returns as a string
// for BM25 queries and as a number elsewhere.
func getScore(m map[string]interface{}) float64 {
	additional, ok := m["_additional"].(map[string]interface{})
	if !ok {
		return 0
	}
	switch v := additional["score"].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}
