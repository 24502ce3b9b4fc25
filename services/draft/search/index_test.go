// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

// TestNewIndexRequiresClient verifies the nil-client guard.
func TestNewIndexRequiresClient(t *testing.T) {
	_, err := NewIndex(nil)
	require.Error(t, err)
}

// TestClauseSchemaShape verifies the class definition carries the
// properties the queries depend on, with no vectorizer.
func TestClauseSchemaShape(t *testing.T) {
	class := clauseSchema()
	assert.Equal(t, ClauseClassName, class.Class)
	assert.Equal(t, "none", class.Vectorizer)

	names := make(map[string]bool)
	for _, prop := range class.Properties {
		names[prop.Name] = true
	}
	for _, want := range []string{"clauseId", "documentId", "section", "content", "indexedAt"} {
		assert.True(t, names[want], "schema missing property %q", want)
	}
}

// TestClauseIDDeterministic verifies the id derivation is stable per
// (document, section) and distinct across them, so re-indexing
// overwrites instead of duplicating.
func TestClauseIDDeterministic(t *testing.T) {
	a := clauseID("doc-1", "Terms")
	assert.Equal(t, a, clauseID("doc-1", "Terms"))
	assert.NotEqual(t, a, clauseID("doc-1", "Scope"))
	assert.NotEqual(t, a, clauseID("doc-2", "Terms"))
	assert.Len(t, a, 36, "expected canonical uuid form")
}

// TestBuildClauseObjects verifies projection, ordering, and the
// skipping of sections that project to nothing.
func TestBuildClauseObjects(t *testing.T) {
	sections := map[string]string{
		"Terms":    "<p>Payment is <b>due</b> on receipt.</p>",
		"Scope":    "Plain prose stays as written.",
		"Untitled": "",
	}

	objects, err := buildClauseObjects(context.Background(), "doc-1", sections)
	require.NoError(t, err)
	require.Len(t, objects, 2, "empty section should not be indexed")

	// Section-name order: Scope before Terms.
	first := objects[0].Properties.(map[string]interface{})
	second := objects[1].Properties.(map[string]interface{})
	assert.Equal(t, "Scope", first["section"])
	assert.Equal(t, "Terms", second["section"])
	assert.Equal(t, "Payment is due on receipt.", second["content"],
		"indexed content should be the plain projection")
	assert.Equal(t, "doc-1", first["documentId"])
	assert.Equal(t, string(objects[0].ID), first["clauseId"])
}

// TestParseClauses verifies unpacking of a Get response, including the
// string-typed BM25 score and skipping of malformed entries.
func TestParseClauses(t *testing.T) {
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				ClauseClassName: []interface{}{
					map[string]interface{}{
						"clauseId":   "c-1",
						"documentId": "doc-1",
						"section":    "Terms",
						"content":    "Payment is due on receipt.",
						"_additional": map[string]interface{}{
							"score": "1.25",
						},
					},
					"not an object",
					map[string]interface{}{
						"clauseId":   "c-2",
						"documentId": "doc-2",
						"section":    "Scope",
						"content":    "All deliverables.",
						"_additional": map[string]interface{}{
							"score": 0.5,
						},
					},
				},
			},
		},
	}

	clauses := parseClauses(resp)
	require.Len(t, clauses, 2)
	assert.Equal(t, "c-1", clauses[0].ClauseID)
	assert.Equal(t, 1.25, clauses[0].Score)
	assert.Equal(t, "Scope", clauses[1].Section)
	assert.Equal(t, 0.5, clauses[1].Score)
}

// TestParseClausesEmptyResponse verifies absent data comes back as an
// empty slice, not an error or nil panic.
func TestParseClausesEmptyResponse(t *testing.T) {
	clauses := parseClauses(&models.GraphQLResponse{Data: map[string]models.JSONObject{}})
	assert.Empty(t, clauses)
}
