// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianDraft/services/draft/bulkfix"
	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
	"github.com/AleutianAI/AleutianDraft/services/draft/document"
	"github.com/AleutianAI/AleutianDraft/services/draft/generator"
	"github.com/AleutianAI/AleutianDraft/services/draft/snapshot"
	"github.com/AleutianAI/AleutianDraft/services/draft/tracksync"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// mockPush is a minimal stub for tracksync.PushTransport.
type mockPush struct{}

func (m *mockPush) Open(_ context.Context, _ string) (tracksync.PushStream, error) {
	return nil, context.Canceled
}

// mockPoll is a minimal stub for tracksync.PollTransport.
type mockPoll struct{}

func (m *mockPoll) Status(_ context.Context, _ string) (datatypes.PollStatusResponse, error) {
	return datatypes.PollStatusResponse{}, context.Canceled
}

// mockBinder returns a resolver that echoes the pattern back.
type mockBinder struct{}

func (m *mockBinder) Bind(_ string) bulkfix.Resolver {
	return bulkfix.ResolverFunc(func(_ context.Context, pattern, _ string) (string, error) {
		return pattern, nil
	})
}

func testConfig(t *testing.T) Config {
	t.Helper()
	gen, err := generator.NewClient(generator.Config{BaseURL: "http://localhost:9"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return Config{
		Store:     document.NewStore(),
		Logs:      snapshot.NewMemoryLogs(),
		Generator: gen,
		Push:      &mockPush{},
		Poll:      &mockPoll{},
		Binder:    &mockBinder{},
		Version:   "v0.0.0-test",
	}
}

// ============================================================================
// Route Table Tests
// ============================================================================

func TestSetupRoutes_CoreRoutes(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, testConfig(t))

	coreRoutes := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"POST", "/v1/documents"},
		{"GET", "/v1/documents/:documentId"},
		{"PUT", "/v1/documents/:documentId/sections/:section"},
		{"POST", "/v1/documents/:documentId/patch"},
		{"POST", "/v1/documents/:documentId/bulkfix"},
		{"POST", "/v1/documents/:documentId/snapshots"},
		{"GET", "/v1/documents/:documentId/snapshots"},
		{"GET", "/v1/documents/:documentId/snapshots/:snapshotId"},
		{"POST", "/v1/documents/:documentId/snapshots/:snapshotId/restore"},
		{"GET", "/v1/documents/:documentId/snapshots/:snapshotId/diff"},
		{"POST", "/v1/generate"},
		{"POST", "/v1/tasks/:taskId/cancel"},
		{"GET", "/v1/tasks/:taskId/track"},
		{"GET", "/v1/search/related"},
	}

	routes := router.Routes()
	for _, expected := range coreRoutes {
		found := false
		for _, r := range routes {
			if r.Method == expected.method && r.Path == expected.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected route %s %s not found", expected.method, expected.path)
		}
	}
}

func TestSetupRoutes_MetricsDisabledByDefault(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, testConfig(t))

	for _, r := range router.Routes() {
		if r.Path == "/metrics" {
			t.Error("Metrics route should not be registered when EnableMetrics is false")
		}
	}
}

// ============================================================================
// Route Handler Tests
// ============================================================================

func TestSetupRoutes_HealthEndpoint(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, testConfig(t))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Health endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSetupRoutes_MetricsEndpoint(t *testing.T) {
	router := gin.New()
	cfg := testConfig(t)
	cfg.EnableMetrics = true
	SetupRoutes(router, cfg)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	// Prometheus metrics endpoint should return 200
	if w.Code != http.StatusOK {
		t.Errorf("Metrics endpoint returned %d, want %d", w.Code, http.StatusOK)
	}

	// Should return prometheus format
	contentType := w.Header().Get("Content-Type")
	if contentType == "" {
		t.Error("Metrics endpoint should return Content-Type header")
	}
}

func TestSetupRoutes_SearchUnavailableWithoutIndex(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, testConfig(t))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/search/related?q=liability", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Search without index returned %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// ============================================================================
// Auth Tests
// ============================================================================

func TestSetupRoutes_APIKeyProtectsV1(t *testing.T) {
	router := gin.New()
	cfg := testConfig(t)
	cfg.APIKey = "test-key"
	SetupRoutes(router, cfg)

	// /v1 routes reject requests without the key
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/documents/doc-1", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Unauthenticated v1 request returned %d, want %d", w.Code, http.StatusUnauthorized)
	}

	// Health stays open
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Health endpoint returned %d, want %d", w.Code, http.StatusOK)
	}

	// With the key the request reaches the handler (404: unknown document)
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/v1/documents/doc-1", nil)
	req.Header.Set("X-API-Key", "test-key")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Authenticated v1 request returned %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ============================================================================
// API Version Group Tests
// ============================================================================

func TestSetupRoutes_V1GroupExists(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, testConfig(t))

	routes := router.Routes()
	v1Routes := 0
	for _, r := range routes {
		if len(r.Path) > 3 && r.Path[:3] == "/v1" {
			v1Routes++
		}
	}

	if v1Routes == 0 {
		t.Error("Expected at least one /v1 route")
	}
}
