// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(key string) *gin.Engine {
	router := gin.New()
	router.Use(APIKeyAuth(key))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// =============================================================================
// APIKeyAuth Tests
// =============================================================================

func TestAPIKeyAuth_OpenMode(t *testing.T) {
	router := newTestRouter("")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	// No key header in open mode
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuth_ValidKey(t *testing.T) {
	router := newTestRouter("secret-key")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(APIKeyHeader, "secret-key")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuth_MissingKey(t *testing.T) {
	router := newTestRouter("secret-key")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing API key")
}

func TestAPIKeyAuth_WrongKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"different value", "wrong-key"},
		{"prefix of real key", "secret"},
		{"real key with suffix", "secret-key-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter("secret-key")

			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set(APIKeyHeader, tt.key)
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "invalid API key")
		})
	}
}

func TestAPIKeyAuth_AbortsHandlerChain(t *testing.T) {
	handlerRan := false
	router := gin.New()
	router.Use(APIKeyAuth("secret-key"))
	router.GET("/test", func(c *gin.Context) {
		handlerRan = true
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(APIKeyHeader, "wrong")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, handlerRan)
}
