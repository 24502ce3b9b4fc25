// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the draft service.
//
// # Authentication Flow
//
// The auth middleware compares the X-API-Key header against the key the
// service was configured with and rejects mismatches before any handler
// runs.
//
//	Request
//	   │
//	   ▼
//	APIKeyAuth
//	   │
//	   ├─► Read "X-API-Key" header
//	   │
//	   ├─► Constant-time compare against configured key
//	   │
//	   └─► 401 on mismatch, otherwise continue
//
// # Open Source Behavior
//
// When no key is configured (the default), all requests pass through.
// This enables the CLI and a local browser session to function without
// any authentication infrastructure.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader is the header clients present their key in.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth requires requests to carry the configured key.
//
// # Description
//
// With an empty key the middleware is a pass-through, which is the
// open-source single-user deployment. With a key set, requests missing
// it or presenting a different value are rejected before any handler
// runs. Comparison is constant-time.
//
// # Inputs
//
//   - key: The required API key. Empty disables the check.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware to install on the route group.
//
// # Examples
//
//	v1 := router.Group("/v1")
//	v1.Use(middleware.APIKeyAuth(cfg.APIKey))
//
// # Limitations
//
//   - Single shared key, no per-user identity
//   - No rotation support; changing the key requires a restart
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func APIKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		presented := c.GetHeader(APIKeyHeader)
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			return
		}
		c.Next()
	}
}
