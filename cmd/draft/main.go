// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command draft starts the AleutianDraft drafting HTTP server.
//
// This is the main entry point for the containerized draft service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - DRAFT_PORT: HTTP server port (default: 12220)
//   - DRAFT_VERSION: Version reported on /health (default: dev)
//   - DRAFT_API_KEY: API key guarding /v1; empty disables auth
//   - GENERATION_SERVICE_URL: Generation backend REST root
//   - DRAFT_POLL_INTERVAL: Track poll fallback cadence (default: 2s)
//   - LLM_BACKEND_TYPE: Fix resolver provider - local, openai, ollama, claude (default: local)
//   - DRAFT_PROMPT_DIR: Resolver prompt override directory (optional)
//   - DRAFT_RESOLVER_CALLS_PER_MINUTE: Resolver pacing; 0 disables (default: 0)
//   - DRAFT_RESOLVER_BURST: Resolver pacing burst (default: 0 = derived)
//   - DRAFT_CONTEXT_RADIUS: Fix context window radius in chars (default: 200)
//   - DRAFT_SNAPSHOT_DIR: Durable snapshot directory; empty keeps history in memory
//   - DRAFT_SNAPSHOT_SYNC_WRITES: fsync snapshot commits - true/false (default: false)
//   - DRAFT_GCS_ARCHIVE_BUCKET: GCS bucket mirroring snapshot commits (optional)
//   - DRAFT_GCS_ARCHIVE_PREFIX: Object prefix for archived snapshots (default: snapshots)
//   - GCS_SA_KEY_PATH: Service-account key for the archive sink (optional)
//   - WEAVIATE_SERVICE_URL: Weaviate vector DB URL for related-clause search (optional)
//   - INFLUXDB_URL, INFLUXDB_TOKEN, INFLUXDB_ORG, INFLUXDB_BUCKET: Edit-telemetry sink (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: aleutian-otel-collector:4317)
//
// # Usage
//
//	# Build
//	go build -o draft ./cmd/draft
//
//	# Run
//	./draft
//
//	# Or via container
//	podman-compose up draft
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianDraft/services/draft"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := draft.Config{
		Port:                   getEnvInt("DRAFT_PORT", 12220),
		Version:                getEnvString("DRAFT_VERSION", "dev"),
		APIKey:                 os.Getenv("DRAFT_API_KEY"),
		GeneratorURL:           os.Getenv("GENERATION_SERVICE_URL"),
		PollInterval:           getEnvDuration("DRAFT_POLL_INTERVAL", 2*time.Second),
		LLMBackend:             getEnvString("LLM_BACKEND_TYPE", "local"),
		PromptDir:              os.Getenv("DRAFT_PROMPT_DIR"),
		ResolverCallsPerMinute: getEnvFloat("DRAFT_RESOLVER_CALLS_PER_MINUTE", 0),
		ResolverBurst:          getEnvInt("DRAFT_RESOLVER_BURST", 0),
		ContextRadius:          getEnvInt("DRAFT_CONTEXT_RADIUS", 0),
		SnapshotDir:            os.Getenv("DRAFT_SNAPSHOT_DIR"),
		SnapshotSyncWrites:     getEnvBool("DRAFT_SNAPSHOT_SYNC_WRITES", false),
		GCSArchiveBucket:       os.Getenv("DRAFT_GCS_ARCHIVE_BUCKET"),
		GCSArchivePrefix:       getEnvString("DRAFT_GCS_ARCHIVE_PREFIX", "snapshots"),
		GCSKeyPath:             os.Getenv("GCS_SA_KEY_PATH"),
		WeaviateURL:            os.Getenv("WEAVIATE_SERVICE_URL"),
		InfluxURL:              os.Getenv("INFLUXDB_URL"),
		InfluxToken:            os.Getenv("INFLUXDB_TOKEN"),
		InfluxOrg:              os.Getenv("INFLUXDB_ORG"),
		InfluxBucket:           os.Getenv("INFLUXDB_BUCKET"),
		OTelEndpoint:           getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "aleutian-otel-collector:4317"),
	}

	slog.Info("Starting draft service",
		"port", cfg.Port,
		"version", cfg.Version,
		"llm_backend", cfg.LLMBackend,
		"generator_url", cfg.GeneratorURL,
		"snapshot_dir", cfg.SnapshotDir,
		"weaviate_url", cfg.WeaviateURL,
	)

	svc, err := draft.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create draft service: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Draft service error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
