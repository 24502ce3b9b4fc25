// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Server.URL != "http://localhost:12220" {
		t.Errorf("Server.URL = %q, want %q", config.Server.URL, "http://localhost:12220")
	}
	if config.Server.TimeoutSeconds != 30 {
		t.Errorf("Server.TimeoutSeconds = %d, want 30", config.Server.TimeoutSeconds)
	}
	if config.Server.APIKey != "" {
		t.Errorf("Server.APIKey = %q, want empty", config.Server.APIKey)
	}
	if config.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", config.Logging.Level, "info")
	}
	if config.Output.Plain {
		t.Error("Output.Plain = true, want false")
	}
}

// =============================================================================
// FILE LOADING
// =============================================================================

func TestLoadCLIConfig_ExplicitPathMissing(t *testing.T) {
	_, err := loadCLIConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing explicit config path")
	}
}

func TestLoadCLIConfig_FullFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `server:
  url: https://draft.example.com
  api_key: sekrit
  timeout_seconds: 10
author: reviewer@example.com
logging:
  level: debug
  dir: /tmp/draftctl-logs
output:
  plain: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	config, err := loadCLIConfig(path)
	if err != nil {
		t.Fatalf("loadCLIConfig: %v", err)
	}

	if config.Server.URL != "https://draft.example.com" {
		t.Errorf("Server.URL = %q", config.Server.URL)
	}
	if config.Server.APIKey != "sekrit" {
		t.Errorf("Server.APIKey = %q", config.Server.APIKey)
	}
	if config.Server.TimeoutSeconds != 10 {
		t.Errorf("Server.TimeoutSeconds = %d", config.Server.TimeoutSeconds)
	}
	if config.Author != "reviewer@example.com" {
		t.Errorf("Author = %q", config.Author)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", config.Logging.Level)
	}
	if config.Logging.Dir != "/tmp/draftctl-logs" {
		t.Errorf("Logging.Dir = %q", config.Logging.Dir)
	}
	if !config.Output.Plain {
		t.Error("Output.Plain = false, want true")
	}
}

// TestLoadCLIConfig_PartialFileKeepsDefaults verifies keys absent from
// the file keep their defaults rather than zeroing out.
func TestLoadCLIConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  url: https://draft.example.com\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	config, err := loadCLIConfig(path)
	if err != nil {
		t.Fatalf("loadCLIConfig: %v", err)
	}

	if config.Server.URL != "https://draft.example.com" {
		t.Errorf("Server.URL = %q, want the file's value", config.Server.URL)
	}
	if config.Server.TimeoutSeconds != 30 {
		t.Errorf("Server.TimeoutSeconds = %d, want the default 30", config.Server.TimeoutSeconds)
	}
	if config.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want the default", config.Logging.Level)
	}
}

func TestLoadCLIConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not, a, map"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := loadCLIConfig(path); err == nil {
		t.Fatal("expected a parse error for invalid YAML")
	}
}
