// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// CONFIGURATION TYPES
// =============================================================================

// Config holds draftctl settings, loaded from YAML and then layered with
// environment variables and flags (flags win).
type Config struct {
	// Server: where the draft service lives and how to authenticate
	Server ServerConfig `yaml:"server"`

	// Author: name stamped on snapshots and bulk-fix batches
	Author string `yaml:"author"`

	// Logging: draftctl's own session logs
	Logging LoggingConfig `yaml:"logging"`

	// Output: terminal output behavior
	Output OutputConfig `yaml:"output"`
}

type ServerConfig struct {
	URL            string `yaml:"url"`             // e.g. http://localhost:12220
	APIKey         string `yaml:"api_key"`         // sent as X-API-Key on /v1 routes
	TimeoutSeconds int    `yaml:"timeout_seconds"` // e.g. 30
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`   // e.g. ~/.aleutiandraft/logs; empty disables file logs
}

type OutputConfig struct {
	// Plain disables the live tracking display and interactive prompts.
	// The same effect is available per-invocation via --plain, and is
	// applied automatically when stdout is not a terminal.
	Plain bool `yaml:"plain"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			URL:            "http://localhost:12220",
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// defaultConfigPath returns ~/.aleutiandraft/config.yaml, or "" when the
// home directory cannot be determined.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".aleutiandraft", "config.yaml")
}

// loadCLIConfig reads the config file at path, or the default location
// when path is empty.
//
// A missing file at the default location is not an error: draftctl works
// against a local stack with no config at all. A missing file at an
// explicit --config path is an error, since the caller clearly expected
// it to exist.
func loadCLIConfig(path string) (Config, error) {
	config := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
		if path == "" {
			return config, nil
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return config, nil
		}
		return config, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", path, err)
	}
	return config, nil
}
