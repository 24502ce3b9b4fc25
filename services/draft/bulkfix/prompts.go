// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bulkfix

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"text/template"

	"github.com/fsnotify/fsnotify"
)

// fixPromptFile is the override file name inside the prompt directory.
const fixPromptFile = "fix_replacement.tmpl"

// defaultFixPrompt is the compiled-in fix prompt. An override file
// replaces it at runtime; a broken override leaves it in force.
const defaultFixPrompt = `You are revising one flagged span of a contract draft.

Surrounding text:
{{.Context}}

Replace this exact phrase: {{.Pattern}}
{{- if .Instruction}}
Guidance: {{.Instruction}}
{{- end}}

Respond with ONLY the replacement text. No explanation, no quotes, no markdown.`

// FixPromptData is the data for fix prompt rendering.
type FixPromptData struct {
	// Pattern is the phrase being replaced.
	Pattern string

	// Context is the plain-text window around the occurrence.
	Context string

	// Instruction is optional per-fix guidance.
	Instruction string
}

// PromptStore supplies the resolver's prompt template, with optional
// hot reload from disk.
//
// # Description
//
// With no directory configured the compiled-in template is used. With
// a directory, <dir>/fix_replacement.tmpl overrides it when present,
// and Start watches the directory so edits take effect without a
// restart. An override that fails to parse is rejected and the
// previously active template stays in force.
//
// # Thread Safety
//
// Safe for concurrent use. Start should only be called once.
type PromptStore struct {
	dir     string
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	mu   sync.RWMutex
	tmpl *template.Template
}

// NewPromptStore creates a PromptStore. dir may be empty to use only
// the compiled-in template; then Start is a no-op.
func NewPromptStore(dir string, logger *slog.Logger) (*PromptStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := template.New("fix").Parse(defaultFixPrompt)
	if err != nil {
		return nil, err
	}

	s := &PromptStore{
		dir:    dir,
		logger: logger,
		tmpl:   tmpl,
	}

	if dir != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		s.watcher = watcher
		s.reload()
	}
	return s, nil
}

// Render renders the fix prompt for one resolution.
func (s *PromptStore) Render(data FixPromptData) (string, error) {
	s.mu.RLock()
	tmpl := s.tmpl
	s.mu.RUnlock()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Start begins watching the prompt directory for template changes.
//
// # Description
//
// Blocks until the context is cancelled. Should be run in a goroutine.
// Without a configured directory this returns immediately.
//
// # Example
//
//	store, _ := bulkfix.NewPromptStore(dir, logger)
//	go store.Start(ctx)
func (s *PromptStore) Start(ctx context.Context) {
	if s.watcher == nil {
		return
	}

	if err := s.watcher.Add(s.dir); err != nil {
		s.logger.Warn("Failed to watch prompt directory",
			"dir", s.dir,
			"error", err)
		return
	}

	s.logger.Debug("Started watching prompt directory",
		"dir", s.dir)

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Prompt watcher error",
				"error", err)

		case <-ctx.Done():
			s.logger.Debug("Prompt watcher stopping")
			return
		}
	}
}

// Stop stops the watcher and releases resources. Safe to call when no
// directory was configured.
func (s *PromptStore) Stop() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

// handleEvent processes a single fsnotify event.
func (s *PromptStore) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if filepath.Base(event.Name) != fixPromptFile {
		return
	}

	s.logger.Info("Prompt template changed on disk, reloading",
		"path", event.Name)
	s.reload()
}

// reload reads the override template from disk. A missing file reverts
// to the compiled-in template; a broken one keeps the previous.
func (s *PromptStore) reload() {
	path := filepath.Join(s.dir, fixPromptFile)
	content, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to read prompt override",
				"path", path,
				"error", err)
			return
		}
		if err := s.install(defaultFixPrompt); err != nil {
			s.logger.Warn("Failed to restore default prompt",
				"error", err)
		}
		return
	}

	if err := s.install(string(content)); err != nil {
		s.logger.Warn("Prompt override failed to parse, keeping previous",
			"path", path,
			"error", err)
		return
	}
	s.logger.Info("Loaded prompt override",
		"path", path)
}

// install parses and swaps in a template.
func (s *PromptStore) install(text string) error {
	tmpl, err := template.New("fix").Parse(text)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tmpl = tmpl
	s.mu.Unlock()
	return nil
}
