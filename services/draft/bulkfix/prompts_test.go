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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirStore(t *testing.T, dir string) *PromptStore {
	t.Helper()
	store, err := NewPromptStore(dir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Stop() })
	return store
}

// TestRenderDefaultPrompt verifies the compiled-in template renders
// pattern and context without a guidance line.
func TestRenderDefaultPrompt(t *testing.T) {
	store := newDirStore(t, "")

	prompt, err := store.Render(FixPromptData{Pattern: "TBD", Context: "Delivery is due TBD."})
	require.NoError(t, err)
	assert.Contains(t, prompt, "Replace this exact phrase: TBD")
	assert.Contains(t, prompt, "Delivery is due TBD.")
	assert.Contains(t, prompt, "ONLY the replacement")
	assert.NotContains(t, prompt, "Guidance:")
}

// TestRenderWithInstruction verifies the guidance line renders only
// when an instruction is present.
func TestRenderWithInstruction(t *testing.T) {
	store := newDirStore(t, "")

	prompt, err := store.Render(FixPromptData{
		Pattern:     "TBD",
		Context:     "Delivery is due TBD.",
		Instruction: "Keep it formal.",
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "Guidance: Keep it formal.")
}

// TestOverrideFileLoadedAtConstruction verifies a template on disk
// replaces the compiled-in default.
func TestOverrideFileLoadedAtConstruction(t *testing.T) {
	dir := t.TempDir()
	override := "PATTERN={{.Pattern}} CONTEXT={{.Context}}"
	require.NoError(t, os.WriteFile(filepath.Join(dir, fixPromptFile), []byte(override), 0o644))

	store := newDirStore(t, dir)
	prompt, err := store.Render(FixPromptData{Pattern: "TBD", Context: "Due TBD."})
	require.NoError(t, err)
	assert.Equal(t, "PATTERN=TBD CONTEXT=Due TBD.", prompt)
}

// TestBrokenOverrideKeepsDefault verifies an unparseable override is
// rejected and the store keeps serving the previous template.
func TestBrokenOverrideKeepsDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fixPromptFile), []byte("{{.Pattern"), 0o644))

	store := newDirStore(t, dir)
	prompt, err := store.Render(FixPromptData{Pattern: "TBD", Context: "Due TBD."})
	require.NoError(t, err)
	assert.Contains(t, prompt, "ONLY the replacement")
}

// TestReloadSwapsAndRestores verifies reload picks up a new override
// and falls back to the default when the file disappears.
func TestReloadSwapsAndRestores(t *testing.T) {
	dir := t.TempDir()
	store := newDirStore(t, dir)

	path := filepath.Join(dir, fixPromptFile)
	require.NoError(t, os.WriteFile(path, []byte("OVERRIDE {{.Pattern}}"), 0o644))
	store.reload()

	prompt, err := store.Render(FixPromptData{Pattern: "TBD"})
	require.NoError(t, err)
	assert.Equal(t, "OVERRIDE TBD", prompt)

	require.NoError(t, os.Remove(path))
	store.reload()

	prompt, err = store.Render(FixPromptData{Pattern: "TBD", Context: "x"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "ONLY the replacement")
}

// TestStopWithoutWatcher verifies Stop is safe when no directory was
// configured.
func TestStopWithoutWatcher(t *testing.T) {
	store, err := NewPromptStore("", testLogger())
	require.NoError(t, err)
	assert.NoError(t, store.Stop())
}
