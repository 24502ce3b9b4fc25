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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianDraft/services/llm"
)

// Default generation settings for the LLM resolver. Replacements are
// short spans of contract prose, so the token cap stays low and the
// temperature conservative.
const (
	DEFAULT_RESOLVER_MAX_TOKENS  = 256
	DEFAULT_RESOLVER_TEMPERATURE = float32(0.2)
)

// ErrEmptyResolution is returned when a resolver backend produces no
// usable replacement text after cleaning.
var ErrEmptyResolution = errors.New("resolver produced an empty replacement")

// Resolver produces the replacement text for one flagged pattern.
//
// # Description
//
// The orchestrator hands the resolver the pattern and a plain-text
// window of the surrounding document, and splices whatever comes back
// over the pattern's occurrence. A resolver error skips that fix; it
// never fails the batch.
type Resolver interface {
	Resolve(ctx context.Context, pattern, contextText string) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, pattern, contextText string) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, pattern, contextText string) (string, error) {
	return f(ctx, pattern, contextText)
}

// LLMResolver resolves fixes by asking a language model.
//
// # Description
//
// Renders the fix prompt from the PromptStore, sends it to the
// configured backend, and cleans the completion: surrounding
// whitespace, markdown fences, and wrapping quotes are stripped. A
// completion that is empty after cleaning is an error, so the
// orchestrator skips the fix instead of blanking the occurrence.
//
// # Thread Safety
//
// Safe for concurrent use.
type LLMResolver struct {
	client  llm.LLMClient
	prompts *PromptStore
	logger  *slog.Logger
	params  llm.GenerationParams
}

// compile-time interface check
var _ Resolver = (*LLMResolver)(nil)

// LLMResolverConfig configures an LLMResolver.
type LLMResolverConfig struct {
	// Client is the LLM backend. Required.
	Client llm.LLMClient

	// Prompts supplies the fix prompt template. Required.
	Prompts *PromptStore

	// MaxTokens caps the completion length.
	// Default: DEFAULT_RESOLVER_MAX_TOKENS.
	MaxTokens int

	// Temperature for generation.
	// Default: DEFAULT_RESOLVER_TEMPERATURE.
	Temperature float32

	// Logger receives resolution diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// NewLLMResolver creates an LLMResolver, applying defaults for zero
// config values.
func NewLLMResolver(cfg LLMResolverConfig) (*LLMResolver, error) {
	if cfg.Client == nil {
		return nil, errors.New("bulkfix: LLM client is required")
	}
	if cfg.Prompts == nil {
		return nil, errors.New("bulkfix: prompt store is required")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DEFAULT_RESOLVER_MAX_TOKENS
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = DEFAULT_RESOLVER_TEMPERATURE
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &LLMResolver{
		client:  cfg.Client,
		prompts: cfg.Prompts,
		logger:  logger,
		params: llm.GenerationParams{
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		},
	}, nil
}

// Resolve implements the Resolver interface with no extra guidance.
func (r *LLMResolver) Resolve(ctx context.Context, pattern, contextText string) (string, error) {
	return r.resolve(ctx, pattern, contextText, "")
}

// Bind returns a Resolver carrying per-fix guidance. The resolver
// contract stays (pattern, context); the instruction rides in the
// closure so each fix of a batch can steer its own replacement.
func (r *LLMResolver) Bind(instruction string) Resolver {
	return ResolverFunc(func(ctx context.Context, pattern, contextText string) (string, error) {
		return r.resolve(ctx, pattern, contextText, instruction)
	})
}

func (r *LLMResolver) resolve(ctx context.Context, pattern, contextText, instruction string) (string, error) {
	prompt, err := r.prompts.Render(FixPromptData{
		Pattern:     pattern,
		Context:     contextText,
		Instruction: instruction,
	})
	if err != nil {
		return "", fmt.Errorf("render fix prompt: %w", err)
	}

	raw, err := r.client.Generate(ctx, prompt, r.params)
	if err != nil {
		return "", fmt.Errorf("resolver backend: %w", err)
	}

	cleaned := cleanCompletion(raw)
	if cleaned == "" {
		return "", ErrEmptyResolution
	}

	r.logger.Debug("Resolved fix pattern",
		"pattern", pattern,
		"replacement_length", len(cleaned))
	return cleaned, nil
}

// cleanCompletion strips the wrapping a model tends to add around a
// short answer.
func cleanCompletion(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
