package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// defaultPersona is the system role sent when the deployment does not
// override it. Fix resolution wants conservative, clause-shaped prose,
// not chatty assistant output.
const defaultPersona = "You are a careful contract drafting assistant."

// GenerationParams tunes a single generation call. Nil fields fall back
// to each backend's conservative defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// envOr returns the value of key, or fallback when the variable is
// unset or empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// apiKeyFrom resolves a credential from the environment first and the
// container secrets mount second. The deployment images mount API keys
// under /run/secrets with the lowercase secret name.
func apiKeyFrom(envKey, secretName string) (string, error) {
	if v := os.Getenv(envKey); v != "" {
		return v, nil
	}
	secretPath := filepath.Join("/run/secrets", secretName)
	content, err := os.ReadFile(secretPath)
	if err != nil {
		return "", fmt.Errorf("%s not set and no secret at %s", envKey, secretPath)
	}
	slog.Info("Read API key from secrets mount", "secret", secretName)
	return strings.TrimSpace(string(content)), nil
}

// persona returns the system role content for backends that accept one.
func persona() string {
	return envOr("SYSTEM_ROLE_PROMPT_PERSONA", defaultPersona)
}
