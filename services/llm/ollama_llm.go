package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("aleutian.llm.ollama")

// OllamaClient resolves prompts through a local or remote Ollama server.
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

// NewOllamaClient builds a client from OLLAMA_BASE_URL (required) and
// OLLAMA_MODEL.
func NewOllamaClient() (*OllamaClient, error) {
	baseURL := envOr("OLLAMA_BASE_URL", "")
	if baseURL == "" {
		return nil, fmt.Errorf("OLLAMA_BASE_URL environment variable not set")
	}
	model := envOr("OLLAMA_MODEL", "gpt-oss")
	slog.Info("Initializing Ollama client", "base_url", baseURL, "model", model)
	return &OllamaClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
	}, nil
}

// ollamaOptions maps GenerationParams onto the request options map,
// filling conservative defaults for the knobs the caller left unset.
func ollamaOptions(params GenerationParams) map[string]interface{} {
	opts := map[string]interface{}{
		"temperature": float32(0.2),
		"top_k":       20,
		"top_p":       float32(0.9),
		"num_predict": 8192,
	}
	if params.Temperature != nil {
		opts["temperature"] = *params.Temperature
	}
	if params.TopK != nil {
		opts["top_k"] = *params.TopK
	}
	if params.TopP != nil {
		opts["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		opts["num_predict"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		opts["stop"] = params.Stop
	}
	return opts
}

// spanFail marks the span failed and passes the error through.
func spanFail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// missingModelHint turns the backend's 404 for an unpulled model into
// an actionable error; any other failure returns nil.
func missingModelHint(status int, body []byte, model string) error {
	if status != http.StatusNotFound {
		return nil
	}
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return nil
	}
	if !strings.Contains(errResp.Error, "model") || !strings.Contains(errResp.Error, "not found") {
		return nil
	}
	return fmt.Errorf("model '%s' not found. Please run: 'ollama pull %s'", model, model)
}

// Generate implements the LLMClient interface
func (o *OllamaClient) Generate(ctx context.Context, prompt string,
	params GenerationParams) (string, error) {

	ctx, span := tracer.Start(ctx, "OllamaClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	payload := ollamaGenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  false,
		Options: ollamaOptions(params),
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", spanFail(span, fmt.Errorf("marshal ollama request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", spanFail(span, fmt.Errorf("build ollama request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		slog.Error("Ollama API call failed", "error", err)
		return "", spanFail(span, fmt.Errorf("ollama call failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", spanFail(span, fmt.Errorf("read ollama response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		if hint := missingModelHint(resp.StatusCode, respBody, o.model); hint != nil {
			slog.Warn("Ollama model not found", "model", o.model)
			return "", hint
		}
		slog.Error("Ollama returned an error",
			"status_code", resp.StatusCode, "response", string(respBody))
		return "", spanFail(span,
			fmt.Errorf("ollama failed with status %d: %s", resp.StatusCode, string(respBody)))
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", spanFail(span, fmt.Errorf("parse ollama response: %w", err))
	}
	slog.Debug("Received response from Ollama", "model", out.Model)
	return out.Response, nil
}
