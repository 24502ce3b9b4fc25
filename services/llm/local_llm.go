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
)

type LocalLlamaCppClient struct {
	httpClient *http.Client
	baseURL    string
}

type localCompletionPayload struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature *float32 `json:"temperature,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type llamaCppResp struct {
	Content string `json:"content"`
}

func NewLocalLlamaCppClient() (*LocalLlamaCppClient, error) {
	baseURL := envOr("LLM_SERVICE_URL_BASE", "")
	if baseURL == "" {
		return nil, fmt.Errorf("LLM_SERVICE_URL_BASE environment variable not set")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &LocalLlamaCppClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
	}, nil
}

// localPayload fills the llama.cpp request, applying the same
// conservative sampling defaults the Ollama backend uses for unset
// knobs.
func localPayload(prompt string, params GenerationParams) localCompletionPayload {
	temp, topK, topP := float32(0.2), 20, float32(0.9)
	p := localCompletionPayload{
		Prompt:      prompt,
		NPredict:    512,
		Temperature: &temp,
		TopK:        &topK,
		TopP:        &topP,
	}
	if params.MaxTokens != nil {
		p.NPredict = *params.MaxTokens
	}
	if params.Temperature != nil {
		p.Temperature = params.Temperature
	}
	if params.TopK != nil {
		p.TopK = params.TopK
	}
	if params.TopP != nil {
		p.TopP = params.TopP
	}
	if len(params.Stop) > 0 {
		p.Stop = params.Stop
	}
	return p
}

// Generate implements the LLMClient interface
func (l *LocalLlamaCppClient) Generate(ctx context.Context, prompt string,
	params GenerationParams) (string, error) {

	completionURL := l.baseURL + "/completion"
	reqBodyBytes, err := json.Marshal(localPayload(prompt, params))
	if err != nil {
		return "", fmt.Errorf("Failed to marshal the payload %w", err)
	}
	slog.Info("Calling Llama.cpp Generate", "url", completionURL)
	req, err := http.NewRequestWithContext(ctx, "POST", completionURL, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create the llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make a request to the llm: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read the llm's response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm returned status %d: %s", resp.StatusCode, string(body))
	}
	var llmResponseBody llamaCppResp
	if err := json.Unmarshal(body, &llmResponseBody); err != nil {
		return "", fmt.Errorf("failed to parse the llm response %w", err)
	}
	return llmResponseBody.Content, nil
}
