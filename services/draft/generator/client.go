// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generator is the client for the generation backend's task API.
// Starting a job returns a backend-assigned task id; progress for that id
// is then tracked over the push or poll transports, which share this
// client's base URL.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

// HTTPClient is the interface for making HTTP requests, allowing the
// backend to be faked in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures the generation backend client.
type Config struct {
	// BaseURL is the generation backend's REST root, e.g.
	// "http://generation:8001/api/v1/generation". The push and poll
	// transports are pointed at the same root.
	BaseURL string

	// Timeout bounds each request.
	// Default: 30 seconds
	Timeout time.Duration

	// Logger receives request logs.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Client starts and cancels generation jobs on the backend.
type Client struct {
	baseURL string
	http    HTTPClient
	logger  *slog.Logger
}

// NewClient builds a client with a default HTTP client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return NewClientWithHTTP(&http.Client{Timeout: cfg.Timeout}, cfg)
}

// NewClientWithHTTP builds a client around the given HTTP client. Tests
// inject a fake here.
func NewClientWithHTTP(httpClient HTTPClient, cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("generator base URL is required")
	}
	if httpClient == nil {
		return nil, errors.New("http client must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  cfg.Logger,
	}, nil
}

// BaseURL returns the backend root the client was built with. The track
// transports derive their event and status endpoints from it.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type startResponse struct {
	TaskID string `json:"task_id"`
}

// Start submits a generation job and returns the backend's task id.
func (c *Client) Start(ctx context.Context, req datatypes.StartGenerationRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode generation request: %w", err)
	}

	endpoint := c.baseURL + "/tasks"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("start generation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generation backend returned status %d: %s",
			resp.StatusCode, string(body))
	}

	var out startResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generation response: %w", err)
	}
	if out.TaskID == "" {
		return "", errors.New("generation backend returned no task id")
	}

	c.logger.Info("Generation job started",
		"task_id", out.TaskID,
		"document_id", req.DocumentID,
		"section", req.Section)
	return out.TaskID, nil
}

// Cancel asks the backend to stop a running job. Backends that have
// already finished the task report success; only transport and server
// errors surface.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	if taskID == "" {
		return errors.New("task id is required")
	}

	endpoint := c.baseURL + "/tasks/" + url.PathEscape(taskID) + "/cancel"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build cancel request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("cancel generation: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cancel endpoint returned status %d: %s",
			resp.StatusCode, string(body))
	}
}
