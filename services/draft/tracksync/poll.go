// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tracksync

import (
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

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

// HTTPPollConfig configures the HTTP poll transport.
type HTTPPollConfig struct {
	// BaseURL is the generation backend's REST root, e.g.
	// "http://generation:8001/api/v1/generation".
	BaseURL string

	// Client is the HTTP client to use.
	// Default: 15 second timeout
	Client *http.Client

	// Logger receives query logs.
	// Default: slog.Default()
	Logger *slog.Logger
}

// HTTPPollTransport queries the backend's status endpoint. Concurrent
// queries for the same task collapse into a single backend request.
type HTTPPollTransport struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	group   singleflight.Group
}

// NewHTTPPollTransport validates the endpoint URL and builds the
// transport.
func NewHTTPPollTransport(cfg HTTPPollConfig) (*HTTPPollTransport, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("poll transport base URL is required")
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &HTTPPollTransport{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  cfg.Client,
		logger:  cfg.Logger,
	}, nil
}

// Status fetches the task's current status.
func (t *HTTPPollTransport) Status(ctx context.Context, taskID string) (datatypes.PollStatusResponse, error) {
	v, err, _ := t.group.Do(taskID, func() (interface{}, error) {
		return t.fetch(ctx, taskID)
	})
	if err != nil {
		return datatypes.PollStatusResponse{}, err
	}
	return v.(datatypes.PollStatusResponse), nil
}

func (t *HTTPPollTransport) fetch(ctx context.Context, taskID string) (datatypes.PollStatusResponse, error) {
	endpoint := t.baseURL + "/tasks/" + url.PathEscape(taskID) + "/status"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return datatypes.PollStatusResponse{}, fmt.Errorf("build status request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return datatypes.PollStatusResponse{}, fmt.Errorf("query task status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return datatypes.PollStatusResponse{}, fmt.Errorf("status endpoint returned status %d: %s",
			resp.StatusCode, string(body))
	}

	var out datatypes.PollStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return datatypes.PollStatusResponse{}, fmt.Errorf("decode status response: %w", err)
	}
	return out, nil
}
