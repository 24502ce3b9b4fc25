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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
	"github.com/gorilla/websocket"
)

// =============================================================================
// CLIENT
// =============================================================================

// maxResponseBytes bounds how much of a response body is read. Section
// content dominates response size; 16 MiB is far above the service's
// own content limits.
const maxResponseBytes = 16 << 20

// DraftClient is a thin HTTP and websocket client for the draft service
// API.
//
// # Description
//
// Wraps the REST surface (generation, bulk fix, snapshots) and the
// websocket tracking stream behind typed methods. All JSON request and
// response shapes are the service's own wire types, so the client and
// service cannot drift apart silently.
//
// # Thread Safety
//
// Safe for concurrent use; the underlying http.Client is shared.
type DraftClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewDraftClient builds a client from the resolved CLI configuration.
func NewDraftClient(config Config) *DraftClient {
	timeout := time.Duration(config.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DraftClient{
		baseURL: strings.TrimRight(config.Server.URL, "/"),
		apiKey:  config.Server.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the normalized service base URL.
func (c *DraftClient) BaseURL() string {
	return c.baseURL
}

// HealthStatus is the service's health report.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// APIStatusError is returned for non-2xx responses so callers can
// branch on the status code. Message carries the service's error text
// when the body had one.
type APIStatusError struct {
	StatusCode int
	Message    string
}

func (e *APIStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// =============================================================================
// REST SURFACE
// =============================================================================

// Health checks the unauthenticated health endpoint.
func (c *DraftClient) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StartGeneration asks the service to start a generation job. The
// response carries the task id used to open a tracking stream.
func (c *DraftClient) StartGeneration(ctx context.Context, req datatypes.StartGenerationRequest) (*datatypes.StartGenerationResponse, error) {
	var resp datatypes.StartGenerationResponse
	if err := c.do(ctx, http.MethodPost, "/v1/generate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelTask asks the generator backend to stop a running task. The
// cancellation outcome arrives through the tracking stream as a failure
// event, not through this call.
func (c *DraftClient) CancelTask(ctx context.Context, taskID string) error {
	path := fmt.Sprintf("/v1/tasks/%s/cancel", url.PathEscape(taskID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// GetDocument fetches a document's live state.
func (c *DraftClient) GetDocument(ctx context.Context, documentID string) (*datatypes.DocumentResponse, error) {
	path := fmt.Sprintf("/v1/documents/%s", url.PathEscape(documentID))
	var doc datatypes.DocumentResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// BulkFix runs an ordered fix batch against one section. The service
// commits a snapshot before touching anything; its id is in the
// summary.
func (c *DraftClient) BulkFix(ctx context.Context, documentID string, req datatypes.BulkFixRequest) (*datatypes.BulkFixSummary, error) {
	path := fmt.Sprintf("/v1/documents/%s/bulkfix", url.PathEscape(documentID))
	var summary datatypes.BulkFixSummary
	if err := c.do(ctx, http.MethodPost, path, req, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListSnapshots returns a document's checkpoint history in commit
// order.
func (c *DraftClient) ListSnapshots(ctx context.Context, documentID string) ([]datatypes.SnapshotSummary, error) {
	path := fmt.Sprintf("/v1/documents/%s/snapshots", url.PathEscape(documentID))
	var listing struct {
		Snapshots []datatypes.SnapshotSummary `json:"snapshots"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &listing); err != nil {
		return nil, err
	}
	return listing.Snapshots, nil
}

// CommitSnapshot records a manual checkpoint and returns the assigned
// snapshot id.
func (c *DraftClient) CommitSnapshot(ctx context.Context, documentID string, req datatypes.CommitSnapshotRequest) (string, error) {
	path := fmt.Sprintf("/v1/documents/%s/snapshots", url.PathEscape(documentID))
	var resp struct {
		SnapshotID string `json:"snapshot_id"`
		Label      string `json:"label"`
	}
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return "", err
	}
	return resp.SnapshotID, nil
}

// RestoreSnapshot replaces the document's live sections with a
// checkpoint's and returns the restored document.
func (c *DraftClient) RestoreSnapshot(ctx context.Context, documentID, snapshotID string) (*datatypes.DocumentResponse, error) {
	path := fmt.Sprintf("/v1/documents/%s/snapshots/%s/restore",
		url.PathEscape(documentID), url.PathEscape(snapshotID))
	var doc datatypes.DocumentResponse
	if err := c.do(ctx, http.MethodPost, path, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SnapshotDiff fetches the unified diff from a snapshot to the live
// document, or to another snapshot when to is non-empty. The response
// is plain text, not JSON.
func (c *DraftClient) SnapshotDiff(ctx context.Context, documentID, snapshotID, to string) (string, error) {
	path := fmt.Sprintf("/v1/documents/%s/snapshots/%s/diff",
		url.PathEscape(documentID), url.PathEscape(snapshotID))
	if to != "" {
		path += "?to=" + url.QueryEscape(to)
	}
	return c.doText(ctx, http.MethodGet, path)
}

// ProbeAuth exercises an authenticated route with a document id that
// cannot exist. A 404 means the key was accepted; a 401 means it was
// not. Used by doctor.
func (c *DraftClient) ProbeAuth(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/documents/draftctl-auth-probe", nil, nil)
}

// =============================================================================
// TRACKING STREAM
// =============================================================================

// Track opens the websocket tracking stream for a task.
//
// # Description
//
// Events arrive on the returned channel in the order the service emits
// them. The channel closes after the terminal event, when the stream
// drops, or when ctx is cancelled. The service closes the socket right
// after the terminal frame, so a read error following a terminal event
// is normal and not surfaced.
//
// documentID and section tell the service where to store the finished
// content; both may be empty to track without storing.
func (c *DraftClient) Track(ctx context.Context, taskID, documentID, section string) (<-chan datatypes.TaskStatusEvent, error) {
	wsURL, err := c.trackURL(taskID, documentID, section)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("X-API-Key", c.apiKey)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial track stream: %w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial track stream: %w", err)
	}

	events := make(chan datatypes.TaskStatusEvent, 16)
	done := make(chan struct{})

	// ctx cancellation closes the socket, which unblocks the read loop.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go func() {
		defer close(events)
		defer close(done)
		defer conn.Close()
		for {
			var ev datatypes.TaskStatusEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Kind.Terminal() {
				return
			}
		}
	}()

	return events, nil
}

// trackURL builds the websocket URL for a task's tracking stream,
// mapping the configured http(s) scheme to ws(s).
func (c *DraftClient) trackURL(taskID, documentID, section string) (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
		// already a websocket scheme
	default:
		return "", fmt.Errorf("unsupported server scheme %q", parsed.Scheme)
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/") +
		"/v1/tasks/" + url.PathEscape(taskID) + "/track"

	query := url.Values{}
	if documentID != "" {
		query.Set("document_id", documentID)
	}
	if section != "" {
		query.Set("section", section)
	}
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

// =============================================================================
// TRANSPORT HELPERS
// =============================================================================

// do executes one JSON round trip. A nil body sends no payload; a nil
// out discards the response. Non-2xx responses come back as
// *APIStatusError.
func (c *DraftClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return asAPIError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// doText is do for endpoints that answer with plain text.
func (c *DraftClient) doText(ctx context.Context, method, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", asAPIError(resp.StatusCode, raw)
	}
	return string(raw), nil
}

// asAPIError turns a non-2xx response into an *APIStatusError, pulling
// the message out of the service's {"error": "..."} body when present.
func asAPIError(status int, raw []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return &APIStatusError{StatusCode: status, Message: body.Error}
	}
	return &APIStatusError{StatusCode: status}
}
