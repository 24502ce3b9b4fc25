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
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

// 10MB frame limit, matching the generation backend's write buffer.
const maxFrameBytes = 10 * 1024 * 1024

// WebSocketConfig configures the websocket push transport.
type WebSocketConfig struct {
	// BaseURL is the generation backend's event endpoint root, e.g.
	// "ws://generation:8001/api/v1/generation". http(s) schemes are
	// rewritten to ws(s).
	BaseURL string

	// Header carries extra handshake headers, if any.
	Header http.Header

	// HandshakeTimeout bounds the websocket dial.
	// Default: 10 seconds
	HandshakeTimeout time.Duration

	// Logger receives connection lifecycle logs.
	// Default: slog.Default()
	Logger *slog.Logger
}

// WebSocketTransport opens push streams over websocket connections to
// the generation backend.
type WebSocketTransport struct {
	baseURL string
	header  http.Header
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

// NewWebSocketTransport validates the endpoint URL and builds the
// transport.
func NewWebSocketTransport(cfg WebSocketConfig) (*WebSocketTransport, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("push transport base URL is required")
	}
	base, err := normalizeWSURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &WebSocketTransport{
		baseURL: base,
		header:  cfg.Header,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: cfg.Logger,
	}, nil
}

// Open dials the backend's per-task event endpoint.
func (t *WebSocketTransport) Open(ctx context.Context, taskID string) (PushStream, error) {
	endpoint := t.baseURL + "/tasks/" + url.PathEscape(taskID) + "/events"

	conn, resp, err := t.dialer.DialContext(ctx, endpoint, t.header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("dial push transport (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dial push transport: %w", err)
	}
	conn.SetReadLimit(maxFrameBytes)
	t.logger.Info("push stream connected", "task_id", taskID)

	s := &wsStream{
		conn:   conn,
		logger: t.logger,
		done:   make(chan struct{}),
	}
	// The watcher closes the connection on ctx cancel, which unblocks
	// any pending read.
	go s.watch(ctx)
	return s, nil
}

type wsStream struct {
	conn      *websocket.Conn
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func (s *wsStream) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		_ = s.Close()
	case <-s.done:
	}
}

// Next reads frames until one parses. Unparsable payloads are dropped;
// connection errors end the stream.
func (s *wsStream) Next(ctx context.Context) (datatypes.PushFrame, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return datatypes.PushFrame{}, ctx.Err()
			}
			return datatypes.PushFrame{}, fmt.Errorf("read push frame: %w", err)
		}

		var frame datatypes.PushFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Debug("dropping unparsable push frame", "error", err)
			continue
		}
		return frame, nil
	}
}

func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// normalizeWSURL rewrites http(s) schemes to ws(s) and strips any
// trailing slash.
func normalizeWSURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse push transport URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported push transport scheme %q", u.Scheme)
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}
