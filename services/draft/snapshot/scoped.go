// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
)

// LogProvider hands out the checkpoint log scoped to one document.
//
// Checkpoint records carry no document id of their own; scoping happens
// here, so one document's history can never leak into another's
// listing.
type LogProvider interface {
	For(documentID string) (Log, error)
}

// MemoryLogs provides one MemoryLog per document, created lazily.
//
// Thread Safety: Safe for concurrent use.
type MemoryLogs struct {
	mu   sync.Mutex
	logs map[string]*MemoryLog
}

var _ LogProvider = (*MemoryLogs)(nil)

// NewMemoryLogs creates an empty per-document log provider.
func NewMemoryLogs() *MemoryLogs {
	return &MemoryLogs{logs: make(map[string]*MemoryLog)}
}

// For returns the document's log, creating it on first use.
func (p *MemoryLogs) For(documentID string) (Log, error) {
	if documentID == "" {
		return nil, errors.New("document id is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.logs[documentID]
	if !ok {
		l = NewMemoryLog()
		p.logs[documentID] = l
	}
	return l, nil
}

// BadgerLogs provides one persistent BadgerLog per document, each in
// its own directory under the configured root.
//
// Thread Safety: Safe for concurrent use.
type BadgerLogs struct {
	root       string
	syncWrites bool
	logger     *slog.Logger

	mu   sync.Mutex
	logs map[string]*BadgerLog
}

var _ LogProvider = (*BadgerLogs)(nil)

// NewBadgerLogs creates a provider rooted at the given directory.
// Document databases open lazily on first use and stay open until
// Close.
func NewBadgerLogs(root string, syncWrites bool, logger *slog.Logger) (*BadgerLogs, error) {
	if root == "" {
		return nil, errors.New("snapshot root directory is required")
	}
	return &BadgerLogs{
		root:       root,
		syncWrites: syncWrites,
		logger:     logger,
		logs:       make(map[string]*BadgerLog),
	}, nil
}

// For returns the document's persistent log, opening it on first use.
func (p *BadgerLogs) For(documentID string) (Log, error) {
	if documentID == "" {
		return nil, errors.New("document id is required")
	}
	// Document ids are service-assigned UUIDs; anything with path
	// structure in it never came from this service.
	if strings.ContainsAny(documentID, "/\\.") {
		return nil, fmt.Errorf("invalid document id for snapshot scope: %q", documentID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.logs[documentID]; ok {
		return l, nil
	}

	l, err := OpenBadgerLog(BadgerConfig{
		Path:       filepath.Join(p.root, documentID),
		SyncWrites: p.syncWrites,
		Logger:     p.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open snapshot log for document %s: %w", documentID, err)
	}
	p.logs[documentID] = l
	return l, nil
}

// Close closes every opened document database.
func (p *BadgerLogs) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for id, l := range p.logs {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close snapshot log for document %s: %w", id, err)
		}
		delete(p.logs, id)
	}
	return firstErr
}

// ArchivingLogs wraps a provider so every document's log mirrors its
// commits to the shared archive sink.
type ArchivingLogs struct {
	inner  LogProvider
	sink   Archiver
	logger *slog.Logger

	mu      sync.Mutex
	wrapped map[string]*ArchivingLog
}

var _ LogProvider = (*ArchivingLogs)(nil)

// NewArchivingLogs wraps inner so each handed-out log archives to sink.
func NewArchivingLogs(inner LogProvider, sink Archiver, logger *slog.Logger) *ArchivingLogs {
	return &ArchivingLogs{
		inner:   inner,
		sink:    sink,
		logger:  logger,
		wrapped: make(map[string]*ArchivingLog),
	}
}

// For returns the document's archiving log.
func (p *ArchivingLogs) For(documentID string) (Log, error) {
	p.mu.Lock()
	if l, ok := p.wrapped[documentID]; ok {
		p.mu.Unlock()
		return l, nil
	}
	p.mu.Unlock()

	inner, err := p.inner.For(documentID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.wrapped[documentID]; ok {
		return l, nil
	}
	l := NewArchivingLog(inner, p.sink, p.logger)
	p.wrapped[documentID] = l
	return l, nil
}

// Wait blocks until all in-flight archive uploads finish.
func (p *ArchivingLogs) Wait() {
	p.mu.Lock()
	logs := make([]*ArchivingLog, 0, len(p.wrapped))
	for _, l := range p.wrapped {
		logs = append(logs, l)
	}
	p.mu.Unlock()
	for _, l := range logs {
		l.Wait()
	}
}
