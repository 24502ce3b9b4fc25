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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

// Archiver copies a committed snapshot to off-box storage.
type Archiver interface {
	Archive(ctx context.Context, snap *datatypes.Snapshot) error
}

// GCSArchiveSink archives snapshots as JSON objects in a GCS bucket.
type GCSArchiveSink struct {
	storageClient *storage.Client
	BucketName    string
	Prefix        string
}

var _ Archiver = (*GCSArchiveSink)(nil)

// NewGCSArchiveSink creates an archive sink for the given bucket.
// With saKeyPath set, credentials are loaded from the key file;
// otherwise application default credentials are used.
func NewGCSArchiveSink(ctx context.Context, bucketName, prefix, saKeyPath string) (*GCSArchiveSink, error) {
	var opts []option.ClientOption
	if saKeyPath != "" {
		if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", saKeyPath)
		}
		opts = append(opts, option.WithCredentialsFile(saKeyPath))
	}

	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCSArchiveSink{
		storageClient: storageClient,
		BucketName:    bucketName,
		Prefix:        prefix,
	}, nil
}

// Archive writes one snapshot to gs://<bucket>/<prefix>/<id>.json.
func (s *GCSArchiveSink) Archive(ctx context.Context, snap *datatypes.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.ID, err)
	}

	objectPath := path.Join(s.Prefix, snap.ID+".json")
	writer := s.storageClient.Bucket(s.BucketName).Object(objectPath).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := writer.Write(payload); err != nil {
		return fmt.Errorf("failed to write GCS object %s: %w", objectPath, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", objectPath, err)
	}
	return nil
}

// Close releases the underlying storage client.
func (s *GCSArchiveSink) Close() error {
	return s.storageClient.Close()
}

// ArchivingLog decorates a Log so every committed snapshot is also
// copied to an archive sink in the background. Archive failures are
// logged and never affect the commit.
//
// Thread Safety: Safe for concurrent use.
type ArchivingLog struct {
	inner   Log
	sink    Archiver
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

var _ Log = (*ArchivingLog)(nil)

// NewArchivingLog wraps inner so commits archive through sink.
func NewArchivingLog(inner Log, sink Archiver, logger *slog.Logger) *ArchivingLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchivingLog{
		inner:   inner,
		sink:    sink,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// Commit stores the checkpoint, then archives it in the background.
func (l *ArchivingLog) Commit(ctx context.Context, label, author string, sections map[string]string) (string, error) {
	id, err := l.inner.Commit(ctx, label, author, sections)
	if err != nil {
		return "", err
	}

	snap, err := l.inner.Get(ctx, id)
	if err != nil {
		l.logger.Warn("snapshot archive skipped: read-back failed",
			slog.String("snapshot_id", id), slog.String("error", err.Error()))
		return id, nil
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		// Detached from the request context: the commit already
		// succeeded, archival rides on its own deadline.
		actx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		if err := l.sink.Archive(actx, snap); err != nil {
			l.logger.Warn("snapshot archive failed",
				slog.String("snapshot_id", id), slog.String("error", err.Error()))
		}
	}()
	return id, nil
}

// List returns summaries of all snapshots in commit order.
func (l *ArchivingLog) List(ctx context.Context) ([]datatypes.SnapshotSummary, error) {
	return l.inner.List(ctx)
}

// Get returns a deep copy of the snapshot with the given id.
func (l *ArchivingLog) Get(ctx context.Context, id string) (*datatypes.Snapshot, error) {
	return l.inner.Get(ctx, id)
}

// Wait blocks until all in-flight archive uploads finish.
func (l *ArchivingLog) Wait() {
	l.wg.Wait()
}
