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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

// Key layout. Sequence keys are zero-padded so lexicographic iteration
// yields commit order; id keys map a snapshot id to its sequence key.
const (
	seqKeyFormat = "snap:%012d"
	idKeyPrefix  = "snapid:"
)

var seqKeyPrefix = []byte("snap:")

// storedSnapshot is the persisted envelope: the record plus the content
// digest computed at commit time.
type storedSnapshot struct {
	Snapshot datatypes.Snapshot `json:"snapshot"`
	Digest   string             `json:"digest"`
}

// BadgerConfig holds configuration for the persistent checkpoint store.
type BadgerConfig struct {
	// Path is the directory for database files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives the database's internal log output.
	// If nil, internal logging is disabled.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerLog is the Log implementation backed by an embedded BadgerDB,
// for checkpoint history that survives restarts.
//
// Thread Safety: Safe for concurrent use.
type BadgerLog struct {
	db      *badger.DB
	mu      sync.Mutex
	nextSeq uint64
}

var _ Log = (*BadgerLog)(nil)

// OpenBadgerLog opens a persistent checkpoint store.
//
// Description:
//
//	Opens a BadgerDB at the configured path, creating the directory if
//	needed, and recovers the next sequence number from the highest
//	stored key. Call Close when done.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*BadgerLog - The opened store.
//	error - Non-nil if the path is invalid or the database cannot open.
//
// Thread Safety: The returned store is safe for concurrent use.
func OpenBadgerLog(cfg BadgerConfig) (*BadgerLog, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent snapshot store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create snapshot directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}

	l := &BadgerLog{db: db}
	if err := l.recoverSequence(); err != nil {
		db.Close()
		return nil, fmt.Errorf("recover snapshot sequence: %w", err)
	}
	return l, nil
}

// Close closes the underlying database.
func (l *BadgerLog) Close() error {
	return l.db.Close()
}

// recoverSequence finds the highest sequence key already stored and
// positions the counter after it.
func (l *BadgerLog) recoverSequence() error {
	return l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek lands on the largest key <= target.
		it.Seek(append(append([]byte{}, seqKeyPrefix...), 0xFF))
		if it.ValidForPrefix(seqKeyPrefix) {
			var seq uint64
			if _, err := fmt.Sscanf(string(it.Item().Key()), seqKeyFormat, &seq); err != nil {
				return fmt.Errorf("parse sequence key %q: %w", it.Item().Key(), err)
			}
			l.nextSeq = seq + 1
		}
		return nil
	})
}

// Commit stores a checkpoint and returns its id.
//
// Thread Safety: Safe for concurrent use.
func (l *BadgerLog) Commit(ctx context.Context, label, author string, sections map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	snap := datatypes.Snapshot{
		ID:        datatypes.NewID(),
		Timestamp: time.Now().UTC(),
		Label:     label,
		Sections:  datatypes.CloneSections(sections),
		Author:    author,
	}
	payload, err := json.Marshal(storedSnapshot{
		Snapshot: snap,
		Digest:   sectionsDigest(snap.Sections),
	})
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	l.mu.Lock()
	seq := l.nextSeq
	l.nextSeq++
	l.mu.Unlock()

	seqKey := []byte(fmt.Sprintf(seqKeyFormat, seq))
	err = l.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(seqKey, payload); err != nil {
			return err
		}
		return txn.Set([]byte(idKeyPrefix+snap.ID), seqKey)
	})
	if err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return snap.ID, nil
}

// List returns summaries of all snapshots in commit order.
//
// Thread Safety: Safe for concurrent use.
func (l *BadgerLog) List(ctx context.Context) ([]datatypes.SnapshotSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []datatypes.SnapshotSummary
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = seqKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seqKeyPrefix); it.ValidForPrefix(seqKeyPrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var stored storedSnapshot
				if err := json.Unmarshal(val, &stored); err != nil {
					return fmt.Errorf("unmarshal snapshot %q: %w", it.Item().Key(), err)
				}
				out = append(out, datatypes.NewSnapshotSummary(&stored.Snapshot))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []datatypes.SnapshotSummary{}
	}
	return out, nil
}

// Get returns a deep copy of the snapshot with the given id.
//
// Description:
//
//	Verifies the stored record against its commit-time digest before
//	returning. A mismatch returns ErrSnapshotIntegrity.
//
// Thread Safety: Safe for concurrent use.
func (l *BadgerLog) Get(ctx context.Context, id string) (*datatypes.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var payload []byte
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(idKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		if err != nil {
			return err
		}
		seqKey, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		record, err := txn.Get(seqKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		if err != nil {
			return err
		}
		payload, err = record.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	var stored storedSnapshot
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", id, err)
	}
	if computed := sectionsDigest(stored.Snapshot.Sections); computed != stored.Digest {
		return nil, fmt.Errorf("%w: expected=%s, computed=%s",
			ErrSnapshotIntegrity, stored.Digest, computed)
	}
	return &stored.Snapshot, nil
}
