// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides the HTTP and WebSocket handlers for the
// draft service.
//
// This file implements secure accumulation of generated contract text.
// Content streamed from the generation backend is held in mlocked
// memory until the track session finalizes it into the document store,
// so unreviewed draft language is never swapped to disk.
package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

const (
	// ContentBufferSize is the capacity of the mlocked buffer holding
	// in-flight generated content. 1 MB covers the longest contract
	// section the generator produces plus streaming overhead.
	ContentBufferSize = 1024 * 1024

	// minMlockLimitKB is the smallest mlock limit that fits one buffer.
	minMlockLimitKB = 1024
)

var (
	memguardInitOnce    sync.Once
	mlockSufficient     bool
	currentMlockLimitKB int64
)

// ContentAccumulator collects generated text chunks during a track
// session.
//
// # Description
//
// Chunks are hashed incrementally as they arrive; Finalize returns the
// assembled content with its SHA-256 digest and wipes the backing
// memory. An accumulator is single-use: after Finalize or Destroy it
// rejects further writes.
//
// # Thread Safety
//
// Implementations are safe for concurrent use.
type ContentAccumulator interface {
	// Write appends one content chunk.
	Write(chunk string) error

	// Finalize returns the assembled content and its hex SHA-256
	// digest, then wipes the buffer. Can be called once.
	Finalize() (content string, digest string, err error)

	// Destroy wipes the buffer without returning data. Idempotent.
	Destroy()

	// ID identifies the accumulator in logs.
	ID() string
}

// secureAccumulator holds content in a memguard LockedBuffer: mlocked
// against swap, guard-paged, and zeroed on destroy.
type secureAccumulator struct {
	id        string
	createdAt time.Time
	mu        sync.Mutex
	buffer    *memguard.LockedBuffer
	offset    int
	hasher    hash.Hash
	overflow  bool
	destroyed bool
}

// insecureAccumulator is the plain-memory fallback for systems whose
// mlock limit is too low, gated behind ALEUTIAN_INSECURE_MEMORY=true.
type insecureAccumulator struct {
	id        string
	mu        sync.Mutex
	data      []byte
	hasher    hash.Hash
	overflow  bool
	destroyed bool
}

// NewContentAccumulator returns an accumulator for one track session.
//
// # Description
//
// Prefers mlocked storage. When the system mlock limit is below
// minMlockLimitKB, returns an error unless ALEUTIAN_INSECURE_MEMORY=true
// is set, in which case a plain-memory fallback is handed out with a
// logged warning.
//
// # Outputs
//
//   - ContentAccumulator: Ready for use.
//   - error: Non-nil when secure memory is unavailable and the
//     insecure fallback was not opted into.
func NewContentAccumulator() (ContentAccumulator, error) {
	initMemguard()

	if !mlockSufficient {
		if os.Getenv("ALEUTIAN_INSECURE_MEMORY") == "true" {
			return newInsecureAccumulator(), nil
		}
		return nil, fmt.Errorf(
			"mlock limit insufficient: have %d KB, need %d KB. "+
				"Raise the limit or set ALEUTIAN_INSECURE_MEMORY=true",
			currentMlockLimitKB, minMlockLimitKB)
	}

	buf := memguard.NewBuffer(ContentBufferSize)
	if buf == nil {
		return nil, fmt.Errorf("failed to allocate secure buffer of %d bytes", ContentBufferSize)
	}
	buf.Melt()

	acc := &secureAccumulator{
		id:        uuid.New().String(),
		createdAt: time.Now(),
		buffer:    buf,
		hasher:    sha256.New(),
	}
	slog.Debug("Created secure content accumulator",
		"accumulator_id", acc.id,
		"buffer_size", ContentBufferSize)
	return acc, nil
}

func newInsecureAccumulator() ContentAccumulator {
	acc := &insecureAccumulator{
		id:     uuid.New().String(),
		data:   make([]byte, 0, ContentBufferSize),
		hasher: sha256.New(),
	}
	slog.Warn("Created INSECURE content accumulator - generated text may be swapped to disk",
		"accumulator_id", acc.id)
	return acc
}

// Write appends a chunk to the secure buffer.
func (a *secureAccumulator) Write(chunk string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		return fmt.Errorf("secure buffer overflow - generated content too large")
	}

	b := []byte(chunk)
	if a.offset+len(b) > ContentBufferSize {
		a.overflow = true
		return fmt.Errorf("secure buffer overflow: need %d bytes, have %d remaining",
			len(b), ContentBufferSize-a.offset)
	}

	copy(a.buffer.Bytes()[a.offset:], b)
	a.offset += len(b)
	a.hasher.Write(b)
	return nil
}

// Finalize returns the assembled content and digest, then wipes the
// buffer.
func (a *secureAccumulator) Finalize() (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return "", "", fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		a.wipe()
		return "", "", fmt.Errorf("buffer overflowed during accumulation")
	}

	content := string(a.buffer.Bytes()[:a.offset])
	digest := hex.EncodeToString(a.hasher.Sum(nil))
	a.wipe()

	slog.Debug("Finalized secure content accumulator",
		"accumulator_id", a.id,
		"content_length", len(content),
		"lifetime", time.Since(a.createdAt).String())
	return content, digest, nil
}

// Destroy wipes the buffer without returning data.
func (a *secureAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}
	a.wipe()
	slog.Debug("Destroyed secure content accumulator", "accumulator_id", a.id)
}

// ID returns the accumulator's log identifier.
func (a *secureAccumulator) ID() string { return a.id }

func (a *secureAccumulator) wipe() {
	if a.buffer != nil {
		a.buffer.Destroy()
	}
	a.destroyed = true
}

// Write appends a chunk to the fallback buffer.
func (a *insecureAccumulator) Write(chunk string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		return fmt.Errorf("buffer overflow - generated content too large")
	}

	b := []byte(chunk)
	if len(a.data)+len(b) > ContentBufferSize {
		a.overflow = true
		return fmt.Errorf("buffer overflow: need %d bytes, have %d remaining",
			len(b), ContentBufferSize-len(a.data))
	}

	a.data = append(a.data, b...)
	a.hasher.Write(b)
	return nil
}

// Finalize returns the assembled content and digest, then zeroes the
// slice. Best effort: the garbage collector may have copied the data.
func (a *insecureAccumulator) Finalize() (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return "", "", fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		a.wipe()
		return "", "", fmt.Errorf("buffer overflowed during accumulation")
	}

	content := string(a.data)
	digest := hex.EncodeToString(a.hasher.Sum(nil))
	a.wipe()
	return content, digest, nil
}

// Destroy zeroes the slice without returning data.
func (a *insecureAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}
	a.wipe()
}

// ID returns the accumulator's log identifier.
func (a *insecureAccumulator) ID() string { return a.id }

func (a *insecureAccumulator) wipe() {
	for i := range a.data {
		a.data[i] = 0
	}
	a.data = nil
	a.destroyed = true
}

// initMemguard performs one-time memguard setup and records whether the
// mlock limit fits a content buffer.
func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, currentMlockLimitKB = checkMlockLimit()
		if mlockSufficient {
			slog.Info("Secure memory initialized",
				"mlock_limit_kb", currentMlockLimitKB,
				"required_kb", minMlockLimitKB)
		} else {
			slog.Warn("mlock limit insufficient for secure content accumulation",
				"current_limit_kb", currentMlockLimitKB,
				"required_kb", minMlockLimitKB,
				"fallback", "set ALEUTIAN_INSECURE_MEMORY=true to run without mlock")
		}
	})
}

// checkMlockLimit reports whether RLIMIT_MEMLOCK fits a buffer, and the
// current limit in KB (-1 when unlimited).
func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("Could not determine mlock limit", "error", err)
		return true, -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}
	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= minMlockLimitKB, limitKB
}

// PurgeSecureMemory wipes all memguard allocations. Called on graceful
// shutdown.
func PurgeSecureMemory() {
	memguard.Purge()
	slog.Info("Purged secure memory")
}
