// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the draft service.
//
// This file contains the generation-task model: the task record itself,
// the canonical status event produced by the transport layer, and the two
// native wire shapes (push frame, poll response) that get normalized into
// that canonical event.
package datatypes

import (
	"time"
)

// =============================================================================
// Task Status
// =============================================================================

// TaskStatus is the lifecycle status of a generation task as reported by
// the generator backend.
type TaskStatus string

const (
	// TaskQueued means the backend accepted the job but has not started it.
	TaskQueued TaskStatus = "queued"

	// TaskInProgress means the backend is actively generating content.
	TaskInProgress TaskStatus = "in_progress"

	// TaskCompleted is terminal: generation finished and result content
	// is available.
	TaskCompleted TaskStatus = "completed"

	// TaskFailed is terminal: the backend reported an error.
	TaskFailed TaskStatus = "failed"

	// TaskCancelled is terminal: the job was cancelled before finishing.
	// Neither wire shape carries it natively; backends report
	// cancellation through an error frame, which the transport layer
	// maps to a failure event with the cancellation message.
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the status ends the task lifecycle.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// =============================================================================
// Generation Task
// =============================================================================

// GenerationTask is one in-flight document-generation job.
//
// # Description
//
// Created when a caller starts generation, owned exclusively by the
// tracking coordinator until a terminal status is observed, and
// dereferenced once the caller consumes the terminal event. At most one
// task is tracked per coordinator instance.
//
// # Fields
//
//   - ID: Opaque task identifier assigned by the generator backend.
//   - Status: Current lifecycle status.
//   - ProgressPercent: 0-100 completion estimate; advisory only.
//   - Message: Human-readable status line from the backend.
//   - ResultContent: Generated content; populated only on completion.
//
// # Thread Safety
//
// Not safe for concurrent mutation. The coordinator serializes all
// writes; callers receive copies via events, never the live struct.
type GenerationTask struct {
	ID              string     `json:"id"`
	Status          TaskStatus `json:"status"`
	ProgressPercent float64    `json:"progress_percent"`
	Message         string     `json:"message,omitempty"`
	ResultContent   string     `json:"result_content,omitempty"`
}

// =============================================================================
// Canonical Status Event
// =============================================================================

// EventKind classifies a normalized task status event.
type EventKind string

const (
	// EventProgress is a non-terminal status update.
	EventProgress EventKind = "progress"

	// EventCompleted is the terminal success event; Content carries the
	// generated text.
	EventCompleted EventKind = "completed"

	// EventFailed is the terminal failure event; Message carries the
	// backend's error text.
	EventFailed EventKind = "failed"
)

// Terminal reports whether the kind ends the event stream.
func (k EventKind) Terminal() bool {
	return k == EventCompleted || k == EventFailed
}

// TaskStatusEvent is the canonical status event.
//
// # Description
//
// Both transports' native messages are mapped into this one shape before
// any state-machine logic runs, so the coordinator never branches on
// transport-specific fields. Events are transient and never persisted.
//
// # Fields
//
//   - TaskID: The task this event belongs to. Events bearing an id other
//     than the currently tracked one must never affect state.
//   - Kind: progress, completed, or failed.
//   - ProgressPercent: 0-100; meaningful for progress events.
//   - Message: Status or error text, depending on Kind.
//   - Content: Generated document content; set on completion, and on
//     progress events from backends that stream partial content.
type TaskStatusEvent struct {
	TaskID          string    `json:"task_id"`
	Kind            EventKind `json:"kind"`
	ProgressPercent float64   `json:"progress_percent,omitempty"`
	Message         string    `json:"message,omitempty"`
	Content         string    `json:"content,omitempty"`
}

// =============================================================================
// Push Transport Wire Shape
// =============================================================================

// PushFrameType identifies the type field of a push-transport frame.
type PushFrameType string

const (
	PushFrameProgress           PushFrameType = "progress"
	PushFrameGenerationComplete PushFrameType = "generation_complete"
	PushFrameTaskComplete       PushFrameType = "task_complete"
	PushFrameError              PushFrameType = "error"
)

// PushFrame is the native message shape of the push (websocket) transport.
//
// Older generator builds report percentage under "percentage", newer ones
// under "progress"; both are carried and reconciled during normalization.
// Unknown type values cause the frame to be dropped silently.
type PushFrame struct {
	Type       PushFrameType `json:"type"`
	TaskID     string        `json:"task_id"`
	Percentage *float64      `json:"percentage,omitempty"`
	Progress   *float64      `json:"progress,omitempty"`
	Message    string        `json:"message,omitempty"`
	Content    string        `json:"content,omitempty"`
}

// =============================================================================
// Poll Transport Wire Shape
// =============================================================================

// PollStatusResponse is the native response shape of the poll transport's
// status query.
type PollStatusResponse struct {
	Status   TaskStatus `json:"status"`
	Progress float64    `json:"progress"`
	Message  string     `json:"message,omitempty"`
	Result   string     `json:"result,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// =============================================================================
// Generation API Types
// =============================================================================

// StartGenerationRequest asks the service to start a generation job for
// one document section.
type StartGenerationRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
	Section    string `json:"section" validate:"required,max=256"`
	Brief      string `json:"brief" validate:"required,maxbytes"`
}

// Validate validates the StartGenerationRequest fields.
func (r *StartGenerationRequest) Validate() error {
	return draftValidate.Struct(r)
}

// StartGenerationResponse returns the backend-assigned task id the
// client uses to open a tracking stream.
type StartGenerationResponse struct {
	TaskID     string `json:"task_id"`
	DocumentID string `json:"document_id"`
	StartedAt  int64  `json:"started_at"`
}

// NewStartGenerationResponse builds a response stamped with the current
// time in Unix milliseconds.
func NewStartGenerationResponse(taskID, documentID string) *StartGenerationResponse {
	return &StartGenerationResponse{
		TaskID:     taskID,
		DocumentID: documentID,
		StartedAt:  time.Now().UnixMilli(),
	}
}
