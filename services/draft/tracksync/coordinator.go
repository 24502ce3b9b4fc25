// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tracksync follows one in-flight generation task through two
// racing transports: an event-driven push stream and a time-driven poll
// fallback. Both native message shapes are normalized into a single
// canonical event stream, and idempotent terminal handling makes the
// final observed state deterministic no matter which transport lands
// the terminal status first.
package tracksync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

// TrackState represents the lifecycle state of task tracking.
//
// # States
//
//   - Idle: No task is being tracked
//   - Connecting: Push transport is being opened for a new task
//   - Streaming: Push frames are flowing
//   - Degraded: Push is gone, the poll fallback drives status
//   - Terminal: A completed/failed event was delivered, tracking is over
//
// # State Diagram
//
//	IDLE ──track()──► CONNECTING ──[open ok]──► STREAMING
//	                      │                         │
//	                 [open fails]        [close/error before terminal]
//	                      ▼                         ▼
//	                      └────────► DEGRADED ◄─────┘
//	                                     │
//	                          [terminal status polled]
//	                                     ▼
//	            STREAMING ──[terminal frame]──► TERMINAL
type TrackState int

const (
	// TrackIdle means no task has been tracked yet.
	TrackIdle TrackState = iota

	// TrackConnecting means the push transport is being opened.
	TrackConnecting

	// TrackStreaming means push frames are flowing.
	TrackStreaming

	// TrackDegraded means the poll fallback has taken over.
	TrackDegraded

	// TrackTerminal means a terminal event was delivered and all
	// transport resources are released.
	TrackTerminal
)

// String returns a human-readable state name.
func (s TrackState) String() string {
	switch s {
	case TrackIdle:
		return "IDLE"
	case TrackConnecting:
		return "CONNECTING"
	case TrackStreaming:
		return "STREAMING"
	case TrackDegraded:
		return "DEGRADED"
	case TrackTerminal:
		return "TERMINAL"
	default:
		return "UNKNOWN"
	}
}

// Discard reasons passed to Observer.EventDiscarded.
const (
	// DiscardStaleEpoch marks events from a retired transport
	// subscription (superseded task or failed-over push stream).
	DiscardStaleEpoch = "stale_epoch"

	// DiscardAfterTerminal marks events arriving after the first
	// terminal event already won.
	DiscardAfterTerminal = "after_terminal"

	// DiscardTaskMismatch marks events bearing an id other than the
	// tracked one.
	DiscardTaskMismatch = "task_mismatch"

	// DiscardUnknownShape marks messages whose type or status is not
	// part of either wire contract.
	DiscardUnknownShape = "unknown_shape"
)

// Observer receives coordinator lifecycle notifications.
//
// # Description
//
// Fully optional telemetry hook; core behavior is identical with it
// absent. Methods are called synchronously from the tracking goroutine,
// so implementations must be fast or offload.
type Observer interface {
	TrackingStateChanged(taskID string, from, to TrackState)
	EventForwarded(ev datatypes.TaskStatusEvent)
	EventDiscarded(ev datatypes.TaskStatusEvent, reason string)
}

// DefaultPollInterval is the fixed fallback re-query cadence.
const DefaultPollInterval = 2 * time.Second

// eventBuffer sizes the outgoing channel so a briefly slow consumer
// does not stall the transport read loop.
const eventBuffer = 16

// Config configures a Coordinator.
type Config struct {
	// Push opens the event-driven status stream.
	Push PushTransport

	// Poll answers fallback status queries.
	Poll PollTransport

	// PollInterval is the fallback re-query cadence.
	// Default: 2 seconds
	PollInterval time.Duration

	// Logger receives transport lifecycle logs.
	// Default: slog.Default()
	Logger *slog.Logger

	// Observer is an optional telemetry hook.
	Observer Observer
}

// Coordinator owns the lifecycle of one in-flight generation task.
//
// # Description
//
// track() prefers the push transport and degrades to the poll fallback
// when push cannot be opened or breaks before a terminal status. Every
// transport subscription captures the epoch counter current at
// subscription time; events whose captured epoch no longer matches the
// live counter are discarded, so a superseded task or an abandoned
// stream can never write through to the caller. The first terminal
// event wins: once delivered, every later event for the task is
// discarded and all transport resources are released.
//
// At most one task is tracked at a time. Calling Track again
// invalidates the previous task: its transports are cancelled and its
// event channel closes without a terminal event.
//
// # Thread Safety
//
// Coordinator is safe for concurrent use.
type Coordinator struct {
	push         PushTransport
	poll         PollTransport
	pollInterval time.Duration
	logger       *slog.Logger
	observer     Observer

	mu     sync.RWMutex
	epoch  uint64
	taskID string
	state  TrackState
	cancel context.CancelFunc
}

// New creates a coordinator in the idle state.
func New(cfg Config) *Coordinator {
	// Apply defaults for zero values
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Coordinator{
		push:         cfg.Push,
		poll:         cfg.Poll,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
		observer:     cfg.Observer,
		state:        TrackIdle,
	}
}

// Track begins tracking a task and returns its normalized event stream.
//
// # Description
//
// The returned channel delivers events in transport arrival order and
// closes after the terminal event, after ctx is cancelled, or when a
// later Track call supersedes this task. Cancellation closes the
// channel without a terminal event.
//
// # Inputs
//
//   - ctx: Bounds the whole tracking lifecycle
//   - taskID: Opaque id of the task to follow
//
// # Outputs
//
//   - <-chan datatypes.TaskStatusEvent: The normalized status stream
func (c *Coordinator) Track(ctx context.Context, taskID string) <-chan datatypes.TaskStatusEvent {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.epoch++
	epoch := c.epoch
	c.taskID = taskID
	from := c.state
	c.state = TrackConnecting
	c.mu.Unlock()

	c.notifyState(taskID, from, TrackConnecting)
	c.logger.Info("tracking task", "task_id", taskID)

	out := make(chan datatypes.TaskStatusEvent, eventBuffer)
	go c.run(runCtx, cancel, epoch, taskID, out)
	return out
}

// Close tears down any active tracking. The current task's event
// channel closes without a terminal event.
func (c *Coordinator) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// State returns the current tracking state.
func (c *Coordinator) State() TrackState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// TaskID returns the id of the task currently tracked, or "" before
// the first Track call.
func (c *Coordinator) TaskID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.taskID
}

// run drives one task from connect to terminal. It owns the out
// channel and always closes it on exit.
func (c *Coordinator) run(ctx context.Context, cancel context.CancelFunc, epoch uint64, taskID string, out chan datatypes.TaskStatusEvent) {
	defer close(out)
	defer cancel()
	defer func() {
		// epoch is re-read here so the failover bump is honored.
		c.transitionIfCurrent(epoch, taskID, TrackTerminal)
	}()

	stream, err := c.push.Open(ctx, taskID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("push transport unavailable, degrading to poll",
			"task_id", taskID, "error", err)
	} else {
		c.transitionIfCurrent(epoch, taskID, TrackStreaming)
		done := c.streamPush(ctx, epoch, taskID, stream, out)
		_ = stream.Close()
		if done || ctx.Err() != nil {
			return
		}
		c.logger.Warn("push stream broke before terminal status, degrading to poll",
			"task_id", taskID)
	}

	// Retire the push subscription's epoch before the poll loop
	// starts, so any frame it still manages to deliver is stale.
	next, ok := c.advance(epoch)
	if !ok {
		return
	}
	epoch = next
	c.transitionIfCurrent(epoch, taskID, TrackDegraded)
	c.pollLoop(ctx, epoch, taskID, out)
}

// streamPush forwards push frames until the stream breaks or a
// terminal event is delivered. Returns true when tracking is over and
// the poll fallback must not start.
func (c *Coordinator) streamPush(ctx context.Context, epoch uint64, taskID string, stream PushStream, out chan datatypes.TaskStatusEvent) bool {
	for {
		frame, err := stream.Next(ctx)
		if err != nil {
			return false
		}
		ev, ok := NormalizePush(frame)
		if !ok {
			c.discard(datatypes.TaskStatusEvent{TaskID: frame.TaskID}, DiscardUnknownShape)
			c.logger.Debug("dropping push frame with unknown type",
				"task_id", taskID, "type", string(frame.Type))
			continue
		}
		if done := c.publish(ctx, epoch, out, ev); done {
			return true
		}
	}
}

// pollLoop re-queries task status on a fixed interval until a terminal
// status is reached or ctx is cancelled. Query errors are logged and
// retried; there is no hard timeout.
func (c *Coordinator) pollLoop(ctx context.Context, epoch uint64, taskID string, out chan datatypes.TaskStatusEvent) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		resp, err := c.poll.Status(ctx, taskID)
		switch {
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			c.logger.Warn("status poll failed, will retry",
				"task_id", taskID, "error", err)
		default:
			ev, ok := NormalizePoll(taskID, resp)
			if !ok {
				c.discard(datatypes.TaskStatusEvent{TaskID: taskID}, DiscardUnknownShape)
				c.logger.Debug("dropping poll response with unknown status",
					"task_id", taskID, "status", string(resp.Status))
			} else if done := c.publish(ctx, epoch, out, ev); done {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// publish forwards one normalized event to the caller unless it is
// stale. Returns true when this subscription must stop delivering:
// either the event was terminal or the subscription's epoch has been
// retired.
func (c *Coordinator) publish(ctx context.Context, epoch uint64, out chan<- datatypes.TaskStatusEvent, ev datatypes.TaskStatusEvent) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.discard(ev, DiscardStaleEpoch)
		return true
	}
	if c.state == TrackTerminal {
		c.mu.Unlock()
		c.discard(ev, DiscardAfterTerminal)
		return true
	}
	if ev.TaskID != c.taskID {
		c.mu.Unlock()
		c.discard(ev, DiscardTaskMismatch)
		return false
	}
	terminal := ev.Kind.Terminal()
	from := c.state
	if terminal {
		c.state = TrackTerminal
	}
	c.mu.Unlock()

	if terminal {
		c.notifyState(ev.TaskID, from, TrackTerminal)
	}

	select {
	case out <- ev:
		if c.observer != nil {
			c.observer.EventForwarded(ev)
		}
	case <-ctx.Done():
		return true
	}
	return terminal
}

// advance retires the given epoch and issues the next one for the poll
// fallback. Fails when another Track call has taken over or tracking
// already ended.
func (c *Coordinator) advance(epoch uint64) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch || c.state == TrackTerminal {
		return 0, false
	}
	c.epoch++
	return c.epoch, true
}

// transitionIfCurrent moves to the target state unless the epoch has
// been retired or the state is already there.
func (c *Coordinator) transitionIfCurrent(epoch uint64, taskID string, to TrackState) {
	c.mu.Lock()
	if c.epoch != epoch || c.state == to {
		c.mu.Unlock()
		return
	}
	from := c.state
	c.state = to
	c.mu.Unlock()

	c.notifyState(taskID, from, to)
}

// notifyState runs outside the state lock.
func (c *Coordinator) notifyState(taskID string, from, to TrackState) {
	c.logger.Debug("tracking state changed",
		"task_id", taskID, "from", from.String(), "to", to.String())
	if c.observer != nil {
		c.observer.TrackingStateChanged(taskID, from, to)
	}
}

func (c *Coordinator) discard(ev datatypes.TaskStatusEvent, reason string) {
	if c.observer != nil {
		c.observer.EventDiscarded(ev, reason)
	}
}
