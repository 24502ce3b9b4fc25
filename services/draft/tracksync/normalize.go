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
	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

// NormalizePush maps a raw push frame onto the canonical event shape.
//
// Description:
//
//	Both wire shapes funnel through normalization before any state
//	machine logic runs, so the coordinator never branches on
//	transport-specific fields. Completion arrives as either a
//	"generation_complete" frame (carrying the generated content) or a
//	"task_complete" frame; both normalize to a completed event and the
//	first to land wins.
//
// Outputs:
//
//   - datatypes.TaskStatusEvent: The normalized event.
//   - bool: False when the frame type is unknown and the frame must be
//     dropped.
func NormalizePush(frame datatypes.PushFrame) (datatypes.TaskStatusEvent, bool) {
	ev := datatypes.TaskStatusEvent{
		TaskID:  frame.TaskID,
		Message: frame.Message,
	}

	switch frame.Type {
	case datatypes.PushFrameProgress:
		ev.Kind = datatypes.EventProgress
		ev.ProgressPercent = clampPercent(framePercent(frame))
	case datatypes.PushFrameGenerationComplete, datatypes.PushFrameTaskComplete:
		ev.Kind = datatypes.EventCompleted
		ev.ProgressPercent = 100
		ev.Content = frame.Content
	case datatypes.PushFrameError:
		ev.Kind = datatypes.EventFailed
		ev.ProgressPercent = clampPercent(framePercent(frame))
	default:
		return datatypes.TaskStatusEvent{}, false
	}
	return ev, true
}

// NormalizePoll maps a poll response onto the canonical event shape.
//
// Description:
//
//	Poll responses carry no task id on the wire; the id the caller
//	queried for is stamped onto the event. A cancelled backend status
//	surfaces as a failed event, since cancellation is terminal and the
//	canonical shape has no separate kind for it.
//
// Outputs:
//
//   - datatypes.TaskStatusEvent: The normalized event.
//   - bool: False when the status is unknown and the response must be
//     dropped.
func NormalizePoll(taskID string, resp datatypes.PollStatusResponse) (datatypes.TaskStatusEvent, bool) {
	ev := datatypes.TaskStatusEvent{
		TaskID:  taskID,
		Message: resp.Message,
	}

	switch resp.Status {
	case datatypes.TaskQueued, datatypes.TaskInProgress:
		ev.Kind = datatypes.EventProgress
		ev.ProgressPercent = clampPercent(resp.Progress)
	case datatypes.TaskCompleted:
		ev.Kind = datatypes.EventCompleted
		ev.ProgressPercent = 100
		ev.Content = resp.Result
	case datatypes.TaskFailed:
		ev.Kind = datatypes.EventFailed
		ev.ProgressPercent = clampPercent(resp.Progress)
		if resp.Error != "" {
			ev.Message = resp.Error
		}
	case datatypes.TaskCancelled:
		ev.Kind = datatypes.EventFailed
		if ev.Message == "" {
			ev.Message = "task cancelled"
		}
	default:
		return datatypes.TaskStatusEvent{}, false
	}
	return ev, true
}

// framePercent prefers the current "percentage" field and falls back to
// the legacy "progress" field older backends still send.
func framePercent(frame datatypes.PushFrame) float64 {
	if frame.Percentage != nil {
		return *frame.Percentage
	}
	if frame.Progress != nil {
		return *frame.Progress
	}
	return 0
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
