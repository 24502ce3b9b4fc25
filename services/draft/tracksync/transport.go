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

	"github.com/AleutianAI/AleutianDraft/services/draft/datatypes"
)

// PushStream delivers raw push frames for one task in arrival order.
//
// Next blocks until a frame arrives, the stream breaks, or ctx is
// cancelled. Any returned error means the stream is dead; callers
// fail over rather than retry. Close is idempotent.
type PushStream interface {
	Next(ctx context.Context) (datatypes.PushFrame, error)
	Close() error
}

// PushTransport opens event-driven status streams.
type PushTransport interface {
	Open(ctx context.Context, taskID string) (PushStream, error)
}

// PollTransport answers point-in-time status queries. Used as the
// fallback when the push transport is unavailable or breaks.
type PollTransport interface {
	Status(ctx context.Context, taskID string) (datatypes.PollStatusResponse, error)
}
