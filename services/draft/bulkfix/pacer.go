// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bulkfix

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"
)

// Pacer spaces the orchestrator's resolver calls.
//
// # Description
//
// The batch loop calls Wait before each resolver invocation. A blocked
// Wait suspends the batch between steps; it never interrupts a step
// already in flight. Implementations pick the policy: token bucket,
// fixed delay, or none at all.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Pacer interface {
	// Wait blocks until the next resolver call may proceed. A non-nil
	// error abandons the wait; the step is skipped, not failed.
	Wait(ctx context.Context) error
}

// NopPacer never delays. The zero value is ready to use.
type NopPacer struct{}

// Wait returns immediately, honoring an already-ended context.
func (NopPacer) Wait(ctx context.Context) error { return ctx.Err() }

// TokenBucketPacer paces resolver calls with a token bucket.
//
// # Description
//
// Wraps golang.org/x/time/rate. The rate is configured per minute
// because resolver backends quote their limits that way; the limiter
// runs on the per-second equivalent. Burst controls how many calls may
// proceed back to back before the bucket drains.
//
// # Thread Safety
//
// Safe for concurrent use.
type TokenBucketPacer struct {
	limiter *rate.Limiter
}

// compile-time interface checks
var (
	_ Pacer = NopPacer{}
	_ Pacer = (*TokenBucketPacer)(nil)
)

// NewTokenBucketPacer creates a pacer allowing callsPerMinute resolver
// calls. A callsPerMinute of zero or less disables pacing entirely. A
// burst of zero or less derives the burst from the sustained rate.
func NewTokenBucketPacer(callsPerMinute float64, burst int) *TokenBucketPacer {
	perSecond := callsPerMinute / 60.0
	limit := rate.Limit(perSecond)
	if callsPerMinute <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = computeBurst(perSecond)
	}
	return &TokenBucketPacer{
		limiter: rate.NewLimiter(limit, burst),
	}
}

// computeBurst derives a burst from the sustained rate. Slow rates
// still get a burst of one so a single call never blocks forever.
func computeBurst(perSecond float64) int {
	b := int(math.Ceil(perSecond))
	if b < 1 {
		b = 1
	}
	return b
}

// Wait blocks until a token is available or the context ends.
func (p *TokenBucketPacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacer wait: %w", err)
	}
	return nil
}
