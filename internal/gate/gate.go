// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package gate bounds concurrent admission to the heavy inference routes
// with a FIFO counting semaphore. The discipline is queue, not reject:
// callers wait for a permit until their context is cancelled.
package gate

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// waitLogThreshold is the queue time above which acquisition is logged.
const waitLogThreshold = 5 * time.Millisecond

// Gate is the counting semaphore guarding backend work.
type Gate struct {
	sem    *semaphore.Weighted
	logger *zap.Logger
}

// New creates a gate with the given permit capacity.
func New(capacity int64, logger *zap.Logger) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{sem: semaphore.NewWeighted(capacity), logger: logger}
}

// Acquire blocks until a permit is available or ctx is cancelled. Wait
// times above the threshold are logged with the request id and path.
func (g *Gate) Acquire(ctx context.Context, requestID, path string) (release func(), err error) {
	start := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if waited := time.Since(start); waited > waitLogThreshold {
		g.logger.Info("request queued at concurrency gate",
			zap.String("request_id", requestID),
			zap.String("path", path),
			zap.Duration("waited", waited))
	}
	return func() { g.sem.Release(1) }, nil
}
