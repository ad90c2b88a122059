// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package cache

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Loader computes a completion on a cache miss.
type Loader func(ctx context.Context) (string, error)

// TwoTier fronts the fast and durable tiers with single-flight semantics.
type TwoTier struct {
	fast    Tier
	durable Tier
	group   singleflight.Group
	logger  *zap.Logger
}

// NewTwoTier builds the cache front. Pass NoOpTier for a disabled fast tier.
func NewTwoTier(fast, durable Tier, logger *zap.Logger) *TwoTier {
	return &TwoTier{fast: fast, durable: durable, logger: logger}
}

// GetOrCompute returns the completion for key, reading fast then durable and
// falling back to compute. Tier read errors degrade to misses. On a computed
// result the durable tier is written first, then the fast tier; a failed
// computation is never cached. The returned cached flag is true when the
// value came from a tier.
func (c *TwoTier) GetOrCompute(ctx context.Context, key, modelID string, compute Loader) (value string, cached bool, err error) {
	if entry, ok := c.read(ctx, c.fast, "fast", key); ok {
		return entry.Value, true, nil
	}
	if entry, ok := c.read(ctx, c.durable, "durable", key); ok {
		// Backfill the fast tier so the next read is cheap.
		c.write(ctx, c.fast, "fast", key, entry)
		return entry.Value, true, nil
	}

	out, err, _ := c.group.Do(key, func() (any, error) {
		// Another waiter may have populated a tier while we queued.
		if entry, ok := c.read(ctx, c.durable, "durable", key); ok {
			return entry.Value, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return "", err
		}
		entry := Entry{ModelID: modelID, Value: v}
		c.write(ctx, c.durable, "durable", key, entry)
		c.write(ctx, c.fast, "fast", key, entry)
		return v, nil
	})
	if err != nil {
		return "", false, err
	}
	return out.(string), false, nil
}

// read treats tier errors as misses, logging them once.
func (c *TwoTier) read(ctx context.Context, tier Tier, name, key string) (Entry, bool) {
	entry, ok, err := tier.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache tier read failed", zap.String("tier", name), zap.Error(err))
		return Entry{}, false
	}
	return entry, ok
}

// write populates a tier on a context detached from the request, so a client
// disconnect after compute does not lose the entry.
func (c *TwoTier) write(ctx context.Context, tier Tier, name, key string, entry Entry) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := tier.Set(writeCtx, key, entry); err != nil {
		c.logger.Warn("cache tier write failed", zap.String("tier", name), zap.Error(err))
	}
}
