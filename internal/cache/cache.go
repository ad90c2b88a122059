// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package cache implements the two-tier completion cache. The fast tier
// (Redis, optional) is read first and may be evicted at any time; the
// durable tier (Postgres) is authoritative and survives restarts. Concurrent
// requests for the same fingerprint collapse to a single backend invocation
// through an in-process single-flight group; the durable write is the
// best-effort serialization point across replicas.
package cache

import (
	"context"
	"time"
)

// Entry is one cached completion.
type Entry struct {
	ModelID string
	Value   string
}

// Tier is one cache level keyed by fingerprint. A miss is (zero, false, nil);
// errors are reported but callers treat them as misses.
type Tier interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
}

// NoOpTier is a disabled tier. Used when the fast tier is turned off.
type NoOpTier struct{}

// Get always misses.
func (NoOpTier) Get(context.Context, string) (Entry, bool, error) { return Entry{}, false, nil }

// Set does nothing.
func (NoOpTier) Set(context.Context, string, Entry) error { return nil }

// writeTimeout bounds cache population, which runs on a context detached
// from the request so a client disconnect does not lose the write.
const writeTimeout = 5 * time.Second
