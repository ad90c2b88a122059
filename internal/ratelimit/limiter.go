// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package ratelimit implements the per-API-key fixed-window request limiter.
// Windows are 60 seconds, non-sliding; counters reset by replacement when a
// request arrives in a later window. Each gateway replica keeps its own
// counters; there is no cross-replica coordination.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the fixed limiter window length.
const Window = 60 * time.Second

// gcAge is how old an entry must be before opportunistic eviction.
const gcAge = 2 * Window

type counter struct {
	windowStart time.Time
	count       int
}

// Result is the outcome of one check-and-increment.
type Result struct {
	// Allowed is true when the request fits in the current window.
	Allowed bool
	// RetryAfter is the seconds until the window resets, >= 1. Only
	// meaningful when Allowed is false.
	RetryAfter int64
	// Remaining is the number of requests left in the window.
	Remaining int
}

// Limiter tracks fixed-window counters per API key. Check-and-increment is
// atomic with respect to concurrent requests on the same key.
type Limiter struct {
	now func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
	lastGC   time.Time
}

// NewLimiter creates an empty limiter.
func NewLimiter() *Limiter {
	return &Limiter{now: time.Now, counters: make(map[string]*counter)}
}

// Check admits or rejects one request for key under the given per-minute
// limit. A limit <= 0 means unlimited. Rejected requests do not consume a
// slot.
func (l *Limiter) Check(key string, limit int) Result {
	if limit <= 0 {
		return Result{Allowed: true, Remaining: -1}
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeGC(now)

	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowStart) >= Window {
		c = &counter{windowStart: now}
		l.counters[key] = c
	}

	if c.count >= limit {
		retry := int64((Window - now.Sub(c.windowStart)).Seconds())
		if retry < 1 {
			retry = 1
		}
		return Result{Allowed: false, RetryAfter: retry}
	}
	c.count++
	return Result{Allowed: true, Remaining: limit - c.count}
}

// maybeGC evicts counters older than two windows. Piggybacked on Check, at
// most once per window, so the map stays proportional to active keys.
func (l *Limiter) maybeGC(now time.Time) {
	if now.Sub(l.lastGC) < Window {
		return
	}
	l.lastGC = now
	for key, c := range l.counters {
		if now.Sub(c.windowStart) >= gcAge {
			delete(l.counters, key)
		}
	}
}

// Len returns the number of tracked keys, for tests and metrics.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
