// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := NewLimiter()
	l.now = clock.Now
	return l, clock
}

func TestCheck_WithinLimit(t *testing.T) {
	l, _ := newTestLimiter()
	for i := 0; i < 5; i++ {
		res := l.Check("k1", 5)
		require.True(t, res.Allowed, "request %d should be admitted", i)
	}
	res := l.Check("k1", 5)
	require.False(t, res.Allowed)
}

func TestCheck_RetryAfter(t *testing.T) {
	l, clock := newTestLimiter()
	require.True(t, l.Check("k1", 1).Allowed)

	clock.Advance(20 * time.Second)
	res := l.Check("k1", 1)
	require.False(t, res.Allowed)
	require.Equal(t, int64(40), res.RetryAfter)

	// Near the boundary, retry_after clamps to 1.
	clock.Advance(39*time.Second + 500*time.Millisecond)
	res = l.Check("k1", 1)
	require.False(t, res.Allowed)
	require.Equal(t, int64(1), res.RetryAfter)
}

func TestCheck_WindowReset(t *testing.T) {
	l, clock := newTestLimiter()
	require.True(t, l.Check("k1", 1).Allowed)
	require.False(t, l.Check("k1", 1).Allowed)

	clock.Advance(61 * time.Second)
	res := l.Check("k1", 1)
	require.True(t, res.Allowed, "first request in the new window is admitted")
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter()
	require.True(t, l.Check("k1", 1).Allowed)
	require.False(t, l.Check("k1", 1).Allowed)
	require.True(t, l.Check("k2", 1).Allowed)
}

func TestCheck_UnlimitedRole(t *testing.T) {
	l, _ := newTestLimiter()
	for i := 0; i < 1000; i++ {
		require.True(t, l.Check("k1", 0).Allowed)
	}
	require.Equal(t, 0, l.Len(), "unlimited keys are not tracked")
}

func TestCheck_RejectionDoesNotConsume(t *testing.T) {
	l, clock := newTestLimiter()
	require.True(t, l.Check("k1", 1).Allowed)
	for i := 0; i < 10; i++ {
		require.False(t, l.Check("k1", 1).Allowed)
	}
	clock.Advance(Window)
	require.True(t, l.Check("k1", 1).Allowed)
}

func TestGC_EvictsStaleEntries(t *testing.T) {
	l, clock := newTestLimiter()
	l.Check("old", 5)
	require.Equal(t, 1, l.Len())

	clock.Advance(2*Window + time.Second)
	l.Check("fresh", 5)
	require.Equal(t, 1, l.Len(), "entries older than two windows are evicted")
}

func TestCheck_ConcurrentSameKey(t *testing.T) {
	l, _ := newTestLimiter()
	const limit = 50

	var wg sync.WaitGroup
	admitted := make(chan struct{}, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check("k1", limit).Allowed {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for range admitted {
		count++
	}
	require.Equal(t, limit, count)
}
