// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package model

import (
	"context"
	"sync"
	"sync/atomic"
)

// StubBackend is a scriptable backend for tests. Responses are served from a
// queue; once the queue is drained every call returns Fallback. The call
// counter lets tests assert single-flight and cache behavior.
type StubBackend struct {
	// Fallback is returned when the response queue is empty.
	Fallback string
	// Err, when set, is returned by every Generate call.
	Err error
	// LoadErr, when set, is returned by EnsureLoaded.
	LoadErr error
	// Delay, when set, is waited inside Generate (cancellable via ctx).
	Delay func()

	mu        sync.Mutex
	responses []string
	loaded    atomic.Bool
	calls     atomic.Int64
	prompts   []string
}

// NewStubBackend creates a loaded stub that answers with fallback.
func NewStubBackend(fallback string) *StubBackend {
	b := &StubBackend{Fallback: fallback}
	b.loaded.Store(true)
	return b
}

// Enqueue appends scripted responses served in order.
func (b *StubBackend) Enqueue(responses ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses = append(b.responses, responses...)
}

// Calls returns how many Generate calls reached the backend.
func (b *StubBackend) Calls() int64 { return b.calls.Load() }

// Prompts returns the prompts seen so far.
func (b *StubBackend) Prompts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.prompts...)
}

// Generate implements the same method as documented on Backend.
func (b *StubBackend) Generate(ctx context.Context, prompt string, _ Params) (string, error) {
	b.calls.Add(1)
	if b.Delay != nil {
		b.Delay()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if b.Err != nil {
		return "", b.Err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prompts = append(b.prompts, prompt)
	if len(b.responses) > 0 {
		out := b.responses[0]
		b.responses = b.responses[1:]
		return out, nil
	}
	return b.Fallback, nil
}

// EnsureLoaded implements the same method as documented on Backend.
func (b *StubBackend) EnsureLoaded(context.Context) error {
	if b.LoadErr != nil {
		return b.LoadErr
	}
	b.loaded.Store(true)
	return nil
}

// Loaded implements the same method as documented on Backend.
func (b *StubBackend) Loaded() bool { return b.loaded.Load() }

// SetLoaded overrides the loaded flag, for off-mode tests.
func (b *StubBackend) SetLoaded(v bool) { b.loaded.Store(v) }
