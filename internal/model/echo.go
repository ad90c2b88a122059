// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package model

import (
	"context"
	"fmt"
	"sync/atomic"
)

// EchoBackend is the embedded development backend. It serves deterministic
// completions derived from the prompt, so a gateway with no runtime attached
// is still fully exercisable end to end.
type EchoBackend struct {
	modelID string
	loaded  atomic.Bool
}

// NewEchoBackend creates an echo backend for the given model id.
func NewEchoBackend(modelID string) *EchoBackend {
	return &EchoBackend{modelID: modelID}
}

// Generate implements the same method as documented on Backend.
func (b *EchoBackend) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !b.loaded.Load() {
		return "", fmt.Errorf("model %q: weights not loaded", b.modelID)
	}
	out := prompt
	if params.MaxNewTokens > 0 && len(out) > params.MaxNewTokens {
		out = out[:params.MaxNewTokens]
	}
	return fmt.Sprintf("[%s] %s", b.modelID, out), nil
}

// EnsureLoaded implements the same method as documented on Backend.
func (b *EchoBackend) EnsureLoaded(context.Context) error {
	b.loaded.Store(true)
	return nil
}

// Loaded implements the same method as documented on Backend.
func (b *EchoBackend) Loaded() bool { return b.loaded.Load() }
