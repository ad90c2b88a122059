// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package model binds model ids to inference backends and enforces the
// configured load mode. The runtime behind a backend is out of scope; the
// package only assumes the synchronous generate contract.
package model

import (
	"context"
)

// Params are the sampling parameters that influence a backend's output.
type Params struct {
	MaxNewTokens int
	Temperature  float64
}

// Backend is the synchronous contract a model runtime exposes.
type Backend interface {
	// Generate produces a completion for the prompt. Implementations may
	// block; callers bound the call with ctx.
	Generate(ctx context.Context, prompt string, params Params) (string, error)
	// EnsureLoaded loads model weights if they are not resident yet.
	// Subsequent calls are no-ops.
	EnsureLoaded(ctx context.Context) error
	// Loaded reports whether the backend can serve without loading.
	Loaded() bool
}
