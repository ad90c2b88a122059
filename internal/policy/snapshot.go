// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package policy consumes the externally produced policy decision artifact.
// The artifact is a small JSON file written by the evaluation subproject; the
// gateway only reads it. A missing or malformed file fails closed: every
// capability the policy governs is treated as denied.
package policy

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// DefaultTTL is how long a loaded snapshot is served before the file is
// re-read.
const DefaultTTL = 2 * time.Second

// decision mirrors the on-disk artifact.
type decision struct {
	OK             *bool   `json:"ok"`
	Status         string  `json:"status"`
	EnableExtract  *bool   `json:"enable_extract"`
	ModelID        string  `json:"model_id"`
	ContractErrors int     `json:"contract_errors"`
}

// Snapshot is the consumed state of the policy decision artifact.
type Snapshot struct {
	// OK is false when the artifact denies, is malformed, or is missing.
	OK bool
	// ModelID scopes the decision to one model; empty means model-agnostic.
	ModelID string
	// EnableExtract is the policy's verdict on the extract capability.
	EnableExtract bool
	// SourcePath is the path the snapshot was read from.
	SourcePath string
	// Err records why a snapshot failed to load, if it did.
	Err error
}

// DeniesExtract reports whether this snapshot revokes the extract capability
// for the given model. The policy is AND-only: it can revoke, never grant.
func (s Snapshot) DeniesExtract(modelID string) bool {
	if s.ModelID != "" && s.ModelID != modelID {
		return false
	}
	return !s.OK || !s.EnableExtract
}

// Loader reads the policy decision artifact with a short TTL cache so that
// capability resolution does not hit the filesystem on every request.
type Loader struct {
	path string
	ttl  time.Duration

	mu      sync.Mutex
	cached  Snapshot
	expires time.Time
}

// NewLoader creates a loader for the given artifact path. An empty path
// disables the policy gate: Load returns a permissive snapshot.
func NewLoader(path string, ttl time.Duration) *Loader {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Loader{path: path, ttl: ttl}
}

// Enabled reports whether a policy artifact path is configured.
func (l *Loader) Enabled() bool { return l.path != "" }

// Load returns the current snapshot, re-reading the file when the cached
// copy has expired.
func (l *Loader) Load() Snapshot {
	if l.path == "" {
		return Snapshot{OK: true, EnableExtract: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if now := time.Now(); now.Before(l.expires) {
		return l.cached
	}
	snap := read(l.path)
	l.cached = snap
	l.expires = time.Now().Add(l.ttl)
	return snap
}

// read parses the artifact once, applying the fail-closed rules.
func read(path string) Snapshot {
	snap := Snapshot{SourcePath: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		snap.Err = err
		return snap
	}
	var d decision
	if err := json.Unmarshal(raw, &d); err != nil {
		snap.Err = err
		return snap
	}

	// ok defaults to true when absent.
	ok := d.OK == nil || *d.OK
	if d.Status == "deny" || d.ContractErrors > 0 {
		ok = false
	}
	enableExtract := ok
	if d.EnableExtract != nil {
		enableExtract = enableExtract && *d.EnableExtract
	}

	snap.OK = ok
	snap.ModelID = d.ModelID
	snap.EnableExtract = enableExtract
	return snap
}
