// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("m1", "hello", 256, 0.0)
	b := Fingerprint("m1", "hello", 256, 0.0)
	require.Equal(t, a, b)
	require.True(t, strings.HasPrefix(a, KeyPrefix))
}

func TestFingerprint_SensitiveToEveryInput(t *testing.T) {
	base := Fingerprint("m1", "hello", 256, 0.0)
	tests := []struct {
		name string
		key  string
	}{
		{"model", Fingerprint("m2", "hello", 256, 0.0)},
		{"prompt", Fingerprint("m1", "hello!", 256, 0.0)},
		{"max_new_tokens", Fingerprint("m1", "hello", 128, 0.0)},
		{"temperature", Fingerprint("m1", "hello", 256, 0.7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotEqual(t, base, tt.key)
		})
	}
}

func TestFingerprint_NoFieldConcatenationCollision(t *testing.T) {
	// Length prefixes keep field boundaries unambiguous.
	a := Fingerprint("m1", "ab", 1, 0)
	b := Fingerprint("m1a", "b", 1, 0)
	require.NotEqual(t, a, b)
}
