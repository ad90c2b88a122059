// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// KeyPrefix namespaces completion fingerprints in the fast tier.
const KeyPrefix = "gw:completion:"

// Fingerprint computes the deterministic cache key over every input that
// influences a model's output. Equal fingerprints imply output equivalence.
func Fingerprint(modelID, prompt string, maxNewTokens int, temperature float64) string {
	h := sha256.New()
	// Length-prefixed fields so no two input combinations collide.
	for _, field := range []string{
		modelID,
		prompt,
		strconv.Itoa(maxNewTokens),
		strconv.FormatFloat(temperature, 'g', -1, 64),
	} {
		fmt.Fprintf(h, "%d:%s;", len(field), field)
	}
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}
