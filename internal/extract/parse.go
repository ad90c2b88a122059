// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package extract

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Delimiters the extraction prompt asks the model to wrap its object in.
// An object found inside them is tried before any scanned candidate.
const (
	DelimOpen  = "<<<JSON>>>"
	DelimClose = "<<<END>>>"
)

// candidates returns every parseable JSON object found in the model output,
// in preference order. Arrays and scalars are discarded.
func candidates(output string) []map[string]any {
	var out []map[string]any
	seen := make(map[string]struct{})

	add := func(raw string, obj map[string]any) {
		if _, dup := seen[raw]; dup {
			return
		}
		seen[raw] = struct{}{}
		out = append(out, obj)
	}

	// The prompt asks for exactly one strict object between the delimiters.
	// Sloppy delimited content (fences, trailing text, a non-object) earns no
	// preference and is left to the scan below.
	if inner, ok := delimited(output); ok {
		if obj, err := StrictUnmarshal(inner); err == nil {
			add(strings.TrimSpace(inner), obj)
		}
	}
	for _, raw := range balancedObjects(output) {
		if !gjson.Valid(raw) {
			continue
		}
		if obj, ok := gjson.Parse(raw).Value().(map[string]any); ok {
			add(raw, obj)
		}
	}
	return out
}

// delimited extracts the substring between the explicit delimiters.
func delimited(output string) (string, bool) {
	start := strings.Index(output, DelimOpen)
	if start < 0 {
		return "", false
	}
	rest := output[start+len(DelimOpen):]
	end := strings.Index(rest, DelimClose)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// balancedObjects scans output for top-level brace-balanced substrings.
// String literals and escapes are honored so braces inside strings do not
// break the balance.
func balancedObjects(output string) []string {
	var (
		out      []string
		depth    int
		start    int
		inString bool
		escaped  bool
	)
	for i, r := range output {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, output[start:i+1])
			}
		}
	}
	return out
}
