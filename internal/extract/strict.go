// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package extract

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/modelfront/gateway/internal/apierror"
)

// StrictUnmarshal parses input as exactly one JSON object. It rejects
// empty or whitespace-only input, code-fenced input, trailing content after
// the value, the NaN/Infinity literals, and non-object top-level values.
// Every rejection carries the invalid_json code.
func StrictUnmarshal(input string) (map[string]any, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, invalidJSON("input is empty")
	}
	if strings.HasPrefix(trimmed, "```") {
		return nil, invalidJSON("input is code-fenced")
	}
	// encoding/json rejects NaN and +/-Infinity already; the explicit check
	// keeps the message precise.
	switch {
	case strings.HasPrefix(trimmed, "NaN"), strings.HasPrefix(trimmed, "Infinity"),
		strings.HasPrefix(trimmed, "-Infinity"):
		return nil, invalidJSON("non-finite literals are not valid JSON")
	}

	// No UseNumber: candidates from the brace scan carry float64 values, and
	// the delimited candidate must match that representation.
	dec := json.NewDecoder(strings.NewReader(trimmed))
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, invalidJSON("input is not valid JSON")
	}
	// Anything after the first value other than whitespace is an error.
	if dec.More() {
		return nil, invalidJSON("trailing content after JSON value")
	}
	if rest := trimmed[dec.InputOffset():]; strings.TrimSpace(rest) != "" {
		return nil, invalidJSON("trailing content after JSON value")
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, invalidJSON("top-level JSON value is not an object")
	}
	return obj, nil
}

func invalidJSON(msg string) error {
	return apierror.New(apierror.CodeInvalidJSON, http.StatusUnprocessableEntity, msg)
}
