// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// HTTPBackend calls a model runtime over HTTP. The runtime exposes
// POST /generate accepting {model, prompt, max_new_tokens, temperature} and
// returning {output}. EnsureLoaded probes POST /load so an off/lazy runtime
// can pull weights before the first completion.
type HTTPBackend struct {
	modelID string
	baseURL string
	client  *http.Client
	loaded  atomic.Bool
}

// NewHTTPBackend creates a backend for modelID served at baseURL.
func NewHTTPBackend(modelID, baseURL string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		modelID: modelID,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model        string  `json:"model"`
	Prompt       string  `json:"prompt"`
	MaxNewTokens int     `json:"max_new_tokens,omitempty"`
	Temperature  float64 `json:"temperature"`
}

type generateResponse struct {
	Output string `json:"output"`
}

// Generate implements the same method as documented on Backend.
func (b *HTTPBackend) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:        b.modelID,
		Prompt:       prompt,
		MaxNewTokens: params.MaxNewTokens,
		Temperature:  params.Temperature,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("model runtime call failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("cannot read model runtime response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model runtime returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("cannot parse model runtime response: %w", err)
	}
	return out.Output, nil
}

// EnsureLoaded implements the same method as documented on Backend.
func (b *HTTPBackend) EnsureLoaded(ctx context.Context) error {
	if b.loaded.Load() {
		return nil
	}
	body, _ := json.Marshal(map[string]string{"model": b.modelID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/load", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("model runtime load failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model runtime load returned status %d", resp.StatusCode)
	}
	b.loaded.Store(true)
	return nil
}

// Loaded implements the same method as documented on Backend.
func (b *HTTPBackend) Loaded() bool { return b.loaded.Load() }
