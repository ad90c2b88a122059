// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/modelfront/gateway/internal/apierror"
	"github.com/modelfront/gateway/internal/cache"
	"github.com/modelfront/gateway/internal/capability"
	"github.com/modelfront/gateway/internal/model"
)

// Sampling defaults applied when the request omits them.
const (
	defaultMaxNewTokens = 256
	defaultTemperature  = 0.0
)

type generateRequest struct {
	Prompt       string   `json:"prompt"`
	MaxNewTokens *int     `json:"max_new_tokens"`
	Temperature  *float64 `json:"temperature"`
	Model        string   `json:"model"`
	Cache        *bool    `json:"cache"`
}

func (req *generateRequest) params() model.Params {
	p := model.Params{MaxNewTokens: defaultMaxNewTokens, Temperature: defaultTemperature}
	if req.MaxNewTokens != nil {
		p.MaxNewTokens = *req.MaxNewTokens
	}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	return p
}

// cacheEnabled defaults to true; the client may opt out per request.
func (req *generateRequest) cacheEnabled() bool {
	return req.Cache == nil || *req.Cache
}

type generateResponse struct {
	Output    string `json:"output"`
	Model     string `json:"model"`
	Cached    bool   `json:"cached"`
	LatencyMS int64  `json:"latency_ms"`
}

// completion runs one cache-aware completion for an admitted request.
func (s *Server) completion(ctx context.Context, modelID, prompt string, params model.Params, useCache bool) (output string, cached bool, err error) {
	gen := func(ctx context.Context) (string, error) {
		s.Metrics.BackendCalls.WithLabelValues(modelID).Inc()
		return s.Models.Generate(ctx, modelID, prompt, params)
	}
	if !useCache {
		out, err := gen(ctx)
		return out, false, err
	}
	key := cache.Fingerprint(modelID, prompt, params.MaxNewTokens, params.Temperature)
	out, cached, err := s.Cache.GetOrCompute(ctx, key, modelID, gen)
	if err != nil {
		return "", false, err
	}
	result := "miss"
	if cached {
		result = "hit"
	}
	s.Metrics.CacheRequests.WithLabelValues("combined", result).Inc()
	return out, cached, nil
}

// handleGenerate serves POST /v1/generate.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	t := newTerminal("/v1/generate")

	var req generateRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, t, err)
		return
	}
	if req.Prompt == "" {
		s.fail(w, r, t, apierror.New(apierror.CodeInvalidRequest, http.StatusBadRequest, "prompt is required"))
		return
	}

	adm, err := s.admit(r, capability.Generate, req.Model)
	if adm != nil {
		t.setKey(adm.key)
		t.modelID = adm.modelID
	}
	if err != nil {
		s.fail(w, r, t, err)
		return
	}
	defer adm.release()

	output, cached, err := s.completion(r.Context(), adm.modelID, req.Prompt, req.params(), req.cacheEnabled())
	if err != nil {
		s.fail(w, r, t, err)
		return
	}

	t.cached = cached
	t.setTokens(req.Prompt, output)
	s.writeJSON(w, http.StatusOK, generateResponse{
		Output:    output,
		Model:     adm.modelID,
		Cached:    cached,
		LatencyMS: time.Since(t.start).Milliseconds(),
	})
	s.finish(r, t, http.StatusOK, nil)
}

type batchRequest struct {
	Prompts      []string `json:"prompts"`
	MaxNewTokens *int     `json:"max_new_tokens"`
	Temperature  *float64 `json:"temperature"`
	Model        string   `json:"model"`
	Cache        *bool    `json:"cache"`
}

type batchItem struct {
	Output string         `json:"output,omitempty"`
	Cached bool           `json:"cached"`
	Error  map[string]any `json:"error,omitempty"`
}

// handleGenerateBatch serves POST /v1/generate/batch. Admission is checked
// once for the whole request; each prompt is then served independently with
// its own cache consult, and one item's failure does not poison the others.
// Ordering of results matches the request.
func (s *Server) handleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	t := newTerminal("/v1/generate/batch")

	var req batchRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, t, err)
		return
	}
	if len(req.Prompts) == 0 {
		s.fail(w, r, t, apierror.New(apierror.CodeInvalidRequest, http.StatusBadRequest, "prompts is required"))
		return
	}

	adm, err := s.admit(r, capability.Generate, req.Model)
	if adm != nil {
		t.setKey(adm.key)
		t.modelID = adm.modelID
	}
	if err != nil {
		s.fail(w, r, t, err)
		return
	}
	defer adm.release()

	single := generateRequest{
		MaxNewTokens: req.MaxNewTokens,
		Temperature:  req.Temperature,
		Cache:        req.Cache,
	}
	params := single.params()

	results := make([]batchItem, len(req.Prompts))
	allCached := true
	for i, prompt := range req.Prompts {
		output, cached, err := s.completion(r.Context(), adm.modelID, prompt, params, single.cacheEnabled())
		if err != nil {
			apiErr := apierror.From(err)
			results[i] = batchItem{Error: map[string]any{
				"code":    apiErr.Code,
				"message": apiErr.Message,
			}}
			allCached = false
			continue
		}
		results[i] = batchItem{Output: output, Cached: cached}
		allCached = allCached && cached
	}

	t.cached = allCached
	s.writeJSON(w, http.StatusOK, map[string]any{
		"results":    results,
		"model":      adm.modelID,
		"latency_ms": time.Since(t.start).Milliseconds(),
	})
	s.finish(r, t, http.StatusOK, nil)
}
