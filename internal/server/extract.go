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
	"github.com/modelfront/gateway/internal/capability"
)

type extractRequest struct {
	SchemaID     string   `json:"schema_id"`
	Text         string   `json:"text"`
	Model        string   `json:"model"`
	Cache        *bool    `json:"cache"`
	Repair       *bool    `json:"repair"`
	MaxNewTokens *int     `json:"max_new_tokens"`
	Temperature  *float64 `json:"temperature"`
}

type extractResponse struct {
	SchemaID        string         `json:"schema_id"`
	Data            map[string]any `json:"data"`
	Model           string         `json:"model"`
	RepairAttempted bool           `json:"repair_attempted"`
	LatencyMS       int64          `json:"latency_ms"`
}

// handleExtract serves POST /v1/extract. The capability gate runs before the
// schema is loaded, so a disabled capability wins over a bad schema_id.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	t := newTerminal("/v1/extract")

	var req extractRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, t, err)
		return
	}
	if req.SchemaID == "" || req.Text == "" {
		s.fail(w, r, t, apierror.New(apierror.CodeInvalidRequest, http.StatusBadRequest,
			"schema_id and text are required"))
		return
	}

	adm, err := s.admit(r, capability.Extract, req.Model)
	if adm != nil {
		t.setKey(adm.key)
		t.modelID = adm.modelID
	}
	if err != nil {
		s.fail(w, r, t, err)
		return
	}
	defer adm.release()

	gen := generateRequest{MaxNewTokens: req.MaxNewTokens, Temperature: req.Temperature, Cache: req.Cache}
	params := gen.params()
	repair := req.Repair != nil && *req.Repair

	// cached reflects whether any generate round inside the attempt was
	// served from the completion cache.
	anyCached := false
	generate := func(ctx context.Context, prompt string) (string, error) {
		out, cached, err := s.completion(ctx, adm.modelID, prompt, params, gen.cacheEnabled())
		anyCached = anyCached || cached
		return out, err
	}

	result, err := s.Extractor.Run(r.Context(), req.SchemaID, req.Text, repair, generate)
	t.cached = anyCached
	if err != nil {
		if apiErr := apierror.From(err); apiErr.Extra != nil {
			if stage, ok := apiErr.Extra["failure_stage"].(string); ok {
				s.Metrics.ExtractionFailures.WithLabelValues(stage).Inc()
			}
		}
		s.fail(w, r, t, err)
		return
	}

	s.writeJSON(w, http.StatusOK, extractResponse{
		SchemaID:        req.SchemaID,
		Data:            result.Data,
		Model:           adm.modelID,
		RepairAttempted: result.RepairAttempted,
		LatencyMS:       time.Since(t.start).Milliseconds(),
	})
	s.finish(r, t, http.StatusOK, nil)
}
