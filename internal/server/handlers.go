// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modelfront/gateway/internal/schema"
)

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports readiness: database, fast cache tier when enabled,
// and when require_model_ready is set, at least one loaded model. Draining
// servers report not ready so load balancers stop routing to them.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	ready := true

	if s.draining.Load() {
		components["server"] = "draining"
		ready = false
	} else {
		components["server"] = "ok"
	}

	if err := s.DBReady(r.Context()); err != nil {
		components["database"] = err.Error()
		ready = false
	} else {
		components["database"] = "ok"
	}

	if s.CacheReady != nil {
		if err := s.CacheReady(r.Context()); err != nil {
			components["cache"] = err.Error()
			ready = false
		} else {
			components["cache"] = "ok"
		}
	}

	if s.Settings.RequireModelReady {
		if s.Models.Ready() {
			components["models"] = "ok"
		} else {
			components["models"] = "no model loaded"
			ready = false
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]any{"ready": ready, "components": components})
}

// handleModelz reports model-loading readiness.
func (s *Server) handleModelz(w http.ResponseWriter, _ *http.Request) {
	loaded := s.Models.LoadedIDs()
	status := http.StatusOK
	if len(loaded) == 0 {
		status = http.StatusServiceUnavailable
	}
	if loaded == nil {
		loaded = []string{}
	}
	s.writeJSON(w, status, map[string]any{
		"loaded":        loaded,
		"default_model": s.Models.DefaultID(),
	})
}

// modelInfo is the listing view of one model.
type modelInfo struct {
	ID           string          `json:"id"`
	Default      bool            `json:"default"`
	Loaded       bool            `json:"loaded"`
	Capabilities map[string]bool `json:"capabilities"`
}

// handleListModels lists models with their merged capability maps plus the
// deployment-level toggles.
func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	loaded := make(map[string]bool)
	for _, id := range s.Models.LoadedIDs() {
		loaded[id] = true
	}
	models := make([]modelInfo, 0, len(s.Models.IDs()))
	for _, id := range s.Models.IDs() {
		models = append(models, modelInfo{
			ID:           id,
			Default:      id == s.Models.DefaultID(),
			Loaded:       loaded[id],
			Capabilities: s.Capabilities.Effective(id),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"models":                  models,
		"deployment_capabilities": s.Settings.Capabilities(),
	})
}

// handleListSchemas lists the registered schemas.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	infos, err := s.Schemas.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if infos == nil {
		infos = []schema.Info{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"schemas": infos})
}

// handleGetSchema serves one full schema document.
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	entry, err := s.Schemas.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry.Raw)
}
