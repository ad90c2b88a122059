// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package server

import (
	"net/http"

	"github.com/modelfront/gateway/internal/apierror"
)

type adminLoadRequest struct {
	Model string `json:"model"`
}

// handleAdminModelLoad serves POST /v1/admin/models/load: transitions a
// backend to loaded at runtime, including off-mode backends. Requires the
// admin role.
func (s *Server) handleAdminModelLoad(w http.ResponseWriter, r *http.Request) {
	key, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if key.RoleName != "admin" {
		s.writeError(w, r, apierror.New(apierror.CodeInvalidAPIKey, http.StatusUnauthorized,
			"admin role required"))
		return
	}

	var req adminLoadRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	modelID := req.Model
	if modelID == "" {
		modelID = s.Models.DefaultID()
	}
	if err := s.Models.AdminLoad(r.Context(), modelID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"loaded": modelID})
}
