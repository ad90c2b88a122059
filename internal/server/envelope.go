// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/modelfront/gateway/internal/apierror"
)

// errorEnvelope is the public error body.
type errorEnvelope struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	Extra     map[string]any `json:"extra"`
}

// writeJSON renders a success body.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Error("cannot encode response", zap.Error(err))
	}
}

// writeError renders the error envelope for a tagged error, mapping unknown
// errors to internal_error. Internal causes are logged, never surfaced.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) *apierror.Error {
	apiErr := apierror.From(err)
	if apiErr.Code == apierror.CodeInternal {
		s.Logger.Error("internal error",
			zap.String("request_id", requestIDFrom(r.Context())), zap.Error(err))
	}
	s.writeJSON(w, apiErr.Status, errorEnvelope{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		RequestID: requestIDFrom(r.Context()),
		Extra:     apiErr.Extra,
	})
	return apiErr
}

// decodeBody parses a JSON request body.
func decodeBody(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(into); err != nil {
		return apierror.New(apierror.CodeInvalidRequest, http.StatusBadRequest, "invalid JSON request body")
	}
	return nil
}
