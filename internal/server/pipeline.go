// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/modelfront/gateway/internal/apierror"
	"github.com/modelfront/gateway/internal/inflog"
	"github.com/modelfront/gateway/internal/storage"
)

// admission is the state of a request that passed the admission pipeline.
// release must be called on every exit path once acquired.
type admission struct {
	key     *storage.APIKey
	modelID string
	release func()
}

// authenticate resolves the X-API-Key header to an active key.
func (s *Server) authenticate(r *http.Request) (*storage.APIKey, error) {
	raw := r.Header.Get("X-API-Key")
	if raw == "" {
		return nil, apierror.MissingAPIKey()
	}
	key, err := s.Keys.LookupAPIKey(r.Context(), raw)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, apierror.InvalidAPIKey()
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	if !key.Active {
		return nil, apierror.InvalidAPIKey()
	}
	return key, nil
}

// admit runs the ordered admission pipeline for a heavy route: authenticate,
// rate limit, capability (deployment gate before model gate), quota, then
// the concurrency permit. All checks complete before any backend work; the
// quota is consumed on attempt and never refunded.
func (s *Server) admit(r *http.Request, capabilityName, requestedModel string) (*admission, error) {
	key, err := s.authenticate(r)
	if err != nil {
		return nil, err
	}

	res := s.Limiter.Check(key.Key, key.RequestsPerMinute)
	if !res.Allowed {
		return nil, apierror.RateLimited(res.RetryAfter)
	}

	modelID := requestedModel
	if modelID == "" {
		modelID = s.Models.DefaultID()
	}
	if err := s.Capabilities.Check(modelID, capabilityName); err != nil {
		return nil, err
	}

	if err := s.Ledger.CheckAndConsume(r.Context(), key.Key); err != nil {
		return nil, err
	}

	gateStart := time.Now()
	release, err := s.Gate.Acquire(r.Context(), requestIDFrom(r.Context()), r.URL.Path)
	if err != nil {
		// Client went away while queued; quota stays consumed.
		return nil, apierror.Internal(err)
	}
	s.Metrics.GateWait.Observe(time.Since(gateStart).Seconds())
	s.Metrics.InFlight.Inc()

	return &admission{
		key:     key,
		modelID: modelID,
		release: func() { s.Metrics.InFlight.Dec(); release() },
	}, nil
}

// terminal accumulates everything the inference log row needs while a
// handler runs.
type terminal struct {
	route            string
	start            time.Time
	apiKey           *string
	modelID          string
	cached           bool
	promptTokens     *int
	completionTokens *int
}

func newTerminal(route string) *terminal {
	return &terminal{route: route, start: time.Now()}
}

func (t *terminal) setKey(key *storage.APIKey) {
	if key != nil {
		k := key.Key
		t.apiKey = &k
	}
}

func (t *terminal) setTokens(prompt, completion string) {
	p, c := inflog.EstimateTokens(prompt), inflog.EstimateTokens(completion)
	t.promptTokens, t.completionTokens = &p, &c
}

// finish persists exactly one inference log row and records the request
// metrics. Handlers call it on every terminal path.
func (s *Server) finish(r *http.Request, t *terminal, status int, errCode *string) {
	latency := time.Since(t.start)
	s.InfLog.Write(r.Context(), inflog.Record{
		RequestID:        requestIDFrom(r.Context()),
		APIKey:           t.apiKey,
		Route:            t.route,
		ModelID:          t.modelID,
		PromptTokens:     t.promptTokens,
		CompletionTokens: t.completionTokens,
		LatencyMS:        latency.Milliseconds(),
		StatusCode:       status,
		ErrorCode:        errCode,
		Cached:           t.cached,
	})
	s.Metrics.ObserveRequest(t.route, strconv.Itoa(status), latency)
	if errCode != nil {
		s.Metrics.AdmissionDenials.WithLabelValues(*errCode).Inc()
		s.Logger.Debug("request denied",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("route", t.route),
			zap.String("code", *errCode))
	}
}

// fail renders the error envelope and records the terminal outcome in one
// step.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, t *terminal, err error) {
	apiErr := s.writeError(w, r, err)
	code := apiErr.Code
	s.finish(r, t, apiErr.Status, &code)
}
