// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package server composes the gateway's components into the public HTTP
// surface. Every heavy route runs the same admission pipeline: authenticate,
// rate limit, capability, quota, concurrency, and every terminal outcome
// writes exactly one inference log row.
package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/modelfront/gateway/internal/cache"
	"github.com/modelfront/gateway/internal/capability"
	"github.com/modelfront/gateway/internal/config"
	"github.com/modelfront/gateway/internal/extract"
	"github.com/modelfront/gateway/internal/gate"
	"github.com/modelfront/gateway/internal/inflog"
	"github.com/modelfront/gateway/internal/metrics"
	"github.com/modelfront/gateway/internal/model"
	"github.com/modelfront/gateway/internal/ratelimit"
	"github.com/modelfront/gateway/internal/schema"
	"github.com/modelfront/gateway/internal/storage"
)

// KeyStore authenticates API keys.
type KeyStore interface {
	LookupAPIKey(ctx context.Context, key string) (*storage.APIKey, error)
}

// QuotaLedger checks and consumes monthly quota on attempt.
type QuotaLedger interface {
	CheckAndConsume(ctx context.Context, key string) error
}

// LogWriter persists one record per terminal outcome.
type LogWriter interface {
	Write(ctx context.Context, rec inflog.Record)
}

// ReadyChecker reports whether a dependency is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps are the constructed components the server composes.
type Deps struct {
	Settings     *config.Settings
	ModelsConfig *config.ModelsConfig
	Keys         KeyStore
	Models       *model.Registry
	Schemas      *schema.Registry
	Capabilities *capability.Resolver
	Cache        *cache.TwoTier
	Limiter      *ratelimit.Limiter
	Ledger       QuotaLedger
	Gate         *gate.Gate
	Extractor    *extract.Engine
	InfLog       LogWriter
	Metrics      *metrics.Metrics
	Logger       *zap.Logger

	// DBReady and CacheReady feed the readiness probe; CacheReady is nil
	// when the fast tier is disabled.
	DBReady    ReadyChecker
	CacheReady ReadyChecker
}

// Server is the gateway HTTP server.
type Server struct {
	Deps
	httpServer *http.Server
	draining   atomic.Bool
}

// New builds the server and its router.
func New(deps Deps) *Server {
	s := &Server{Deps: deps}
	s.httpServer = &http.Server{
		Addr:              deps.Settings.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// routes wires the public surface.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.Settings.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-API-Key", "X-Request-ID"},
	}))
	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(s.recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/modelz", s.handleModelz)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.Metrics.Registry(), promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/models", s.handleListModels)
		r.Get("/schemas", s.handleListSchemas)
		r.Get("/schemas/{id}", s.handleGetSchema)
		r.Post("/generate", s.handleGenerate)
		r.Post("/generate/batch", s.handleGenerateBatch)
		r.Post("/extract", s.handleExtract)
		r.Post("/admin/models/load", s.handleAdminModelLoad)
	})
	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.Logger.Info("gateway listening", zap.String("addr", s.Settings.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown flips readiness and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.draining.Store(true)
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }
