// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Command gateway is the inference gateway binary. The serve command runs
// the HTTP server; migrate applies database migrations and optional seed
// data. All configuration comes from environment variables.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/modelfront/gateway/internal/cache"
	"github.com/modelfront/gateway/internal/capability"
	"github.com/modelfront/gateway/internal/config"
	"github.com/modelfront/gateway/internal/extract"
	"github.com/modelfront/gateway/internal/gate"
	"github.com/modelfront/gateway/internal/inflog"
	"github.com/modelfront/gateway/internal/metrics"
	"github.com/modelfront/gateway/internal/model"
	"github.com/modelfront/gateway/internal/policy"
	"github.com/modelfront/gateway/internal/pprof"
	"github.com/modelfront/gateway/internal/quota"
	"github.com/modelfront/gateway/internal/ratelimit"
	"github.com/modelfront/gateway/internal/schema"
	"github.com/modelfront/gateway/internal/server"
	"github.com/modelfront/gateway/internal/storage"
	"github.com/modelfront/gateway/internal/version"
)

type cli struct {
	Serve   serveCmd   `cmd:"" default:"withargs" help:"Run the gateway HTTP server."`
	Migrate migrateCmd `cmd:"" help:"Apply database migrations and seed data."`
	Version struct{}   `cmd:"" help:"Show version."`
}

type serveCmd struct {
	config.Settings
}

type migrateCmd struct {
	config.Settings
	AdminBootstrapKey string `env:"ADMIN_BOOTSTRAP_KEY" default:"" help:"Seed one admin API key if set."`
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("gateway"),
		kong.Description("LLM inference gateway"),
	)
	switch kctx.Command() {
	case "version":
		fmt.Println(version.Version)
	case "migrate":
		if err := c.Migrate.run(); err != nil {
			log.Fatalf("migrate failed: %v", err)
		}
	default:
		if err := c.Serve.run(); err != nil {
			log.Fatalf("serve failed: %v", err)
		}
	}
}

// newLogger builds the zap logger from the settings.
func newLogger(s *config.Settings) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", s.LogLevel, err)
	}
	cfg := zap.NewProductionConfig()
	if s.LogFormat == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

func (c *migrateCmd) run() error {
	ctx := context.Background()
	store, err := storage.Open(ctx, c.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("cannot apply migrations: %w", err)
	}
	if err := store.BootstrapAdminKey(ctx, c.AdminBootstrapKey); err != nil {
		return fmt.Errorf("cannot seed admin key: %w", err)
	}
	return nil
}

func (c *serveCmd) run() error {
	settings := &c.Settings
	logger, err := newLogger(settings)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting gateway", zap.String("version", version.Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	pprof.Run(ctx)

	store, err := storage.Open(ctx, settings.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	modelsCfg, err := config.LoadModelsConfig(settings.ModelsConfigPath)
	if err != nil {
		return err
	}

	factory := func(spec config.ModelSpec) model.Backend {
		if settings.ModelRuntimeURL != "" {
			return model.NewHTTPBackend(spec.ID, settings.ModelRuntimeURL, settings.ModelTimeout)
		}
		return model.NewEchoBackend(spec.ID)
	}
	registry := model.NewRegistry(modelsCfg, settings.ModelLoadMode, factory, logger)
	if err := registry.Start(ctx); err != nil {
		return err
	}

	var fast cache.Tier = cache.NoOpTier{}
	var fastTier *cache.RedisTier
	if settings.RedisEnabled {
		fastTier, err = cache.NewRedisTier(cache.RedisConfig{
			Addr: settings.RedisURL,
			TTL:  settings.CacheTTL,
		})
		if err != nil {
			return fmt.Errorf("cannot connect to redis: %w", err)
		}
		defer fastTier.Close()
		fast = fastTier
	}

	loader := policy.NewLoader(settings.PolicyDecisionPath, policy.DefaultTTL)
	schemas := schema.NewRegistry(settings.SchemasDir)
	m := metrics.New()

	var cacheReady server.ReadyChecker
	if fastTier != nil {
		cacheReady = fastTier.Ping
	}

	srv := server.New(server.Deps{
		Settings:     settings,
		ModelsConfig: modelsCfg,
		Keys:         store,
		DBReady:      store.Ping,
		CacheReady:   cacheReady,
		Models:       registry,
		Schemas:      schemas,
		Capabilities: capability.NewResolver(settings.Capabilities(), modelsCfg, loader),
		Cache:        cache.NewTwoTier(fast, cache.NewDurableTier(store.DB()), logger),
		Limiter:      ratelimit.NewLimiter(),
		Ledger:       quota.NewLedger(store.DB()),
		Gate:         gate.New(settings.MaxConcurrentRequests, logger),
		Extractor:    extract.NewEngine(schemas),
		InfLog:       inflog.NewLogger(store.DB(), logger),
		Metrics:      m,
		Logger:       logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
