// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package config holds the immutable deployment settings snapshot and the
// models configuration. Settings are bound once from the environment at
// startup and never mutated afterwards; components receive the values they
// need at construction.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadMode controls when model weights are loaded.
type LoadMode string

// Valid load modes.
const (
	LoadModeOff   LoadMode = "off"
	LoadModeLazy  LoadMode = "lazy"
	LoadModeEager LoadMode = "eager"
)

// Valid reports whether m is one of the recognized load modes.
func (m LoadMode) Valid() bool {
	switch m {
	case LoadModeOff, LoadModeLazy, LoadModeEager:
		return true
	}
	return false
}

// Settings is the immutable snapshot of deployment flags. Field tags bind
// environment variables via kong at startup.
type Settings struct {
	Addr string `env:"LISTEN_ADDR" default:":8080" help:"HTTP listen address."`

	DatabaseURL string `env:"DATABASE_URL" default:"postgres://localhost:5432/gateway?sslmode=disable" help:"Postgres connection string."`

	RedisURL     string `env:"REDIS_URL" default:"localhost:6379" help:"Redis address for the fast cache tier."`
	RedisEnabled bool   `env:"REDIS_ENABLED" default:"false" help:"Enable the Redis fast cache tier."`

	SchemasDir string `env:"SCHEMAS_DIR" default:"./schemas" help:"Directory containing JSON Schema documents."`

	ModelsConfigPath string   `env:"MODELS_CONFIG" default:"./models.yaml" help:"Path to the models configuration file."`
	ModelLoadMode    LoadMode `env:"MODEL_LOAD_MODE" default:"lazy" enum:"off,lazy,eager" help:"Model weight loading mode."`
	ModelRuntimeURL  string   `env:"MODEL_RUNTIME_URL" default:"" help:"Base URL of the model runtime; empty selects the embedded echo backend."`
	ModelTimeout     time.Duration `env:"MODEL_TIMEOUT" default:"120s" help:"Per-request backend generate timeout."`

	RequireModelReady bool `env:"REQUIRE_MODEL_READY" default:"false" help:"Readiness requires at least one loaded model."`

	PolicyDecisionPath string `env:"POLICY_DECISION_PATH" default:"" help:"Path to the policy decision artifact; empty disables the policy gate."`

	MaxConcurrentRequests int64 `env:"MAX_CONCURRENT_REQUESTS" default:"2" help:"Permits for the heavy-route concurrency gate."`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"*" help:"Allowed CORS origins."`

	EnableGenerate bool `env:"ENABLE_GENERATE" default:"true" help:"Deployment gate for the generate capability."`
	EnableExtract  bool `env:"ENABLE_EXTRACT" default:"true" help:"Deployment gate for the extract capability."`

	CacheTTL time.Duration `env:"CACHE_TTL" default:"1h" help:"TTL for fast-tier cache entries."`

	LogLevel  string `env:"LOG_LEVEL" default:"info" help:"Log level (debug, info, warn, error)."`
	LogFormat string `env:"LOG_FORMAT" default:"json" enum:"json,console" help:"Log encoder."`
}

// Capabilities returns the deployment-level capability map derived from the
// enable toggles. Capabilities absent from the map are treated as enabled by
// the resolver.
func (s *Settings) Capabilities() map[string]bool {
	return map[string]bool{
		"generate": s.EnableGenerate,
		"extract":  s.EnableExtract,
	}
}

// ModelSpec describes one model entry in the models configuration.
type ModelSpec struct {
	ID           string          `yaml:"id"`
	Backend      string          `yaml:"backend"`
	LoadMode     LoadMode        `yaml:"load_mode"`
	Capabilities map[string]bool `yaml:"capabilities"`
	DType        string          `yaml:"dtype"`
	Device       string          `yaml:"device"`
	Quantization string          `yaml:"quantization"`
}

// ModelsConfig is the set of model specs plus deployment defaults. Read-only
// after load.
type ModelsConfig struct {
	DefaultModel string `yaml:"default_model"`
	Defaults     struct {
		Capabilities map[string]bool `yaml:"capabilities"`
	} `yaml:"defaults"`
	Models []ModelSpec `yaml:"models"`
}

// Spec returns the spec for the given model id, or nil if unknown.
func (c *ModelsConfig) Spec(id string) *ModelSpec {
	for i := range c.Models {
		if c.Models[i].ID == id {
			return &c.Models[i]
		}
	}
	return nil
}

// EffectiveCapabilities merges the deployment defaults with the per-model
// overrides. Explicit per-model values win.
func (c *ModelsConfig) EffectiveCapabilities(id string) map[string]bool {
	merged := make(map[string]bool, len(c.Defaults.Capabilities))
	for k, v := range c.Defaults.Capabilities {
		merged[k] = v
	}
	if spec := c.Spec(id); spec != nil {
		for k, v := range spec.Capabilities {
			merged[k] = v
		}
	}
	return merged
}

// LoadModelsConfig reads and validates the models configuration file.
func LoadModelsConfig(path string) (*ModelsConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read models config %s: %w", path, err)
	}
	var cfg ModelsConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse models config %s: %w", path, err)
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("models config %s declares no models", path)
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = cfg.Models[0].ID
	}
	if cfg.Spec(cfg.DefaultModel) == nil {
		return nil, fmt.Errorf("default_model %q is not declared in models config", cfg.DefaultModel)
	}
	for i := range cfg.Models {
		if cfg.Models[i].LoadMode != "" && !cfg.Models[i].LoadMode.Valid() {
			return nil, fmt.Errorf("model %q has invalid load_mode %q", cfg.Models[i].ID, cfg.Models[i].LoadMode)
		}
	}
	return &cfg, nil
}
