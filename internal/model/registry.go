// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package model

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/modelfront/gateway/internal/apierror"
	"github.com/modelfront/gateway/internal/config"
)

// Factory builds a backend for one model spec.
type Factory func(spec config.ModelSpec) Backend

// managed pairs a backend with its spec and the locks guarding it. The call
// mutex serializes Generate per backend; runtimes that support concurrent
// calls can be exposed as multiple specs.
type managed struct {
	spec    config.ModelSpec
	mode    config.LoadMode
	backend Backend

	loadMu sync.Mutex
	callMu sync.Mutex
}

// Registry holds one or many backends indexed by model id.
type Registry struct {
	cfg     *config.ModelsConfig
	logger  *zap.Logger
	entries map[string]*managed
}

// NewRegistry creates backends for every spec in cfg. The per-model
// load_mode, when set, overrides the deployment-wide mode.
func NewRegistry(cfg *config.ModelsConfig, mode config.LoadMode, factory Factory, logger *zap.Logger) *Registry {
	entries := make(map[string]*managed, len(cfg.Models))
	for _, spec := range cfg.Models {
		m := &managed{spec: spec, mode: mode, backend: factory(spec)}
		if spec.LoadMode != "" {
			m.mode = spec.LoadMode
		}
		entries[spec.ID] = m
	}
	return &Registry{cfg: cfg, logger: logger, entries: entries}
}

// DefaultID returns the configured default model id.
func (r *Registry) DefaultID() string { return r.cfg.DefaultModel }

// IDs returns all registered model ids.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for _, spec := range r.cfg.Models {
		ids = append(ids, spec.ID)
	}
	return ids
}

// Start applies the load mode at startup: eager loads every backend, lazy
// and off load nothing. Returns the first load failure.
func (r *Registry) Start(ctx context.Context) error {
	for id, m := range r.entries {
		if m.mode != config.LoadModeEager {
			continue
		}
		if err := r.ensureLoaded(ctx, m); err != nil {
			return fmt.Errorf("eager load of model %q failed: %w", id, err)
		}
	}
	return nil
}

// EnsureLoaded loads only the default model; other models load on first
// bind.
func (r *Registry) EnsureLoaded(ctx context.Context) error {
	m, ok := r.entries[r.cfg.DefaultModel]
	if !ok {
		return fmt.Errorf("default model %q is not registered", r.cfg.DefaultModel)
	}
	if m.mode == config.LoadModeOff {
		return apierror.ModelNotLoaded(m.spec.ID)
	}
	return r.ensureLoaded(ctx, m)
}

func (r *Registry) ensureLoaded(ctx context.Context, m *managed) error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	if m.backend.Loaded() {
		return nil
	}
	r.logger.Info("loading model", zap.String("model", m.spec.ID), zap.String("mode", string(m.mode)))
	return m.backend.EnsureLoaded(ctx)
}

// lookup resolves a model id, mapping empty to the default.
func (r *Registry) lookup(modelID string) (*managed, error) {
	if modelID == "" {
		modelID = r.cfg.DefaultModel
	}
	m, ok := r.entries[modelID]
	if !ok {
		return nil, apierror.ModelNotLoaded(modelID)
	}
	return m, nil
}

// Generate binds the model id and invokes the backend, loading it first when
// the mode permits. An off-mode backend that has not been administratively
// loaded fails with model_not_loaded.
func (r *Registry) Generate(ctx context.Context, modelID, prompt string, params Params) (string, error) {
	m, err := r.lookup(modelID)
	if err != nil {
		return "", err
	}
	if !m.backend.Loaded() {
		if m.mode == config.LoadModeOff {
			return "", apierror.ModelNotLoaded(m.spec.ID)
		}
		if err := r.ensureLoaded(ctx, m); err != nil {
			return "", apierror.ModelNotLoaded(m.spec.ID)
		}
	}
	m.callMu.Lock()
	defer m.callMu.Unlock()
	return m.backend.Generate(ctx, prompt, params)
}

// AdminLoad transitions a backend to loaded at runtime, including off-mode
// backends. An empty id loads the default model.
func (r *Registry) AdminLoad(ctx context.Context, modelID string) error {
	m, err := r.lookup(modelID)
	if err != nil {
		return err
	}
	return r.ensureLoaded(ctx, m)
}

// Ready reports whether at least one backend is loaded.
func (r *Registry) Ready() bool {
	for _, m := range r.entries {
		if m.backend.Loaded() {
			return true
		}
	}
	return false
}

// LoadedIDs returns the ids of currently loaded backends.
func (r *Registry) LoadedIDs() []string {
	var ids []string
	for _, spec := range r.cfg.Models {
		if m := r.entries[spec.ID]; m != nil && m.backend.Loaded() {
			ids = append(ids, spec.ID)
		}
	}
	return ids
}
